package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default name of the config file
const DefaultConfigFile = "config.yaml"

// Config represents the tenant configuration for auth0login
type Config struct {
	// Version of the configuration file format
	Version string `yaml:"version"`
	// Domain is the Auth0 tenant domain (e.g., tenant.eu.auth0.com)
	Domain string `yaml:"domain" validate:"required"`
	// ClientID identifies the application registered with the tenant
	ClientID string `yaml:"client_id" validate:"required"`
	// RedirectURI is the pre-registered callback URL. When empty, an
	// ephemeral loopback URL is used and must be allowed by the tenant.
	RedirectURI string `yaml:"redirect_uri" validate:"omitempty,url"`
}

var config *Config

var validate = validator.New()

// GetDefaultConfigPath returns the default path for the config file
// It uses the OS-specific config directory (e.g., ~/.config/auth0login on Linux)
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "auth0login", DefaultConfigFile), nil
}

// LoadConfig loads the configuration from the specified file
// If no file is specified, it uses the default config location
func LoadConfig(file string) error {
	if file == "" {
		var err error
		file, err = GetDefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get default config path: %w", err)
		}
	}

	yamlStr, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("unable to read config file: %w", err)
	}

	var c Config
	if err = yaml.Unmarshal(yamlStr, &c); err != nil {
		return fmt.Errorf("unable to parse config file: %w", err)
	}

	// Environment overrides for CI and scripted use
	if v := os.Getenv("AUTH0_DOMAIN"); v != "" {
		c.Domain = v
	}
	if v := os.Getenv("AUTH0_CLIENT_ID"); v != "" {
		c.ClientID = v
	}

	if err := c.Validate(); err != nil {
		return err
	}

	config = &c
	return nil
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	return config
}

// Validate checks the configuration for required fields
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].Field() {
			case "Domain":
				return errors.New("domain is required (e.g., tenant.eu.auth0.com)")
			case "ClientID":
				return errors.New("client_id is required")
			case "RedirectURI":
				return errors.New("redirect_uri must be a valid URL")
			}
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// WriteConfig writes the current configuration to the specified file
// If no file is specified, it uses the default config location
func (cfg *Config) WriteConfig(file string) error {
	if file == "" {
		return errors.New("file path cannot be empty")
	}

	err := os.MkdirAll(filepath.Dir(file), 0700)
	if err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	yamlStr, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("unable to generate configuration: %w", err)
	}

	err = os.WriteFile(file, yamlStr, os.FileMode(0600))
	if err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}

	return nil
}

// SessionDir returns the directory holding the stored session, which lives
// next to the config file.
func SessionDir() string {
	return filepath.Dir(configFile)
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage the tenant configuration: the Auth0 domain, the application
client ID and, optionally, a pre-registered redirect URI.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, _ := cmd.Flags().GetString("domain")
		clientID, _ := cmd.Flags().GetString("client-id")
		redirectURI, _ := cmd.Flags().GetString("redirect-uri")

		if domain == "" && clientID == "" && redirectURI == "" {
			return showConfig()
		}
		return setConfig(domain, clientID, redirectURI)
	},
}

func init() {
	configCmd.Flags().String("domain", "", "Auth0 tenant domain (e.g., tenant.eu.auth0.com)")
	configCmd.Flags().String("client-id", "", "Application client ID")
	configCmd.Flags().String("redirect-uri", "", "Pre-registered redirect URI (optional)")

	rootCmd.AddCommand(configCmd)
}

// showConfig prints the current configuration
func showConfig() error {
	if err := LoadConfig(configFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Println("Config file not found. Configure the tenant with \"auth0login config --domain ... --client-id ...\" first.")
			return ErrAlreadyHandled
		}
		return err
	}
	cfg := GetConfig()

	if jsonOutput {
		printJSON(map[string]string{
			"domain":       cfg.Domain,
			"client_id":    cfg.ClientID,
			"redirect_uri": cfg.RedirectURI,
			"config_file":  configFile,
		})
	} else {
		fmt.Printf("Domain: %s\n", cfg.Domain)
		fmt.Printf("Client ID: %s\n", cfg.ClientID)
		if cfg.RedirectURI != "" {
			fmt.Printf("Redirect URI: %s\n", cfg.RedirectURI)
		}
		fmt.Printf("Config file: %s\n", configFile)
	}
	return nil
}

// setConfig updates the configuration file, preserving unset fields
func setConfig(domain, clientID, redirectURI string) error {
	// Merge over whatever is already on disk, even a partial file.
	cfg := &Config{Version: "0.1.0"}
	if yamlStr, err := os.ReadFile(configFile); err == nil {
		_ = yaml.Unmarshal(yamlStr, cfg)
	}

	if domain != "" {
		cfg.Domain = domain
	}
	if clientID != "" {
		cfg.ClientID = clientID
	}
	if redirectURI != "" {
		cfg.RedirectURI = redirectURI
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.WriteConfig(configFile); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if jsonOutput {
		printJSON(map[string]string{
			"domain":      cfg.Domain,
			"client_id":   cfg.ClientID,
			"config_file": configFile,
		})
	} else {
		fmt.Printf("Tenant configured: %s\n", cfg.Domain)
		fmt.Printf("Config file: %s\n", configFile)
	}
	return nil
}
