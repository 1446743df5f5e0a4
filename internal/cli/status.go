package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eduramiba/auth0-pkce-login/internal/auth0/idtoken"
	"github.com/eduramiba/auth0-pkce-login/internal/session"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session",
	Long: `Show whether a stored session exists and whether its token is still
valid. No network calls are made.

Examples:
  # Show the session
  auth0login status

  # Show the session in JSON format
  auth0login status -j`,
	RunE: getStatus,
}

// getStatus reports the stored session and its validity
func getStatus(cmd *cobra.Command, args []string) error {
	store := session.NewStore(SessionDir())
	stored, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}

	if stored == nil {
		if jsonOutput {
			printJSON(map[string]any{"logged_in": false})
		} else {
			fmt.Println("Not logged in.")
		}
		return nil
	}

	claims := idtoken.Verify(stored.SessionToken)
	if claims == nil {
		if jsonOutput {
			printJSON(map[string]any{
				"logged_in": false,
				"email":     stored.Email,
				"expired":   true,
			})
		} else {
			fmt.Printf("Session for %s has expired. Run \"auth0login login\" to sign in again.\n", stored.Email)
		}
		return nil
	}

	if jsonOutput {
		printJSON(map[string]any{
			"logged_in":  true,
			"name":       stored.DisplayName,
			"email":      stored.Email,
			"expires_at": claims.ExpiresAt.Format(time.RFC3339),
		})
	} else {
		okLabel.Println("✓ Logged in")
		if stored.DisplayName != "" {
			fmt.Printf("User: %s <%s>\n", stored.DisplayName, stored.Email)
		} else {
			fmt.Printf("User: %s\n", stored.Email)
		}
		fmt.Printf("Session expires: %s\n", claims.ExpiresAt.Local().Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}

// init initializes the status command and adds it to the root command
func init() {
	rootCmd.AddCommand(statusCmd)
}
