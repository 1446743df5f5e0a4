package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eduramiba/auth0-pkce-login/internal/auth0"
	"github.com/eduramiba/auth0-pkce-login/internal/auth0/idtoken"
	"github.com/eduramiba/auth0-pkce-login/internal/auth0/login"
	"github.com/eduramiba/auth0-pkce-login/internal/session"
	"github.com/eduramiba/auth0-pkce-login/pkg/types"
)

// newLoginCmd creates and returns a new login command
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser",
		Long: `Sign in to the configured Auth0 tenant. A stored session is reused when
its token is still valid; otherwise the system browser opens on the
tenant's login page and the tool waits for the redirect.

Example:
  auth0login login
  auth0login login --force  # ignore any stored session`,
		RunE: runLogin,
	}

	cmd.Flags().Bool("force", false, "Ignore any stored session and sign in again")
	return cmd
}

// runLogin handles the login command execution
func runLogin(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	store := session.NewStore(SessionDir())

	force, _ := cmd.Flags().GetBool("force")
	if !force {
		if existing := restoreSession(store); existing != nil {
			printSession(existing, "Session restored")
			return nil
		}
	}

	result, err := interactiveLogin(cfg)
	if err != nil {
		return err
	}

	switch {
	case result.Err != nil:
		return fmt.Errorf("%s", result.Err.FriendlyMessage())
	case result.Session == nil:
		fmt.Println("Login cancelled.")
		return nil
	}

	if err := store.Save(result.Session); err != nil {
		return fmt.Errorf("logged in but failed to save session: %w", err)
	}
	printSession(result.Session, "Login successful")
	return nil
}

// restoreSession returns the stored session if its token still validates.
func restoreSession(store *session.Store) *types.Session {
	existing, err := store.Load()
	if err != nil || existing == nil {
		return nil
	}
	if idtoken.Verify(existing.SessionToken) == nil {
		return nil
	}
	return existing
}

// interactiveLogin runs one browser login attempt to completion.
func interactiveLogin(cfg *Config) (login.Result, error) {
	surface, err := login.NewLoopbackSurfaceFor(cfg.RedirectURI)
	if err != nil {
		return login.Result{}, err
	}

	client, err := auth0.NewClient(cfg.Domain, cfg.ClientID)
	if err != nil {
		surface.Close()
		return login.Result{}, err
	}
	defer client.Close()

	flow, err := login.New(login.Options{
		Domain:      cfg.Domain,
		ClientID:    cfg.ClientID,
		RedirectURI: surface.RedirectURI(),
	}, client, surface)
	if err != nil {
		surface.Close()
		return login.Result{}, err
	}

	// Ctrl-C while the browser is open counts as closing the surface.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cancelAbort := context.AfterFunc(ctx, surface.Abort)
	defer cancelAbort()

	if err := flow.Start(ctx); err != nil {
		surface.Close()
		return login.Result{}, err
	}

	fmt.Println("Opening your browser to sign in...")
	fmt.Println("Press Ctrl-C to cancel.")

	return flow.Wait(context.Background())
}

// printSession reports a successful login or restore
func printSession(s *types.Session, message string) {
	if jsonOutput {
		printJSON(map[string]string{
			"status": "success",
			"name":   s.DisplayName,
			"email":  s.Email,
		})
		return
	}
	okLabel.Printf("✓ %s\n", message)
	if s.DisplayName != "" {
		fmt.Printf("Logged in as %s <%s>\n", s.DisplayName, s.Email)
	} else {
		fmt.Printf("Logged in as %s\n", s.Email)
	}
}
