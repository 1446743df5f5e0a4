package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eduramiba/auth0-pkce-login/internal/session"
)

// newLogoutCmd creates and returns a new logout command
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Long: `Remove the locally stored session. This does not end the tenant's
browser session; it only makes the next login start fresh here.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := session.NewStore(SessionDir())
			if err := store.Clear(); err != nil {
				return fmt.Errorf("failed to clear session: %w", err)
			}

			if jsonOutput {
				printJSON(map[string]string{"status": "success"})
			} else {
				okLabel.Println("✓ Logged out")
			}
			return nil
		},
	}
}
