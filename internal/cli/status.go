package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// newStatusCmd reports the configured server and the state of the stored token.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the configured server and session",
		Long: `Show the configured server, user and session token.

Examples:
  managerctl status
  managerctl status -j`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetConfig()
			st := tokenStatus(cfg, time.Now())
			if jsonOutput {
				printJSON(map[string]any{
					"server":      cfg.GetServerURL(),
					"username":    cfg.GetUsername(),
					"token":       st,
					"expires_at":  formatExpiry(cfg.GetTokenExpiry()),
					"config_file": configFile,
				})
				return nil
			}
			cmd.Printf("Server:      %s\n", cfg.GetServerURL())
			cmd.Printf("Username:    %s\n", cfg.GetUsername())
			cmd.Printf("Token:       %s\n", st)
			cmd.Printf("Expires at:  %s\n", formatExpiry(cfg.GetTokenExpiry()))
			cmd.Printf("Config file: %s\n", configFile)
			return nil
		},
	}
}

func tokenStatus(cfg *Config, now time.Time) string {
	if cfg.GetToken() == "" {
		return "missing"
	}
	if exp := cfg.GetTokenExpiry(); !exp.IsZero() && now.After(exp) {
		return "expired"
	}
	return "present"
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Local().Format(time.RFC3339)
}
