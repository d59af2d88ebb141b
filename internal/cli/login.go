package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/xiaozhi/managerctl/internal/auth"
	"github.com/xiaozhi/managerctl/internal/common/httpclient"
	"golang.org/x/term"
)

// newLoginCmd creates and returns a new login command
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the manager API",
		Long: `Log in to the manager API and store the session token in your configuration file.
Credentials given as flags replace the ones in the configuration file, so later
commands can log in again on their own when the session expires.

Example:
  managerctl login --username admin --password secret
  managerctl login  # uses the credentials from the config file, or prompts for the password`,
		RunE: runLogin,
	}

	cmd.Flags().String("username", "", "Username for authentication")
	cmd.Flags().String("password", "", "Password for authentication")
	return cmd
}

// runLogin handles the login command execution
func runLogin(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	if username, _ := cmd.Flags().GetString("username"); username != "" {
		cfg.Username = username
	}
	if password, _ := cmd.Flags().GetString("password"); password != "" {
		cfg.Password = password
	}
	if cfg.Password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("unable to read password: %w", err)
		}
		cfg.Password = string(password)
	}

	transport := httpclient.NewClient(cfg, httpclient.ClientOptions{Timeout: cfg.GetTimeout()})
	login := auth.NewPasswordLogin(cfg, transport)
	if cfg.LoginPath != "" {
		login = login.WithPath(cfg.LoginPath)
	}
	if err := login.Authenticate(cmd.Context()); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	expiry := "unknown"
	if t := cfg.GetTokenExpiry(); !t.IsZero() {
		expiry = t.Format(time.RFC3339)
	}
	if jsonOutput {
		printJSON(map[string]any{
			"status":     "success",
			"message":    "Login successful",
			"expires_at": expiry,
		})
	} else {
		okLabel.Println("✓ Login successful")
		fmt.Printf("Token expires at: %s\n", expiry)
	}
	return nil
}
