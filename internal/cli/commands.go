package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xiaozhi/managerctl/internal/common/logtrace"
)

var (
	// Global flags
	jsonOutput bool
	configFile string
	logLevel   string
)

var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)
var warnLabel = color.New(color.FgYellow)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "managerctl [command] [flags]",
	Short: "managerctl - manage devices bound to your agents",
	Long: `managerctl is a command line client for the device manager API.
It binds, unbinds and configures the devices attached to your agents. When the
session expires in the middle of a command, managerctl logs in again with the
configured credentials and resends the interrupted requests.

Examples:
  # Point managerctl at a server
  managerctl config --server https://manager.example.com/xiaozhi --username admin

  # Log in
  managerctl login --password secret

  # Bind a device code to an agent
  managerctl device bind <agent-id> <code> --remark kitchen

  # List bound devices
  managerctl device list <agent-id>`,
	PersistentPreRunE: preRunHandlePersistents,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	// Set up persistent flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default (.yaml or .toml)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", "error", "Log level (debug, info, warn, error)")

	// Add commands
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newDeviceCmd())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true // Prevent Cobra from printing the error
	rootCmd.SilenceUsage = true  // Prevent Cobra from printing usage on error

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(map[string]string{
				"error": err.Error(),
			})
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// preRunHandlePersistents initialises logging and loads the configuration before a
// command runs. The config and version commands work without a config file.
func preRunHandlePersistents(cmd *cobra.Command, args []string) error {
	logtrace.InitLoggerWithWriter(os.Stderr, logLevel)

	if configFile == "" {
		var err error
		configFile, err = GetDefaultConfigPath()
		if err != nil {
			return err
		}
	}

	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" || c.Name() == "version" {
			return nil
		}
	}

	if err := LoadConfig(configFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s not found, configure managerctl with \"managerctl config --server <url>\" first", configFile)
		}
		return err
	}
	return nil
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of managerctl",
		Run: func(cmd *cobra.Command, args []string) {
			configPath := configFile
			if configPath == "" {
				configPath = "unknown"
			}

			if jsonOutput {
				printJSON(map[string]string{
					"version":     getCLIVersion(),
					"config_file": configPath,
				})
			} else {
				cmd.Printf("managerctl %s\n", getCLIVersion())
				cmd.Printf("Config file: %s\n", configPath)
			}
		},
	}
}

// printJSON prints the given value as JSON to stdout
func printJSON(data any) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(jsonData))
}

// getCLIVersion returns the current CLI version
func getCLIVersion() string {
	return "v0.1.0"
}
