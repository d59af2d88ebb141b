package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default name of the config file
const DefaultConfigFile = "config.yaml"

// Config represents the configuration of managerctl.
// It contains server connection details and authentication information.
// Config is safe for concurrent use; the session guard stores new tokens while
// requests read the current one.
type Config struct {
	// Version of the configuration file format
	Version string `yaml:"version" toml:"version"`
	// ServerURL is the base URL of the manager API, including any path prefix
	ServerURL string `yaml:"server_url" toml:"server_url" validate:"required,url"`
	// Username and Password are used to log in again when the session expires
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
	// LoginPath overrides the login endpoint, relative to ServerURL
	LoginPath string `yaml:"login_path,omitempty" toml:"login_path,omitempty"`
	// Timeout bounds a single request, as a Go duration
	Timeout string `yaml:"timeout,omitempty" toml:"timeout,omitempty" validate:"omitempty,duration"`
	// CurrentToken is the active session token
	CurrentToken string `yaml:"current_token" toml:"current_token"`
	// TokenExpiry is when the current token expires
	TokenExpiry string `yaml:"token_expiry" toml:"token_expiry"`

	mu sync.RWMutex
	// file is where SetToken persists tokens, empty when it must not write back
	file string
}

var config *Config

var configValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	return v
})

// GetDefaultConfigPath returns the default path for the config file
// It uses the OS-specific config directory (e.g., ~/.config/managerctl on Linux)
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "managerctl", DefaultConfigFile), nil
}

// LoadConfig loads the configuration from the specified file and makes it the
// current configuration. If no file is specified, it uses the default location.
func LoadConfig(file string) error {
	if file == "" {
		var err error
		file, err = GetDefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get default config path: %w", err)
		}
	}
	c, err := ReadConfig(file)
	if err != nil {
		return err
	}
	config = c
	return nil
}

// ReadConfig reads and validates a config file. Files ending in .toml are TOML,
// anything else is YAML. {{ .ENV.NAME }} placeholders are resolved first from the
// environment and a .env file next to the config; a file that uses them is never
// rewritten, so resolved secrets stay out of it.
func ReadConfig(file string) (*Config, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}
	resolved, err := PreprocessConfig(raw, filepath.Join(filepath.Dir(file), ".env"))
	if err != nil {
		return nil, fmt.Errorf("unable to process config file: %w", err)
	}

	c := &Config{}
	if isTOML(file) {
		_, err = toml.Decode(string(resolved), c)
	} else {
		err = yaml.Unmarshal(resolved, c)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	c.ServerURL = MorphServer(c.ServerURL)
	if err := c.ValidateConfig(); err != nil {
		return nil, err
	}
	if bytes.Equal(raw, resolved) {
		c.file = file
	}
	return c, nil
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	return config
}

// WriteConfig writes the configuration to the specified file
func (cfg *Config) WriteConfig(file string) error {
	if file == "" {
		return errors.New("file path cannot be empty")
	}

	err := os.MkdirAll(filepath.Dir(file), os.ModePerm)
	if err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	cfg.mu.RLock()
	var out []byte
	if isTOML(file) {
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(cfg)
		out = buf.Bytes()
	} else {
		out, err = yaml.Marshal(cfg)
	}
	cfg.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("unable to generate configuration: %w", err)
	}

	err = os.WriteFile(file, out, os.FileMode(0600))
	if err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}

	return nil
}

// ValidateConfig validates the configuration
func (cfg *Config) ValidateConfig() error {
	if err := configValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if !strings.HasPrefix(cfg.ServerURL, "http://") && !strings.HasPrefix(cfg.ServerURL, "https://") {
		return errors.New("server_url must start with http:// or https://")
	}
	return nil
}

// MorphServer ensures the server URL is properly formatted
// Adds https:// prefix if missing and removes trailing slashes
func MorphServer(server string) string {
	if server == "" {
		return server
	}

	server = strings.TrimRight(server, "/")

	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "https://" + server
	}

	return server
}

func isTOML(file string) bool {
	return strings.EqualFold(filepath.Ext(file), ".toml")
}

// GetServerURL returns the properly formatted server URL
func (cfg *Config) GetServerURL() string {
	return MorphServer(cfg.ServerURL)
}

func (cfg *Config) GetUsername() string {
	return cfg.Username
}

func (cfg *Config) GetPassword() string {
	return cfg.Password
}

// GetToken returns the current token from the configuration
func (cfg *Config) GetToken() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	return cfg.CurrentToken
}

// GetTokenExpiry returns the token expiry time from the configuration
func (cfg *Config) GetTokenExpiry() time.Time {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	if cfg.TokenExpiry == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, cfg.TokenExpiry)
	if err != nil {
		return time.Time{}
	}
	return t
}

// GetTimeout returns the per-request timeout, zero when unset.
func (cfg *Config) GetTimeout() time.Duration {
	d, _ := time.ParseDuration(cfg.Timeout)
	return d
}

// SetToken stores a new session token and writes it back to the config file.
func (cfg *Config) SetToken(token string, expiry time.Time) error {
	cfg.mu.Lock()
	cfg.CurrentToken = token
	cfg.TokenExpiry = ""
	if !expiry.IsZero() {
		cfg.TokenExpiry = expiry.Format(time.RFC3339)
	}
	file := cfg.file
	cfg.mu.Unlock()

	if file == "" {
		log.Debug().Msg("config file uses placeholders, token kept in memory only")
		return nil
	}
	return cfg.WriteConfig(file)
}

// ClearToken drops the session token and writes the config back. A config file
// that uses placeholders is left untouched and an error is returned.
func (cfg *Config) ClearToken() error {
	cfg.mu.Lock()
	cfg.CurrentToken = ""
	cfg.TokenExpiry = ""
	file := cfg.file
	cfg.mu.Unlock()

	if file == "" {
		return errors.New("config file uses {{ .ENV }} placeholders and is not rewritten, remove current_token from it by hand")
	}
	return cfg.WriteConfig(file)
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration settings like server connection and login credentials.

Examples:
  managerctl config --server https://manager.example.com/xiaozhi --username admin --password secret
  managerctl --config ./managerctl.toml config --server http://localhost:8002/xiaozhi`,
	RunE: func(cmd *cobra.Command, args []string) error {
		serverFlag, _ := cmd.Flags().GetString("server")
		if serverFlag == "" {
			cmd.Help()
			return nil
		}
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		return setServerConfig(serverFlag, username, password, timeout)
	},
}

// configClearCmd represents the config clear command
var configClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := ReadConfig(configFile)
		if err != nil {
			return err
		}
		if err := cfg.ClearToken(); err != nil {
			return fmt.Errorf("failed to clear token: %w", err)
		}

		if jsonOutput {
			printJSON(map[string]int{"result": 1})
		} else {
			fmt.Println("Session token cleared. Log in again with \"managerctl login\"")
		}
		return nil
	},
}

func init() {
	configCmd.Flags().String("server", "", "Set the manager API URL (e.g., https://manager.example.com/xiaozhi)")
	configCmd.Flags().String("username", "", "Username used to log in")
	configCmd.Flags().String("password", "", "Password used to log in again when the session expires")
	configCmd.Flags().Duration("timeout", 0, "Timeout of a single request (e.g., 15s)")

	configCmd.AddCommand(configClearCmd)
	rootCmd.AddCommand(configCmd)
}

// setServerConfig writes a fresh configuration to the config file
func setServerConfig(server, username, password string, timeout time.Duration) error {
	cfg := &Config{
		Version:   "0.1.0",
		ServerURL: MorphServer(server),
		Username:  username,
		Password:  password,
	}
	if timeout > 0 {
		cfg.Timeout = timeout.String()
	}
	if err := cfg.ValidateConfig(); err != nil {
		return err
	}

	if err := cfg.WriteConfig(configFile); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if jsonOutput {
		printJSON(map[string]string{
			"server":      cfg.ServerURL,
			"config_file": configFile,
		})
	} else {
		okLabel.Printf("Server configured: %s\n", cfg.ServerURL)
		fmt.Printf("Config file: %s\n", configFile)
	}
	return nil
}
