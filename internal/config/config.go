// Package config provides configuration management for the trading client.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Credentials Credentials
	Platform    PlatformConfig
	Connection  ConnectionConfig
}

// Credentials holds the platform account credentials, loaded from the
// [settings] section of config.ini.
type Credentials struct {
	Email       string `mapstructure:"email"`
	Password    string `mapstructure:"password"`
	EmailPass   string `mapstructure:"email_pass"`   // mailbox password for automatic PIN retrieval
	IMAPHost    string `mapstructure:"imap_host"`    // defaults to imap.gmail.com
	UserDataDir string `mapstructure:"user_data_dir"`
	Lang        string `mapstructure:"lang"`
}

// PlatformConfig holds platform endpoints and account defaults.
type PlatformConfig struct {
	Host        string `mapstructure:"host"`
	Demo        bool   `mapstructure:"demo"`
	SessionPath string `mapstructure:"session_path"`
	JournalPath string `mapstructure:"journal_path"`
}

// ConnectionConfig holds websocket connection tuning.
type ConnectionConfig struct {
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay"`
	PingInterval         time.Duration `mapstructure:"ping_interval"`
	AuthTimeout          time.Duration `mapstructure:"auth_timeout"`
	SubscribeTimeout     time.Duration `mapstructure:"subscribe_timeout"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/quotex-trader"
	}
	return filepath.Join(home, ".config", "quotex-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("ini")
	v.AddConfigPath(configDir)

	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if werr := writeTemplate(configDir); werr != nil {
				return nil, werr
			}
			return nil, fmt.Errorf("created template config at %s, fill in your credentials", filepath.Join(configDir, "config.ini"))
		}
		return nil, fmt.Errorf("reading config.ini: %w", err)
	}

	if err := v.UnmarshalKey("settings", &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("parsing [settings]: %w", err)
	}
	if err := v.UnmarshalKey("platform", &cfg.Platform); err != nil {
		return nil, fmt.Errorf("parsing [platform]: %w", err)
	}
	if err := v.UnmarshalKey("connection", &cfg.Connection); err != nil {
		return nil, fmt.Errorf("parsing [connection]: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("settings.lang", "en")
	v.SetDefault("settings.imap_host", "imap.gmail.com")
	v.SetDefault("platform.host", "qxbroker.com")
	v.SetDefault("platform.demo", true)
	v.SetDefault("platform.session_path", filepath.Join(configDir, "session.json"))
	v.SetDefault("platform.journal_path", filepath.Join(configDir, "journal.db"))
	v.SetDefault("connection.max_reconnect_attempts", 5)
	v.SetDefault("connection.reconnect_delay", "5s")
	v.SetDefault("connection.ping_interval", "24s")
	v.SetDefault("connection.auth_timeout", "10s")
	v.SetDefault("connection.subscribe_timeout", "20s")
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.Credentials.Email == "" || c.Credentials.Password == "" {
		return fmt.Errorf("email and password must be set in config.ini")
	}
	return nil
}

func writeTemplate(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	template := `[settings]
email =
password =
; mailbox password, used to fetch the 2FA PIN automatically; leave empty
; to be prompted on the terminal instead
email_pass =
imap_host = imap.gmail.com
lang = en

[platform]
host = qxbroker.com
demo = true

[connection]
max_reconnect_attempts = 5
reconnect_delay = 5s
ping_interval = 24s
`
	path := filepath.Join(configDir, "config.ini")
	return os.WriteFile(path, []byte(template), 0o600)
}
