package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel     = "gpt-4o-mini"
	DefaultAddr      = "127.0.0.1:3000"
	DefaultServerURL = "http://127.0.0.1:3000"
)

var (
	ErrNoProviderKey  = errors.New("active profile has no provider api key")
	ErrNoBearerSecret = errors.New("server api_key is not set")
	ErrNoServerURL    = errors.New("client server_url is not set")
)

// Profile holds credentials for the upstream completion provider.
type Profile struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// ServerConfig configures the relay. APIKey is the static bearer secret
// clients must present.
type ServerConfig struct {
	Addr   string `yaml:"addr" mapstructure:"addr"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// ClientConfig tells the terminal client where the relay lives.
type ClientConfig struct {
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	Token     string `yaml:"token" mapstructure:"token"`
}

// LoggerConfig selects the slog handler.
type LoggerConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // "text" or "json"
	Output string `yaml:"output" mapstructure:"output"` // "stderr", "stdout" or a file path
}

type Config struct {
	Profiles      map[string]Profile `yaml:"profiles" mapstructure:"profiles"`
	ActiveProfile string             `yaml:"active_profile" mapstructure:"active_profile"`
	Server        ServerConfig       `yaml:"server" mapstructure:"server"`
	Client        ClientConfig       `yaml:"client" mapstructure:"client"`
	Logger        LoggerConfig       `yaml:"logger" mapstructure:"logger"`

	path           string
	currentProfile *Profile
}

// LoadConfig reads the config file from the default location, creating it
// when missing.
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadConfigFrom(configPath)
}

const envPrefix = "STREAMCHAT"

var envKeyReplacer = strings.NewReplacer(".", "_")

// LoadConfigFrom reads the config at configPath. Environment variables with
// the STREAMCHAT_ prefix override file values (STREAMCHAT_SERVER_ADDR,
// STREAMCHAT_SERVER_API_KEY, ...). Secrets keep their file form in Config so
// Save never writes a resolved value; read them through ServerAPIKey,
// ClientToken and GetAPIKey.
func LoadConfigFrom(configPath string) (*Config, error) {
	if err := ensureConfigDir(configPath); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := saveConfig(defaultConfig(), configPath); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.path = configPath

	// Non-secret settings take their environment overrides directly.
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	cfg.Server.Addr = v.GetString("server.addr")
	cfg.Client.ServerURL = v.GetString("client.server_url")
	cfg.Logger = LoggerConfig{
		Level:  v.GetString("logger.level"),
		Format: v.GetString("logger.format"),
		Output: v.GetString("logger.output"),
	}

	if err := cfg.setCurrentProfile(); err != nil {
		return nil, fmt.Errorf("failed to set current profile: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("active_profile", "default")
	v.SetDefault("server.addr", DefaultAddr)
	v.SetDefault("server.api_key", "")
	v.SetDefault("client.server_url", DefaultServerURL)
	v.SetDefault("client.token", "")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("logger.output", "stderr")
}

func defaultConfig() *Config {
	return &Config{
		Profiles: map[string]Profile{
			"default": {
				APIKey: "${OPENAI_API_KEY}",
				Model:  DefaultModel,
			},
		},
		ActiveProfile: "default",
		Server:        ServerConfig{Addr: DefaultAddr},
		Client:        ClientConfig{ServerURL: DefaultServerURL},
		Logger:        LoggerConfig{Level: "info", Format: "text", Output: "stderr"},
	}
}

// envOverride returns the STREAMCHAT_ variable for key when set, else fallback.
func envOverride(key, fallback string) string {
	name := envPrefix + "_" + strings.ToUpper(envKeyReplacer.Replace(key))
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

func (c *Config) IsValid() bool {
	return c.currentProfile != nil && c.currentProfile.APIKey != ""
}

// ValidateServer reports why the relay cannot start with this config.
func (c *Config) ValidateServer() error {
	if !c.IsValid() {
		return fmt.Errorf("profile %q: %w", c.ActiveProfile, ErrNoProviderKey)
	}
	if strings.TrimSpace(c.ServerAPIKey()) == "" {
		return ErrNoBearerSecret
	}
	return nil
}

// ValidateClient reports why the terminal client cannot reach a relay.
func (c *Config) ValidateClient() error {
	if strings.TrimSpace(c.Client.ServerURL) == "" {
		return ErrNoServerURL
	}
	return nil
}

// ServerAPIKey is the resolved bearer secret the relay checks.
func (c *Config) ServerAPIKey() string {
	return expandEnv(envOverride("server.api_key", c.Server.APIKey))
}

// ClientToken is the resolved bearer token the terminal client sends.
func (c *Config) ClientToken() string {
	return expandEnv(envOverride("client.token", c.Client.Token))
}

func (c *Config) GetAPIKey() string {
	if c.currentProfile == nil {
		return ""
	}
	return c.currentProfile.APIKey
}

func (c *Config) GetModel() string {
	if c.currentProfile == nil || c.currentProfile.Model == "" {
		return DefaultModel
	}
	return c.currentProfile.Model
}

func (c *Config) GetBaseURL() string {
	if c.currentProfile == nil {
		return ""
	}
	return c.currentProfile.BaseURL
}

// Path returns the file this config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// GetConfigPath honours STREAMCHAT_HOME, falling back to the home directory.
func GetConfigPath() (string, error) {
	var configDir string

	if home := os.Getenv("STREAMCHAT_HOME"); home != "" {
		configDir = home
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = homeDir
	}

	return filepath.Join(configDir, ".streamchat", "config.yaml"), nil
}

func ensureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0755)
}

func saveConfig(config *Config, configPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0600)
}

func (c *Config) Save() error {
	configPath := c.path
	if configPath == "" {
		var err error
		configPath, err = GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}
	return saveConfig(c, configPath)
}

func (c *Config) setCurrentProfile() error {
	if len(c.Profiles) == 0 {
		return fmt.Errorf("no profiles defined")
	}

	profile, exists := c.Profiles[c.ActiveProfile]
	if !exists {
		// Fall back to any profile so a stale active_profile is not fatal.
		for name, p := range c.Profiles {
			c.ActiveProfile = name
			profile = p
			exists = true
			break
		}
	}

	if !exists {
		return fmt.Errorf("no valid profiles found")
	}

	// profile is a copy; the map keeps the unexpanded key for Save.
	profile.APIKey = expandEnv(profile.APIKey)
	if profile.APIKey == "" {
		profile.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	c.currentProfile = &profile
	return nil
}
