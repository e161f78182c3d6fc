// ABOUTME: Configuration loading and parsing for sparkpit
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete sparkpit configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Handshake HandshakeConfig `yaml:"handshake"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds the server-wide secrets. JWTSecret signs session tokens
// and bot credentials; MasterSecret keys the bot secret vault. The two are
// independent so rotating one does not invalidate the other's artifacts.
type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	MasterSecret string `yaml:"bot_master_secret"`
}

// HandshakeConfig holds the bot handshake timing configuration
type HandshakeConfig struct {
	ChallengeTTL  time.Duration `yaml:"-"`
	CredentialTTL time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ChallengeTTLRaw  string `yaml:"challenge_ttl"`
	CredentialTTLRaw string `yaml:"credential_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.MasterSecret == "" {
		return fmt.Errorf("auth.bot_master_secret is required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Handshake.ChallengeTTLRaw != "" {
		cfg.Handshake.ChallengeTTL, err = time.ParseDuration(cfg.Handshake.ChallengeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing challenge_ttl %q: %w", cfg.Handshake.ChallengeTTLRaw, err)
		}
	}

	if cfg.Handshake.CredentialTTLRaw != "" {
		cfg.Handshake.CredentialTTL, err = time.ParseDuration(cfg.Handshake.CredentialTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing credential_ttl %q: %w", cfg.Handshake.CredentialTTLRaw, err)
		}
	}

	return nil
}
