package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite database file path
}

// GRPCConfig contains gRPC server settings.
type GRPCConfig struct {
	Address string `yaml:"address"` // e.g. ":50051"
}

// HTTPConfig contains REST server settings.
type HTTPConfig struct {
	Address     string   `yaml:"address"`      // e.g. ":4200"
	CORSOrigins []string `yaml:"cors_origins"` // browser origins allowed to call the API
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

const devSecret = "dev-secret-change-me"

func defaults() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "servicedesk.db"},
		GRPC:     GRPCConfig{Address: ":50051"},
		HTTP: HTTPConfig{
			Address:     ":4200",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Auth: AuthConfig{TokenTTL: 24 * time.Hour},
		Log:  LogConfig{Level: "info"},
	}
}

// Load builds the configuration from, in increasing precedence: built-in
// defaults, the YAML file at path (optional; CONFIG_FILE is used when path is
// empty), a .env file in the working directory, and environment variables.
// JWT_SECRET is mandatory.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set; required for production")
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but uses a fixed JWT secret when none is set.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = devSecret
	}
	return cfg, nil
}

func load(path string) (*Config, error) {
	// Variables already present in the environment win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := defaults()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := readFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.Database.Path = getEnv("DB_PATH", cfg.Database.Path)
	cfg.GRPC.Address = getEnv("GRPC_ADDRESS", cfg.GRPC.Address)
	cfg.HTTP.Address = getEnv("HTTP_ADDRESS", cfg.HTTP.Address)
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	if origins, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		cfg.HTTP.CORSOrigins = splitList(origins)
	}
	if _, ok := os.LookupEnv("TOKEN_TTL_HOURS"); ok {
		hours, err := getEnvInt("TOKEN_TTL_HOURS", 0)
		if err != nil {
			return nil, err
		}
		cfg.Auth.TokenTTL = time.Duration(hours) * time.Hour
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// getEnvInt retrieves an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultVal int) (int, error) {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return intVal, nil
	}
	return defaultVal, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{DB: %s, gRPC: %s, HTTP: %s, TokenTTL: %s, Auth: *** (masked) ***}",
		c.Database.Path, c.GRPC.Address, c.HTTP.Address, c.Auth.TokenTTL)
}
