package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the YAML config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/animewave/config.yaml",
}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Kodik    KodikConfig    `koanf:"kodik"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	HTTPAddr        string        `koanf:"http_addr"`
	GRPCAddr        string        `koanf:"grpc_addr"` // empty disables the gRPC listener
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

type KodikConfig struct {
	BaseURL       string        `koanf:"base_url"`
	Token         string        `koanf:"token"`
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"`
	Burst         int           `koanf:"burst"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
	DSN    string `koanf:"dsn"`
}

type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	JWTIssuer string        `koanf:"jwt_issuer"`
	JWTTTL    time.Duration `koanf:"jwt_ttl"`
	// Required makes history and favorites routes demand a bearer token
	// whose subject matches the user in the request.
	Required bool `koanf:"required"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        "",
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Kodik: KodikConfig{
			BaseURL:       "https://kodikapi.com",
			Timeout:       15 * time.Second,
			RatePerSecond: 10,
			Burst:         5,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "data/animewave.db",
		},
		Auth: AuthConfig{
			JWTSecret: "dev-secret-change-me",
			JWTIssuer: "animewave",
			JWTTTL:    24 * time.Hour,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load layers struct defaults, an optional YAML file and the environment,
// in that order of increasing priority. A .env file in the working
// directory is folded into the environment first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var envMappings = map[string]string{
	"http_addr":             "server.http_addr",
	"grpc_addr":             "server.grpc_addr",
	"shutdown_timeout":      "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"kodik_api_url":         "kodik.base_url",
	"kodik_token":           "kodik.token",
	"kodik_timeout":         "kodik.timeout",
	"kodik_rate_per_second": "kodik.rate_per_second",
	"kodik_burst":           "kodik.burst",
	"db_driver":             "database.driver",
	"db_path":               "database.path",
	"database_url":          "database.dsn",
	"jwt_secret":            "auth.jwt_secret",
	"jwt_issuer":            "auth.jwt_issuer",
	"jwt_ttl":               "auth.jwt_ttl",
	"auth_required":         "auth.required",
	"log_level":             "log.level",
}

// listKeys hold comma-separated environment values.
var listKeys = map[string]bool{
	"server.cors_origins": true,
}

// envTransformFunc maps known environment variables onto config keys.
// Anything else returns "" and is ignored by the provider.
func envTransformFunc(key, value string) (string, interface{}) {
	mapped := envMappings[strings.ToLower(key)]
	if mapped == "" {
		return "", nil
	}
	if listKeys[mapped] {
		return mapped, splitList(value)
	}
	return mapped, value
}

func splitList(value string) []string {
	out := []string{}
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Kodik.Token) == "" {
		errs = append(errs, errors.New("kodik.token is required (KODIK_TOKEN)"))
	}
	if strings.TrimSpace(c.Kodik.BaseURL) == "" {
		errs = append(errs, errors.New("kodik.base_url is required"))
	}
	if c.Kodik.Timeout <= 0 {
		errs = append(errs, errors.New("kodik.timeout must be positive"))
	}

	if _, _, err := net.SplitHostPort(c.Server.HTTPAddr); err != nil {
		errs = append(errs, fmt.Errorf("server.http_addr: %w", err))
	}
	if c.Server.GRPCAddr != "" {
		if _, _, err := net.SplitHostPort(c.Server.GRPCAddr); err != nil {
			errs = append(errs, fmt.Errorf("server.grpc_addr: %w", err))
		}
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres (DATABASE_URL)"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be sqlite or postgres", c.Database.Driver))
	}

	if c.Auth.Required && len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 chars when auth is required"))
	}

	return errors.Join(errs...)
}
