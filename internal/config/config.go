// Package config resolves cekrek settings from built-in defaults, the JSON
// config file, an optional .env file and CEKREK_* environment variables,
// in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kalambet/cekrek/internal/provider"
)

// Catalog sources.
const (
	CatalogStatic = "static"
	CatalogRemote = "remote"
)

// DefaultMirror is the public check service.
const DefaultMirror = "https://cekrekening-api.belibayar.online"

var ErrNoMirrors = errors.New("no inquiry mirrors configured")

type Config struct {
	Inquiry InquiryConfig
	Catalog CatalogConfig
	Storage StorageConfig
	Server  ServerConfig
	Log     LogConfig
}

type InquiryConfig struct {
	// Mirrors are base URLs tried in order.
	Mirrors        []string
	AttemptTimeout time.Duration
}

type CatalogConfig struct {
	Source string
	// Path is the bank-list path requested on each mirror when Source is remote.
	Path string
}

type StorageConfig struct {
	DataDir string
}

type ServerConfig struct {
	Port int
	// Token, when set, is required as a bearer token on every API request.
	Token string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Inquiry: InquiryConfig{
			Mirrors:        []string{DefaultMirror},
			AttemptTimeout: 10 * time.Second,
		},
		Catalog: CatalogConfig{Source: CatalogStatic, Path: provider.DefaultListPath},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Server:  ServerConfig{Port: 4100},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads configuration from $XDG_CONFIG_HOME/cekrek/config.json, then
// ./.env, then the environment.
func Load() (Config, error) {
	return loadWith(newFileBackend(FilePath()), ".env")
}

func loadWith(b ConfigBackend, dotenvPath string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	if dotenvPath != "" {
		if _, err := os.Stat(dotenvPath); err == nil {
			// godotenv.Load never overrides variables that are already set.
			if err := godotenv.Load(dotenvPath); err != nil {
				return Config{}, fmt.Errorf("loading %s: %w", dotenvPath, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Inquiry.Mirrors) == 0 {
		return fmt.Errorf("%w: set inquiry.mirrors or CEKREK_INQUIRY_MIRRORS", ErrNoMirrors)
	}
	if c.Inquiry.AttemptTimeout <= 0 {
		return fmt.Errorf("inquiry.attempt_timeout must be positive, got %s", c.Inquiry.AttemptTimeout)
	}
	switch c.Catalog.Source {
	case CatalogStatic, CatalogRemote:
	default:
		return fmt.Errorf("catalog.source must be %q or %q, got %q", CatalogStatic, CatalogRemote, c.Catalog.Source)
	}
	if !strings.HasPrefix(c.Catalog.Path, "/") {
		return fmt.Errorf("catalog.path must start with /, got %q", c.Catalog.Path)
	}
	return nil
}

// SlogLevel maps Log.Level onto a slog level.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
