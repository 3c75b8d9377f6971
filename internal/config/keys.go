package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kList
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "inquiry.mirrors", typ: kList, env: "CEKREK_INQUIRY_MIRRORS",
		apply:   func(cfg *Config, v any) { cfg.Inquiry.Mirrors = v.([]string) },
		extract: func(cfg Config) any { return strings.Join(cfg.Inquiry.Mirrors, ",") },
	},
	{
		key: "inquiry.attempt_timeout", typ: kDuration, env: "CEKREK_INQUIRY_ATTEMPT_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Inquiry.AttemptTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Inquiry.AttemptTimeout },
	},
	{
		key: "catalog.source", typ: kString, env: "CEKREK_CATALOG_SOURCE",
		apply:   func(cfg *Config, v any) { cfg.Catalog.Source = strings.ToLower(v.(string)) },
		extract: func(cfg Config) any { return cfg.Catalog.Source },
	},
	{
		key: "catalog.path", typ: kString, env: "CEKREK_CATALOG_PATH",
		apply:   func(cfg *Config, v any) { cfg.Catalog.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.Path },
	},
	{
		key: "storage.data_dir", typ: kString, env: "CEKREK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "server.port", typ: kInt, env: "CEKREK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "CEKREK_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "log.level", typ: kString, env: "CEKREK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		v, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok {
			continue
		}
		applyRaw(cfg, s, v, "source", "config file")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		if s.typ == kInt {
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				slog.Warn("could not parse integer, using default", "env", s.env, "value", raw, "error", err)
			}
			continue
		}
		applyRaw(cfg, s, raw, "env", s.env)
	}
}

// applyRaw applies a string-encoded value for non-int keys. Unparseable
// values keep the previous setting and log a warning tagged with attr.
func applyRaw(cfg *Config, s keySpec, raw string, attrKey, attrVal string) {
	switch s.typ {
	case kString:
		s.apply(cfg, raw)
	case kList:
		s.apply(cfg, splitList(raw))
	case kDuration:
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil || d <= 0 {
			slog.Warn("could not parse duration, using default", "key", s.key, attrKey, attrVal, "value", raw)
			return
		}
		s.apply(cfg, d)
	}
}
