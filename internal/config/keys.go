package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	account string // keychain account for secrets
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "PRISM_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.allowed_origins", typ: kString, env: "PRISM_SERVER_ALLOWED_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.AllowedOrigins = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AllowedOrigins },
	},
	{
		key: "engine.provider", typ: kString, env: "PRISM_ENGINE_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Engine.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.Provider },
	},
	{
		key: "gemini.model", typ: kString, env: "PRISM_GEMINI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.Model },
	},
	{
		key: "gemini.api_key", typ: kString, env: "PRISM_GEMINI_API_KEY",
		secret: true, account: "gemini_api_key",
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "ollama.base_url", typ: kString, env: "PRISM_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "PRISM_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
	{
		key: "openai.base_url", typ: kString, env: "PRISM_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.BaseURL },
	},
	{
		key: "openai.model", typ: kString, env: "PRISM_OPENAI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.Model },
	},
	{
		key: "openai.api_key", typ: kString, env: "PRISM_OPENAI_API_KEY",
		secret: true, account: "openai_api_key",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "analysis.audience", typ: kString, env: "PRISM_ANALYSIS_AUDIENCE",
		apply:   func(cfg *Config, v any) { cfg.Analysis.Audience = v.(string) },
		extract: func(cfg Config) any { return cfg.Analysis.Audience },
	},
	{
		key: "analysis.timeout", typ: kString, env: "PRISM_ANALYSIS_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Analysis.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Analysis.Timeout },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PRISM_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.backend", typ: kString, env: "PRISM_STORAGE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "log.level", typ: kString, env: "PRISM_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "smtp.server", typ: kString, env: "PRISM_SMTP_SERVER",
		apply:   func(cfg *Config, v any) { cfg.SMTP.Server = v.(string) },
		extract: func(cfg Config) any { return cfg.SMTP.Server },
	},
	{
		key: "smtp.port", typ: kInt, env: "PRISM_SMTP_PORT",
		apply:   func(cfg *Config, v any) { cfg.SMTP.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.SMTP.Port },
	},
	{
		key: "smtp.user", typ: kString, env: "PRISM_SMTP_USER",
		apply:   func(cfg *Config, v any) { cfg.SMTP.User = v.(string) },
		extract: func(cfg Config) any { return cfg.SMTP.User },
	},
	{
		key: "smtp.pass", typ: kString, env: "PRISM_SMTP_PASS",
		secret: true, account: "smtp_pass",
		apply:   func(cfg *Config, v any) { cfg.SMTP.Pass = v.(string) },
		extract: func(cfg Config) any { return cfg.SMTP.Pass },
	},
	{
		key: "smtp.from", typ: kString, env: "PRISM_SMTP_FROM",
		apply:   func(cfg *Config, v any) { cfg.SMTP.From = v.(string) },
		extract: func(cfg Config) any { return cfg.SMTP.From },
	},
}

// envAliases are unprefixed variables honored when the PRISM_ one is unset.
var envAliases = map[string]string{
	"PRISM_GEMINI_API_KEY": "GEMINI_API_KEY",
	"PRISM_OPENAI_API_KEY": "OPENAI_API_KEY",
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok, err := b.Lookup(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			return fmt.Errorf("%s in %s: %w", s.key, b.Location(), err)
		}
		s.apply(cfg, v)
	}
	return nil
}

// parse converts a stored or typed-in value to the key's type.
func (s keySpec) parse(raw string) (any, error) {
	if s.typ == kInt {
		i, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", raw)
		}
		return i, nil
	}
	return raw, nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			if alias, ok := envAliases[s.env]; ok {
				raw = os.Getenv(alias)
			}
		}
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			slog.Warn("ignoring environment override", "env", s.env, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}

// applySecrets fills secrets still empty after env overrides from kc.
func applySecrets(cfg *Config, kc Keychain) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg).(string) != "" {
			continue
		}
		if v, err := kc.Get(SecretService, s.account); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}
