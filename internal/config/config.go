package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SecretService is the keychain service name secrets are stored under.
const SecretService = "prism"

type Config struct {
	Server   ServerConfig
	Engine   EngineConfig
	Gemini   GeminiConfig
	Ollama   OllamaConfig
	OpenAI   OpenAIConfig
	Analysis AnalysisConfig
	Storage  StorageConfig
	Log      LogConfig
	SMTP     SMTPConfig
}

type ServerConfig struct {
	Port int
	// AllowedOrigins is a comma-separated list of dashboard origins for CORS.
	AllowedOrigins string
}

type EngineConfig struct {
	Provider string
}

type GeminiConfig struct {
	Model  string
	APIKey string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	BaseURL string
	Model   string
	APIKey  string
}

type AnalysisConfig struct {
	Audience string
	Timeout  string
}

type StorageConfig struct {
	DataDir string
	Backend string
}

type LogConfig struct {
	Level string
}

type SMTPConfig struct {
	Server string
	Port   int
	User   string
	Pass   string
	From   string
}

// Origins splits AllowedOrigins.
func (c ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// TimeoutDuration parses Timeout, falling back to 120s on bad input.
func (c AnalysisConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d < 0 {
		return 120 * time.Second
	}
	return d
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           4100,
			AllowedOrigins: "http://localhost:5173,http://localhost:3000",
		},
		Engine: EngineConfig{Provider: "gemini"},
		Gemini: GeminiConfig{Model: "gemini-3-flash-preview"},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "qwen2.5:7b",
		},
		OpenAI: OpenAIConfig{Model: "gpt-4o-mini"},
		Analysis: AnalysisConfig{
			Audience: "INVESTOR",
			Timeout:  "120s",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
			Backend: "sqlite",
		},
		Log:  LogConfig{Level: "info"},
		SMTP: SMTPConfig{Port: 587},
	}
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory, environment variables, and the platform secret
// store, then checks that the selected provider has credentials.
//
// On macOS the backend is UserDefaults (domain: com.prism.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/prism/config.json
// and secrets come from the environment or $XDG_DATA_HOME/prism/secrets.json.
//
// Environment variables (PRISM_*) override backend values on all platforms.
func Load() (Config, error) {
	cfg, err := LoadUnchecked()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadUnchecked is Load without the credential check, for commands that
// only talk to the local daemon.
func LoadUnchecked() (Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()
	return loadWith(newPlatformBackend(), NewKeychain())
}

func loadWith(b Backend, kc Keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	return cfg, nil
}

// Validate checks the selected provider and its credentials.
func (c Config) Validate() error {
	switch c.Engine.Provider {
	case "gemini":
		if c.Gemini.APIKey == "" {
			return missing("Gemini API key", "PRISM_GEMINI_API_KEY (or GEMINI_API_KEY)", "gemini_api_key")
		}
	case "openai":
		if c.OpenAI.APIKey == "" && c.OpenAI.BaseURL == "" {
			return missing("OpenAI API key", "PRISM_OPENAI_API_KEY", "openai_api_key")
		}
	case "ollama":
		if c.Ollama.Model == "" {
			return fmt.Errorf("missing required config: ollama.model")
		}
	default:
		return fmt.Errorf("invalid engine.provider %q: must be gemini, ollama or openai", c.Engine.Provider)
	}
	switch c.Storage.Backend {
	case "sqlite", "file":
	default:
		return fmt.Errorf("invalid storage.backend %q: must be sqlite or file", c.Storage.Backend)
	}
	return nil
}

func missing(what, env, account string) error {
	return fmt.Errorf("missing required config: %s. Set it via environment variable %s%s",
		what, env, secretHint(account))
}
