package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// mockKeychain is an in-memory Keychain.
type mockKeychain struct {
	secrets map[string]string
	setErr  error
}

func newMockKeychain() *mockKeychain {
	return &mockKeychain{secrets: map[string]string{}}
}

func (m *mockKeychain) Get(service, account string) (string, error) {
	v, ok := m.secrets[service+"/"+account]
	if !ok {
		return "", ErrSecretNotFound
	}
	return v, nil
}

func (m *mockKeychain) Set(service, account, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.secrets[service+"/"+account] = value
	return nil
}

// memBackend is an in-memory Backend.
type memBackend map[string]string

func newMemBackend() memBackend { return memBackend{} }

func (b memBackend) Lookup(key string) (string, bool, error) {
	v, ok := b[key]
	return v, ok, nil
}

func (b memBackend) Store(key, value string) error { b[key] = value; return nil }
func (b memBackend) Location() string { return "memory" }

// clearEnv blanks every variable the loader reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
	for _, alias := range envAliases {
		t.Setenv(alias, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(newMemBackend(), newMockKeychain())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Engine.Provider != "gemini" {
		t.Errorf("Engine.Provider = %q, want gemini", cfg.Engine.Provider)
	}
	if cfg.Gemini.Model != "gemini-3-flash-preview" {
		t.Errorf("Gemini.Model = %q", cfg.Gemini.Model)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Analysis.Audience != "INVESTOR" {
		t.Errorf("Analysis.Audience = %q, want INVESTOR", cfg.Analysis.Audience)
	}
	if cfg.Analysis.TimeoutDuration() != 120*time.Second {
		t.Errorf("Analysis.TimeoutDuration() = %v, want 120s", cfg.Analysis.TimeoutDuration())
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.SMTP.Port != 587 {
		t.Errorf("SMTP.Port = %d, want 587", cfg.SMTP.Port)
	}
}

func TestBackendValues(t *testing.T) {
	clearEnv(t)
	b := newMemBackend()
	b["server.port"] = "5000"
	b["engine.provider"] = "ollama"
	b["storage.data_dir"] = "/tmp/prism-test"

	cfg, err := loadWith(b, newMockKeychain())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Engine.Provider != "ollama" {
		t.Errorf("Engine.Provider = %q, want ollama", cfg.Engine.Provider)
	}
	if cfg.Storage.DataDir != "/tmp/prism-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	b := newMemBackend()
	b["server.port"] = "5000"
	t.Setenv("PRISM_SERVER_PORT", "6000")
	t.Setenv("PRISM_LOG_LEVEL", "debug")

	cfg, err := loadWith(b, newMockKeychain())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestEnvOverride_BadInt(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRISM_SERVER_PORT", "not-a-number")

	cfg, err := loadWith(newMemBackend(), newMockKeychain())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want default 4100", cfg.Server.Port)
	}
}

func TestSecrets_Precedence(t *testing.T) {
	clearEnv(t)
	kc := newMockKeychain()
	kc.secrets["prism/gemini_api_key"] = "kc-key"
	kc.secrets["prism/smtp_pass"] = "kc-pass"

	cfg, err := loadWith(newMemBackend(), kc)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gemini.APIKey != "kc-key" {
		t.Errorf("Gemini.APIKey = %q, want keychain value", cfg.Gemini.APIKey)
	}
	if cfg.SMTP.Pass != "kc-pass" {
		t.Errorf("SMTP.Pass = %q, want keychain value", cfg.SMTP.Pass)
	}

	t.Setenv("GEMINI_API_KEY", "alias-key")
	cfg, _ = loadWith(newMemBackend(), kc)
	if cfg.Gemini.APIKey != "alias-key" {
		t.Errorf("Gemini.APIKey = %q, want GEMINI_API_KEY value", cfg.Gemini.APIKey)
	}

	t.Setenv("PRISM_GEMINI_API_KEY", "env-key")
	cfg, _ = loadWith(newMemBackend(), kc)
	if cfg.Gemini.APIKey != "env-key" {
		t.Errorf("Gemini.APIKey = %q, want PRISM_GEMINI_API_KEY value", cfg.Gemini.APIKey)
	}
}

func TestSecrets_IgnoredInBackend(t *testing.T) {
	clearEnv(t)
	b := newMemBackend()
	b["gemini.api_key"] = "plaintext"

	cfg, err := loadWith(b, newMockKeychain())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gemini.APIKey != "" {
		t.Errorf("Gemini.APIKey = %q, secrets must not come from the config backend", cfg.Gemini.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"gemini without key", func(c *Config) {}, "Gemini API key"},
		{"gemini with key", func(c *Config) { c.Gemini.APIKey = "k" }, ""},
		{"openai without key", func(c *Config) { c.Engine.Provider = "openai" }, "OpenAI API key"},
		{"openai compatible server", func(c *Config) {
			c.Engine.Provider = "openai"
			c.OpenAI.BaseURL = "http://localhost:8080/v1"
		}, ""},
		{"ollama needs no key", func(c *Config) { c.Engine.Provider = "ollama" }, ""},
		{"unknown provider", func(c *Config) { c.Engine.Provider = "mlx" }, "invalid engine.provider"},
		{"unknown storage", func(c *Config) {
			c.Gemini.APIKey = "k"
			c.Storage.Backend = "redis"
		}, "invalid storage.backend"},
		{"file storage", func(c *Config) {
			c.Gemini.APIKey = "k"
			c.Storage.Backend = "file"
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestOrigins(t *testing.T) {
	s := ServerConfig{AllowedOrigins: " http://a.test, ,http://b.test "}
	got := s.Origins()
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Errorf("Origins() = %q", got)
	}
}

func TestTimeoutDuration_Invalid(t *testing.T) {
	for _, raw := range []string{"", "soon", "-5s"} {
		if got := (AnalysisConfig{Timeout: raw}).TimeoutDuration(); got != 120*time.Second {
			t.Errorf("TimeoutDuration(%q) = %v, want 120s", raw, got)
		}
	}
	if got := (AnalysisConfig{Timeout: "30s"}).TimeoutDuration(); got != 30*time.Second {
		t.Errorf("TimeoutDuration(30s) = %v", got)
	}
}

func TestGetAPIToken(t *testing.T) {
	kc := newMockKeychain()
	tok, err := GetAPIToken(kc)
	if err != nil {
		t.Fatalf("GetAPIToken: %v", err)
	}
	if len(tok) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(tok))
	}
	again, err := GetAPIToken(kc)
	if err != nil || again != tok {
		t.Errorf("second call = %q, %v; want stored token", again, err)
	}
}

func TestGetAPIToken_StoreFailure(t *testing.T) {
	kc := newMockKeychain()
	kc.setErr = errors.New("locked")
	if _, err := GetAPIToken(kc); err == nil {
		t.Error("expected error when token cannot be stored")
	}
}

func TestShowAll_MasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Gemini.APIKey = "super-secret"
	for _, ki := range ShowAll(cfg) {
		if strings.Contains(ki.Value, "super-secret") {
			t.Errorf("%s leaks secret value", ki.Key)
		}
		if ki.Key == "gemini.api_key" && ki.Value != "(set)" {
			t.Errorf("gemini.api_key = %q, want (set)", ki.Value)
		}
		if ki.Key == "openai.api_key" && ki.Value != "(unset)" {
			t.Errorf("openai.api_key = %q, want (unset)", ki.Value)
		}
	}
}

func TestSetKey(t *testing.T) {
	b := newMemBackend()
	kc := newMockKeychain()

	if err := setKey(b, kc, "server.port", "4200"); err != nil {
		t.Fatalf("setKey int: %v", err)
	}
	if b["server.port"] != "4200" {
		t.Errorf("server.port = %q", b["server.port"])
	}
	if err := setKey(b, kc, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKey(b, kc, "engine.provider", "openai"); err != nil {
		t.Fatal(err)
	}
	if b["engine.provider"] != "openai" {
		t.Errorf("engine.provider = %q", b["engine.provider"])
	}
	if err := setKey(b, kc, "smtp.pass", "hunter2"); err != nil {
		t.Fatal(err)
	}
	if _, ok := b["smtp.pass"]; ok {
		t.Error("secret written to config backend")
	}
	if kc.secrets["prism/smtp_pass"] != "hunter2" {
		t.Error("secret not written to keychain")
	}
	if err := setKey(b, kc, "nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestBackendValues_BadInt(t *testing.T) {
	clearEnv(t)
	b := newMemBackend()
	b["server.port"] = "eighty"
	_, err := loadWith(b, newMockKeychain())
	if err == nil || !strings.Contains(err.Error(), "server.port") {
		t.Fatalf("err = %v, want error naming server.port", err)
	}
}

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prism", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	// Hand-edited files may hold real JSON numbers.
	if err := os.WriteFile(path, []byte(`{"server.port": 5100, "engine.provider": "ollama"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	b := newFileBackend(path)
	cfg, err := loadWith(b, newMockKeychain())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 5100 || cfg.Engine.Provider != "ollama" {
		t.Errorf("cfg = %+v / %+v", cfg.Server, cfg.Engine)
	}

	if err := setKey(b, newMockKeychain(), "log.level", "debug"); err != nil {
		t.Fatalf("setKey: %v", err)
	}
	reloaded := newFileBackend(path)
	if v, ok, _ := reloaded.Lookup("log.level"); !ok || v != "debug" {
		t.Errorf("log.level after reload = %q, %v", v, ok)
	}
	if v, _, _ := reloaded.Lookup("server.port"); v != "5100" {
		t.Errorf("server.port after rewrite = %q", v)
	}
	if reloaded.Location() != path {
		t.Errorf("Location = %q", reloaded.Location())
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config file mode = %o, want 600", perm)
	}
	if tmps, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp")); len(tmps) != 0 {
		t.Errorf("temp files left behind: %v", tmps)
	}
}

func TestFileBackend_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadWith(newFileBackend(path), newMockKeychain())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want default", cfg.Server.Port)
	}
}

func TestFileKeychain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	kc := newFileKeychain(path)

	if _, err := kc.Get(SecretService, "gemini_api_key"); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("Get on missing file err = %v, want ErrSecretNotFound", err)
	}
	if err := kc.Set(SecretService, "gemini_api_key", "g-key"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kc.Set(SecretService, "smtp_pass", "hunter2"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	again := newFileKeychain(path)
	if v, err := again.Get(SecretService, "gemini_api_key"); err != nil || v != "g-key" {
		t.Errorf("Get = %q, %v", v, err)
	}
	if _, err := again.Get("other", "gemini_api_key"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("Get other service err = %v", err)
	}

	tok, err := GetAPIToken(again)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := newFileKeychain(path).Get(SecretService, "api_token"); v != tok {
		t.Errorf("stored token = %q, want %q", v, tok)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secrets file mode = %o, want 600", perm)
	}
}
