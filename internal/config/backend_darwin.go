//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const defaultsDomain = "com.prism.app"

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Library", "Application Support", "prism")
	}
	return "prism-data"
}

func secretHint(account string) string {
	return " or macOS Keychain (service: " + SecretService + ", account: " + account + ")"
}

// defaultsBackend keeps settings in the user defaults domain, so they can
// also be edited with `defaults write com.prism.app <key> <value>`.
type defaultsBackend struct {
	domain string
}

func newPlatformBackend() Backend {
	return defaultsBackend{domain: defaultsDomain}
}

func (b defaultsBackend) Lookup(key string) (string, bool, error) {
	out, err := exec.Command("defaults", "read", b.domain, key).CombinedOutput()
	v := strings.TrimSpace(string(out))
	if err != nil {
		var exitErr *exec.ExitError
		// defaults exits 1 for a missing domain or key.
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", false, nil
		}
		return "", false, fmt.Errorf("defaults read %s %s: %w: %s", b.domain, key, err, v)
	}
	return v, true, nil
}

func (b defaultsBackend) Store(key, value string) error {
	out, err := exec.Command("defaults", "write", b.domain, key, "-string", value).CombinedOutput()
	if err != nil {
		return fmt.Errorf("defaults write %s %s: %w: %s", b.domain, key, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (b defaultsBackend) Location() string { return "defaults domain " + b.domain }
