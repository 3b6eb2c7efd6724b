//go:build !darwin

package config

import (
	"os"
	"path/filepath"
)

// xdgDir returns $env, or ~/fallback when it is unset.
func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, fallback)
	}
	return "."
}

func defaultDataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local/share"), "prism")
}

func configFilePath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "prism", "config.json")
}

func newPlatformBackend() Backend {
	return newFileBackend(configFilePath())
}

func secretHint(account string) string {
	return " or " + secretsFilePath() + " (" + SecretService + "." + account + ")"
}
