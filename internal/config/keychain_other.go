//go:build !darwin

package config

import "path/filepath"

func secretsFilePath() string {
	return filepath.Join(defaultDataDir(), "secrets.json")
}

func newPlatformKeychain() Keychain {
	return newFileKeychain(secretsFilePath())
}
