// Package prefs stores dashboard preferences alongside the history.
package prefs

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/kalambet/prism/internal/kv"
)

// ThemeKey is the storage key of the theme preference.
const ThemeKey = "prism-theme"

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// DefaultTheme is reported when nothing valid is stored.
const DefaultTheme = ThemeDark

// Manager provides cached access to preferences.
type Manager struct {
	backend kv.Backend

	mu     sync.RWMutex
	cached string
}

func NewManager(backend kv.Backend) *Manager {
	return &Manager{backend: backend}
}

// Theme returns the stored theme, or DefaultTheme when it is unset,
// unreadable or not a known value.
func (m *Manager) Theme() string {
	m.mu.RLock()
	if m.cached != "" {
		t := m.cached
		m.mu.RUnlock()
		return t
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached != "" {
		return m.cached
	}

	v, ok, err := m.backend.Get(ThemeKey)
	if err != nil {
		slog.Warn("reading theme failed", "error", err)
		return DefaultTheme
	}
	if !ok || !ValidTheme(v) {
		v = DefaultTheme
	}
	m.cached = v
	return v
}

// SetTheme persists theme, which must be "light" or "dark".
func (m *Manager) SetTheme(theme string) error {
	if !ValidTheme(theme) {
		return fmt.Errorf("invalid theme %q: must be %q or %q", theme, ThemeLight, ThemeDark)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.backend.Set(ThemeKey, theme); err != nil {
		return fmt.Errorf("saving theme: %w", err)
	}
	m.cached = theme
	return nil
}

func ValidTheme(s string) bool {
	return s == ThemeLight || s == ThemeDark
}
