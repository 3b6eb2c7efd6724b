package config

// Backend persists non-secret settings between runs. Values are kept as
// strings under their dotted key; the key table parses typed values.
type Backend interface {
	Lookup(key string) (value string, ok bool, err error)
	Store(key, value string) error
	// Location names where settings live, for display.
	Location() string
}

// Location reports where the platform backend keeps settings.
func Location() string {
	return newPlatformBackend().Location()
}
