package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// ErrSecretNotFound is returned by a secret store without the requested
// service and account.
var ErrSecretNotFound = errors.New("secret not found")

// jsonFile is a small JSON document rewritten whole on every change. Writes
// go through a temporary file renamed into place.
type jsonFile struct {
	path string
	perm fs.FileMode
}

// read decodes the file into v. A missing file leaves v untouched.
func (f jsonFile) read(v any) error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", f.path, err)
	}
	return nil
}

func (f jsonFile) write(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(f.perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// fileBackend keeps settings as one flat JSON object. Hand-edited numbers and
// booleans are accepted and read back as their string form.
type fileBackend struct {
	file   jsonFile
	values map[string]string
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{file: jsonFile{path: path, perm: 0o600}, values: map[string]string{}}
	var raw map[string]any
	if err := b.file.read(&raw); err != nil {
		slog.Warn("ignoring unreadable config file", "path", path, "error", err)
		return b
	}
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			b.values[k] = v
		case float64:
			b.values[k] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			b.values[k] = fmt.Sprint(v)
		}
	}
	return b
}

func (b *fileBackend) Lookup(key string) (string, bool, error) {
	v, ok := b.values[key]
	return v, ok, nil
}

func (b *fileBackend) Store(key, value string) error {
	b.values[key] = value
	if err := b.file.write(b.values); err != nil {
		return fmt.Errorf("saving %s: %w", b.file.path, err)
	}
	return nil
}

func (b *fileBackend) Location() string { return b.file.path }

// fileKeychain keeps secrets in a private JSON file shaped as
// {"service": {"account": "value"}}.
type fileKeychain struct {
	file jsonFile
	mu   sync.Mutex
}

func newFileKeychain(path string) *fileKeychain {
	return &fileKeychain{file: jsonFile{path: path, perm: 0o600}}
}

func (k *fileKeychain) load() (map[string]map[string]string, error) {
	secrets := map[string]map[string]string{}
	if err := k.file.read(&secrets); err != nil {
		return nil, err
	}
	return secrets, nil
}

func (k *fileKeychain) Get(service, account string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	secrets, err := k.load()
	if err != nil {
		return "", err
	}
	v, ok := secrets[service][account]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrSecretNotFound, service, account)
	}
	return v, nil
}

func (k *fileKeychain) Set(service, account, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	secrets, err := k.load()
	if err != nil {
		// An unreadable file is replaced rather than blocking every write.
		slog.Warn("replacing unreadable secrets file", "path", k.file.path, "error", err)
		secrets = map[string]map[string]string{}
	}
	if secrets[service] == nil {
		secrets[service] = map[string]string{}
	}
	secrets[service][account] = value
	if err := k.file.write(secrets); err != nil {
		return fmt.Errorf("saving secret %s/%s: %w", service, account, err)
	}
	return nil
}
