// Package history keeps the capped, newest-first log of past analyses.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/prism/internal/kv"
	"github.com/kalambet/prism/internal/schema"
)

// Key is the storage key holding the serialized history list.
const Key = "prism_history"

// DefaultLimit is the number of items retained; older items are evicted.
const DefaultLimit = 50

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("history item not found")

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Store is the only writer of the history list. All writes go through the
// backend's Update, which commits the whole list at once.
type Store struct {
	backend kv.Backend
	clock   Clock
	newID   func() string
	limit   int
	logger  *slog.Logger

	mu sync.Mutex
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for timestamps.
func WithClock(c Clock) Option { return func(s *Store) { s.clock = c } }

// WithIDFunc replaces the UUID generator.
func WithIDFunc(f func() string) Option { return func(s *Store) { s.newID = f } }

// WithLimit changes the retention cap. Non-positive values keep DefaultLimit.
func WithLimit(n int) Option { return func(s *Store) { s.limit = n } }

// WithLogger sets the logger used to report unreadable history.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// New creates a Store on backend.
func New(backend kv.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		clock:   realClock{},
		newID:   uuid.NewString,
		limit:   DefaultLimit,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.limit <= 0 {
		s.limit = DefaultLimit
	}
	return s
}

// List returns all stored items, newest first. Missing or unreadable data
// yields an empty slice.
func (s *Store) List() []schema.HistoryItem {
	raw, ok, err := s.backend.Get(Key)
	if err != nil {
		s.logger.Warn("reading history failed", "error", err)
		return []schema.HistoryItem{}
	}
	if !ok {
		return []schema.HistoryItem{}
	}
	items, err := decode(raw)
	if err != nil {
		s.logger.Warn("history is unreadable, treating as empty", "error", err)
		return []schema.HistoryItem{}
	}
	return items
}

// Get returns the item with the given id.
func (s *Store) Get(id string) (schema.HistoryItem, error) {
	for _, it := range s.List() {
		if it.ID == id {
			return it, nil
		}
	}
	return schema.HistoryItem{}, ErrNotFound
}

// Save stamps result with a fresh id and the current time, prepends it and
// truncates the list to the retention cap. The returned error reports only
// that the item was not recorded; the previous list is left intact.
func (s *Store) Save(fileName string, result schema.AnalysisResult) (schema.HistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var saved schema.HistoryItem
	err := s.backend.Update(Key, func(old string, ok bool) (string, error) {
		var items []schema.HistoryItem
		if ok {
			var err error
			if items, err = decode(old); err != nil {
				s.logger.Warn("discarding unreadable history", "error", err)
				items = nil
			}
		}

		ts := s.clock.Now().UnixMilli()
		// Keep timestamps non-decreasing so they order the same way as saves.
		if len(items) > 0 && items[0].Timestamp > ts {
			ts = items[0].Timestamp
		}
		saved = schema.HistoryItem{
			AnalysisResult: result.Normalize(),
			ID:             s.newID(),
			FileName:       fileName,
			Timestamp:      ts,
		}

		next := make([]schema.HistoryItem, 0, min(len(items)+1, s.limit))
		next = append(next, saved)
		for _, it := range items {
			if len(next) >= s.limit {
				break
			}
			next = append(next, it)
		}

		data, err := json.Marshal(next)
		if err != nil {
			return "", fmt.Errorf("encoding history: %w", err)
		}
		return string(data), nil
	})
	if err != nil {
		return schema.HistoryItem{}, fmt.Errorf("saving history item: %w", err)
	}
	return saved, nil
}

// Clear removes every stored item.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Delete(Key); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}

func decode(raw string) ([]schema.HistoryItem, error) {
	var items []schema.HistoryItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []schema.HistoryItem{}
	}
	return items, nil
}
