// Package collection keeps the user's ordered Pokemon collection in memory
// and mirrors it to durable key/value storage.
package collection

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/meur/dexforge/internal/models"
	"go.uber.org/zap"
)

var (
	ErrNotLoaded       = errors.New("collection not loaded")
	ErrClosed          = errors.New("collection closed")
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Storage is durable string-keyed storage, shaped like a browser's localStorage.
type Storage interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
}

// Store owns the collection. It must be loaded once before it accepts mutations;
// every mutation after that rewrites the whole collection under the storage key.
type Store struct {
	storage Storage
	key     string
	logger  *zap.Logger

	mu       sync.Mutex
	loadOnce sync.Once
	items    []models.CatalogItem
	loaded   bool
	closed   bool
}

// New creates an empty, unloaded Store
func New(storage Storage, key string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		storage: storage,
		key:     key,
		logger:  logger.With(zap.String("storage_key", key)),
		items:   []models.CatalogItem{},
	}
}

// Load hydrates the collection from storage. Only the first call reads;
// a missing key, read failure or malformed value leaves the collection empty.
func (s *Store) Load(ctx context.Context) {
	s.loadOnce.Do(func() {
		items := s.read(ctx)

		s.mu.Lock()
		s.items = items
		s.loaded = true
		s.mu.Unlock()

		s.logger.Debug("collection loaded", zap.Int("count", len(items)))
	})
}

func (s *Store) read(ctx context.Context) []models.CatalogItem {
	if err := ctx.Err(); err != nil {
		s.logger.Warn("collection load skipped", zap.Error(err))
		return []models.CatalogItem{}
	}

	raw, ok, err := s.storage.GetItem(s.key)
	if err != nil {
		s.logger.Warn("failed to read collection from storage", zap.Error(err))
		return []models.CatalogItem{}
	}
	if !ok || raw == "" {
		return []models.CatalogItem{}
	}

	var parsed []models.CatalogItem
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		s.logger.Warn("failed to parse stored collection", zap.Error(err))
		return []models.CatalogItem{}
	}

	items := make([]models.CatalogItem, 0, len(parsed))
	seen := make(map[int]struct{}, len(parsed))
	for _, item := range parsed {
		if _, dup := seen[item.ID]; dup {
			s.logger.Warn("dropping duplicate stored entry", zap.Int("id", item.ID))
			continue
		}
		seen[item.ID] = struct{}{}
		items = append(items, item)
	}
	return items
}

// Add appends item unless an entry with the same id exists.
// It reports whether the item was added.
func (s *Store) Add(item models.CatalogItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(); err != nil {
		return false, err
	}
	if s.indexOf(item.ID) >= 0 {
		return false, nil
	}

	s.items = append(s.items, item)
	s.persist()
	return true, nil
}

// Remove deletes the entry with id and reports whether one was found
func (s *Store) Remove(id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(); err != nil {
		return false, err
	}
	i := s.indexOf(id)
	if i < 0 {
		s.persist()
		return false, nil
	}

	s.items = append(s.items[:i:i], s.items[i+1:]...)
	s.persist()
	return true, nil
}

// Reorder moves the entry at src so it ends up at dst. Both indices
// must address an existing entry; otherwise nothing changes.
func (s *Store) Reorder(src, dst int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(); err != nil {
		return err
	}
	n := len(s.items)
	if src < 0 || src >= n || dst < 0 || dst >= n {
		return ErrIndexOutOfRange
	}

	s.items = move(s.items, src, dst)
	s.persist()
	return nil
}

// Clear empties the collection
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(); err != nil {
		return err
	}
	s.items = []models.CatalogItem{}
	s.persist()
	return nil
}

// Contains reports whether an entry with id is in the collection
func (s *Store) Contains(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(id) >= 0
}

// Items returns a copy of the collection in order
func (s *Store) Items() []models.CatalogItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CatalogItem, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of entries
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Loaded reports whether Load has completed
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Close disposes the store. Later mutations return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) writable() error {
	if s.closed {
		return ErrClosed
	}
	if !s.loaded {
		return ErrNotLoaded
	}
	return nil
}

func (s *Store) indexOf(id int) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// persist writes the full collection. Failures are logged only; the
// in-memory collection stays authoritative. Callers hold s.mu.
func (s *Store) persist() {
	data, err := json.Marshal(s.items)
	if err != nil {
		s.logger.Error("failed to encode collection", zap.Error(err))
		return
	}
	if err := s.storage.SetItem(s.key, string(data)); err != nil {
		s.logger.Error("failed to save collection to storage", zap.Error(err), zap.Int("count", len(s.items)))
	}
}

// move is a list splice: remove items[src], then insert it at dst of the shortened list.
func move(items []models.CatalogItem, src, dst int) []models.CatalogItem {
	out := make([]models.CatalogItem, 0, len(items))
	out = append(out, items[:src]...)
	out = append(out, items[src+1:]...)

	moved := items[src]
	out = append(out, models.CatalogItem{})
	copy(out[dst+1:], out[dst:])
	out[dst] = moved
	return out
}
