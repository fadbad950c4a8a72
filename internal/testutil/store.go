package testutil

import (
	"context"
	"slices"
	"sync"

	"blockwatch/internal/models"
)

// FakeStore is an in-memory storage.StorageProvider with injectable failures.
type FakeStore struct {
	mu        sync.Mutex
	entries   []models.BlockEntry
	history   []models.HistoryEvent
	saves     int
	loadErr   error
	saveErr   error
	appendErr error
}

func NewFakeStore(initial ...models.BlockEntry) *FakeStore {
	return &FakeStore{entries: cloneEntries(initial)}
}

func (s *FakeStore) Load(_ context.Context) ([]models.BlockEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return cloneEntries(s.entries), nil
}

func (s *FakeStore) Save(_ context.Context, entries []models.BlockEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.entries = cloneEntries(entries)
	return nil
}

func (s *FakeStore) AppendHistory(_ context.Context, event models.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.history = append(s.history, event)
	return nil
}

func (s *FakeStore) ListHistory(_ context.Context, limit int) ([]models.HistoryEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := slices.Clone(s.history)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *FakeStore) Ping(_ context.Context) error { return nil }

func (s *FakeStore) Close() error { return nil }

func (s *FakeStore) SetLoadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

func (s *FakeStore) SetSaveError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

func (s *FakeStore) SetAppendError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}

// Saved returns the registry as of the last successful Save.
func (s *FakeStore) Saved() []models.BlockEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEntries(s.entries)
}

// SavedEntry returns the last saved entry for ip.
func (s *FakeStore) SavedEntry(ip string) (models.BlockEntry, bool) {
	for _, e := range s.Saved() {
		if e.IP == ip {
			return e, true
		}
	}
	return models.BlockEntry{}, false
}

func (s *FakeStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// History returns the appended events in order.
func (s *FakeStore) History() []models.HistoryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

func cloneEntries(entries []models.BlockEntry) []models.BlockEntry {
	out := make([]models.BlockEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}
