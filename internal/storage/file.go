package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"blockwatch/internal/models"
)

const maxLineSize = 1 << 20

// FileProvider stores the registry as JSON lines in one file and the history
// as an append-only JSON lines file.
type FileProvider struct {
	statePath   string
	historyPath string
	logger      *slog.Logger

	mu sync.Mutex
}

func NewFileProvider(statePath, historyPath string, logger *slog.Logger) (*FileProvider, error) {
	for _, path := range []string{statePath, historyPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}

	return &FileProvider{
		statePath:   statePath,
		historyPath: historyPath,
		logger:      logger,
	}, nil
}

func (p *FileProvider) Load(ctx context.Context) ([]models.BlockEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.Open(p.statePath)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.BlockEntry{}, nil
	}
	if err != nil {
		return nil, persistenceError("load", err)
	}
	defer f.Close()

	entries := []models.BlockEntry{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var entry models.BlockEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, persistenceError("load", fmt.Errorf("%s line %d: %w", p.statePath, line, err))
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, persistenceError("load", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, persistenceError("load", err)
	}

	return entries, nil
}

// Save writes the registry to a temporary file in the same directory, syncs
// it, then renames it over the state file.
func (p *FileProvider) Save(ctx context.Context, entries []models.BlockEntry) error {
	if err := ctx.Err(); err != nil {
		return persistenceError("save", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	dir := filepath.Dir(p.statePath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p.statePath)+".tmp-*")
	if err != nil {
		return persistenceError("save", err)
	}
	tmpPath := tmp.Name()

	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return persistenceError("save", err)
	}

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return cleanup(err)
		}
	}

	if err := w.Flush(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return persistenceError("save", err)
	}

	if err := os.Rename(tmpPath, p.statePath); err != nil {
		_ = os.Remove(tmpPath)
		return persistenceError("save", err)
	}

	if err := syncDir(dir); err != nil {
		p.logger.Warn("failed to sync state directory", "dir", dir, "error", err)
	}

	return nil
}

func (p *FileProvider) AppendHistory(ctx context.Context, event models.HistoryEvent) error {
	if err := ctx.Err(); err != nil {
		return persistenceError("append_history", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return persistenceError("append_history", err)
	}
	data = append(data, '\n')

	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.OpenFile(p.historyPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return persistenceError("append_history", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return persistenceError("append_history", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return persistenceError("append_history", err)
	}

	return persistenceError("append_history", f.Close())
}

func (p *FileProvider) ListHistory(ctx context.Context, limit int) ([]models.HistoryEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.Open(p.historyPath)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.HistoryEvent{}, nil
	}
	if err != nil {
		return nil, persistenceError("list_history", err)
	}
	defer f.Close()

	var events []models.HistoryEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var event models.HistoryEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			// an interrupted append can leave a torn last line
			p.logger.Warn("skipping unreadable history line", "file", p.historyPath, "error", err)
			continue
		}
		events = append(events, event)

		if limit > 0 && len(events) > 2*limit {
			events = slices.Clone(events[len(events)-limit:])
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, persistenceError("list_history", err)
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	slices.Reverse(events)

	if events == nil {
		events = []models.HistoryEvent{}
	}
	return events, nil
}

func (p *FileProvider) Ping(_ context.Context) error {
	info, err := os.Stat(filepath.Dir(p.statePath))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(p.statePath))
	}
	return nil
}

func (p *FileProvider) Close() error {
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
