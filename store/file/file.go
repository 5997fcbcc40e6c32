// Package file keeps node results as one file per record in a directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/smallnest/nodeflow/store"
)

// FileResultStore provides file-based result storage
type FileResultStore struct {
	path  string
	codec store.Codec
	ext   string
	mutex sync.RWMutex
}

// NewFileResultStore creates a store in path encoding records with
// store.DefaultCodec.
func NewFileResultStore(path string) (*FileResultStore, error) {
	return NewFileResultStoreWithCodec(path, store.DefaultCodec)
}

// NewFileResultStoreWithCodec creates a store in path using codec.
func NewFileResultStoreWithCodec(path string, codec store.Codec) (*FileResultStore, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create result directory: %w", err)
	}
	ext := ".rec"
	if codec.Name() == "json" {
		ext = ".json"
	}
	return &FileResultStore{path: path, codec: codec, ext: ext}, nil
}

func (f *FileResultStore) filename(id string) string {
	return filepath.Join(f.path, filepath.Base(id)+f.ext)
}

// Save implements store.ResultStore
func (f *FileResultStore) Save(_ context.Context, record *store.Record) error {
	b, err := f.codec.Encode(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	tmp := f.filename(record.ID) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := os.Rename(tmp, f.filename(record.ID)); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Load implements store.ResultStore
func (f *FileResultStore) Load(_ context.Context, recordID string) (*store.Record, error) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	return f.read(f.filename(recordID), recordID)
}

func (f *FileResultStore) read(filename, id string) (*store.Record, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	record, err := f.codec.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	return record, nil
}

// List implements store.ResultStore
func (f *FileResultStore) List(_ context.Context, runID string) ([]*store.Record, error) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	records, err := f.all()
	if err != nil {
		return nil, err
	}
	var out []*store.Record
	for _, r := range records {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (f *FileResultStore) all() ([]*store.Record, error) {
	entries, err := os.ReadDir(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result directory: %w", err)
	}
	var records []*store.Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), f.ext) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), f.ext)
		r, err := f.read(filepath.Join(f.path, e.Name()), id)
		if err != nil {
			// Skip files another writer left half-written.
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// Delete implements store.ResultStore
func (f *FileResultStore) Delete(_ context.Context, recordID string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	err := os.Remove(f.filename(recordID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Clear implements store.ResultStore
func (f *FileResultStore) Clear(_ context.Context, runID string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	records, err := f.all()
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.RunID != runID {
			continue
		}
		if err := os.Remove(f.filename(r.ID)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete record %s: %w", r.ID, err)
		}
	}
	return nil
}
