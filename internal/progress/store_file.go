package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

const lockFileName = ".lock"

// FileStore keeps one JSON document per job in a directory. The most recent
// write is mirrored to the legacy single-slot document.
type FileStore struct {
	dir        string
	legacyPath string

	// mu serializes goroutines; lock only excludes other processes.
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileStore prepares dir and returns a store rooted there. legacyPath may
// be empty to disable the single-slot mirror.
func NewFileStore(dir, legacyPath string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("progress: file store directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("progress: create store dir: %w", err)
	}
	return &FileStore{
		dir:        dir,
		legacyPath: legacyPath,
		lock:       flock.New(filepath.Join(dir, lockFileName)),
	}, nil
}

func (f *FileStore) path(jobID string) (string, error) {
	name := sanitizeID(jobID)
	if name == "" {
		return "", fmt.Errorf("progress: invalid job id %q", jobID)
	}
	return filepath.Join(f.dir, name+".json"), nil
}

func (f *FileStore) withLock(fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("progress: acquire lock: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()
	return fn()
}

func (f *FileStore) Load(_ context.Context, jobID string) (State, error) {
	path, err := f.path(jobID)
	if err != nil {
		return State{}, err
	}
	var state State
	err = f.withLock(func() error {
		var readErr error
		state, readErr = readState(path)
		return readErr
	})
	return state, err
}

func (f *FileStore) Save(_ context.Context, state State) error {
	path, err := f.path(state.JobID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("progress: encode state: %w", err)
	}
	return f.withLock(func() error {
		if err := writeAtomic(path, data); err != nil {
			return err
		}
		if f.legacyPath != "" {
			return writeAtomic(f.legacyPath, data)
		}
		return nil
	})
}

// Delete removes the job's document. The legacy slot is removed only when it
// still mirrors this job.
func (f *FileStore) Delete(_ context.Context, jobID string) error {
	path, err := f.path(jobID)
	if err != nil {
		return err
	}
	return f.withLock(func() error {
		if err := removeState(path); err != nil {
			return err
		}
		if f.legacyPath == "" {
			return nil
		}
		legacy, err := readState(f.legacyPath)
		if err != nil {
			return nil
		}
		// Older documents carry no job id; they belong to whoever resets next.
		if legacy.JobID == "" || legacy.JobID == jobID {
			return removeState(f.legacyPath)
		}
		return nil
	})
}

// Reset removes the job's document and the legacy slot, whichever job it
// mirrors, so single-slot pollers read 0 until the new job writes.
func (f *FileStore) Reset(_ context.Context, jobID string) error {
	path, err := f.path(jobID)
	if err != nil {
		return err
	}
	return f.withLock(func() error {
		if err := removeState(path); err != nil {
			return err
		}
		if f.legacyPath == "" {
			return nil
		}
		return removeState(f.legacyPath)
	})
}

func removeState(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("progress: remove %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (f *FileStore) List(context.Context) ([]State, error) {
	var states []State
	err := f.withLock(func() error {
		entries, err := os.ReadDir(f.dir)
		if err != nil {
			return fmt.Errorf("progress: list states: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
				continue
			}
			state, err := readState(filepath.Join(f.dir, entry.Name()))
			if err != nil {
				continue
			}
			states = append(states, state)
		}
		return nil
	})
	return states, err
}

func (f *FileStore) Close() error {
	return f.lock.Close()
}

func readState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, ErrNotFound
		}
		return State{}, fmt.Errorf("progress: read state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("progress: decode %s: %w", filepath.Base(path), err)
	}
	return state, nil
}

// writeAtomic replaces path so concurrent readers never see a torn document.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("progress: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("progress: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("progress: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("progress: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("progress: rename state: %w", err)
	}
	return nil
}
