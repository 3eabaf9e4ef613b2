package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrCorrupt is returned when the session file exists but cannot be read
// back (bad JSON, wrong passphrase, truncated envelope).
var ErrCorrupt = errors.New("session file corrupt")

// FileStorage keeps the session as one JSON document on disk, replaced
// atomically by rename on every write. With a passphrase the document is
// sealed (see [Sealer]).
type FileStorage struct {
	path   string
	sealer *Sealer

	mu sync.Mutex
}

// DefaultFilePath returns ~/.config/dvss/<profile>.json, using the
// platform's user config directory.
func DefaultFilePath(profile string) (string, error) {
	if profile == "" {
		profile = "session"
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(dir, "dvss", profile+".json"), nil
}

// NewFileStorage creates a FileStorage at path. A non-empty passphrase
// enables sealing.
func NewFileStorage(path, passphrase string) (*FileStorage, error) {
	if path == "" {
		return nil, errors.New("session file path required")
	}
	fs := &FileStorage{path: path}
	if passphrase != "" {
		fs.sealer = NewSealer(passphrase)
	}
	return fs, nil
}

// Path returns the backing file.
func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) Read(_ context.Context, keys ...string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := doc[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// Write applies b to the current document. A corrupt document is replaced,
// which is how a discarded session gets cleaned up. When the result is
// empty the file is removed.
func (f *FileStorage) Write(_ context.Context, b Batch) error {
	if b.Empty() {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			return err
		}
		doc = map[string]string{}
	}
	for k, v := range b.Set {
		doc[k] = v
	}
	for _, k := range b.Delete {
		delete(doc, k)
	}

	if len(doc) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}
	if f.sealer != nil {
		data, err = f.sealer.Seal(data)
		if err != nil {
			return err
		}
	}
	return writeFileAtomic(f.path, data)
}

func (f *FileStorage) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read session file %s: %w", f.path, err)
	}
	if f.sealer != nil {
		data, err = f.sealer.Open(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}

	doc := map[string]string{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return doc, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp session file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp session file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
