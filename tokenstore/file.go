package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File persists the token as a mode-0600 JSON slot file, surviving process
// restarts within the same install. Writes go through a temp file and rename
// so a crash never leaves a half-written slot.
type File struct {
	mu   sync.Mutex
	path string
}

type slotFile struct {
	Token string `json:"token"`
}

// NewFile creates a file-backed slot at path. The parent directory is created
// on first Set.
func NewFile(path string) *File {
	return &File{path: path}
}

func (s *File) Get(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token slot: %w", err)
	}

	var slot slotFile
	if err := json.Unmarshal(raw, &slot); err != nil {
		return "", fmt.Errorf("decode token slot: %w", err)
	}
	return slot.Token, nil
}

func (s *File) Set(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token slot dir: %w", err)
	}

	raw, err := json.Marshal(slotFile{Token: token})
	if err != nil {
		return fmt.Errorf("encode token slot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("create temp slot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp slot: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp slot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp slot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace token slot: %w", err)
	}
	return nil
}

func (s *File) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove token slot: %w", err)
	}
	return nil
}
