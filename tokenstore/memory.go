package tokenstore

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Nothing survives process exit.
type Memory struct {
	mu    sync.Mutex
	token string
}

// NewMemory creates an empty in-process slot.
func NewMemory() *Memory {
	return &Memory{}
}

func (s *Memory) Get(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *Memory) Set(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *Memory) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
