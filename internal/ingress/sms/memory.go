package sms

import (
	"context"
	"sync"
)

// MemorySource is an in-process Source for tests.
type MemorySource struct {
	mu         sync.Mutex
	ch         chan Message
	Suppressed []string
}

// NewMemorySource returns a MemorySource with a small delivery buffer.
func NewMemorySource() *MemorySource {
	return &MemorySource{ch: make(chan Message, 8)}
}

// Deliver injects one message.
func (s *MemorySource) Deliver(m Message) { s.ch <- m }

// Close closes the delivery channel.
func (s *MemorySource) Close() { close(s.ch) }

func (s *MemorySource) Messages() <-chan Message { return s.ch }

func (s *MemorySource) Suppress(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Suppressed = append(s.Suppressed, id)
	return nil
}
