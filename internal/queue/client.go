package queue

import (
	"context"
	"sync"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg BatchCompleted) error
}

// MemoryClient keeps sent messages in memory. It is used when no queue is configured.
type MemoryClient struct {
	mu   sync.Mutex
	sent []BatchCompleted
}

// NewMemoryClient constructs a MemoryClient.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

// Send records msg.
func (m *MemoryClient) Send(ctx context.Context, msg BatchCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the messages sent so far.
func (m *MemoryClient) Sent() []BatchCompleted {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BatchCompleted(nil), m.sent...)
}

var _ Client = (*MemoryClient)(nil)
