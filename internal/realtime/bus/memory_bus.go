package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/neurobridge-learnview/internal/realtime"
)

// memoryBus delivers in-process only, for single instance deployments and tests.
type memoryBus struct {
	mu     sync.RWMutex
	subs   []func(realtime.SSEMessage)
	closed bool
}

func NewMemoryBus() Bus { return &memoryBus{} }

func (b *memoryBus) Publish(_ context.Context, msg realtime.SSEMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("memory bus closed")
	}
	for _, fn := range b.subs {
		fn(msg)
	}
	return nil
}

func (b *memoryBus) StartForwarder(_ context.Context, onMsg func(m realtime.SSEMessage)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, onMsg)
	return nil
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = nil
	return nil
}
