package realtime

import (
	"context"
	"path"
	"sync"
)

// MemoryBus is an in-process Bus for single-node deployments and tests.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[*memorySub]struct{}
	closed bool
}

type memorySub struct {
	pattern string
	ch      chan Message
	once    sync.Once
}

func (s *memorySub) close() { s.once.Do(func() { close(s.ch) }) }

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[*memorySub]struct{})}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	for s := range b.subs {
		if ok, _ := path.Match(s.pattern, topic); !ok {
			continue
		}
		msg := Message{Topic: topic, Payload: append([]byte(nil), payload...)}
		select {
		case s.ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, pattern string) (<-chan Message, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	s := &memorySub{pattern: pattern, ch: make(chan Message, 64)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		b.mu.Unlock()
		s.close()
	}()
	return s.ch, nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		s.close()
	}
	return nil
}
