package feed

import (
	"context"
	"sync"
)

// Memory is an in-process broker. It only sees updates published in the same process.
type Memory struct {
	mu     sync.Mutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
}

// NewMemory creates an empty in-process broker.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[*memorySub]struct{})}
}

// Publish hands u to every subscriber of u.UserID.
func (m *Memory) Publish(_ context.Context, u Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for sub := range m.subs[u.UserID] {
		offer(sub.ch, u)
	}
	return nil
}

// Subscribe registers a subscriber for userID.
func (m *Memory) Subscribe(_ context.Context, userID string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	sub := &memorySub{broker: m, userID: userID, ch: make(chan Update, 1)}
	set, ok := m.subs[userID]
	if !ok {
		set = make(map[*memorySub]struct{})
		m.subs[userID] = set
	}
	set[sub] = struct{}{}
	return sub, nil
}

// Close drops all subscribers and closes their channels.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for _, set := range m.subs {
		for sub := range set {
			sub.closeLocked()
		}
	}
	m.subs = nil
	return nil
}

func (m *Memory) remove(sub *memorySub) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.subs[sub.userID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(m.subs, sub.userID)
		}
	}
	sub.closeLocked()
}

// Subscribers returns the number of live subscriptions for userID.
func (m *Memory) Subscribers(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[userID])
}

type memorySub struct {
	broker *Memory
	userID string
	ch     chan Update
	done   bool // guarded by broker.mu
}

func (s *memorySub) C() <-chan Update { return s.ch }

func (s *memorySub) Close() error {
	s.broker.remove(s)
	return nil
}

func (s *memorySub) closeLocked() {
	if s.done {
		return
	}
	s.done = true
	close(s.ch)
}
