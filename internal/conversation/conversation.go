// Package conversation keeps short-lived per-user state between chat
// messages, such as "the next message is a support request".
package conversation

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNoState = errors.New("no conversation state")

type Kind string

const (
	// KindSupport forwards the next message to the admins.
	KindSupport Kind = "support"
	// KindProof treats the next message as proof for TaskID.
	KindProof Kind = "proof"
)

type State struct {
	Kind   Kind  `json:"kind"`
	TaskID int64 `json:"task_id,omitempty"`
}

type Store interface {
	Set(ctx context.Context, userID int64, state State) error
	// Take returns and clears the state of userID, or ErrNoState.
	Take(ctx context.Context, userID int64) (State, error)
	Clear(ctx context.Context, userID int64) error
}

type entry struct {
	state     State
	expiresAt time.Time
}

// MemoryStore keeps states in process memory. Expired entries are dropped
// on access or by Cleanup.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]entry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int64]entry),
	}
}

func (m *MemoryStore) Set(_ context.Context, userID int64, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[userID] = entry{state: state, expiresAt: m.now().Add(m.ttl)}

	return nil
}

func (m *MemoryStore) Take(_ context.Context, userID int64) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[userID]
	if !ok {
		return State{}, ErrNoState
	}

	delete(m.entries, userID)

	if !m.now().Before(e.expiresAt) {
		return State{}, ErrNoState
	}

	return e.state, nil
}

func (m *MemoryStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, userID)

	return nil
}

// Cleanup drops expired entries of users who never replied.
func (m *MemoryStore) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	for id, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, id)
		}
	}
}
