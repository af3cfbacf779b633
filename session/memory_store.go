package session

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps credentials in process memory. Thread-safe.
type MemoryStore struct {
	Broadcaster

	mu    sync.RWMutex
	slots map[Role]Credential
	hint  Role
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots: make(map[Role]Credential),
		hint:  RoleNone,
	}
}

func (s *MemoryStore) Get(_ context.Context, role Role) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.slots[role]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return &cred, nil
}

func (s *MemoryStore) Put(ctx context.Context, cred *Credential) error {
	if cred == nil || !cred.Role.Valid() {
		return fmt.Errorf("put credential: invalid role")
	}
	s.mu.Lock()
	s.slots[cred.Role] = *cred
	s.mu.Unlock()

	s.Publish(Event{Kind: EventPut, Role: cred.Role, Reason: ReasonFrom(ctx)})
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, role Role) error {
	s.mu.Lock()
	_, existed := s.slots[role]
	delete(s.slots, role)
	s.mu.Unlock()

	if existed {
		s.Publish(Event{Kind: EventDelete, Role: role})
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.slots = make(map[Role]Credential)
	s.hint = RoleNone
	s.mu.Unlock()

	s.Publish(Event{Kind: EventClear, Role: RoleNone})
	return nil
}

func (s *MemoryStore) RoleHint(_ context.Context) (Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hint, nil
}

func (s *MemoryStore) SetRoleHint(_ context.Context, role Role) error {
	s.mu.Lock()
	s.hint = role
	s.mu.Unlock()
	return nil
}
