package session

import (
	"context"
	"errors"
	"sync"
)

// ErrCredentialNotFound is returned when a role slot is empty.
var ErrCredentialNotFound = errors.New("credential not found")

// Store persists the three role slots plus the role hint.
// Implementations: memory (tests, embedding), file (CLI), SQL, Redis.
type Store interface {
	// Get returns the credential in a role slot, or ErrCredentialNotFound.
	Get(ctx context.Context, role Role) (*Credential, error)

	// Put creates or replaces the credential in cred.Role's slot.
	Put(ctx context.Context, cred *Credential) error

	// Delete empties one slot. Deleting an empty slot is not an error.
	Delete(ctx context.Context, role Role) error

	// Clear empties every slot and the role hint.
	Clear(ctx context.Context) error

	// RoleHint returns the role of the most recent login, or RoleNone.
	RoleHint(ctx context.Context) (Role, error)

	// SetRoleHint records the role of the most recent login.
	SetRoleHint(ctx context.Context, role Role) error

	// Subscribe registers fn for change events and returns a cancel func.
	Subscribe(fn func(Event)) (cancel func())
}

// EventKind describes what changed in a store.
type EventKind string

const (
	EventPut      EventKind = "put"
	EventDelete   EventKind = "delete"
	EventClear    EventKind = "clear"
	EventExternal EventKind = "external"
)

// EventReason says why a credential was written. Stores copy it from the
// context passed to Put.
type EventReason string

const (
	ReasonNone    EventReason = ""
	ReasonLogin   EventReason = "login"
	ReasonRefresh EventReason = "refresh"
)

type reasonKey struct{}

// WithReason tags store writes made with ctx.
func WithReason(ctx context.Context, r EventReason) context.Context {
	return context.WithValue(ctx, reasonKey{}, r)
}

// ReasonFrom returns the reason set by WithReason, or ReasonNone.
func ReasonFrom(ctx context.Context) EventReason {
	r, _ := ctx.Value(reasonKey{}).(EventReason)
	return r
}

// Event is delivered to subscribers after a mutation. Role is RoleNone for
// clear and external events. Reason is only set on put events.
type Event struct {
	Kind   EventKind
	Role   Role
	Reason EventReason
}

// Broadcaster fans events out to subscribers. Stores embed it.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

// Subscribe registers fn and returns a cancel func.
func (b *Broadcaster) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(Event))
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish calls every subscriber synchronously. Must not be called while
// holding a store lock that a subscriber could need.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
