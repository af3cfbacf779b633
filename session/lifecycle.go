package session

import (
	"context"
	"errors"
)

// State is one role's position in its login lifecycle. Each role moves
// independently; precedence, not state, decides which one governs a request.
type State string

const (
	StateLoggedOut State = "logged_out"
	StateActive    State = "active"
)

// StateOf reports the lifecycle state of a role slot.
func StateOf(ctx context.Context, store Store, role Role) (State, error) {
	cred, err := store.Get(ctx, role)
	if errors.Is(err, ErrCredentialNotFound) {
		return StateLoggedOut, nil
	}
	if err != nil {
		return StateLoggedOut, err
	}
	if cred.AccessToken == "" {
		return StateLoggedOut, nil
	}
	return StateActive, nil
}

// States reports every role's state.
func States(ctx context.Context, store Store) (map[Role]State, error) {
	out := make(map[Role]State, len(Roles))
	for _, role := range Roles {
		st, err := StateOf(ctx, store, role)
		if err != nil {
			return nil, err
		}
		out[role] = st
	}
	return out, nil
}
