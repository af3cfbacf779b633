package session

import (
	"context"
	"errors"
	"fmt"
)

// Session is the derived, never-stored answer to "who is signed in".
type Session struct {
	Authenticated bool `json:"authenticated"`
	Role          Role `json:"role"`
}

// Anonymous is the session of a store with no credentials.
var Anonymous = Session{Authenticated: false, Role: RoleNone}

// Resolve walks the precedence and returns the first populated slot. It only
// reads the store. A store with no credentials yields Anonymous and a nil
// credential.
func Resolve(ctx context.Context, store Store, order Precedence) (Session, *Credential, error) {
	if len(order) == 0 {
		order = DefaultPrecedence
	}
	for _, role := range order {
		cred, err := store.Get(ctx, role)
		if errors.Is(err, ErrCredentialNotFound) {
			continue
		}
		if err != nil {
			return Anonymous, nil, fmt.Errorf("read %s credential: %w", role, err)
		}
		if cred.AccessToken == "" {
			continue
		}
		return Session{Authenticated: true, Role: role}, cred, nil
	}
	return Anonymous, nil, nil
}
