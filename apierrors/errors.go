// Package apierrors classifies backend failures into the four kinds callers
// act on: rejected login, lost session, field validation, everything else.
package apierrors

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/upb/jaffa-explorer/session"
)

// Type is the failure category.
type Type string

const (
	TypeAuthenticationFailed Type = "authentication_failed"
	TypeSessionExpired       Type = "session_expired"
	TypeValidationFailed     Type = "validation_failed"
	TypeNetworkOrServer      Type = "network_or_server"
)

// Default messages shown when the backend supplies none.
const (
	DefaultLoginMessage   = "Login failed"
	DefaultSessionMessage = "Your session has expired. Please log in again."
	DefaultGenericMessage = "Something went wrong. Please try again."
)

// Error is a classified backend failure.
type Error struct {
	Type       Type
	Message    string
	StatusCode int                 // 0 for transport failures
	Fields     map[string][]string // ValidationFailed only
	Role       session.Role        // SessionExpired only
	LoginPath  string              // SessionExpired only
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Sentinels for errors.Is.
var (
	ErrAuthenticationFailed = &Error{Type: TypeAuthenticationFailed, Message: DefaultLoginMessage}
	ErrSessionExpired       = &Error{Type: TypeSessionExpired, Message: DefaultSessionMessage}
	ErrValidationFailed     = &Error{Type: TypeValidationFailed, Message: "validation failed"}
	ErrNetworkOrServer      = &Error{Type: TypeNetworkOrServer, Message: DefaultGenericMessage}
)

// AuthenticationFailed builds a login rejection from the backend's reply.
func AuthenticationFailed(status int, body []byte) *Error {
	msg := MessageFromBody(body)
	if msg == "" {
		msg = DefaultLoginMessage
	}
	return &Error{Type: TypeAuthenticationFailed, Message: msg, StatusCode: status}
}

// SessionExpired marks role's session as permanently lost.
func SessionExpired(role session.Role, err error) *Error {
	return &Error{
		Type:       TypeSessionExpired,
		Message:    DefaultSessionMessage,
		StatusCode: http.StatusUnauthorized,
		Role:       role,
		LoginPath:  role.LoginPath(),
		Err:        err,
	}
}

// ValidationFailed builds a 400 failure. Message is the backend's message,
// or every field message joined with spaces.
func ValidationFailed(body []byte) *Error {
	msg := MessageFromBody(body)
	if msg == "" {
		msg = "Invalid request"
	}
	return &Error{
		Type:       TypeValidationFailed,
		Message:    msg,
		StatusCode: http.StatusBadRequest,
		Fields:     FieldsFromBody(body),
	}
}

// NetworkOrServer wraps a transport failure (status 0) or any unclassified
// status.
func NetworkOrServer(status int, body []byte, err error) *Error {
	msg := ""
	if status != 0 {
		msg = MessageFromBody(body)
	}
	if msg == "" {
		msg = DefaultGenericMessage
	}
	return &Error{Type: TypeNetworkOrServer, Message: msg, StatusCode: status, Err: err}
}

// FromResponse classifies a non-2xx reply. A 401 is reported as
// SessionExpired for RoleNone; callers that know the role rebuild it.
func FromResponse(status int, body []byte) *Error {
	switch status {
	case http.StatusBadRequest:
		return ValidationFailed(body)
	case http.StatusUnauthorized:
		e := SessionExpired(session.RoleNone, nil)
		if msg := MessageFromBody(body); msg != "" {
			e.Message = msg
		}
		return e
	default:
		return NetworkOrServer(status, body, nil)
	}
}

// MessageFromBody extracts a display message from an error body: the
// "message", "detail" or "error" string if present, otherwise all field
// messages in the order the backend sent them, joined with a space.
// Non-JSON bodies are returned trimmed.
func MessageFromBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	if !json.Valid(body) {
		if strings.HasPrefix(trimmed, "<") {
			// HTML error page
			return ""
		}
		return trimmed
	}

	var obj map[string]any
	if json.Unmarshal(body, &obj) == nil {
		for _, key := range []string{"message", "detail", "error"} {
			if s, ok := obj[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return strings.Join(flatten(body), " ")
}

// FieldsFromBody returns the field to messages mapping of a validation body.
func FieldsFromBody(body []byte) map[string][]string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil
	}
	fields := make(map[string][]string, len(obj))
	for k, v := range obj {
		if msgs := flatten(v); len(msgs) > 0 {
			fields[k] = msgs
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// flatten collects every message in a JSON value depth first, keeping
// object keys in document order.
func flatten(raw []byte) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	switch raw[0] {
	case '{':
		dec := json.NewDecoder(bytes.NewReader(raw))
		if _, err := dec.Token(); err != nil {
			return nil
		}
		var out []string
		for dec.More() {
			// key
			if _, err := dec.Token(); err != nil {
				return out
			}
			var v json.RawMessage
			if err := dec.Decode(&v); err != nil {
				return out
			}
			out = append(out, flatten(v)...)
		}
		return out
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		var out []string
		for _, item := range items {
			out = append(out, flatten(item)...)
		}
		return out
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return nil
		}
		return []string{s}
	case 'n':
		return nil
	default:
		return []string{string(raw)}
	}
}

// As returns the classified error in err's chain.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsAuthenticationFailed checks if an error is a rejected login
func IsAuthenticationFailed(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed)
}

// IsSessionExpired checks if an error is a lost session
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

// IsValidationFailed checks if an error is a field validation failure
func IsValidationFailed(err error) bool {
	return errors.Is(err, ErrValidationFailed)
}

// IsNetworkOrServer checks if an error is a transport or server failure
func IsNetworkOrServer(err error) bool {
	return errors.Is(err, ErrNetworkOrServer)
}

// TypeOf returns the Type of a classified error, or "" for anything else.
func TypeOf(err error) Type {
	if apiErr, ok := As(err); ok {
		return apiErr.Type
	}
	return ""
}

// UserMessage is the text to display for err. Unclassified errors get the
// generic message.
func UserMessage(err error) string {
	if apiErr, ok := As(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return DefaultGenericMessage
}
