package shell

import (
	"context"
	"errors"

	"github.com/upb/jaffa-explorer/apierrors"
)

// OutcomeKind is how a failure is shown to the user.
type OutcomeKind string

const (
	OutcomeNone     OutcomeKind = ""
	OutcomeMessage  OutcomeKind = "message"  // inline, next to the form
	OutcomeNotice   OutcomeKind = "notice"   // transient notification
	OutcomeRedirect OutcomeKind = "redirect" // to a login page
)

// Outcome is what a page does with a failed call. Every failure maps to a
// visible outcome; only abandoned calls map to none.
type Outcome struct {
	Kind     OutcomeKind
	Message  string
	Redirect string
}

// Classify maps err to an outcome.
func Classify(err error) Outcome {
	if err == nil || errors.Is(err, context.Canceled) {
		return Outcome{}
	}

	apiErr, ok := apierrors.As(err)
	if !ok {
		return Outcome{Kind: OutcomeNotice, Message: apierrors.DefaultGenericMessage}
	}

	switch apiErr.Type {
	case apierrors.TypeSessionExpired:
		target := apiErr.LoginPath
		if target == "" {
			target = apiErr.Role.LoginPath()
		}
		return Outcome{Kind: OutcomeRedirect, Message: apierrors.UserMessage(err), Redirect: target}
	case apierrors.TypeAuthenticationFailed, apierrors.TypeValidationFailed:
		return Outcome{Kind: OutcomeMessage, Message: apierrors.UserMessage(err)}
	default:
		return Outcome{Kind: OutcomeNotice, Message: apierrors.UserMessage(err)}
	}
}
