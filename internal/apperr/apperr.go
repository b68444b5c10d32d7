// Package apperr holds the error taxonomy shared by the RailMeal stores and
// their remote collaborators.
package apperr

import "github.com/go-faster/errors"

var (
	// ErrUnauthenticated is returned when an operation requires a user
	// identity and none is present.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrRemoteUnavailable is returned when the backend or the payment
	// gateway cannot be reached or answers with a server error.
	ErrRemoteUnavailable = errors.New("remote service unavailable")
	// ErrNotFound is returned when a lookup by id yields nothing after both
	// the local cache and the remote service were consulted.
	ErrNotFound = errors.New("not found")
)

// remoteError attaches ErrRemoteUnavailable to an upstream failure while
// keeping the upstream message as the error text.
type remoteError struct {
	msg   string
	cause error
}

func (e *remoteError) Error() string { return e.msg }

func (e *remoteError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrRemoteUnavailable}
	}
	return []error{ErrRemoteUnavailable, e.cause}
}

// Remote marks err as a remote availability failure. The returned error
// matches both ErrRemoteUnavailable and err via errors.Is.
func Remote(err error) error {
	if err == nil {
		return nil
	}
	return &remoteError{msg: err.Error(), cause: err}
}

// RemoteMessage builds a remote availability failure from an upstream
// message that has no underlying Go error.
func RemoteMessage(msg string) error {
	return &remoteError{msg: msg}
}
