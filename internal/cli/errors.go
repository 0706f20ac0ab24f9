package cli

import (
	"errors"
	"fmt"

	"learnsync/internal/auth"
	"learnsync/internal/gateway"
)

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

// hintError points at the command that resolves err.
type hintError struct {
	err  error
	hint string
}

func (e hintError) Error() string { return fmt.Sprintf("%s (%s)", e.err, e.hint) }

func (e hintError) Unwrap() error { return e.err }

func withHint(err error) error {
	switch {
	case errors.Is(err, gateway.ErrSSOChallenge):
		return hintError{err: err, hint: "the portal wants a browser sign-on; run `learnsync sso`, or pass --sso to sync and submit"}
	case errors.Is(err, auth.ErrMissingCredential):
		return hintError{err: err, hint: "run `learnsync login` first"}
	case errors.Is(err, gateway.ErrBadCredential):
		return hintError{err: err, hint: "check the username and password"}
	}
	return err
}
