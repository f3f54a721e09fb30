package account

import "errors"

var (
	ErrNotSignedIn        = errors.New("No user is currently signed in")
	ErrBadRequest         = errors.New("bad request")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
	ErrNotFound           = errors.New("not found")
	ErrUnavailable        = errors.New("auth provider unavailable")
)

func IsErrNotSignedIn(err error) bool        { return errors.Is(err, ErrNotSignedIn) }
func IsErrBadRequest(err error) bool         { return errors.Is(err, ErrBadRequest) }
func IsErrInvalidCredentials(err error) bool { return errors.Is(err, ErrInvalidCredentials) }
func IsErrEmailExists(err error) bool        { return errors.Is(err, ErrEmailExists) }
func IsErrNotFound(err error) bool           { return errors.Is(err, ErrNotFound) }
func IsErrUnavailable(err error) bool        { return errors.Is(err, ErrUnavailable) }
