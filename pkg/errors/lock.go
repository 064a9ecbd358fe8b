package errors

import "errors"

// ErrLockUnavailable signals that the state file lock could not be acquired.
var ErrLockUnavailable = errors.New("state is locked, try again")
