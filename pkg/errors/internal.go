package errors

import "github.com/pkg/errors"

// ErrInternal wraps a server-side failure (e.g. the state file could not be
// written). Its cause is logged but only the generic message reaches clients.
type ErrInternal struct {
	Sub error
}

func (err ErrInternal) Error() string {
	if err.Sub == nil {
		return ErrInternalNoSub.Error()
	}
	// If embedded internal server error, don't prefix it twice
	if sub, ok := err.Sub.(*ErrInternal); ok {
		return sub.Error()
	}
	return errors.Wrap(err.Sub, ErrInternalNoSub.Error()).Error()
}

func (err ErrInternal) Unwrap() error {
	return err.Sub
}

var (
	ErrInternalNoSub = errors.New("internal server error")
)
