package server

import (
	"context"
	"errors"
	"net/http"

	errs "github.com/ctfer-io/chore-server/pkg/errors"
)

// statusFromError normalizes internal errors into an HTTP status code and the
// message that is safe to return to clients.
func statusFromError(err error) (int, string) {
	var (
		tooLarge errs.ErrPayloadTooLarge
		payload  errs.ErrPayload
	)
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, tooLarge.Error()
	case errors.As(err, &payload):
		return http.StatusBadRequest, payload.Error()
	case errors.Is(err, errs.ErrLockUnavailable):
		return http.StatusServiceUnavailable, errs.ErrLockUnavailable.Error()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, err.Error()
	}
	return http.StatusInternalServerError, errs.ErrInternalNoSub.Error()
}

// isMaxBytesError reports whether err (or any error in its chain) is an
// *http.MaxBytesError, indicating the request body exceeded the size limit.
func isMaxBytesError(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
