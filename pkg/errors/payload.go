package errors

import "fmt"

// ErrPayload signals that a replace call did not carry a JSON object.
type ErrPayload struct {
	Reason string
}

func (err ErrPayload) Error() string {
	if err.Reason == "" {
		return "invalid state payload"
	}
	return fmt.Sprintf("invalid state payload: %s", err.Reason)
}

// ErrPayloadTooLarge signals that a request body exceeded the configured limit.
type ErrPayloadTooLarge struct {
	Limit int64
}

func (err ErrPayloadTooLarge) Error() string {
	return fmt.Sprintf("request body exceeds %d bytes", err.Limit)
}
