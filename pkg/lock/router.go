package lock

import (
	"context"
	"fmt"
)

const (
	KindLocal = "local"
	KindFlock = "flock"
)

// Kinds lists the lock kinds NewRWLock accepts.
var Kinds = []string{KindLocal, KindFlock}

// RWLock define an implementation of a readers-writer lock.
//
// Readers share the lock, a writer holds it exclusively. Acquisition
// fails with the context error if the context is done before the lock
// could be taken.
type RWLock interface {
	Key() string

	// RLock is a reader lock
	RLock(context.Context) error
	// RUnlock is a reader unlock
	RUnlock(context.Context) error

	// RWLock is a writer lock
	RWLock(context.Context) error
	// RWUnlock is a writer unlock
	RWUnlock(context.Context) error

	// Close releases the underlying resources (e.g. lock file descriptors)
	Close() error
}

// NewRWLock returns a lock of the given kind for key. For the flock kind,
// key is the path of the file to protect.
func NewRWLock(kind, key string) (RWLock, error) {
	switch kind {
	case KindLocal:
		return NewLocalRWLock(key)
	case KindFlock:
		return NewFileRWLock(key)
	}
	return nil, fmt.Errorf("unhandled lock kind %q", kind)
}
