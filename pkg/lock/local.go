package lock

import (
	"context"
	"sync"
)

var (
	localLocks sync.Map
)

// LocalLock serializes access within the process. Locks are shared by key,
// so two stores on the same file exclude each other.
type LocalLock struct {
	key string
	mx  *sync.RWMutex
}

var _ RWLock = (*LocalLock)(nil)

func NewLocalRWLock(key string) (RWLock, error) {
	return newLocalLock(key), nil
}

func newLocalLock(key string) *LocalLock {
	lock, _ := localLocks.LoadOrStore(key, &LocalLock{
		key: key,
		mx:  &sync.RWMutex{},
	})
	return lock.(*LocalLock)
}

func (lock *LocalLock) Key() string {
	return lock.key
}

func (lock *LocalLock) RLock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock.mx.RLock()
	return nil
}

// RUnlock always releases, even on a done context, so a canceled request
// can not leak the lock.
func (lock *LocalLock) RUnlock(_ context.Context) error {
	lock.mx.RUnlock()
	return nil
}

func (lock *LocalLock) RWLock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock.mx.Lock()
	return nil
}

func (lock *LocalLock) RWUnlock(_ context.Context) error {
	lock.mx.Unlock()
	return nil
}

func (lock *LocalLock) Close() error {
	return nil
}
