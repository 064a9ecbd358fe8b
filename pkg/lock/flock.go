package lock

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

const retryDelay = 10 * time.Millisecond

// FileLock extends the local lock with an advisory lock on "<key>.lock", so
// that several processes sharing the same volume are serialized too.
//
// A flock is held per open file, hence in-process readers share a single
// shared file lock: the first reader takes it, the last one releases it.
type FileLock struct {
	local *LocalLock
	fl    *flock.Flock

	mx      sync.Mutex
	readers int
}

var _ RWLock = (*FileLock)(nil)

func NewFileRWLock(key string) (RWLock, error) {
	return &FileLock{
		local: newLocalLock(key),
		fl:    flock.New(key + ".lock"),
	}, nil
}

func (lock *FileLock) Key() string {
	return lock.local.Key()
}

func (lock *FileLock) RLock(ctx context.Context) error {
	if err := lock.local.RLock(ctx); err != nil {
		return err
	}

	lock.mx.Lock()
	defer lock.mx.Unlock()

	if lock.readers == 0 {
		if _, err := lock.fl.TryRLockContext(ctx, retryDelay); err != nil {
			_ = lock.local.RUnlock(ctx)
			return errors.Wrapf(err, "acquiring shared flock on %s", lock.fl.Path())
		}
	}
	lock.readers++
	return nil
}

func (lock *FileLock) RUnlock(ctx context.Context) (err error) {
	lock.mx.Lock()
	lock.readers--
	if lock.readers == 0 {
		if uerr := lock.fl.Unlock(); uerr != nil {
			err = errors.Wrapf(uerr, "releasing shared flock on %s", lock.fl.Path())
		}
	}
	lock.mx.Unlock()

	return multierr.Append(err, lock.local.RUnlock(ctx))
}

func (lock *FileLock) RWLock(ctx context.Context) error {
	if err := lock.local.RWLock(ctx); err != nil {
		return err
	}
	if _, err := lock.fl.TryLockContext(ctx, retryDelay); err != nil {
		_ = lock.local.RWUnlock(ctx)
		return errors.Wrapf(err, "acquiring exclusive flock on %s", lock.fl.Path())
	}
	return nil
}

func (lock *FileLock) RWUnlock(ctx context.Context) (err error) {
	if uerr := lock.fl.Unlock(); uerr != nil {
		err = errors.Wrapf(uerr, "releasing exclusive flock on %s", lock.fl.Path())
	}
	return multierr.Append(err, lock.local.RWUnlock(ctx))
}

func (lock *FileLock) Close() error {
	return lock.fl.Close()
}
