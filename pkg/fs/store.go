package fs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ctfer-io/chore-server/global"
	errs "github.com/ctfer-io/chore-server/pkg/errors"
	"github.com/ctfer-io/chore-server/pkg/lock"
)

// Options configure a Store.
type Options struct {
	// Directory holding the state file. It is created if missing.
	Directory string
	// Atomic writes go to a temporary file renamed over the state file.
	Atomic bool
	// Lock is the pkg/lock kind serializing loads and saves.
	// Defaults to lock.KindLocal.
	Lock string
}

// Store reads and replaces the chore state file.
type Store struct {
	dir    string
	path   string
	atomic bool
	lock   lock.RWLock
}

// NewStore returns a Store over `<opts.Directory>/chore-state.json`,
// creating the directory (and its parents) if needed.
func NewStore(opts Options) (*Store, error) {
	if opts.Directory == "" {
		return nil, errors.New("store directory must not be empty")
	}
	if err := os.MkdirAll(opts.Directory, dirPerm); err != nil {
		return nil, &errs.ErrFilesystem{Op: "mkdir", Err: err}
	}

	kind := opts.Lock
	if kind == "" {
		kind = lock.KindLocal
	}
	path := filepath.Join(opts.Directory, StateFile)
	l, err := lock.NewRWLock(kind, path)
	if err != nil {
		return nil, err
	}

	return &Store{
		dir:    opts.Directory,
		path:   path,
		atomic: opts.Atomic,
		lock:   l,
	}, nil
}

// Directory returns the directory the state file lives in.
func (s *Store) Directory() string {
	return s.dir
}

// Path returns the path of the state file.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored document.
// It returns a nil Document, and no error, if the file does not exist, can't
// be read, or does not hold a JSON object: all are served as the empty state.
// The only error returned is a failure to acquire the reader lock.
func (s *Store) Load(ctx context.Context) (Document, error) {
	ctx, span := global.Tracer.Start(ctx, "store.load")
	defer span.End()

	logger := global.Log()

	// The flock kind needs the directory to hold its lock file
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		logger.Warn(ctx, "chore state directory unusable, serving empty state",
			zap.Error(&errs.ErrFilesystem{Op: "mkdir", Err: err}),
			zap.String("directory", s.dir),
		)
		loaded(ctx, "absent")
		return nil, nil
	}

	if err := s.lock.RLock(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock")
		return nil, &errs.ErrInternal{Sub: multierr.Combine(errs.ErrLockUnavailable, err)}
	}
	defer runlock(ctx, s.lock)

	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug(ctx, "no chore state stored yet",
				zap.String("path", s.path),
			)
		} else {
			logger.Warn(ctx, "chore state unreadable, serving empty state",
				zap.Error(&errs.ErrFilesystem{Op: "read", Err: err}),
				zap.String("path", s.path),
			)
		}
		loaded(ctx, "absent")
		return nil, nil
	}

	doc, err := ParseDocument(b)
	if err != nil {
		logger.Warn(ctx, "chore state corrupted, serving empty state",
			zap.Error(err),
			zap.String("path", s.path),
		)
		loaded(ctx, "absent")
		return nil, nil
	}

	loaded(ctx, "hit")
	return doc, nil
}

// Save replaces the stored document with doc, written as indented JSON.
// Any failure is returned as an *errs.ErrInternal.
func (s *Store) Save(ctx context.Context, doc Document) error {
	ctx, span := global.Tracer.Start(ctx, "store.save")
	defer span.End()

	err := s.save(ctx, doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save")
		SavesCounter().Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
		return &errs.ErrInternal{Sub: err}
	}
	SavesCounter().Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	SizeHistogram().Record(ctx, int64(len(doc)))
	return nil
}

func (s *Store) save(ctx context.Context, doc Document) error {
	b, err := doc.Indent()
	if err != nil {
		return errors.Wrap(err, "indenting chore state")
	}

	// The volume may have been emptied since the store was created
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return &errs.ErrFilesystem{Op: "mkdir", Err: err}
	}

	if err := s.lock.RWLock(ctx); err != nil {
		return multierr.Combine(errs.ErrLockUnavailable, err)
	}
	defer rwunlock(ctx, s.lock)

	if s.atomic {
		return writeAtomic(s.path, b)
	}
	return writeDirect(s.path, b)
}

// Close releases the lock resources.
func (s *Store) Close() error {
	return s.lock.Close()
}

func loaded(ctx context.Context, result string) {
	LoadsCounter().Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func writeDirect(path string, b []byte) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return &errs.ErrFilesystem{Op: "create", Err: err}
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	if _, err := f.Write(b); err != nil {
		return &errs.ErrFilesystem{Op: "write", Err: err}
	}
	return nil
}

func writeAtomic(path string, b []byte) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+StateFile+".*.tmp")
	if err != nil {
		return &errs.ErrFilesystem{Op: "create temporary", Err: err}
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err := f.Write(b); err != nil {
		return multierr.Combine(&errs.ErrFilesystem{Op: "write", Err: err}, f.Close())
	}
	if err := f.Sync(); err != nil {
		return multierr.Combine(&errs.ErrFilesystem{Op: "sync", Err: err}, f.Close())
	}
	if err := f.Close(); err != nil {
		return &errs.ErrFilesystem{Op: "close", Err: err}
	}
	if err := os.Chmod(tmp, filePerm); err != nil {
		return &errs.ErrFilesystem{Op: "chmod", Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &errs.ErrFilesystem{Op: "rename", Err: err}
	}
	return nil
}
