package fs

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/ctfer-io/chore-server/global"
	"github.com/ctfer-io/chore-server/pkg/lock"
)

const (
	// StateFile is the name of the file holding the chore state, relative to
	// the store directory.
	StateFile = "chore-state.json"

	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

func runlock(ctx context.Context, l lock.RWLock) {
	if err := l.RUnlock(context.WithoutCancel(ctx)); err != nil {
		global.Log().Error(ctx, "releasing state reader lock",
			zap.Error(err),
			zap.String("key", l.Key()),
		)
	}
}

func rwunlock(ctx context.Context, l lock.RWLock) {
	if err := l.RWUnlock(context.WithoutCancel(ctx)); err != nil {
		global.Log().Error(ctx, "releasing state writer lock",
			zap.Error(err),
			zap.String("key", l.Key()),
		)
	}
}
