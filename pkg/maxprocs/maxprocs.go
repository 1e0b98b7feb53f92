package maxprocs

import (
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

// Adjust sets GOMAXPROCS to the CPU quota, if any.
// Returns a function restoring the previous value.
func Adjust(l *zap.Logger) func() {
	undo, err := maxprocs.Set(maxprocs.Logger(l.Sugar().Debugf))
	if err != nil {
		l.Warn("Failed to set GOMAXPROCS", zap.Error(err))
	}
	if undo == nil {
		return func() {}
	}
	return undo
}
