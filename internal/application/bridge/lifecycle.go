package bridge

import (
	"go.uber.org/zap"

	"github.com/erp/chatbridge/internal/domain/message"
)

// lifecycle follows one unit of work through its stages
type lifecycle struct {
	log   *zap.Logger
	stage message.Stage
}

func newLifecycle(log *zap.Logger, stage message.Stage) *lifecycle {
	return &lifecycle{log: log, stage: stage}
}

// to moves to next and logs the transition at debug level. A move the stage
// graph does not allow is logged as an error and leaves the stage unchanged.
func (l *lifecycle) to(next message.Stage, fields ...zap.Field) bool {
	if !l.stage.CanTransitionTo(next) {
		l.log.Error("illegal stage transition",
			append(fields, zap.Stringer("from", l.stage), zap.Stringer("to", next))...)
		return false
	}
	if ce := l.log.Check(zap.DebugLevel, "stage transition"); ce != nil {
		ce.Write(append(fields, zap.Stringer("from", l.stage), zap.Stringer("stage", next))...)
	}
	l.stage = next
	return true
}
