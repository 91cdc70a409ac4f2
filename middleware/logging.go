package middleware

import (
	"context"
	"mini-thrift/log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging logs every call at the given level, decoded arguments included.
// A nil logger means log.L().
func Logging(logger *zap.Logger, level zapcore.Level) Observer {
	if logger == nil {
		logger = log.L()
	}
	logger = logger.Named("observer")
	return ObserverFunc(func(_ context.Context, call Call) {
		if ce := logger.Check(level, "inbound call"); ce != nil {
			ce.Write(
				zap.String("method", call.Method),
				zap.Stringer("kind", call.Kind),
				zap.Int32("seq", call.SeqID),
				zap.Any("args", call.Args),
			)
		}
	})
}
