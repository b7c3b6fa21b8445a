package authsession

import "go.uber.org/zap"

// ZapLogger adapts a zap sugared logger to Logger
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

var _ Logger = ZapLogger{}

// NewZapLogger wraps logger, named "auth-session". A nil logger yields a no-op.
func NewZapLogger(logger *zap.Logger) ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return ZapLogger{sugar: logger.Named("auth-session").Sugar()}
}

func (z ZapLogger) Debug(format string, args ...any) {
	z.sugar.Debugf(format, args...)
}

func (z ZapLogger) Info(format string, args ...any) {
	z.sugar.Infof(format, args...)
}

func (z ZapLogger) Warn(format string, args ...any) {
	z.sugar.Warnf(format, args...)
}

func (z ZapLogger) Error(format string, args ...any) {
	z.sugar.Errorf(format, args...)
}
