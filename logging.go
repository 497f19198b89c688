package coap

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewRotatingLogger builds a production zap logger writing JSON lines to
// path through size-based rotation. Daemons embedding the client can hand
// the result to Config.Logger; the engine itself has no opinion on sinks.
func NewRotatingLogger(path string, level zapcore.Level) *zap.Logger {
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	})
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		sink,
		level,
	)
	return zap.New(core)
}
