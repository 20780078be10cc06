package logger

import (
	"go.uber.org/zap"
)

var Log = zap.NewNop().Sugar()

func Init() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}

// Sync flushes buffered log entries, call before exit.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
