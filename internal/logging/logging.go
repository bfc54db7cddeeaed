// Package logging builds the zap logger shared by all ibgw subcommands.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a console logger writing to stderr. If logFile is non-empty,
// output is additionally written to a size-rotated file so the container's
// log history survives a noisy gateway session.
func New(verbose bool, logFile string) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level),
	}

	if logFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
		}
		jsonCfg := zap.NewProductionEncoderConfig()
		cores = append(cores,
			zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), zapcore.AddSync(rotated), level))
	}

	return zap.New(zapcore.NewTee(cores...))
}
