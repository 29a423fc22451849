package common

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ZapLoggerOptions configures the zap-based logger.
type ZapLoggerOptions struct {
	// LogFile is the path to the log file. If empty, logs go to stdout.
	LogFile string `yaml:"file"`

	// MaxSize is the size in megabytes at which the file is rotated.
	MaxSize int `yaml:"max_size"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `yaml:"max_backups"`

	// MaxAge is the number of days to keep rotated files.
	MaxAge int `yaml:"max_age"`

	Compress bool `yaml:"compress"`

	// DebugLevel enables PDU and state transition traces.
	DebugLevel bool `yaml:"debug"`

	// Console also writes to stdout when LogFile is set.
	Console bool `yaml:"console"`
}

// NewZapLogger creates a Logger backed by uber-go/zap with optional file rotation.
func NewZapLogger(opts ZapLoggerOptions) Logger {
	return &zapAdapter{s: newZap(opts).Sugar()}
}

func newZap(opts ZapLoggerOptions) *zap.Logger {
	var ws zapcore.WriteSyncer

	if opts.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
			Compress:   opts.Compress,
		}
		if opts.Console {
			ws = zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), zapcore.AddSync(lj))
		} else {
			ws = zapcore.AddSync(lj)
		}
	} else {
		ws = zapcore.AddSync(os.Stdout)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)

	level := zap.InfoLevel
	if opts.DebugLevel {
		level = zap.DebugLevel
	}

	return zap.New(zapcore.NewCore(encoder, ws, level))
}

// NewZapAdapter wraps an existing zap logger, e.g. zaptest.NewLogger in tests.
func NewZapAdapter(l *zap.Logger) Logger {
	return &zapAdapter{s: l.Sugar()}
}

type zapAdapter struct {
	s *zap.SugaredLogger
}

func (z *zapAdapter) Debug(msg string, kv ...interface{}) {
	z.s.Debugw(msg, kv...)
}

func (z *zapAdapter) Info(msg string, kv ...interface{}) {
	z.s.Infow(msg, kv...)
}

func (z *zapAdapter) Warn(msg string, kv ...interface{}) {
	z.s.Warnw(msg, kv...)
}

func (z *zapAdapter) Error(msg string, kv ...interface{}) {
	z.s.Errorw(msg, kv...)
}

// Sync flushes buffered entries. Loggers that do not buffer ignore it.
func Sync(l Logger) error {
	if z, ok := l.(*zapAdapter); ok {
		return z.s.Sync()
	}
	return nil
}
