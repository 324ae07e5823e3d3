// Package logger builds the zap logger shared by every spreadwatch component.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"spreadwatch/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "spreadwatch"

// Rotation defaults used when the config leaves them at zero.
const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 5
	defaultMaxAgeDays = 7
)

// Prod sampling, per second and message: the first samplingFirst pass, then one in samplingEvery.
const (
	samplingFirst = 20
	samplingEvery = 50
)

// New builds a logger writing to stdout and, when OutputFile is set, to a rotated JSON file.
// Every entry carries service=spreadwatch.
func New(opts config.LogConfig) (*zap.Logger, error) {
	return newLogger(opts, os.Stdout)
}

func newLogger(opts config.LogConfig, stdout io.Writer) (*zap.Logger, error) {
	lvl, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	cores := []zapcore.Core{stdoutCore(opts, stdout, lvl)}
	if opts.OutputFile != "" {
		fc, err := fileCore(opts, lvl)
		if err != nil {
			return nil, err
		}
		cores = append(cores, fc)
	}

	core := zapcore.NewTee(cores...)
	if opts.Environment == "prod" {
		core = zapcore.NewSamplerWithOptions(core, time.Second, samplingFirst, samplingEvery)
	}

	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", serviceName)),
	), nil
}

// parseLevel treats an empty level as info.
func parseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return lvl, fmt.Errorf("invalid log level: %w", err)
	}
	return lvl, nil
}

// stdoutCore is human readable in dev or when asked for, JSON otherwise.
func stdoutCore(opts config.LogConfig, w io.Writer, lvl zapcore.Level) zapcore.Core {
	var enc zapcore.Encoder
	if opts.Environment == "dev" || opts.Format == "console" {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)
		enc = zapcore.NewConsoleEncoder(cfg)
	} else {
		enc = zapcore.NewJSONEncoder(jsonEncoderConfig())
	}
	return zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), lvl)
}

// fileCore writes JSON regardless of Format.
func fileCore(opts config.LogConfig, lvl zapcore.Level) (zapcore.Core, error) {
	if err := os.MkdirAll(filepath.Dir(opts.OutputFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.OutputFile,
		MaxSize:    orDefault(opts.MaxSizeMB, defaultMaxSizeMB),
		MaxBackups: orDefault(opts.MaxBackups, defaultMaxBackups),
		MaxAge:     orDefault(opts.MaxAgeDays, defaultMaxAgeDays),
		Compress:   true,
	})
	return zapcore.NewCore(zapcore.NewJSONEncoder(jsonEncoderConfig()), w, lvl), nil
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
