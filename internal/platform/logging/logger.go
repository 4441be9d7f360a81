// Package logging builds the process logger.
package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config captures logger bootstrap options.
type Config struct {
	ServiceName string
	Environment string
	Level       string
	// Console switches from JSON to the human readable encoder.
	Console            bool
	OutputPaths        []string
	ErrorOutput        []string
	SamplingInitial    int
	SamplingThereafter int
	// RedactionRules replace DefaultRedactionRules when non-nil. An empty,
	// non-nil slice disables redaction.
	RedactionRules []RedactionRule
}

// Global builds the process logger. The returned cleanup flushes buffered
// entries and closes opened log files; it gives up when ctx expires.
func Global(cfg Config) (*zap.Logger, func(context.Context) error, error) {
	if cfg.ServiceName == "" {
		return nil, nil, errors.New("logging: service name must be provided")
	}
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	out, closeOut, err := openSinks(cfg.OutputPaths, "stdout")
	if err != nil {
		return nil, nil, err
	}
	errOut, closeErrOut, err := openSinks(cfg.ErrorOutput, "stderr")
	if err != nil {
		closeOut()
		return nil, nil, err
	}

	var core zapcore.Core = zapcore.NewCore(newEncoder(cfg.Console), out, level)
	if cfg.SamplingInitial > 0 && cfg.SamplingThereafter > 0 {
		core = zapcore.NewSamplerWithOptions(core, time.Second, cfg.SamplingInitial, cfg.SamplingThereafter)
	}

	rules := cfg.RedactionRules
	if rules == nil {
		rules = DefaultRedactionRules()
	}
	compiled, err := compileRules(rules)
	if err != nil {
		closeOut()
		closeErrOut()
		return nil, nil, fmt.Errorf("logging: %w", err)
	}
	if len(compiled) > 0 {
		core = &redactingCore{Core: core, rules: compiled}
	}

	logger := zap.New(core,
		zap.AddCaller(),
		zap.ErrorOutput(errOut),
		zap.Fields(
			zap.String("svc", cfg.ServiceName),
			zap.String("env", cfg.Environment),
		),
	)

	cleanup := func(ctx context.Context) error {
		done := make(chan error, 1)
		go func() {
			err := logger.Sync()
			closeOut()
			closeErrOut()
			done <- err
		}()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			return ignoreSyncOnTTY(err)
		}
	}
	return logger, cleanup, nil
}

func parseLevel(text string) (zapcore.Level, error) {
	level := zapcore.InfoLevel
	if text == "" {
		return level, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToLower(text))); err != nil {
		return level, fmt.Errorf("logging: invalid level %q: %w", text, err)
	}
	return level, nil
}

func newEncoder(console bool) zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	if console {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncodeDuration = zapcore.StringDurationEncoder
		return zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewJSONEncoder(cfg)
}

// openSinks resolves output paths. "stdout" and "stderr" name the standard
// streams; anything else is a file opened for append.
func openSinks(paths []string, fallback string) (zapcore.WriteSyncer, func(), error) {
	if len(paths) == 0 {
		paths = []string{fallback}
	}
	var (
		writers []zapcore.WriteSyncer
		files   []*os.File
	)
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	for _, p := range paths {
		switch p {
		case "stdout":
			writers = append(writers, zapcore.Lock(os.Stdout))
		case "stderr":
			writers = append(writers, zapcore.Lock(os.Stderr))
		default:
			f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("logging: open %s: %w", p, err)
			}
			files = append(files, f)
			writers = append(writers, zapcore.Lock(f))
		}
	}
	return zapcore.NewMultiWriteSyncer(writers...), closeAll, nil
}

// ignoreSyncOnTTY drops the error fsync reports for terminals and pipes.
func ignoreSyncOnTTY(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && (errors.Is(pathErr.Err, os.ErrInvalid) || strings.Contains(pathErr.Err.Error(), "inappropriate ioctl")) {
		return nil
	}
	return err
}
