// Package logging provides categorized logging for lidarflow on top of zap.
// Every category is a named child of one process-wide zap logger, so a single
// encoder, level and sink serve the whole pipeline. Until SetLogger is called
// all output is discarded.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // CLI start-up, logger/config wiring
	CategoryConfig   Category = "config"   // Config loading and validation
	CategoryPipeline Category = "pipeline" // Orchestrator progress
	CategoryStage    Category = "stage"    // Stage runner, manifests
	CategoryTactile  Category = "tactile"  // External process execution
	CategoryDensity  Category = "density"  // Density probe and tile sizing
	CategoryManifest Category = "manifest" // File discovery and list-of-files output
)

// Options configures the process-wide logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // console, json
	File   string // optional extra sink, appended to
}

var (
	mu      sync.RWMutex
	base    = zap.NewNop()
	loggers = make(map[Category]*Logger)
)

// Logger is a printf-style logger bound to one category.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

// New builds a zap logger from opts. Output goes to stderr and, when set,
// to opts.File.
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Sampling = nil
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch strings.ToLower(opts.Format) {
	case "", "console", "text":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		cfg.Encoding = "json"
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if opts.File != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, opts.File)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(raw string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", raw)
	}
}

// SetLogger installs l as the process-wide logger. Passing nil installs a
// no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	base = l
	loggers = make(map[Category]*Logger)
}

// L returns the process-wide zap logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered entries. Errors from syncing stderr are ignored.
func Sync() {
	_ = L().Sync()
}

// Get returns (or creates) the logger for the given category.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := &Logger{
		category: category,
		sugar:    base.Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// With returns a zap logger for the category carrying extra fields.
func (l *Logger) With(fields ...zap.Field) *zap.Logger {
	return l.sugar.Desugar().With(fields...)
}

// =============================================================================
// CATEGORY HELPERS
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// ConfigDebug logs debug to the config category
func ConfigDebug(format string, args ...interface{}) {
	Get(CategoryConfig).Debug(format, args...)
}

// ConfigWarn logs a warning to the config category
func ConfigWarn(format string, args ...interface{}) {
	Get(CategoryConfig).Warn(format, args...)
}

// Pipeline logs to the pipeline category
func Pipeline(format string, args ...interface{}) {
	Get(CategoryPipeline).Info(format, args...)
}

// PipelineDebug logs debug to the pipeline category
func PipelineDebug(format string, args ...interface{}) {
	Get(CategoryPipeline).Debug(format, args...)
}

// PipelineError logs an error to the pipeline category
func PipelineError(format string, args ...interface{}) {
	Get(CategoryPipeline).Error(format, args...)
}

// Stage logs to the stage category
func Stage(format string, args ...interface{}) {
	Get(CategoryStage).Info(format, args...)
}

// StageDebug logs debug to the stage category
func StageDebug(format string, args ...interface{}) {
	Get(CategoryStage).Debug(format, args...)
}

// StageWarn logs a warning to the stage category
func StageWarn(format string, args ...interface{}) {
	Get(CategoryStage).Warn(format, args...)
}

// Tactile logs to the tactile category
func Tactile(format string, args ...interface{}) {
	Get(CategoryTactile).Info(format, args...)
}

// TactileDebug logs debug to the tactile category
func TactileDebug(format string, args ...interface{}) {
	Get(CategoryTactile).Debug(format, args...)
}

// TactileWarn logs a warning to the tactile category
func TactileWarn(format string, args ...interface{}) {
	Get(CategoryTactile).Warn(format, args...)
}

// TactileError logs an error to the tactile category
func TactileError(format string, args ...interface{}) {
	Get(CategoryTactile).Error(format, args...)
}

// Density logs to the density category
func Density(format string, args ...interface{}) {
	Get(CategoryDensity).Info(format, args...)
}

// DensityDebug logs debug to the density category
func DensityDebug(format string, args ...interface{}) {
	Get(CategoryDensity).Debug(format, args...)
}

// ManifestDebug logs debug to the manifest category
func ManifestDebug(format string, args ...interface{}) {
	Get(CategoryManifest).Debug(format, args...)
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}

