// Package logging provides categorized structured logging for caremind,
// built on zap. Each subsystem logs through a named category that can be
// enabled or disabled independently; the level is adjustable at runtime so
// the config watcher can flip it without a restart.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	// CategoryBoot - startup and initialization
	CategoryBoot Category = "boot"
	// CategorySession - lifecycle transitions, phase/engagement updates
	CategorySession Category = "session"
	// CategoryLedger - turn appends and completions
	CategoryLedger Category = "ledger"
	// CategoryContext - relevance ranking and context composition
	CategoryContext Category = "context"
	// CategorySync - memory-block synchronization
	CategorySync Category = "sync"
	// CategoryContinuity - cross-session continuity records
	CategoryContinuity Category = "continuity"
	// CategoryAPI - calls to the external reasoning service
	CategoryAPI Category = "api"
	// CategoryConfig - configuration loading and hot reload
	CategoryConfig Category = "config"
)

// Options mirrors the relevant parts of config.LoggingConfig to avoid a
// circular import between config and logging.
type Options struct {
	// Level is one of debug/info/warn/error. Defaults to info.
	Level string
	// Categories maps category name -> enabled. Nil enables everything.
	Categories map[string]bool
	// Development switches to the zap development encoder (console output,
	// human timestamps). Production uses JSON.
	Development bool
	// OutputPaths overrides zap's output sinks. Empty means stderr.
	OutputPaths []string
}

var (
	mu         sync.RWMutex
	root       *zap.Logger
	level      zap.AtomicLevel
	categories map[string]bool
	sugared    = make(map[Category]*zap.SugaredLogger)
	nop        = zap.NewNop().Sugar()
)

// Initialize builds the root logger. Safe to call more than once; later
// calls replace the previous configuration.
func Initialize(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	level = zap.NewAtomicLevelAt(parseLevel(opts.Level))

	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = level
	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
	}

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	root = logger
	categories = opts.Categories
	sugared = make(map[Category]*zap.SugaredLogger)
	return nil
}

// SetLevel adjusts the global level at runtime (used by the config watcher).
func SetLevel(lvl string) {
	mu.RLock()
	defer mu.RUnlock()
	if root != nil {
		level.SetLevel(parseLevel(lvl))
	}
}

// SetCategories replaces the category filter at runtime.
func SetCategories(cats map[string]bool) {
	mu.Lock()
	defer mu.Unlock()
	categories = cats
	sugared = make(map[Category]*zap.SugaredLogger)
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if root != nil {
		_ = root.Sync()
	}
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func enabled(category Category) bool {
	if categories == nil {
		return true
	}
	on, ok := categories[string(category)]
	if !ok {
		return true
	}
	return on
}

// Get returns the sugared logger for a category. Returns a no-op logger when
// logging is uninitialized or the category is disabled, so call sites never
// need nil checks.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if root == nil || !enabled(category) {
		mu.RUnlock()
		return nop
	}
	if l, ok := sugared[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		return nop
	}
	if l, ok := sugared[category]; ok {
		return l
	}
	l := root.Named(string(category)).Sugar()
	sugared[category] = l
	return l
}
