// Package logging provides the structured logger shared by the forest
// trainer and drift controller. It wraps go.uber.org/zap, the same
// structured-logging choice other_examples' ignite-style services make,
// behind a single package-level accessor so callers never construct a
// *zap.Logger by hand.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu      sync.Mutex
	current *zap.SugaredLogger
)

// L returns the process-wide SugaredLogger, building a development
// console logger the first time it's called. Use SetProduction to
// switch to JSON output before any package grabs a reference.
func L() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		logger, err := zap.NewDevelopment()
		if err != nil {
			logger = zap.NewNop()
		}
		current = logger.Sugar()
	}
	return current
}

// SetProduction swaps the package-level logger for a JSON-encoding
// production configuration. Intended for cmd/ entry points to call
// once at startup before any trainer or controller is constructed.
func SetProduction() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	mu.Lock()
	current = logger.Sugar()
	mu.Unlock()
	return nil
}

// NoOp returns a logger that discards everything, used as the default
// for a forest.Trainer or drift.Controller constructed without an
// explicit logger option.
func NoOp() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
