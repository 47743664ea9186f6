package config

import "sync"

// RuntimeConfig stores configuration set at runtime via CLI flags.
// These values are not persisted to config files.
type RuntimeConfig struct {
	mu      sync.RWMutex
	verbose bool
	debug   bool
}

var globalRuntime = &RuntimeConfig{}

// SetVerbose enables or disables verbose (slog debug) output.
func SetVerbose(v bool) {
	globalRuntime.mu.Lock()
	defer globalRuntime.mu.Unlock()
	globalRuntime.verbose = v
}

// IsVerbose returns whether verbose output is enabled.
func IsVerbose() bool {
	globalRuntime.mu.RLock()
	defer globalRuntime.mu.RUnlock()
	return globalRuntime.verbose
}

// SetDebug forces debug logging regardless of server.debug in the config file.
func SetDebug(d bool) {
	globalRuntime.mu.Lock()
	defer globalRuntime.mu.Unlock()
	globalRuntime.debug = d
}

// IsDebug returns whether debug logging was forced on.
func IsDebug() bool {
	globalRuntime.mu.RLock()
	defer globalRuntime.mu.RUnlock()
	return globalRuntime.debug
}
