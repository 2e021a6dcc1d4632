// Package logger constructs the zap logger shared by Recall's services.
// The logger is built once at startup and passed explicitly into
// constructors; there is no package-level logging state.
package logger

import "go.uber.org/zap"

// New returns a zap logger. When debug is true, uses development config
// (human-readable, debug level); otherwise uses production config (JSON,
// info level).
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
