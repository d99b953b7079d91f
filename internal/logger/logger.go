// Package logger constructs the application logger.
package logger

import (
	"go.uber.org/zap"
)

// New returns a production logger, or a development logger when debug is set.
// The returned logger is injected into every component; there is no package
// global.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
