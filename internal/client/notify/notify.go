// Package notify delivers transient user-facing notices. It is the toast
// layer of the client: every failure or server push that the user should see
// ends up here, and nothing here ever fails the calling page.
package notify

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/courseflow/courseflow/internal/models"
)

// Notifier receives transient notices.
type Notifier interface {
	Notify(n models.Notification)
}

// Func adapts a function to the Notifier interface.
type Func func(n models.Notification)

// Notify calls f.
func (f Func) Notify(n models.Notification) { f(n) }

// Duration maps a severity to how long the notice stays visible.
func Duration(sev models.Severity) time.Duration {
	switch sev {
	case models.SeverityCritical:
		return 10 * time.Second
	case models.SeverityWarning:
		return 6 * time.Second
	case models.SeveritySuccess:
		return 3 * time.Second
	default:
		return 4 * time.Second
	}
}

// Console prints notices to stdout and mirrors them to the logger.
type Console struct {
	log *zap.Logger
}

// NewConsole returns a console-backed Notifier.
func NewConsole(log *zap.Logger) *Console {
	return &Console{log: log}
}

// Notify prints the notice with a severity marker.
func (c *Console) Notify(n models.Notification) {
	fmt.Printf("[%s] %s: %s\n", n.Severity, n.Title, n.Message)
	c.log.Info("notification",
		zap.String("severity", string(n.Severity)),
		zap.String("title", n.Title),
		zap.Duration("display", Duration(n.Severity)),
	)
}
