package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/Kumzy/doctolib-watcher/internal/metrics"
	"github.com/Kumzy/doctolib-watcher/internal/watch"
)

// NoOp logs messages instead of sending them and reports success. Running
// without a configured channel still commits dedup records this way, so a
// misconfigured deployment does not re-announce the same slots forever.
type NoOp struct {
	logger *zap.Logger
}

// NewNoOp creates a log-only notifier.
func NewNoOp(logger *zap.Logger) *NoOp {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &NoOp{logger: logger}
}

// Notify logs the message and reports it as delivered.
func (n *NoOp) Notify(_ context.Context, msg watch.Message) bool {
	n.logger.Info("notification channel not configured; logging instead",
		zap.String("title", msg.Title),
		zap.String("body", msg.Body),
	)
	metrics.ObserveDelivery("delivered")
	return true
}
