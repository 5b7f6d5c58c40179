package commitlog

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// MetricsRecordFunc is an optional callback for recording audit results.
type MetricsRecordFunc func(intact bool)

// Auditor periodically re-verifies a Log and reports integrity failures.
type Auditor struct {
	log       Log
	interval  time.Duration
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// NewAuditor creates an Auditor. interval defaults to 10 minutes.
func NewAuditor(log Log, interval time.Duration, logger *zap.Logger) *Auditor {
	if interval == 0 {
		interval = 10 * time.Minute
	}
	return &Auditor{log: log, interval: interval, logger: logger}
}

// SetMetricsRecord configures the metrics recording callback.
func (a *Auditor) SetMetricsRecord(fn MetricsRecordFunc) {
	a.onMetrics = fn
}

// Start runs the audit loop until ctx is cancelled.
func (a *Auditor) Start(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, a.interval)
			_ = a.Check(checkCtx)
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

// Check verifies the log once, logging and recording the outcome.
func (a *Auditor) Check(ctx context.Context) error {
	err := a.log.Verify(ctx)
	if a.onMetrics != nil {
		a.onMetrics(err == nil)
	}
	if err != nil {
		a.logger.Warn("commit log integrity check failed", zap.Error(err))
		return err
	}

	n, _ := a.log.Len(ctx)
	head, _ := a.log.Head(ctx)
	a.logger.Debug("commit log verified",
		zap.Int("entries", n),
		zap.String("head", head),
	)
	return nil
}
