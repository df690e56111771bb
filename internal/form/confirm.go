package form

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/ticketfill/internal/types"
)

// DefaultPollInterval is how often the Confirmer checks for the marker
const DefaultPollInterval = 500 * time.Millisecond

// Confirmer waits for the success marker after a submission
type Confirmer struct {
	marker   types.Marker
	interval time.Duration
	logger   *zap.Logger
}

// NewConfirmer creates a confirmer polling for marker every interval
func NewConfirmer(logger *zap.Logger, marker types.Marker, interval time.Duration) *Confirmer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Confirmer{
		marker:   marker,
		interval: interval,
		logger:   logger.Named("confirmer"),
	}
}

// Await polls doc until the marker is visible or timeout elapses. A timeout
// is not an error: the page may be waiting on a challenge.
func (c *Confirmer) Await(ctx context.Context, doc Document, timeout time.Duration) types.SubmissionOutcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		visible, err := doc.MarkerVisible(ctx, c.marker)
		if err != nil {
			c.logger.Debug("Marker check failed (treated as not yet).", zap.Error(err))
		} else if visible {
			c.logger.Info("Submission confirmed.", zap.Duration("after", time.Since(start)))
			return types.Confirmed
		}

		select {
		case <-ctx.Done():
			c.logger.Info("Confirmation timed out.", zap.Duration("timeout", timeout))
			return types.TimedOut
		case <-ticker.C:
		}
	}
}
