package form

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ChallengeWatcher spots verification widgets (CAPTCHAs) on the form page.
// It never interacts with them.
type ChallengeWatcher struct {
	selectors []string
	interval  time.Duration
	logger    *zap.Logger
}

// NewChallengeWatcher creates a watcher for selectors, polling every interval
func NewChallengeWatcher(logger *zap.Logger, selectors []string, interval time.Duration) *ChallengeWatcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &ChallengeWatcher{
		selectors: selectors,
		interval:  interval,
		logger:    logger.Named("challenge"),
	}
}

// Detect returns the selector of a visible challenge in the page or one of
// its frames. Documents that cannot be queried count as clear.
func (w *ChallengeWatcher) Detect(ctx context.Context, page Page) (string, bool) {
	if len(w.selectors) == 0 {
		return "", false
	}
	docs := []Document{page}
	if frames, err := page.Frames(ctx); err == nil {
		docs = append(docs, frames...)
	}
	for _, doc := range docs {
		sel, ok, err := doc.FirstVisible(ctx, w.selectors)
		if err != nil {
			w.logger.Debug("Challenge check failed (treated as clear).", zap.Error(err))
			continue
		}
		if ok {
			return sel, true
		}
	}
	return "", false
}

// AwaitCleared polls page until no challenge is visible or timeout elapses
func (w *ChallengeWatcher) AwaitCleared(ctx context.Context, page Page, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, found := w.Detect(ctx, page); !found && ctx.Err() == nil {
			return true
		}
		select {
		case <-ctx.Done():
			w.logger.Info("Challenge still showing.", zap.Duration("waited", timeout))
			return false
		case <-ticker.C:
		}
	}
}
