// Package app runs submission batches: one browser session, one target at a
// time, every attempt recorded.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/ticketfill/internal/auth"
	"github.com/ibeckermayer/ticketfill/internal/config"
	"github.com/ibeckermayer/ticketfill/internal/form"
	"github.com/ibeckermayer/ticketfill/internal/report"
	"github.com/ibeckermayer/ticketfill/internal/targets"
	"github.com/ibeckermayer/ticketfill/internal/types"
)

// Session is the browser session a batch drives
type Session interface {
	auth.Browser
	Page() form.Page
	HTML(ctx context.Context) (string, error)
	Close()
}

// Opener starts a browser session
type Opener func(ctx context.Context, cfg *config.Config) (Session, error)

// Recorder stores submission history
type Recorder interface {
	BeginSubmission(target string, startedAt time.Time) (string, error)
	CompleteSubmission(id string, r types.Result) error
}

// Notifier delivers run reports
type Notifier interface {
	SendReport(r *report.Report) error
}

// App holds the application state.
type App struct {
	mu sync.RWMutex

	// Immutable after creation.
	open     Opener
	recorder Recorder
	notifier Notifier
	prompter targets.Prompter
	logger   *zap.Logger
	root     *zap.Logger

	// Replaced by ReloadConfig; use getSnapshot() or snapshot() for
	// concurrent access.
	config *config.Config
	auth   *auth.Manager
}

// Options carries the optional collaborators of an App
type Options struct {
	Auth     *auth.Manager
	Recorder Recorder
	Notifier Notifier
	Prompter targets.Prompter
}

// New creates a new App instance.
func New(cfg *config.Config, open Opener, logger *zap.Logger, opts Options) *App {
	return &App{
		config:   cfg,
		open:     open,
		auth:     opts.Auth,
		recorder: opts.Recorder,
		notifier: opts.Notifier,
		prompter: opts.Prompter,
		logger:   logger.Named("app"),
		root:     logger,
	}
}

// NewAuthManager builds the session cookie manager for cfg
func NewAuthManager(cfg *config.Config, logger *zap.Logger) (*auth.Manager, error) {
	path, err := cfg.CookiePath()
	if err != nil {
		return nil, err
	}
	return auth.NewManager(auth.NewCookieStore(path), cfg.Form.URL, logger), nil
}

// getSnapshot returns the current config under read lock.
func (a *App) getSnapshot() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

// snapshot returns the current config and the auth manager built for it
func (a *App) snapshot() (*config.Config, *auth.Manager) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config, a.auth
}

// ReloadConfig reloads the configuration from path, or from the default
// location when path is empty.
func (a *App) ReloadConfig(path string) error {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The form URL and cookie path may have changed.
	_, mgr := a.snapshot()
	if mgr != nil {
		if mgr, err = NewAuthManager(cfg, a.root); err != nil {
			return err
		}
	}

	a.mu.Lock()
	a.config = cfg
	a.auth = mgr
	a.mu.Unlock()

	a.logger.Info("Configuration reloaded.")
	return nil
}

// LoadTargets reads the configured target list
func (a *App) LoadTargets() ([]types.Target, error) {
	path, err := a.getSnapshot().TargetsPath()
	if err != nil {
		return nil, err
	}
	return targets.Load(path)
}

// Run opens a browser, restores the stored session and processes ts in
// order. A report is mailed when a notifier is configured.
func (a *App) Run(ctx context.Context, ts []types.Target) ([]types.Result, error) {
	if len(ts) == 0 {
		return nil, errors.New("no targets selected")
	}
	cfg, mgr := a.snapshot()

	sess, err := a.open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	if mgr != nil {
		mgr.Restore(ctx, sess)
	}

	results := a.RunBatch(ctx, sess, ts)
	a.logSummary(results)

	if a.notifier != nil {
		if err := a.sendReport(results); err != nil {
			a.logger.Warn("Could not send run report.", zap.Error(err))
		}
	}
	return results, nil
}

// RunBatch processes ts sequentially on sess and returns one result per
// processed target in the same order. Cancelling ctx stops after the
// current target.
func (a *App) RunBatch(ctx context.Context, sess Session, ts []types.Target) []types.Result {
	cfg, mgr := a.snapshot()
	results := make([]types.Result, 0, len(ts))

	for i, t := range ts {
		if ctx.Err() != nil {
			a.logger.Warn("Batch cancelled.", zap.Int("remaining", len(ts)-i))
			break
		}

		res := a.processTarget(ctx, cfg, mgr, sess, i+1, t)
		results = append(results, res)

		if i < len(ts)-1 {
			sleep(ctx, cfg.Run.BetweenTargets.Duration)
		}
	}
	return results
}

func (a *App) logSummary(results []types.Result) {
	confirmed := 0
	var attention []string
	for _, r := range results {
		if r.NeedsAttention() {
			attention = append(attention, r.Target.Identifier)
		} else {
			confirmed++
		}
	}
	a.logger.Info("Batch finished.",
		zap.Int("confirmed", confirmed),
		zap.Int("total", len(results)),
		zap.Strings("needs_attention", attention))
}

func (a *App) sendReport(results []types.Result) error {
	b, err := report.New()
	if err != nil {
		return err
	}
	r, err := b.Build(results)
	if err != nil {
		return err
	}
	return a.notifier.SendReport(r)
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
