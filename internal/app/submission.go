package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/ticketfill/internal/auth"
	"github.com/ibeckermayer/ticketfill/internal/config"
	"github.com/ibeckermayer/ticketfill/internal/form"
	"github.com/ibeckermayer/ticketfill/internal/store"
	"github.com/ibeckermayer/ticketfill/internal/types"
)

// errChallenge is recorded when a verification challenge blocked the attempt
const errChallenge = "verification challenge not cleared"

// processTarget runs one full attempt for t: navigate, fill, submit, confirm
func (a *App) processTarget(ctx context.Context, cfg *config.Config, mgr *auth.Manager, sess Session, idx int, t types.Target) (res types.Result) {
	log := a.logger.With(zap.String("target", t.Identifier), zap.Int("idx", idx))
	res = types.Result{Target: t, StartedAt: time.Now()}

	id := a.begin(log, t, res.StartedAt)
	defer func() {
		res.Duration = time.Since(res.StartedAt)
		a.complete(log, id, res)
	}()

	log.Info("Processing target.")
	if err := sess.Navigate(ctx, cfg.Form.URL); err != nil {
		log.Error("Could not open the form.", zap.Error(err))
		res.Outcome = types.Failed
		res.Error = err.Error()
		return res
	}
	sleep(ctx, cfg.Run.SettleDelay.Duration)

	if cfg.Run.DumpPages {
		a.dumpPage(ctx, log, cfg, sess, idx, t)
	}

	page := sess.Page()
	watcher := form.NewChallengeWatcher(a.logger, cfg.Form.Challenge, cfg.Run.PollInterval.Duration)
	if !a.clearChallenge(ctx, log, cfg, page, watcher, t, "before filling", &res) {
		return res
	}

	a.fillFields(ctx, log, cfg, page, t, &res)

	if !a.clearChallenge(ctx, log, cfg, page, watcher, t, "before submitting", &res) {
		return res
	}

	confirmer := form.NewConfirmer(a.logger, cfg.Form.Success, cfg.Run.PollInterval.Duration)
	timeout := cfg.Run.ConfirmTimeout.Duration

	if submitDoc, h, ok := findSubmit(ctx, page); ok {
		if err := submitDoc.Click(ctx, h); err != nil {
			// A click that navigates can report an error after it took effect.
			log.Warn("Submit click reported an error.", zap.Error(err))
		}
		res.Submitted = true
		res.Outcome = confirmer.Await(ctx, sess.Page(), timeout)
	} else {
		form.LogInputs(ctx, log, page, "Submit control not found.")
		res.Outcome = types.TimedOut
		res.Error = "submit control not found"
	}

	if res.Outcome == types.TimedOut {
		res.Outcome = a.onTimeout(ctx, log, cfg, sess, confirmer, t)
		if res.Outcome == types.Confirmed {
			res.Error = ""
		}
	}

	switch res.Outcome {
	case types.Confirmed:
		log.Info("Submission confirmed.")
		if mgr != nil {
			if err := mgr.Capture(ctx, sess); err != nil {
				log.Warn("Could not store session cookies.", zap.Error(err))
			}
		}
	default:
		log.Warn("Submission not confirmed; needs manual attention.",
			zap.Duration("timeout", timeout))
	}
	return res
}

// fillFields locates and injects every configured field. Lookup failures
// are logged once with the page's inputs and do not stop the attempt.
func (a *App) fillFields(ctx context.Context, log *zap.Logger, cfg *config.Config, page form.Page, t types.Target, res *types.Result) {
	locator := form.NewLocator(a.logger)
	injector := form.NewInjector(a.logger)
	described := false

	for _, f := range cfg.FieldValues() {
		name := f.Name()
		field, ok := locator.Locate(ctx, page, f.FieldDescriptor)
		if !ok {
			log.Warn("Field not found.", zap.String("field", name), zap.String("label", f.Label))
			res.Missing = append(res.Missing, name)
			if !described {
				form.LogInputs(ctx, log, page, "Inputs on page.")
				described = true
			}
			continue
		}

		switch injector.Inject(ctx, field, f.Resolve(t.Identifier)) {
		case types.Applied:
			res.Filled = append(res.Filled, name)
			log.Debug("Field filled.", zap.String("field", name), zap.String("strategy", field.Strategy), zap.Int("frame", field.Frame))
		case types.Uncertain:
			res.Uncertain = append(res.Uncertain, name)
			log.Warn("Field value may not have registered.", zap.String("field", name))
		}
	}
}

// findSubmit looks for the submit control in the main document, then in
// each frame
func findSubmit(ctx context.Context, page form.Page) (form.Document, form.Handle, bool) {
	if h, ok := form.FindSubmit(ctx, page); ok {
		return page, h, true
	}
	frames, err := page.Frames(ctx)
	if err != nil {
		return nil, "", false
	}
	for _, doc := range frames {
		if h, ok := form.FindSubmit(ctx, doc); ok {
			return doc, h, true
		}
	}
	return nil, "", false
}

// clearChallenge reports whether the page is free of verification
// challenges. A visible one is never solved here: under the pause policy the
// operator is asked to solve it in the browser and the page is watched until
// it clears. Otherwise the attempt ends as TimedOut.
func (a *App) clearChallenge(ctx context.Context, log *zap.Logger, cfg *config.Config, page form.Page, w *form.ChallengeWatcher, t types.Target, stage string, res *types.Result) bool {
	sel, found := w.Detect(ctx, page)
	if !found {
		return true
	}
	res.Challenged = true
	log.Warn("Verification challenge on page.", zap.String("stage", stage), zap.String("selector", sel))

	if a.canPause(log, cfg) {
		resume, err := a.prompter.Confirm(ctx,
			fmt.Sprintf("A verification challenge is showing for %s. Solve it in the browser window, then continue?", t.Identifier), true)
		if err == nil && resume && w.AwaitCleared(ctx, page, cfg.Run.ChallengeWait.Duration) {
			log.Info("Challenge cleared.", zap.String("stage", stage))
			return true
		}
	}

	log.Warn("Challenge not cleared; needs manual attention.", zap.String("stage", stage))
	res.Outcome = types.TimedOut
	res.Error = errChallenge
	return false
}

// canPause reports whether an operator can step in: the pause policy is set,
// the browser is visible and a terminal is attached
func (a *App) canPause(log *zap.Logger, cfg *config.Config) bool {
	if cfg.Run.OnTimeout != config.OnTimeoutPause {
		return false
	}
	if cfg.Browser.Headless || a.prompter == nil {
		log.Warn("Pause policy needs a visible browser and a terminal; skipping.")
		return false
	}
	return true
}

// onTimeout applies the configured timeout policy
func (a *App) onTimeout(ctx context.Context, log *zap.Logger, cfg *config.Config, sess Session, confirmer *form.Confirmer, t types.Target) types.SubmissionOutcome {
	if !a.canPause(log, cfg) {
		return types.TimedOut
	}

	resume, err := a.prompter.Confirm(ctx,
		fmt.Sprintf("Submission for %s was not confirmed. Resolve it in the browser window, then continue?", t.Identifier), true)
	if err != nil || !resume {
		return types.TimedOut
	}
	return confirmer.Await(ctx, sess.Page(), cfg.Run.ConfirmTimeout.Duration)
}

func (a *App) dumpPage(ctx context.Context, log *zap.Logger, cfg *config.Config, sess Session, idx int, t types.Target) {
	dir, err := cfg.DumpDir()
	if err != nil {
		log.Warn("No dump directory.", zap.Error(err))
		return
	}
	html, err := sess.HTML(ctx)
	if err != nil {
		log.Warn("Could not read page for dump.", zap.Error(err))
		return
	}
	path, err := store.SavePageDump(dir, idx, t.Identifier, html)
	if err != nil {
		log.Warn("Could not write page dump.", zap.Error(err))
		return
	}
	log.Debug("Page dumped.", zap.String("path", path))
}

func (a *App) begin(log *zap.Logger, t types.Target, at time.Time) string {
	if a.recorder == nil {
		return ""
	}
	id, err := a.recorder.BeginSubmission(t.Identifier, at)
	if err != nil {
		log.Warn("Could not record submission start.", zap.Error(err))
		return ""
	}
	return id
}

func (a *App) complete(log *zap.Logger, id string, res types.Result) {
	if a.recorder == nil || id == "" {
		return
	}
	if err := a.recorder.CompleteSubmission(id, res); err != nil {
		log.Warn("Could not record submission outcome.", zap.Error(err))
	}
}
