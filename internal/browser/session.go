package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ibeckermayer/ticketfill/internal/form"
)

// Config controls how a Session is launched and how hard it retries
type Config struct {
	Headless        bool
	UserAgent       string
	NavigateRetries int
	RetryDelay      time.Duration
}

// Session owns one browser process and a single tab. Callers must Close it.
type Session struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc

	retries    int
	retryDelay time.Duration
	nonce      string
	logger     *zap.Logger
}

// Open launches the browser and its tab
func Open(ctx context.Context, logger *zap.Logger, cfg Config) (*Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, Options(cfg.Headless, cfg.UserAgent)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser so launch failures surface here.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	retries := cfg.NavigateRetries
	if retries < 1 {
		retries = 1
	}

	return &Session{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		retries:     retries,
		retryDelay:  cfg.RetryDelay,
		nonce:       uuid.NewString()[:8],
		logger:      logger.Named("browser"),
	}, nil
}

// Close shuts down the tab and the browser process
func (s *Session) Close() {
	s.cancelTab()
	s.cancelAlloc()
}

// run executes actions on the tab, bounded by ctx's deadline and cancellation
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url, retrying with linearly increasing backoff
func (s *Session) Navigate(ctx context.Context, url string) error {
	return retry(ctx, s.retries, s.retryDelay, func() error {
		return s.run(ctx, chromedp.Navigate(url))
	}, func(attempt int, err error) {
		s.logger.Warn("Navigation failed.",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("of", s.retries),
			zap.Error(err))
	})
}

// Reload reloads the current page
func (s *Session) Reload(ctx context.Context) error {
	return retry(ctx, s.retries, s.retryDelay, func() error {
		return s.run(ctx, chromedp.Reload())
	}, func(attempt int, err error) {
		s.logger.Warn("Reload failed.", zap.Int("attempt", attempt), zap.Error(err))
	})
}

// HTML returns the outer HTML of the main document
func (s *Session) HTML(ctx context.Context) (string, error) {
	var out string
	if err := s.run(ctx, chromedp.OuterHTML("html", &out, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page html: %w", err)
	}
	return out, nil
}

// Cookies returns every cookie held by the browser
func (s *Session) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	return cookies, err
}

// SetCookie installs one cookie in the browser
func (s *Session) SetCookie(ctx context.Context, c *network.CookieParam) error {
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		p := network.SetCookie(c.Name, c.Value).
			WithDomain(c.Domain).
			WithPath(c.Path).
			WithSecure(c.Secure).
			WithHTTPOnly(c.HTTPOnly)
		if c.Expires != nil {
			p = p.WithExpires(c.Expires)
		}
		return p.Do(ctx)
	}))
}

// Page returns the live tab as a form.Page
func (s *Session) Page() form.Page {
	return &tabPage{tabDocument: &tabDocument{s: s, frame: -1}}
}

// retry runs op up to attempts times, sleeping attempt*delay between tries
func retry(ctx context.Context, attempts int, delay time.Duration, op func() error, onErr func(attempt int, err error)) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = op(); lastErr == nil {
			return nil
		}
		if onErr != nil {
			onErr(attempt, lastErr)
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * delay):
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, lastErr)
}
