package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"
)

// Browser is the part of a browser session the manager needs
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Cookies(ctx context.Context) ([]*network.Cookie, error)
	SetCookie(ctx context.Context, c *network.CookieParam) error
}

// Manager restores and captures the form site's session
type Manager struct {
	cookieStore *CookieStore
	formURL     string
	logger      *zap.Logger

	// lookupHost is swapped in tests
	lookupHost func(host string) ([]string, error)
}

// NewManager creates a new auth manager
func NewManager(cookieStore *CookieStore, formURL string, logger *zap.Logger) *Manager {
	return &Manager{
		cookieStore: cookieStore,
		formURL:     formURL,
		logger:      logger.Named("auth"),
		lookupHost:  net.LookupHost,
	}
}

// HasSession checks if a stored session is present
func (m *Manager) HasSession() bool {
	return m.cookieStore.Exists()
}

// Restore loads the stored session into the browser. It returns false when
// there is nothing to restore or the site cannot be reached; the run then
// proceeds without a cached session.
func (m *Manager) Restore(ctx context.Context, b Browser) bool {
	if !m.cookieStore.Exists() {
		// Load still runs so an empty file is moved aside.
		if _, err := m.cookieStore.Load(); err != nil && !errors.Is(err, ErrNoCookies) {
			m.logger.Warn("Discarded stored session.", zap.Error(err))
		}
		m.logger.Info("No stored session.")
		return false
	}

	// Cookies can only be set for the domain the tab is on.
	if err := b.Navigate(ctx, m.formURL); err != nil {
		m.logger.Warn("Could not reach the form to restore the session.",
			zap.String("url", m.formURL), zap.Error(err))
		m.dnsHint()
		return false
	}

	cookies, err := m.cookieStore.Load()
	if err != nil {
		if errors.Is(err, ErrCorruptCookies) {
			m.logger.Warn("Stored session was corrupt and has been moved aside.",
				zap.String("path", m.cookieStore.Path()), zap.Error(err))
		}
		return false
	}

	applied := 0
	for _, c := range cookies {
		if err := b.SetCookie(ctx, c.Param()); err != nil {
			m.logger.Debug("Skipped cookie.", zap.String("name", c.Name), zap.Error(err))
			continue
		}
		applied++
	}

	if err := b.Reload(ctx); err != nil {
		m.logger.Warn("Reload after restoring session failed.", zap.Error(err))
	}

	m.logger.Info("Restored stored session.",
		zap.Int("cookies", applied), zap.Int("stored", len(cookies)))
	return true
}

// Capture saves the browser's current cookies
func (m *Manager) Capture(ctx context.Context, b Browser) error {
	cookies, err := b.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("failed to read browser cookies: %w", err)
	}
	if err := m.cookieStore.Save(cookies); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	m.logger.Debug("Captured session.", zap.Int("cookies", len(cookies)))
	return nil
}

// Clear removes the stored session
func (m *Manager) Clear() error {
	return m.cookieStore.Clear()
}

// dnsHint logs whether the form host resolves, which separates "offline"
// from "site down" in the logs
func (m *Manager) dnsHint() {
	u, err := url.Parse(m.formURL)
	if err != nil || u.Hostname() == "" {
		return
	}
	addrs, err := m.lookupHost(u.Hostname())
	if err != nil {
		m.logger.Warn("Form host does not resolve; check the network connection.",
			zap.String("host", u.Hostname()), zap.Error(err))
		return
	}
	m.logger.Info("Form host resolves; the site itself may be down.",
		zap.String("host", u.Hostname()), zap.Strings("addrs", addrs))
}
