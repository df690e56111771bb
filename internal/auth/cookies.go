// Package auth persists the browser session between runs so the form is
// reached as an already-known visitor.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
)

var (
	// ErrNoCookies means there is no usable session on disk
	ErrNoCookies = errors.New("no stored session cookies")
	// ErrCorruptCookies means the cookie file could not be decoded and was moved aside
	ErrCorruptCookies = errors.New("stored session cookies are corrupt")
)

// SessionCookie is the subset of a browser cookie that is persisted.
// Any other field found in the file is dropped on load.
type SessionCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Path     string  `json:"path,omitempty"`
	Domain   string  `json:"domain,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Expires  float64 `json:"expiry,omitempty"`
}

// Param converts the cookie into a SetCookie request
func (c SessionCookie) Param() *network.CookieParam {
	p := &network.CookieParam{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   c.Domain,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
	}
	// Session cookies report -1 or 0; only real timestamps become an expiry
	if c.Expires > 0 {
		exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
		p.Expires = &exp
	}
	return p
}

func fromNetwork(c *network.Cookie) SessionCookie {
	return SessionCookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   c.Domain,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
		Expires:  c.Expires,
	}
}

// storedCookies is the on-disk document
type storedCookies struct {
	Cookies    []SessionCookie `json:"cookies"`
	CapturedAt time.Time       `json:"captured_at"`
}

// CookieStore handles storage of the form site's session cookies
type CookieStore struct {
	path string
}

// NewCookieStore creates a cookie store at the given path
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path}
}

// Path returns the cookie file location
func (cs *CookieStore) Path() string {
	return cs.path
}

// Save persists cookies to disk. The file is replaced atomically.
func (cs *CookieStore) Save(cookies []*network.Cookie) error {
	dir := filepath.Dir(cs.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create cookie dir: %w", err)
	}

	stored := storedCookies{
		Cookies:    make([]SessionCookie, 0, len(cookies)),
		CapturedAt: time.Now(),
	}
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		stored.Cookies = append(stored.Cookies, fromNetwork(c))
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(cs.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cookie file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cookies: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, cs.path); err != nil {
		return fmt.Errorf("failed to replace cookie file: %w", err)
	}
	return nil
}

// Load reads the stored cookies. Empty and corrupt files are renamed aside
// (".empty.bak" and ".bad.bak") so the next run starts clean.
func (cs *CookieStore) Load() ([]SessionCookie, error) {
	data, err := os.ReadFile(cs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCookies
	}
	if err != nil {
		cs.moveAside(".bad.bak")
		return nil, fmt.Errorf("%w: %v", ErrCorruptCookies, err)
	}

	if len(data) == 0 {
		cs.moveAside(".empty.bak")
		return nil, ErrNoCookies
	}

	var stored storedCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		cs.moveAside(".bad.bak")
		return nil, fmt.Errorf("%w: %v", ErrCorruptCookies, err)
	}

	var out []SessionCookie
	for _, c := range stored.Cookies {
		if c.Name != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoCookies
	}
	return out, nil
}

// Exists reports whether a non-empty cookie file is present
func (cs *CookieStore) Exists() bool {
	info, err := os.Stat(cs.path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// Clear removes stored cookies
func (cs *CookieStore) Clear() error {
	if err := os.Remove(cs.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (cs *CookieStore) moveAside(suffix string) {
	_ = os.Rename(cs.path, cs.path+suffix)
}
