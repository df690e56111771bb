package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/andybalholm/cascadia"

	"github.com/ibeckermayer/ticketfill/internal/types"
)

const appName = "ticketfill"

// Timeout policies applied when a submission is not confirmed in time
const (
	OnTimeoutSkip  = "skip"
	OnTimeoutPause = "pause"
)

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version"`
	Form     FormConfig     `toml:"form"`
	Reporter ReporterConfig `toml:"reporter"`
	Browser  BrowserConfig  `toml:"browser"`
	Run      RunConfig      `toml:"run"`
	Targets  TargetsConfig  `toml:"targets"`
	Schedule ScheduleConfig `toml:"schedule"`
	Email    EmailConfig    `toml:"email"`
}

type FormConfig struct {
	URL     string            `toml:"url"`
	Fields  []types.FormField `toml:"fields"`
	Success types.Marker      `toml:"success"`

	// Challenge selectors match verification widgets (CAPTCHAs). An empty
	// list disables the check.
	Challenge []string `toml:"challenge_selectors"`
}

// ReporterConfig holds the values submitted on every form. Field values
// reference them as {username}, {email} and {phone}.
type ReporterConfig struct {
	Username string `toml:"username"`
	Email    string `toml:"email"`
	Phone    string `toml:"phone"`
}

type BrowserConfig struct {
	Headless  bool   `toml:"headless"`
	UserAgent string `toml:"user_agent"`
}

type RunConfig struct {
	ConfirmTimeout  Duration `toml:"confirm_timeout"`
	ChallengeWait   Duration `toml:"challenge_wait"`
	PollInterval    Duration `toml:"poll_interval"`
	SettleDelay     Duration `toml:"settle_delay"`
	BetweenTargets  Duration `toml:"between_targets"`
	NavigateRetries int      `toml:"navigate_retries"`
	RetryDelay      Duration `toml:"retry_delay"`
	OnTimeout       string   `toml:"on_timeout"`
	DumpPages       bool     `toml:"dump_pages"`
	DumpDir         string   `toml:"dump_dir"`
	CookieFile      string   `toml:"cookie_file"`
	HistoryDB       string   `toml:"history_db"`
}

type TargetsConfig struct {
	File string `toml:"file"`
}

type ScheduleConfig struct {
	Cron     string `toml:"cron"`
	Timezone string `toml:"timezone"`
}

type EmailConfig struct {
	Provider string `toml:"provider"`
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	SMTPUser string `toml:"smtp_user"`
	SMTPPass string `toml:"smtp_pass"`
	FromAddr string `toml:"from_address"`
	ToAddr   string `toml:"to_address"`
}

// Enabled reports whether run reports should be mailed
func (e EmailConfig) Enabled() bool {
	return e.SMTPHost != "" && e.ToAddr != ""
}

// Duration is a time.Duration that encodes as a TOML string such as "90s"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Form: FormConfig{
			URL: "https://support.example.com/hc/en-us/requests/new",
			Fields: []types.FormField{
				{FieldDescriptor: types.FieldDescriptor{StableID: "request[custom_fields][username]", Label: "Username"}, Value: "{username}"},
				{FieldDescriptor: types.FieldDescriptor{StableID: "request[custom_fields][email]", Label: "Email"}, Value: "{email}"},
				{FieldDescriptor: types.FieldDescriptor{StableID: "request[custom_fields][phone]", Label: "Mobile Number"}, Value: "{phone}"},
				{FieldDescriptor: types.FieldDescriptor{StableID: "request[custom_fields][subject_username]", Label: "Affected Username"}, Value: types.TargetPlaceholder},
			},
			Success: types.Marker{
				Selector: "h1.success-page-title",
				Pattern:  "we got your request",
			},
			Challenge: []string{
				`iframe[src*="recaptcha"]`,
				`iframe[src*="captcha"]`,
				".g-recaptcha",
				"#recaptcha",
				`[class*="captcha"]`,
			},
		},
		Browser: BrowserConfig{
			Headless: false,
		},
		Run: RunConfig{
			ConfirmTimeout:  Duration{120 * time.Second},
			ChallengeWait:   Duration{5 * time.Minute},
			PollInterval:    Duration{500 * time.Millisecond},
			SettleDelay:     Duration{1200 * time.Millisecond},
			BetweenTargets:  Duration{time.Second},
			NavigateRetries: 3,
			RetryDelay:      Duration{2 * time.Second},
			OnTimeout:       OnTimeoutSkip,
			DumpPages:       false,
		},
		Schedule: ScheduleConfig{
			Cron:     "0 9 * * *",
			Timezone: "Local",
		},
		Email: EmailConfig{
			Provider: "smtp",
			SMTPPort: 587,
		},
	}
}

// Validate checks the settings the run depends on
func (c *Config) Validate() error {
	if c.Form.URL == "" {
		return fmt.Errorf("form.url is required")
	}
	if len(c.Form.Fields) == 0 {
		return fmt.Errorf("form.fields must list at least one field")
	}
	for i, f := range c.Form.Fields {
		if f.StableID == "" && f.Label == "" {
			return fmt.Errorf("form.fields[%d] needs a stable_id or a label", i)
		}
	}
	if c.Form.Success.Selector == "" {
		return fmt.Errorf("form.success.selector is required")
	}
	if _, err := cascadia.Compile(c.Form.Success.Selector); err != nil {
		return fmt.Errorf("form.success.selector: %w", err)
	}
	for i, sel := range c.Form.Challenge {
		if _, err := cascadia.Compile(sel); err != nil {
			return fmt.Errorf("form.challenge_selectors[%d]: %w", i, err)
		}
	}
	switch c.Run.OnTimeout {
	case OnTimeoutSkip, OnTimeoutPause:
	default:
		return fmt.Errorf("run.on_timeout must be %q or %q, got %q", OnTimeoutSkip, OnTimeoutPause, c.Run.OnTimeout)
	}
	if c.Run.NavigateRetries < 1 {
		return fmt.Errorf("run.navigate_retries must be at least 1")
	}
	return nil
}

// FieldValues returns the configured fields with reporter placeholders expanded
func (c *Config) FieldValues() []types.FormField {
	fields := make([]types.FormField, len(c.Form.Fields))
	for i, f := range c.Form.Fields {
		v := f.Value
		v = strings.ReplaceAll(v, "{username}", c.Reporter.Username)
		v = strings.ReplaceAll(v, "{email}", c.Reporter.Email)
		v = strings.ReplaceAll(v, "{phone}", c.Reporter.Phone)
		f.Value = v
		fields[i] = f
	}
	return fields
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, appName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// TargetsPath returns the target list path, defaulting to targets.txt in the config dir
func (c *Config) TargetsPath() (string, error) {
	if c.Targets.File != "" {
		return c.Targets.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "targets.txt"), nil
}

// CookiePath returns the cookie store path
func (c *Config) CookiePath() (string, error) {
	if c.Run.CookieFile != "" {
		return c.Run.CookieFile, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cookies.json"), nil
}

// DumpDir returns the directory page dumps are written to
func (c *Config) DumpDir() (string, error) {
	if c.Run.DumpDir != "" {
		return c.Run.DumpDir, nil
	}
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dumps"), nil
}

// HistoryPath returns the SQLite history database path
func (c *Config) HistoryPath() (string, error) {
	if c.Run.HistoryDB != "" {
		return c.Run.HistoryDB, nil
	}
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// Load reads config from disk
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads config from path, filling unset keys with defaults
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	defaults := cfg.Form.Fields
	cfg.Form.Fields = nil

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if !md.IsDefined("form", "fields") {
		cfg.Form.Fields = defaults
	}
	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes config to path
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
