package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/ticketfill/internal/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadFileKeepsDefaultsForUnsetKeys(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
[run]
confirm_timeout = "90s"
on_timeout = "pause"
`))
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Run.ConfirmTimeout.Duration)
	assert.Equal(t, OnTimeoutPause, cfg.Run.OnTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Run.PollInterval.Duration)
	assert.Equal(t, Default().Form.Fields, cfg.Form.Fields)
	assert.Equal(t, "h1.success-page-title", cfg.Form.Success.Selector)
}

func TestLoadFileReplacesFields(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
[[form.fields]]
stable_id = "ticket[subject]"
label = "Subject"
value = "Restore {target}"
`))
	require.NoError(t, err)

	assert.Equal(t, []types.FormField{{
		FieldDescriptor: types.FieldDescriptor{StableID: "ticket[subject]", Label: "Subject"},
		Value:           "Restore {target}",
	}}, cfg.Form.Fields)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, os.IsNotExist(err))

	_, err = LoadFile(writeConfig(t, "[run]\nretry_delay = \"soon\"\n"))
	assert.ErrorContains(t, err, "invalid duration")
}

func TestSaveFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Reporter.Email = "me@example.com"
	cfg.Run.BetweenTargets = Duration{3 * time.Second}

	require.NoError(t, cfg.SaveFile(path))
	loaded, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no url", func(c *Config) { c.Form.URL = "" }},
		{"no fields", func(c *Config) { c.Form.Fields = nil }},
		{"empty descriptor", func(c *Config) { c.Form.Fields[0].FieldDescriptor = types.FieldDescriptor{} }},
		{"no marker", func(c *Config) { c.Form.Success.Selector = "" }},
		{"bad policy", func(c *Config) { c.Run.OnTimeout = "retry" }},
		{"no retries", func(c *Config) { c.Run.NavigateRetries = 0 }},
		{"bad marker selector", func(c *Config) { c.Form.Success.Selector = "h1[" }},
		{"bad challenge selector", func(c *Config) { c.Form.Challenge = append(c.Form.Challenge, "div[") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFieldValuesExpandsReporter(t *testing.T) {
	cfg := Default()
	cfg.Reporter = ReporterConfig{Username: "me", Email: "me@example.com", Phone: "555"}

	fields := cfg.FieldValues()

	require.Len(t, fields, 4)
	assert.Equal(t, "me", fields[0].Value)
	assert.Equal(t, "me@example.com", fields[1].Value)
	assert.Equal(t, "555", fields[2].Value)
	assert.Equal(t, "bob", fields[3].Resolve("bob"))
	assert.Equal(t, "{username}", cfg.Form.Fields[0].Value, "config is not modified")
}

func TestPathOverrides(t *testing.T) {
	cfg := Default()
	cfg.Targets.File = "/data/targets.txt"
	cfg.Run.CookieFile = "/data/cookies.json"
	cfg.Run.DumpDir = "/data/dumps"
	cfg.Run.HistoryDB = "/data/history.db"

	for want, get := range map[string]func() (string, error){
		"/data/targets.txt":  cfg.TargetsPath,
		"/data/cookies.json": cfg.CookiePath,
		"/data/dumps":        cfg.DumpDir,
		"/data/history.db":   cfg.HistoryPath,
	} {
		got, err := get()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestLoadFileChallengeSelectors(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
[form]
challenge_selectors = []

[run]
challenge_wait = "2m"
`))
	require.NoError(t, err)

	assert.Empty(t, cfg.Form.Challenge, "an empty list disables the check")
	assert.Equal(t, 2*time.Minute, cfg.Run.ChallengeWait.Duration)
	assert.Contains(t, Default().Form.Challenge, ".g-recaptcha")
	assert.NoError(t, cfg.Validate())
}
