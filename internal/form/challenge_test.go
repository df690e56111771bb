package form_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ibeckermayer/ticketfill/internal/form"
)

var challengeSelectors = []string{`iframe[src*="recaptcha"]`, ".g-recaptcha", `[class*="captcha"]`}

func TestDetectChallenge(t *testing.T) {
	w := form.NewChallengeWatcher(zap.NewNop(), challengeSelectors, 5*time.Millisecond)

	tests := []struct {
		name string
		html string
		want string
	}{
		{"recaptcha frame", `<iframe src="https://www.google.com/recaptcha/api2/anchor"></iframe>`, `iframe[src*="recaptcha"]`},
		{"widget div", `<div class="g-recaptcha" data-sitekey="x"></div>`, ".g-recaptcha"},
		{"generic class", `<div class="h-captcha-box"></div>`, `[class*="captcha"]`},
		{"inside srcdoc frame", `<iframe srcdoc="&lt;div class=&quot;g-recaptcha&quot;&gt;&lt;/div&gt;"></iframe>`, ".g-recaptcha"},
		{"hidden widget", `<div class="g-recaptcha" style="display:none"></div>`, ""},
		{"plain form", `<form><input name="email"></form>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, found := w.Detect(context.Background(), parse(t, "<body>"+tt.html+"</body>"))
			assert.Equal(t, tt.want != "", found)
			assert.Equal(t, tt.want, sel)
		})
	}
}

func TestDetectChallengeDisabled(t *testing.T) {
	w := form.NewChallengeWatcher(zap.NewNop(), nil, 0)
	_, found := w.Detect(context.Background(), parse(t, `<body><div class="g-recaptcha"></div></body>`))
	assert.False(t, found)
}

func TestAwaitClearedTimesOut(t *testing.T) {
	w := form.NewChallengeWatcher(zap.NewNop(), challengeSelectors, 5*time.Millisecond)
	doc := parse(t, `<body><div class="g-recaptcha"></div></body>`)

	start := time.Now()
	assert.False(t, w.AwaitCleared(context.Background(), doc, 30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestAwaitClearedWhenAlreadyClear(t *testing.T) {
	w := form.NewChallengeWatcher(zap.NewNop(), challengeSelectors, 5*time.Millisecond)
	assert.True(t, w.AwaitCleared(context.Background(), parse(t, `<body><p>ok</p></body>`), time.Second))
}
