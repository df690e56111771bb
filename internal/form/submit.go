package form

import (
	"context"
	"strings"
)

// submitRule matches a candidate submit control
type submitRule struct {
	name  string
	match func(el Element) bool
}

var submitWords = []string{"submit", "send", "request"}

// submitRules are tried in order; each yields its first visible match
var submitRules = []submitRule{
	{"input[type=submit]", func(el Element) bool {
		return el.Tag == "input" && strings.EqualFold(el.Type, "submit")
	}},
	{"button[type=submit]", func(el Element) bool {
		return el.Tag == "button" && strings.EqualFold(el.Type, "submit")
	}},
	{"button[class*=submit]", func(el Element) bool {
		return el.Tag == "button" && strings.Contains(strings.ToLower(el.Class), "submit")
	}},
	{"button[data-testid=submit]", func(el Element) bool {
		return el.Tag == "button" && el.TestID == "submit"
	}},
	{"button text", func(el Element) bool {
		if el.Tag != "button" {
			return false
		}
		text := strings.ToLower(strings.TrimSpace(el.Text))
		for _, w := range submitWords {
			if strings.Contains(text, w) {
				return true
			}
		}
		return false
	}},
}

// FindSubmit returns the submit control of doc
func FindSubmit(ctx context.Context, doc Document) (Handle, bool) {
	controls, err := doc.Controls(ctx)
	if err != nil {
		return "", false
	}
	for _, rule := range submitRules {
		for _, el := range controls {
			if el.Visible && rule.match(el) {
				return el.Handle, true
			}
		}
	}
	return "", false
}
