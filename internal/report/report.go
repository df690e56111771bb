// Package report renders the summary of a batch run.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/ibeckermayer/ticketfill/internal/types"
)

// Builder creates run reports from batch results
type Builder struct {
	template *template.Template
	now      func() time.Time
}

// New creates a new report builder
func New() (*Builder, error) {
	tmpl, err := template.New("report").Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &Builder{
		template: tmpl,
		now:      time.Now,
	}, nil
}

// Report represents a compiled report ready for sending
type Report struct {
	Subject   string
	HTMLBody  string
	PlainBody string
	Confirmed int
	Attention int
	CreatedAt time.Time
}

// ReportData is the template data structure
type ReportData struct {
	Title   string
	Date    string
	Targets []TargetData
	Stats   StatsData
}

// TargetData represents one target in the report template
type TargetData struct {
	Identifier string
	Outcome    string
	Attention  bool
	Filled     int
	Missing    []string
	Uncertain  []string
	Error      string
	Duration   string
}

// StatsData contains run statistics
type StatsData struct {
	Total     int
	Confirmed int
	TimedOut  int
	Failed    int
}

// Build creates a report from batch results. Targets needing manual
// attention are listed first; order is otherwise kept.
func (b *Builder) Build(results []types.Result) (*Report, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no results to report")
	}

	sorted := append([]types.Result(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].NeedsAttention() && !sorted[j].NeedsAttention()
	})

	now := b.now()
	data := ReportData{
		Title:   "Ticket submission report",
		Date:    now.Format("Monday, January 2 15:04"),
		Targets: make([]TargetData, len(sorted)),
		Stats:   StatsData{Total: len(sorted)},
	}

	for i, r := range sorted {
		data.Targets[i] = TargetData{
			Identifier: r.Target.Identifier,
			Outcome:    outcomeLabel(r.Outcome),
			Attention:  r.NeedsAttention(),
			Filled:     len(r.Filled),
			Missing:    r.Missing,
			Uncertain:  r.Uncertain,
			Error:      truncate(r.Error, 200),
			Duration:   r.Duration.Round(time.Second).String(),
		}
		switch r.Outcome {
		case types.Confirmed:
			data.Stats.Confirmed++
		case types.TimedOut:
			data.Stats.TimedOut++
		default:
			data.Stats.Failed++
		}
	}

	// Render HTML
	var htmlBuf bytes.Buffer
	if err := b.template.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	attention := data.Stats.TimedOut + data.Stats.Failed
	return &Report{
		Subject:   subject(data.Stats, now),
		HTMLBody:  htmlBuf.String(),
		PlainBody: buildPlainText(data),
		Confirmed: data.Stats.Confirmed,
		Attention: attention,
		CreatedAt: now,
	}, nil
}

func subject(s StatsData, now time.Time) string {
	if s.Confirmed == s.Total {
		return fmt.Sprintf("ticketfill: %d/%d confirmed, %s", s.Confirmed, s.Total, now.Format("Jan 2"))
	}
	return fmt.Sprintf("ticketfill: %d/%d need attention, %s", s.Total-s.Confirmed, s.Total, now.Format("Jan 2"))
}

func outcomeLabel(o types.SubmissionOutcome) string {
	switch o {
	case types.Confirmed:
		return "confirmed"
	case types.TimedOut:
		return "timed out"
	default:
		return "failed"
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func buildPlainText(data ReportData) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n%s\n\n", data.Title, data.Date)
	fmt.Fprintf(&buf, "%d confirmed, %d timed out, %d failed (%d total)\n\n",
		data.Stats.Confirmed, data.Stats.TimedOut, data.Stats.Failed, data.Stats.Total)

	for i, t := range data.Targets {
		mark := " "
		if t.Attention {
			mark = "!"
		}
		fmt.Fprintf(&buf, "%s %d. %s: %s (%d filled, %s)\n", mark, i+1, t.Identifier, t.Outcome, t.Filled, t.Duration)
		if len(t.Missing) > 0 {
			fmt.Fprintf(&buf, "     missing: %s\n", strings.Join(t.Missing, ", "))
		}
		if len(t.Uncertain) > 0 {
			fmt.Fprintf(&buf, "     uncertain: %s\n", strings.Join(t.Uncertain, ", "))
		}
		if t.Error != "" {
			fmt.Fprintf(&buf, "     error: %s\n", t.Error)
		}
	}

	return buf.String()
}

const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .container { background: white; border-radius: 8px; padding: 20px; }
        h1 { color: #333; margin-bottom: 5px; }
        .date { color: #666; margin-bottom: 20px; }
        .stats { margin-bottom: 15px; }
        .target { border-bottom: 1px solid #eee; padding: 12px 0; }
        .target:last-child { border-bottom: none; }
        .name { font-weight: bold; color: #333; }
        .outcome { padding: 2px 8px; border-radius: 12px; font-size: 12px; margin-left: 6px; background: #e6f4ea; color: #1e7e34; }
        .attention .outcome { background: #fdecea; color: #b00020; }
        .detail { color: #666; font-size: 13px; margin-top: 4px; }
        .footer { margin-top: 20px; padding-top: 15px; border-top: 1px solid #eee; color: #999; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <div class="date">{{.Date}}</div>
        <div class="stats">{{.Stats.Confirmed}} confirmed · {{.Stats.TimedOut}} timed out · {{.Stats.Failed}} failed</div>

        {{range .Targets}}
        <div class="target{{if .Attention}} attention{{end}}">
            <span class="name">{{.Identifier}}</span><span class="outcome">{{.Outcome}}</span>
            <div class="detail">{{.Filled}} fields filled in {{.Duration}}</div>
            {{if .Missing}}<div class="detail">Missing: {{range $i, $m := .Missing}}{{if $i}}, {{end}}{{$m}}{{end}}</div>{{end}}
            {{if .Uncertain}}<div class="detail">Uncertain: {{range $i, $m := .Uncertain}}{{if $i}}, {{end}}{{$m}}{{end}}</div>{{end}}
            {{if .Error}}<div class="detail">{{.Error}}</div>{{end}}
        </div>
        {{end}}

        <div class="footer">
            {{.Stats.Total}} targets · Generated by ticketfill
        </div>
    </div>
</body>
</html>`
