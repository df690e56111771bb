package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/ticketfill/internal/form"
	"github.com/ibeckermayer/ticketfill/internal/types"
)

// keystrokeTimeout bounds Clear and Type, which wait for the element to be
// visible and would otherwise block until the caller's deadline
const keystrokeTimeout = 5 * time.Second

// scriptArgs is passed to every script as `args`
type scriptArgs struct {
	Nonce    string `json:"nonce"`
	Value    string `json:"value,omitempty"`
	Handle   string `json:"handle,omitempty"`
	Selector string `json:"selector,omitempty"`
	Pattern  string `json:"pattern,omitempty"`

	Selectors []string `json:"selectors,omitempty"`
}

// tabDocument is the main document of the tab (frame -1) or one of its
// top-level iframes
type tabDocument struct {
	s     *Session
	frame int
	node  *cdp.Node
}

func (d *tabDocument) rootExpr() string {
	if d.frame < 0 {
		return "document"
	}
	return fmt.Sprintf(`(() => {
		const f = document.querySelectorAll('iframe')[%d];
		try { return f ? f.contentDocument : null; } catch (e) { return null; }
	})()`, d.frame)
}

func (d *tabDocument) eval(ctx context.Context, body string, args scriptArgs, out any) error {
	args.Nonce = d.s.nonce
	argJSON, err := json.Marshal(args)
	if err != nil {
		return err
	}
	expr := fmt.Sprintf("((root, args) => {%s\n%s})(%s, %s)", scriptPrelude, body, d.rootExpr(), argJSON)
	return d.s.run(ctx, chromedp.Evaluate(expr, out))
}

func (d *tabDocument) selector(h form.Handle) string {
	return fmt.Sprintf(`[data-tf-mark="%s"]`, h)
}

func (d *tabDocument) queryOpts() []chromedp.QueryOption {
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if d.node != nil {
		opts = append(opts, chromedp.FromNode(d.node))
	}
	return opts
}

func (d *tabDocument) FindByStableID(ctx context.Context, stableID string) (form.Handle, bool, error) {
	var h string
	if err := d.eval(ctx, findByStableIDScript, scriptArgs{Value: stableID}, &h); err != nil {
		return "", false, err
	}
	return form.Handle(h), h != "", nil
}

func (d *tabDocument) Interactive(ctx context.Context) ([]form.Element, error) {
	var out []form.Element
	if err := d.eval(ctx, interactiveScript, scriptArgs{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *tabDocument) FollowingLabel(ctx context.Context, label string) (form.Handle, bool, error) {
	var h string
	if err := d.eval(ctx, followingLabelScript, scriptArgs{Value: label}, &h); err != nil {
		return "", false, err
	}
	return form.Handle(h), h != "", nil
}

func (d *tabDocument) Controls(ctx context.Context) ([]form.Element, error) {
	var out []form.Element
	if err := d.eval(ctx, controlsScript, scriptArgs{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *tabDocument) Clear(ctx context.Context, h form.Handle) error {
	ctx, cancel := context.WithTimeout(ctx, keystrokeTimeout)
	defer cancel()
	return d.s.run(ctx, chromedp.Clear(d.selector(h), d.queryOpts()...))
}

func (d *tabDocument) Type(ctx context.Context, h form.Handle, value string) error {
	ctx, cancel := context.WithTimeout(ctx, keystrokeTimeout)
	defer cancel()
	return d.s.run(ctx, chromedp.SendKeys(d.selector(h), value, d.queryOpts()...))
}

func (d *tabDocument) Assign(ctx context.Context, h form.Handle, value string) error {
	var ok bool
	return d.eval(ctx, assignScript, scriptArgs{Handle: string(h), Value: value}, &ok)
}

func (d *tabDocument) Value(ctx context.Context, h form.Handle) (string, error) {
	var out string
	err := d.eval(ctx, valueScript, scriptArgs{Handle: string(h)}, &out)
	return out, err
}

func (d *tabDocument) Click(ctx context.Context, h form.Handle) error {
	var ok bool
	return d.eval(ctx, clickScript, scriptArgs{Handle: string(h)}, &ok)
}

func (d *tabDocument) MarkerVisible(ctx context.Context, m types.Marker) (bool, error) {
	var visible bool
	err := d.eval(ctx, markerVisibleScript, scriptArgs{Selector: m.Selector, Pattern: m.Pattern}, &visible)
	return visible, err
}

func (d *tabDocument) FirstVisible(ctx context.Context, selectors []string) (string, bool, error) {
	if len(selectors) == 0 {
		return "", false, nil
	}
	var match string
	err := d.eval(ctx, firstVisibleScript, scriptArgs{Selectors: selectors}, &match)
	return match, match != "", err
}

// tabPage adds frame enumeration to the main document
type tabPage struct {
	*tabDocument
}

// Frames returns the same-origin top-level iframes. Cross-origin frames
// cannot be scripted and are skipped.
func (p *tabPage) Frames(ctx context.Context) ([]form.Document, error) {
	var nodes []*cdp.Node
	var accessible []bool
	err := p.s.run(ctx,
		chromedp.Nodes("iframe", &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
		chromedp.Evaluate(framesAccessibleScript, &accessible),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}

	var docs []form.Document
	for i, n := range nodes {
		if i < len(accessible) && accessible[i] {
			docs = append(docs, &tabDocument{s: p.s, frame: i, node: n})
		}
	}
	return docs, nil
}
