// Package htmldoc implements form.Page over parsed HTML with goquery. It backs
// the offline inspect command, which replays lookups against saved page
// dumps, and the browser-free tests.
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/ibeckermayer/ticketfill/internal/form"
	"github.com/ibeckermayer/ticketfill/internal/types"
)

// Document is a static HTML document. Keystrokes are not supported; values
// change only through Clear and Assign.
type Document struct {
	doc      *goquery.Document
	prefix   string
	seq      int
	byNode   map[*html.Node]form.Handle
	byHandle map[form.Handle]*html.Node
	events   map[form.Handle][]string
	clicks   []form.Handle
	frames   []form.Document
	parsed   bool
}

// Parse reads an HTML document from r
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return newDocument(doc, "e"), nil
}

// ParseString parses an HTML string
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Load parses the HTML file at path
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func newDocument(doc *goquery.Document, prefix string) *Document {
	return &Document{
		doc:      doc,
		prefix:   prefix,
		byNode:   make(map[*html.Node]form.Handle),
		byHandle: make(map[form.Handle]*html.Node),
		events:   make(map[form.Handle][]string),
	}
}

// HTML renders the current state of the document
func (d *Document) HTML() (string, error) {
	return d.doc.Html()
}

// Clicked returns the handles clicked so far, in order
func (d *Document) Clicked() []form.Handle {
	return append([]form.Handle(nil), d.clicks...)
}

// Events returns the events dispatched on h by Assign
func (d *Document) Events(h form.Handle) []string {
	return append([]string(nil), d.events[h]...)
}

func (d *Document) handle(n *html.Node) form.Handle {
	if h, ok := d.byNode[n]; ok {
		return h
	}
	d.seq++
	h := form.Handle(fmt.Sprintf("%s%d", d.prefix, d.seq))
	d.byNode[n] = h
	d.byHandle[h] = n
	return h
}

func (d *Document) node(h form.Handle) (*html.Node, error) {
	n, ok := d.byHandle[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", form.ErrStaleHandle, h)
	}
	return n, nil
}

func (d *Document) FindByStableID(_ context.Context, stableID string) (form.Handle, bool, error) {
	for _, key := range []string{"name", "id"} {
		match := d.doc.Find("["+key+"]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			v, _ := s.Attr(key)
			return v == stableID && isField(s.Get(0))
		}).First()
		if match.Length() > 0 {
			return d.handle(match.Get(0)), true, nil
		}
	}
	return "", false, nil
}

func (d *Document) Interactive(_ context.Context) ([]form.Element, error) {
	var out []form.Element
	d.doc.Find("input, textarea, [contenteditable]").Each(func(_ int, s *goquery.Selection) {
		if isField(s.Get(0)) {
			out = append(out, d.element(s))
		}
	})
	return out, nil
}

func (d *Document) FollowingLabel(_ context.Context, label string) (form.Handle, bool, error) {
	needle := normalize(label)
	if needle == "" {
		return "", false, nil
	}

	nodes := d.doc.Find("body *").Nodes
	anchor := -1
	for i, n := range nodes {
		if skipText(n) || !strings.Contains(normalize(textOf(n)), needle) {
			continue
		}
		if childContains(n, needle) {
			continue
		}
		anchor = i
		break
	}
	if anchor < 0 {
		return "", false, nil
	}

	for _, n := range nodes[anchor+1:] {
		if isField(n) && !contains(nodes[anchor], n) {
			return d.handle(n), true, nil
		}
	}
	return "", false, nil
}

func (d *Document) Controls(_ context.Context) ([]form.Element, error) {
	var out []form.Element
	d.doc.Find("input, button").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "input" && !strings.EqualFold(s.AttrOr("type", ""), "submit") {
			return
		}
		out = append(out, d.element(s))
	})
	return out, nil
}

func (d *Document) Clear(_ context.Context, h form.Handle) error {
	n, err := d.node(h)
	if err != nil {
		return err
	}
	setValue(n, "")
	return nil
}

func (d *Document) Type(context.Context, form.Handle, string) error {
	return form.ErrNoKeyboard
}

func (d *Document) Assign(_ context.Context, h form.Handle, value string) error {
	n, err := d.node(h)
	if err != nil {
		return err
	}
	if !isField(n) {
		return fmt.Errorf("element %s (%s) does not hold a value", h, n.Data)
	}
	setValue(n, value)
	d.events[h] = append(d.events[h], "input", "change", "blur")
	return nil
}

func (d *Document) Value(_ context.Context, h form.Handle) (string, error) {
	n, err := d.node(h)
	if err != nil {
		return "", err
	}
	if n.Data == "input" {
		return attr(n, "value"), nil
	}
	return textOf(n), nil
}

func (d *Document) Click(_ context.Context, h form.Handle) error {
	if _, err := d.node(h); err != nil {
		return err
	}
	d.clicks = append(d.clicks, h)
	return nil
}

func (d *Document) MarkerVisible(_ context.Context, m types.Marker) (bool, error) {
	sel, err := cascadia.Compile(m.Selector)
	if err != nil {
		return false, fmt.Errorf("invalid marker selector %q: %w", m.Selector, err)
	}
	pattern := normalize(m.Pattern)
	found := false
	d.doc.FindMatcher(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if visible(s.Get(0)) && strings.Contains(normalize(s.Text()), pattern) {
			found = true
			return false
		}
		return true
	})
	return found, nil
}

func (d *Document) FirstVisible(_ context.Context, selectors []string) (string, bool, error) {
	for _, s := range selectors {
		sel, err := cascadia.Compile(s)
		if err != nil {
			return "", false, fmt.Errorf("invalid selector %q: %w", s, err)
		}
		for _, n := range d.doc.FindMatcher(sel).Nodes {
			if visible(n) {
				return s, true, nil
			}
		}
	}
	return "", false, nil
}

// Frames parses the srcdoc of each top-level iframe. Frames without inline
// content cannot be entered offline and are omitted.
func (d *Document) Frames(_ context.Context) ([]form.Document, error) {
	if d.parsed {
		return d.frames, nil
	}
	d.parsed = true

	var firstErr error
	d.doc.Find("iframe").Each(func(i int, s *goquery.Selection) {
		src, ok := s.Attr("srcdoc")
		if !ok {
			return
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		d.frames = append(d.frames, newDocument(doc, fmt.Sprintf("f%d-", i)))
	})
	return d.frames, firstErr
}

func (d *Document) element(s *goquery.Selection) form.Element {
	n := s.Get(0)
	return form.Element{
		Handle:      d.handle(n),
		Tag:         goquery.NodeName(s),
		Type:        s.AttrOr("type", ""),
		Name:        s.AttrOr("name", ""),
		Placeholder: s.AttrOr("placeholder", ""),
		AriaLabel:   s.AttrOr("aria-label", ""),
		ID:          s.AttrOr("id", ""),
		Class:       s.AttrOr("class", ""),
		TestID:      s.AttrOr("data-testid", ""),
		Text:        strings.Join(strings.Fields(s.Text()), " "),
		Visible:     visible(n),
	}
}
