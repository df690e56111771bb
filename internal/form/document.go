// Package form locates, fills and submits fields on a web form through a
// Document abstraction, so the same logic runs against a live browser tab
// or a saved page dump.
package form

import (
	"context"
	"errors"

	"github.com/ibeckermayer/ticketfill/internal/types"
)

// ErrNoKeyboard is returned by documents that cannot simulate keystrokes
var ErrNoKeyboard = errors.New("document does not support keystrokes")

// ErrStaleHandle is returned when a handle no longer resolves to an element
var ErrStaleHandle = errors.New("element handle is stale")

// Handle identifies one element inside a Document
type Handle string

// Element is a snapshot of an element's attributes
type Element struct {
	Handle      Handle `json:"handle"`
	Tag         string `json:"tag"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Placeholder string `json:"placeholder"`
	AriaLabel   string `json:"ariaLabel"`
	ID          string `json:"id"`
	Class       string `json:"class"`
	TestID      string `json:"testId"`
	Text        string `json:"text"`
	Visible     bool   `json:"visible"`
}

// Document is one queryable element tree: a page or an embedded frame
type Document interface {
	// FindByStableID returns the field (input, textarea or contenteditable)
	// whose name, or failing that id, equals stableID exactly. Other
	// elements carrying the same name or id are ignored.
	FindByStableID(ctx context.Context, stableID string) (Handle, bool, error)

	// Interactive lists input, textarea and contenteditable elements in
	// document order.
	Interactive(ctx context.Context) ([]Element, error)

	// FollowingLabel returns the first interactive element after the
	// innermost node whose text contains label, ignoring case.
	FollowingLabel(ctx context.Context, label string) (Handle, bool, error)

	// Controls lists submit inputs and buttons in document order.
	Controls(ctx context.Context) ([]Element, error)

	Clear(ctx context.Context, h Handle) error
	Type(ctx context.Context, h Handle, value string) error

	// Assign sets the value (or text of an editable region) directly and
	// dispatches input, change and blur events.
	Assign(ctx context.Context, h Handle, value string) error

	Value(ctx context.Context, h Handle) (string, error)
	Click(ctx context.Context, h Handle) error

	// MarkerVisible reports whether a visible element matching the marker
	// selector contains its pattern, ignoring case.
	MarkerVisible(ctx context.Context, m types.Marker) (bool, error)

	// FirstVisible returns the first of selectors that matches a visible
	// element.
	FirstVisible(ctx context.Context, selectors []string) (string, bool, error)
}

// Page is the top-level document of a tab
type Page interface {
	Document

	// Frames returns the embedded sub-documents in document order. Frames
	// that cannot be entered are omitted.
	Frames(ctx context.Context) ([]Document, error)
}

// LocatedField is an element found by the Locator, together with the
// document that owns it
type LocatedField struct {
	Handle   Handle
	Doc      Document
	Frame    int // -1 for the main document
	Strategy string
}

// InFrame reports whether the field lives in an embedded sub-document
func (f LocatedField) InFrame() bool {
	return f.Frame >= 0
}
