package form

import (
	"context"
	"strings"

	"github.com/ibeckermayer/ticketfill/internal/types"
)

// Strategy is one way of finding a field inside a single document
type Strategy interface {
	Name() string
	Locate(ctx context.Context, doc Document, d types.FieldDescriptor) (Handle, bool, error)
}

// DefaultStrategies is the lookup order used by NewLocator
var DefaultStrategies = []Strategy{
	StableIDStrategy{},
	AccessibleNameStrategy{},
	ProximityStrategy{},
}

// StableIDStrategy matches the descriptor's stable identifier exactly
type StableIDStrategy struct{}

func (StableIDStrategy) Name() string { return "stable-id" }

func (StableIDStrategy) Locate(ctx context.Context, doc Document, d types.FieldDescriptor) (Handle, bool, error) {
	if d.StableID == "" {
		return "", false, nil
	}
	return doc.FindByStableID(ctx, d.StableID)
}

// AccessibleNameStrategy matches the label against the attributes forms use
// to name a field: placeholder, aria-label, id and name
type AccessibleNameStrategy struct{}

func (AccessibleNameStrategy) Name() string { return "accessible-name" }

func (AccessibleNameStrategy) Locate(ctx context.Context, doc Document, d types.FieldDescriptor) (Handle, bool, error) {
	label := strings.ToLower(strings.TrimSpace(d.Label))
	if label == "" {
		return "", false, nil
	}

	elements, err := doc.Interactive(ctx)
	if err != nil {
		return "", false, err
	}
	for _, el := range elements {
		if namedBy(el, label) {
			return el.Handle, true, nil
		}
	}
	return "", false, nil
}

func namedBy(el Element, label string) bool {
	for _, attr := range []string{el.Placeholder, el.AriaLabel, el.ID, el.Name} {
		if attr != "" && strings.Contains(strings.ToLower(attr), label) {
			return true
		}
	}
	return false
}

// ProximityStrategy picks the field that follows the label's text
type ProximityStrategy struct{}

func (ProximityStrategy) Name() string { return "proximity" }

func (ProximityStrategy) Locate(ctx context.Context, doc Document, d types.FieldDescriptor) (Handle, bool, error) {
	label := strings.TrimSpace(d.Label)
	if label == "" {
		return "", false, nil
	}
	return doc.FollowingLabel(ctx, label)
}
