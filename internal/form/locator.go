package form

import (
	"context"

	"go.uber.org/zap"

	"github.com/ibeckermayer/ticketfill/internal/types"
)

// Locator resolves field descriptors to elements by trying its strategies in
// order, first in the main document and then in each embedded frame
type Locator struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewLocator creates a locator. With no strategies it uses DefaultStrategies.
func NewLocator(logger *zap.Logger, strategies ...Strategy) *Locator {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	return &Locator{
		strategies: strategies,
		logger:     logger.Named("locator"),
	}
}

// Locate returns the first element any strategy finds. The boolean is false
// when main document and all frames are exhausted.
func (l *Locator) Locate(ctx context.Context, page Page, d types.FieldDescriptor) (LocatedField, bool) {
	log := l.logger.With(zap.String("stable_id", d.StableID), zap.String("label", d.Label))

	if h, strategy, ok := l.locateIn(ctx, page, d, log); ok {
		log.Debug("Field located in main document.", zap.String("strategy", strategy))
		return LocatedField{Handle: h, Doc: page, Frame: -1, Strategy: strategy}, true
	}

	frames, err := page.Frames(ctx)
	if err != nil {
		log.Debug("Listing frames failed (non-fatal).", zap.Error(err))
		return LocatedField{}, false
	}

	for i, frame := range frames {
		if ctx.Err() != nil {
			break
		}
		if h, strategy, ok := l.locateIn(ctx, frame, d, log.With(zap.Int("frame", i))); ok {
			log.Debug("Field located in frame.", zap.Int("frame", i), zap.String("strategy", strategy))
			return LocatedField{Handle: h, Doc: frame, Frame: i, Strategy: strategy}, true
		}
	}

	return LocatedField{}, false
}

func (l *Locator) locateIn(ctx context.Context, doc Document, d types.FieldDescriptor, log *zap.Logger) (Handle, string, bool) {
	for _, s := range l.strategies {
		h, ok, err := s.Locate(ctx, doc, d)
		if err != nil {
			log.Debug("Strategy failed (treated as miss).", zap.String("strategy", s.Name()), zap.Error(err))
			continue
		}
		if ok {
			return h, s.Name(), true
		}
	}
	return "", "", false
}
