package form

import (
	"context"

	"go.uber.org/zap"

	"github.com/ibeckermayer/ticketfill/internal/types"
)

// Injector enters values into located fields
type Injector struct {
	logger *zap.Logger
}

// NewInjector creates an injector
func NewInjector(logger *zap.Logger) *Injector {
	return &Injector{logger: logger.Named("injector")}
}

// Inject clears the field, types the value and then assigns it directly with
// input, change and blur events. Only the direct assignment decides the result.
func (i *Injector) Inject(ctx context.Context, f LocatedField, value string) types.InjectResult {
	log := i.logger.With(zap.String("handle", string(f.Handle)), zap.Int("frame", f.Frame))

	if err := f.Doc.Clear(ctx, f.Handle); err != nil {
		log.Debug("Clear failed (ignored).", zap.Error(err))
	}
	if err := f.Doc.Type(ctx, f.Handle, value); err != nil {
		log.Debug("Keystrokes failed (ignored).", zap.Error(err))
	}
	if err := f.Doc.Assign(ctx, f.Handle, value); err != nil {
		log.Warn("Direct assignment failed.", zap.Error(err))
		return types.Uncertain
	}
	return types.Applied
}
