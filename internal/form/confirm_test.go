package form_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ibeckermayer/ticketfill/internal/form"
	"github.com/ibeckermayer/ticketfill/internal/types"
)

var successMarker = types.Marker{Selector: "h1.success-page-title", Pattern: "we got your request"}

// flippingDoc reports the marker visible from the nth check on
type flippingDoc struct {
	form.Document
	visibleFrom int32
	checks      atomic.Int32
	err         error
}

func (d *flippingDoc) MarkerVisible(context.Context, types.Marker) (bool, error) {
	n := d.checks.Add(1)
	if d.err != nil && n < d.visibleFrom {
		return false, d.err
	}
	return n >= d.visibleFrom, nil
}

func TestAwaitConfirmedFromPage(t *testing.T) {
	doc := parse(t, `<body><h1 class="success-page-title">We got your REQUEST!</h1></body>`)
	c := form.NewConfirmer(zap.NewNop(), successMarker, 5*time.Millisecond)

	assert.Equal(t, types.Confirmed, c.Await(context.Background(), doc, time.Second))
}

func TestAwaitTimesOutWithoutMarker(t *testing.T) {
	doc := parse(t, `<body>
		<h1 class="success-page-title" style="display: none">We got your request</h1>
		<h2 class="success-page-title">We got your request</h2>
		<h1>We got your request</h1>
	</body>`)
	c := form.NewConfirmer(zap.NewNop(), successMarker, 5*time.Millisecond)

	start := time.Now()
	outcome := c.Await(context.Background(), doc, 40*time.Millisecond)

	assert.Equal(t, types.TimedOut, outcome)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestAwaitReturnsAsSoonAsMarkerAppears(t *testing.T) {
	doc := &flippingDoc{visibleFrom: 3}
	c := form.NewConfirmer(zap.NewNop(), successMarker, 5*time.Millisecond)

	start := time.Now()
	outcome := c.Await(context.Background(), doc, 5*time.Second)

	assert.Equal(t, types.Confirmed, outcome)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(3), doc.checks.Load())
}

func TestAwaitIgnoresProbeErrors(t *testing.T) {
	doc := &flippingDoc{visibleFrom: 4, err: errors.New("execution context was destroyed")}
	c := form.NewConfirmer(zap.NewNop(), successMarker, 5*time.Millisecond)

	assert.Equal(t, types.Confirmed, c.Await(context.Background(), doc, 5*time.Second))
}

func TestAwaitCancelledContextIsTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := form.NewConfirmer(zap.NewNop(), successMarker, 5*time.Millisecond)

	assert.Equal(t, types.TimedOut, c.Await(ctx, &flippingDoc{visibleFrom: 1000}, time.Minute))
}
