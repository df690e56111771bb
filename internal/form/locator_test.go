package form_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/ticketfill/internal/form"
	"github.com/ibeckermayer/ticketfill/internal/htmldoc"
	"github.com/ibeckermayer/ticketfill/internal/types"
)

func parse(t *testing.T, src string) *htmldoc.Document {
	t.Helper()
	doc, err := htmldoc.ParseString(src)
	require.NoError(t, err)
	return doc
}

func attrOf(t *testing.T, doc form.Document, h form.Handle, pick func(form.Element) string) string {
	t.Helper()
	elements, err := doc.Interactive(context.Background())
	require.NoError(t, err)
	for _, el := range elements {
		if el.Handle == h {
			return pick(el)
		}
	}
	t.Fatalf("handle %s not among interactive elements", h)
	return ""
}

func elementName(el form.Element) string { return el.Name }

func TestLocateStableIDTakesPrecedence(t *testing.T) {
	doc := parse(t, `<html><body><form>
		<label>Email</label><input name="decoy" placeholder="Email address">
		<input name="request[email]" placeholder="something unrelated">
	</form></body></html>`)

	loc := form.NewLocator(zap.NewNop())
	field, ok := loc.Locate(context.Background(), doc, types.FieldDescriptor{StableID: "request[email]", Label: "Email"})

	require.True(t, ok)
	assert.Equal(t, "stable-id", field.Strategy)
	assert.False(t, field.InFrame())
	assert.Equal(t, "request[email]", attrOf(t, field.Doc, field.Handle, elementName))
}

func TestLocateStableIDMatchesElementID(t *testing.T) {
	doc := parse(t, `<body><input id="phone_field"><input name="other"></body>`)

	field, ok := form.NewLocator(zap.NewNop()).Locate(context.Background(), doc,
		types.FieldDescriptor{StableID: "phone_field", Label: "nothing matches this"})

	require.True(t, ok)
	assert.Equal(t, "phone_field", attrOf(t, doc, field.Handle, func(el form.Element) string { return el.ID }))
}

func TestLocateFallsThroughNonFieldStableIDMatch(t *testing.T) {
	doc := parse(t, `<html><head><meta name="email" content="x"></head><body>
		<div id="email"><input placeholder="Email"></div>
	</body></html>`)

	field, ok := form.NewLocator(zap.NewNop()).Locate(context.Background(), doc,
		types.FieldDescriptor{StableID: "email", Label: "Email"})
	require.True(t, ok)
	assert.Equal(t, "accessible-name", field.Strategy)

	res := form.NewInjector(zap.NewNop()).Inject(context.Background(), field, "me@example.com")
	assert.Equal(t, types.Applied, res)
}

func TestLocateByAccessibleName(t *testing.T) {
	doc := parse(t, `<body>
		<input name="a" placeholder="First name">
		<textarea name="b" aria-label="Your EMAIL address"></textarea>
		<input name="c" placeholder="Email again">
	</body>`)

	field, ok := form.NewLocator(zap.NewNop()).Locate(context.Background(), doc,
		types.FieldDescriptor{StableID: "missing", Label: "email"})

	require.True(t, ok)
	assert.Equal(t, "accessible-name", field.Strategy)
	assert.Equal(t, "b", attrOf(t, doc, field.Handle, elementName))
}

func TestLocateByProximity(t *testing.T) {
	doc := parse(t, `<body>
		<div><span>Contact</span><input name="first"></div>
		<div class="row"><label>Mobile <b>Number</b></label></div>
		<div><input name="second"></div>
		<div><input name="third"></div>
	</body>`)

	field, ok := form.NewLocator(zap.NewNop()).Locate(context.Background(), doc,
		types.FieldDescriptor{StableID: "missing", Label: "mobile number"})

	require.True(t, ok)
	assert.Equal(t, "proximity", field.Strategy)
	assert.Equal(t, "second", attrOf(t, doc, field.Handle, elementName))
}

func TestLocateSearchesFramesAfterMainDocument(t *testing.T) {
	doc := parse(t, `<body>
		<input name="outer" placeholder="Search">
		<iframe src="https://widgets.example.com/x"></iframe>
		<iframe srcdoc='<body><p>nothing here</p></body>'></iframe>
		<iframe srcdoc='<body><input name="request[username]"></body>'></iframe>
	</body>`)

	field, ok := form.NewLocator(zap.NewNop()).Locate(context.Background(), doc,
		types.FieldDescriptor{StableID: "request[username]", Label: "Username"})

	require.True(t, ok)
	assert.True(t, field.InFrame())
	assert.Equal(t, 1, field.Frame)
	assert.NotSame(t, doc, field.Doc)
	assert.Equal(t, "request[username]", attrOf(t, field.Doc, field.Handle, elementName))

	// The main document is still queried directly afterwards.
	again, ok := form.NewLocator(zap.NewNop()).Locate(context.Background(), doc,
		types.FieldDescriptor{StableID: "outer"})
	require.True(t, ok)
	assert.False(t, again.InFrame())
}

func TestLocateNotFound(t *testing.T) {
	doc := parse(t, `<body>
		<p>Nothing to fill</p>
		<iframe srcdoc='<body><input name="x"></body>'></iframe>
	</body>`)

	field, ok := form.NewLocator(zap.NewNop()).Locate(context.Background(), doc,
		types.FieldDescriptor{StableID: "nope", Label: "Friend's Username"})

	assert.False(t, ok)
	assert.Equal(t, form.LocatedField{}, field)
}

type failingStrategy struct{}

func (failingStrategy) Name() string { return "failing" }

func (failingStrategy) Locate(context.Context, form.Document, types.FieldDescriptor) (form.Handle, bool, error) {
	return "", false, errors.New("script evaluation failed")
}

func TestLocateTreatsStrategyErrorAsMiss(t *testing.T) {
	doc := parse(t, `<body><input name="username"></body>`)

	loc := form.NewLocator(zap.NewNop(), failingStrategy{}, form.StableIDStrategy{})
	field, ok := loc.Locate(context.Background(), doc, types.FieldDescriptor{StableID: "username"})

	require.True(t, ok)
	assert.Equal(t, "stable-id", field.Strategy)
}
