package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormFieldResolve(t *testing.T) {
	f := FormField{Value: "Please restore {target} ({target})"}
	assert.Equal(t, "Please restore alice (alice)", f.Resolve("alice"))
	assert.Equal(t, "static", FormField{Value: "static"}.Resolve("alice"))
}

func TestFieldDescriptorName(t *testing.T) {
	assert.Equal(t, "request[email]", FieldDescriptor{StableID: "request[email]", Label: "Email"}.Name())
	assert.Equal(t, "Email", FieldDescriptor{Label: "Email"}.Name())
}

func TestNeedsAttention(t *testing.T) {
	assert.False(t, Result{Outcome: Confirmed}.NeedsAttention())
	assert.True(t, Result{Outcome: TimedOut}.NeedsAttention())
	assert.True(t, Result{Outcome: Failed}.NeedsAttention())
}
