package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	assert.True(t, called, "custom logger was not called")

	called = false
	SetLogger(nil)
	Logf("test message")
	assert.False(t, called, "no-op logger should not reach the previous logger")
}

func TestCapture(t *testing.T) {
	original := Logf
	rec, restore := Capture()

	Logf("invalid pair %q", "bad")
	Logf("invalid pair %q", "worse")
	Logf("unrelated")

	assert.Equal(t, 2, rec.Count("invalid pair"))
	assert.Equal(t, []string{`invalid pair "bad"`, `invalid pair "worse"`, "unrelated"}, rec.Lines())

	restore()
	Logf("after restore")
	assert.Len(t, rec.Lines(), 3)
	assert.NotNil(t, original)
}
