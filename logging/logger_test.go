package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, zap.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zap.WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, zap.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zap.InfoLevel, ParseLevel("chatty"))
}

func TestNewAndOrNop(t *testing.T) {
	t.Parallel()

	l := New("debug")
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	assert.NotNil(t, OrNop(nil))
	assert.Same(t, l, OrNop(l))
}
