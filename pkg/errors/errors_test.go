package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	err := E(KindModelFetch, "model.download", fmt.Errorf("bucket unreachable"))
	wrapped := Wrap(err, "load model")

	assert.True(t, Is(wrapped, ErrModelFetch))
	assert.False(t, Is(wrapped, ErrModelFormat))
	assert.Equal(t, KindModelFetch, KindOf(wrapped))
}

func TestValidation_MessageNamesField(t *testing.T) {
	err := Validation("date", "cannot parse %q", "2024-13-01")

	assert.Equal(t, KindValidation, err.Kind)
	assert.Contains(t, err.Error(), "field 'date'")
	assert.Contains(t, err.Error(), "2024-13-01")
}

func TestKindOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(New("boom")))
	assert.Equal(t, "internal", KindOf(nil).String())
}

func TestWrap_NilStaysNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
	assert.NoError(t, Wrapf(nil, "context %d", 1))
}
