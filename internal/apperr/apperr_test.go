package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOfClassifiesWrappedChains(t *testing.T) {
	base := New(CodeNotFound, "mission %s not found", "m-1")
	assert.Equal(t, CodeNotFound, CodeOf(base))

	// A fmt-wrapped chain still surfaces the original code.
	wrapped := fmt.Errorf("poll failed: %w", base)
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.True(t, Is(wrapped, CodeNotFound))
	assert.False(t, Is(wrapped, CodeState))
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("disk on fire")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CodeStorage, cause, "put object")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeStorage, CodeOf(err))
	assert.Contains(t, err.Error(), "storage: put object: connection reset")
}

func TestIsNilErr(t *testing.T) {
	assert.False(t, Is(nil, CodeInternal))
}
