package buf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSharedBuffer_CloneIsIndependentHandle(t *testing.T) {
	orig := Wrap([]byte("hello"))
	clone := orig.Clone()

	assert.Equal(t, orig.Bytes(), clone.Bytes())
	assert.Equal(t, 1, orig.Release())
	assert.Equal(t, 0, clone.Release())
}

func TestSharedBuffer_Freeze(t *testing.T) {
	b := Wrap([]byte("abc"))
	assert.False(t, b.Frozen())
	b.Freeze()
	assert.True(t, b.Frozen())
	assert.True(t, b.Clone().Frozen())
}

func TestSharedBuffer_Slice(t *testing.T) {
	b := NewImmutable([]byte("0123456789"))
	s := b.Slice(2, 5)
	assert.Equal(t, []byte("234"), s.Bytes())
	assert.True(t, s.Frozen())
}
