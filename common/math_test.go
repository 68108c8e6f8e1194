package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMin(t *testing.T) {
	assert.Equal(t, 1, Min(3, 1, 2))
	assert.Equal(t, 5, Min(5))
}

func TestMax(t *testing.T) {
	assert.Equal(t, 3, Max(1, 3, 2))
	assert.Equal(t, 5, Max(5))
}
