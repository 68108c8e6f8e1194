package conn

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemPipe_RoundTrip(t *testing.T) {
	a, b := MemPipe()
	defer a.Close()
	defer b.Close()

	go func() {
		for i := 0; i < 1024; i++ {
			a.Write([]byte{byte(i)})
		}
	}()

	buf := make([]byte, 1024)
	_, err := io.ReadFull(b, buf)
	require.NoError(t, err)

	for i := 0; i < 1024; i++ {
		assert.Equal(t, byte(i), buf[i])
	}
}

func TestMemPipe_CloseUnblocksPeer(t *testing.T) {
	a, b := MemPipe()
	a.Close()

	_, err := b.Read(make([]byte, 1))
	assert.Error(t, err)
}
