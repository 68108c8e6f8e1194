package entity

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkopriv2/netio/common"
	"github.com/pkopriv2/netio/handle"
	"github.com/pkopriv2/netio/tcpio"
)

func bindLoopbackTCP(t *testing.T) *net.TCPListener {
	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	return l
}

func newTestAcceptor(t *testing.T, l *net.TCPListener) *TcpAcceptor {
	ctx := common.NewContext(common.NewEmptyConfig())
	pool := common.NewWorkPool(ctx.Control(), 8)
	return NewTcpAcceptor(ctx, l, pool)
}

func TestTcpAcceptor_AcceptsAndCountsConnections(t *testing.T) {
	l := bindLoopbackTCP(t)
	a := newTestAcceptor(t, l)

	ready := make(chan handle.Handle[tcpio.Handler], 1)
	require.True(t, a.Start(func(self handle.Handle[tcpio.Handler], count int) {
		ready <- self
		assert.Equal(t, 1, count)
	}, nil))

	conn, err := net.Dial("tcp", a.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case self := <-ready:
		h, err := self.Upgrade()
		require.NoError(t, err)
		assert.NotNil(t, h)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ioReadyCb")
	}
	assert.Equal(t, 1, a.ConnectionCount())
}

func TestTcpAcceptor_StartTwiceFails(t *testing.T) {
	a := newTestAcceptor(t, bindLoopbackTCP(t))
	assert.True(t, a.Start(nil, nil))
	assert.False(t, a.Start(nil, nil))
}

func TestTcpAcceptor_StopFiresStopCbForEachLiveHandler(t *testing.T) {
	l := bindLoopbackTCP(t)
	a := newTestAcceptor(t, l)

	stopped := make(chan error, 4)
	require.True(t, a.Start(nil, func(self handle.Handle[tcpio.Handler], cause error, count int) {
		stopped <- cause
	}))

	conns := make([]net.Conn, 3)
	for i := range conns {
		c, err := net.Dial("tcp", a.Addr().String())
		require.NoError(t, err)
		conns[i] = c
		defer c.Close()
	}

	require.Eventually(t, func() bool { return a.ConnectionCount() == 3 }, 2*time.Second, 10*time.Millisecond)

	assert.True(t, a.Stop())
	assert.False(t, a.Stop())

	for i := 0; i < 3; i++ {
		select {
		case cause := <-stopped:
			require.Error(t, cause)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for stopCb")
		}
	}
	assert.Equal(t, 0, a.ConnectionCount())
}

func TestTcpAcceptor_StopClosesListener(t *testing.T) {
	l := bindLoopbackTCP(t)
	a := newTestAcceptor(t, l)
	require.True(t, a.Start(nil, nil))
	addr := a.Addr().String()

	assert.True(t, a.Stop())

	_, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	assert.Error(t, err)
}
