package entity

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkopriv2/netio/common"
	"github.com/pkopriv2/netio/handle"
	"github.com/pkopriv2/netio/neterr"
	"github.com/pkopriv2/netio/tcpio"
)

func newTestConnector(t *testing.T, endpoints []string, opts ConnectorOptions) *TcpConnector {
	ctx := common.NewContext(common.NewEmptyConfig())
	pool := common.NewWorkPool(ctx.Control(), 8)
	return NewTcpConnectorEndpoints(ctx, pool, endpoints, opts)
}

func TestTcpConnector_ConnectsToListeningPeer(t *testing.T) {
	l := bindLoopbackTCP(t)
	defer l.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		c, err := l.Accept()
		if err == nil {
			defer c.Close()
			<-done
		}
	}()

	c := newTestConnector(t, []string{l.Addr().String()}, DefaultConnectorOptions(50*time.Millisecond))
	defer c.Stop()

	ready := make(chan handle.Handle[tcpio.Handler], 1)
	require.True(t, c.Start(func(self handle.Handle[tcpio.Handler], count int) {
		ready <- self
	}, nil))

	select {
	case self := <-ready:
		h, err := self.Upgrade()
		require.NoError(t, err)
		assert.NotNil(t, h)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ioReadyCb")
	}
}

func TestTcpConnector_ReconnectsWhenNoPeerListening(t *testing.T) {
	// Bind and immediately close, so the port refuses connections but
	// is very unlikely to be reused by anything else during the test.
	l := bindLoopbackTCP(t)
	addr := l.Addr().String()
	l.Close()

	c := newTestConnector(t, []string{addr}, DefaultConnectorOptions(30*time.Millisecond))

	stopped := make(chan error, 8)
	require.True(t, c.Start(nil, func(self handle.Handle[tcpio.Handler], cause error, count int) {
		stopped <- cause
	}))

	for i := 0; i < 3; i++ {
		select {
		case cause := <-stopped:
			require.Error(t, cause)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for reconnect-cycle stopCb")
		}
	}

	assert.True(t, c.Stop())
}

func TestTcpConnector_StopFiresFinalStopCbExactlyOnce(t *testing.T) {
	l := bindLoopbackTCP(t)
	addr := l.Addr().String()
	l.Close()

	c := newTestConnector(t, []string{addr}, ConnectorOptions{ReconnectDuration: 30 * time.Millisecond, NotifyOnEveryReconnect: false})

	stopped := make(chan error, 4)
	require.True(t, c.Start(nil, func(self handle.Handle[tcpio.Handler], cause error, count int) {
		stopped <- cause
	}))
	time.Sleep(150 * time.Millisecond) // let a few failed reconnect cycles pass quietly, firing no stopCb

	assert.True(t, c.Stop())
	assert.False(t, c.Stop())

	select {
	case cause := <-stopped:
		require.Error(t, cause)
		assert.ErrorIs(t, cause, neterr.New(neterr.TcpConnectorStopped))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for final stopCb")
	}

	select {
	case <-stopped:
		t.Fatal("stopCb fired more than once after Stop")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTcpConnector_StartTwiceFails(t *testing.T) {
	c := newTestConnector(t, []string{"127.0.0.1:1"}, DefaultConnectorOptions(time.Second))
	assert.True(t, c.Start(nil, nil))
	assert.False(t, c.Start(nil, nil))
	c.Stop()
}
