package netip

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkopriv2/netio/buf"
	"github.com/pkopriv2/netio/common"
	"github.com/pkopriv2/netio/handle"
	"github.com/pkopriv2/netio/tcpio"
	"github.com/pkopriv2/netio/udpio"
)

func newTestCtxAndPool() (common.Context, common.WorkPool) {
	ctx := common.NewContext(common.NewEmptyConfig())
	return ctx, common.NewWorkPool(ctx.Control(), 8)
}

func portOf(t *testing.T, addr net.Addr) string {
	_, port, err := net.SplitHostPort(addr.String())
	require.NoError(t, err)
	return port
}

func TestMakeTCPAcceptorAndConnector_RoundTrip(t *testing.T) {
	ctx, pool := newTestCtxAndPool()
	stack := NewStack()

	acceptorHandle, err := stack.MakeTCPAcceptor(ctx, pool, "127.0.0.1:0", true)
	require.NoError(t, err)
	acceptor, err := acceptorHandle.Upgrade()
	require.NoError(t, err)

	serverReady := make(chan handle.Handle[tcpio.Handler], 1)
	require.True(t, acceptor.Start(func(self handle.Handle[tcpio.Handler], count int) {
		if h, err := self.Upgrade(); err == nil {
			h.StartIo(tcpio.DelimiterFraming([]byte("\n")), func(payload []byte, self handle.Handle[tcpio.Handler], remote net.Addr) bool {
				return true
			})
		}
		serverReady <- self
	}, nil))
	defer acceptor.Stop()

	connectorHandle := stack.MakeTCPConnectorHost(ctx, pool, "127.0.0.1", portOf(t, acceptor.Addr()), 50*time.Millisecond)
	connector, err := connectorHandle.Upgrade()
	require.NoError(t, err)

	clientReady := make(chan handle.Handle[tcpio.Handler], 1)
	require.True(t, connector.Start(func(self handle.Handle[tcpio.Handler], count int) {
		clientReady <- self
	}, nil))
	defer connector.Stop()

	select {
	case self := <-clientReady:
		h, err := self.Upgrade()
		require.NoError(t, err)
		assert.NotNil(t, h)
	case <-time.After(2 * time.Second):
		t.Fatal("connector never connected")
	}

	select {
	case self := <-serverReady:
		h, err := self.Upgrade()
		require.NoError(t, err)
		assert.NotNil(t, h)
	case <-time.After(2 * time.Second):
		t.Fatal("acceptor never observed the connection")
	}
}

func TestMakeUDPUnicast_EchoRoundTrip(t *testing.T) {
	ctx, pool := newTestCtxAndPool()
	stack := NewStack()

	serverHandle, err := stack.MakeUDPUnicast(ctx, pool, "127.0.0.1:0")
	require.NoError(t, err)
	server, err := serverHandle.Upgrade()
	require.NoError(t, err)
	defer server.Stop()

	received := make(chan string, 1)
	require.True(t, server.Start(nil, nil))
	require.True(t, server.StartIo(1500, func(payload []byte, self handle.Handle[udpio.Endpoint], sender net.Addr) bool {
		received <- string(payload)
		return true
	}, nil))

	clientHandle, err := stack.MakeUDPUnicast(ctx, pool, "")
	require.NoError(t, err)
	client, err := clientHandle.Upgrade()
	require.NoError(t, err)
	defer client.Stop()
	require.True(t, client.Start(nil, nil))
	require.True(t, client.StartIo(1500, nil, nil))

	client.Send(buf.NewImmutable([]byte("ping")), server.LocalAddr())

	select {
	case msg := <-received:
		assert.Equal(t, "ping", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}

func TestMakeTCPAcceptor_InvalidEndpointFails(t *testing.T) {
	ctx, pool := newTestCtxAndPool()
	stack := NewStack()
	_, err := stack.MakeTCPAcceptor(ctx, pool, "not-a-valid-endpoint", false)
	assert.Error(t, err)
}

func TestMakeUDPMulticastReceiver_InvalidGroupFails(t *testing.T) {
	ctx, pool := newTestCtxAndPool()
	stack := NewStack()
	_, err := stack.MakeUDPMulticastReceiver(ctx, pool, "not-an-ip", 9999)
	assert.Error(t, err)
}

func TestStack_StopAllStopsEveryEntity(t *testing.T) {
	ctx, pool := newTestCtxAndPool()
	stack := NewStack()

	acceptorHandle, err := stack.MakeTCPAcceptor(ctx, pool, "127.0.0.1:0", false)
	require.NoError(t, err)
	acceptor, err := acceptorHandle.Upgrade()
	require.NoError(t, err)
	require.True(t, acceptor.Start(nil, nil))

	endpointHandle, err := stack.MakeUDPUnicast(ctx, pool, "127.0.0.1:0")
	require.NoError(t, err)
	endpoint, err := endpointHandle.Upgrade()
	require.NoError(t, err)
	require.True(t, endpoint.Start(nil, nil))

	connectorHandle := stack.MakeTCPConnectorHost(ctx, pool, "127.0.0.1", portOf(t, acceptor.Addr()), time.Hour)
	connector, err := connectorHandle.Upgrade()
	require.NoError(t, err)
	require.True(t, connector.Start(nil, nil))

	stack.StopAll()

	assert.False(t, acceptor.IsStarted())
	assert.False(t, connector.IsStarted())
	assert.False(t, endpoint.Stop(), "StopAll should have already stopped the endpoint")
}

func TestStack_StopAllLeavesHandleUpgradableUntilCollected(t *testing.T) {
	ctx, pool := newTestCtxAndPool()
	stack := NewStack()

	acceptorHandle, err := stack.MakeTCPAcceptor(ctx, pool, "127.0.0.1:0", false)
	require.NoError(t, err)

	acceptor, err := acceptorHandle.Upgrade()
	require.NoError(t, err)
	require.True(t, acceptor.Start(nil, nil))

	stack.StopAll()

	_, err = acceptorHandle.Upgrade()
	assert.NoError(t, err, "handle may still upgrade briefly until the acceptor is collected")
}
