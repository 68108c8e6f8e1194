package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkopriv2/netio/common"
)

func TestResolver_LookupLocalhost(t *testing.T) {
	ctx := common.NewContext(common.NewEmptyConfig())
	pool := common.NewWorkPool(ctx.Control(), 4)
	r := NewResolver(pool)

	done := make(chan struct{})
	var endpoints []string
	var lookupErr error

	require.NoError(t, r.Lookup("localhost", "1234", func(eps []string, err error) {
		endpoints, lookupErr = eps, err
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for lookup")
	}

	require.NoError(t, lookupErr)
	require.NotEmpty(t, endpoints)
	for _, ep := range endpoints {
		assert.Contains(t, ep, ":1234")
	}
}

func TestResolver_LookupFailureReportsError(t *testing.T) {
	ctx := common.NewContext(common.NewEmptyConfig())
	pool := common.NewWorkPool(ctx.Control(), 4)
	r := NewResolver(pool)

	done := make(chan struct{})
	var lookupErr error

	require.NoError(t, r.Lookup("this-host-does-not-resolve.invalid", "80", func(eps []string, err error) {
		lookupErr = err
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for lookup")
	}

	assert.Error(t, lookupErr)
}
