package usecases

import (
	"encoding/json"
	"errors"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/golang-cdp-client/internal/domain"
	"github.com/FreePeak/golang-cdp-client/internal/domain/shared"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/metrics"
)

func TestCorrelatorAllocatesIncreasingIDs(t *testing.T) {
	c := NewCorrelator(nil)

	first, err := c.Register("Page.navigate")
	require.NoError(t, err)
	second, err := c.Register("Page.reload")
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.id)
	assert.Equal(t, int64(2), second.id)
	assert.Equal(t, 2, c.Pending())

	// Abandoned ids are not handed out again.
	assert.True(t, c.Abandon(first.id, metrics.OutcomeTimeout))
	third, err := c.Register("Page.stop")
	require.NoError(t, err)
	assert.Equal(t, int64(3), third.id)
}

func TestCorrelatorComplete(t *testing.T) {
	c := NewCorrelator(nil)
	pc, err := c.Register("Runtime.evaluate")
	require.NoError(t, err)

	ok := c.Complete(&shared.Response{ID: pc.id, Result: json.RawMessage(`{"value":2}`)})
	require.True(t, ok)

	res := <-pc.done
	require.NoError(t, res.err)
	assert.JSONEq(t, `{"value":2}`, string(res.result))
	assert.Equal(t, 0, c.Pending())

	// A second response for the same id is unknown.
	assert.False(t, c.Complete(&shared.Response{ID: pc.id}))
}

func TestCorrelatorCompleteWithError(t *testing.T) {
	c := NewCorrelator(nil)
	pc, err := c.Register("DOM.querySelector")
	require.NoError(t, err)

	require.True(t, c.Complete(&shared.Response{ID: pc.id, Error: &shared.Error{Code: -32000, Message: "Could not find node"}}))

	res := <-pc.done
	var remote *domain.RemoteError
	require.ErrorAs(t, res.err, &remote)
	assert.Equal(t, "DOM.querySelector", remote.Method)
	assert.Equal(t, -32000, remote.Code)
	assert.Equal(t, "Could not find node", remote.Message)
}

func TestCorrelatorUnknownID(t *testing.T) {
	c := NewCorrelator(nil)
	pc, err := c.Register("Page.enable")
	require.NoError(t, err)

	assert.False(t, c.Complete(&shared.Response{ID: 42}))
	assert.False(t, c.Complete(nil))
	assert.Equal(t, 1, c.Pending())
	assert.Empty(t, pc.done)
}

func TestCorrelatorClose(t *testing.T) {
	m := metrics.New()
	c := NewCorrelator(m)
	a, err := c.Register("A.one")
	require.NoError(t, err)
	b, err := c.Register("B.two")
	require.NoError(t, err)

	cause := errors.New("socket closed")
	assert.Equal(t, 2, c.Close(cause))
	assert.Equal(t, 0, c.Close(cause))

	for _, pc := range []*pendingCommand{a, b} {
		res := <-pc.done
		assert.True(t, domain.IsNotConnected(res.err))
		assert.ErrorIs(t, res.err, cause)
	}

	_, err = c.Register("C.three")
	assert.True(t, domain.IsNotConnected(err))
	assert.Equal(t, float64(0), promtestutil.ToFloat64(m.PendingCommands))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(m.CommandsTotal.WithLabelValues("A.one", metrics.OutcomeNotConnected)))
}

func TestCorrelatorAbandonAfterComplete(t *testing.T) {
	c := NewCorrelator(nil)
	pc, err := c.Register("Page.navigate")
	require.NoError(t, err)

	require.True(t, c.Complete(&shared.Response{ID: pc.id, Result: json.RawMessage(`{}`)}))
	assert.False(t, c.Abandon(pc.id, metrics.OutcomeTimeout))

	res := <-pc.done
	assert.NoError(t, res.err)
}
