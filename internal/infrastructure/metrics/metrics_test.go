package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandLifecycle(t *testing.T) {
	m := New()

	m.CommandStarted()
	m.CommandStarted()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.PendingCommands))

	m.CommandFinished("Page.navigate", OutcomeOK, 20*time.Millisecond)
	m.CommandFinished("Page.navigate", OutcomeTimeout, time.Second)

	assert.Equal(t, float64(0), testutil.ToFloat64(m.PendingCommands))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CommandsTotal.WithLabelValues("Page.navigate", OutcomeOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CommandsTotal.WithLabelValues("Page.navigate", OutcomeTimeout)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CommandDuration))
}

func TestReaderCounters(t *testing.T) {
	m := New()

	m.EventReceived("Page")
	m.EventReceived("Page")
	m.HandlerFailed("Page")
	m.ProtocolError()
	m.ResponseDiscarded()
	m.MessageDropped()
	m.ConnectAttempt("ok")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.EventsReceived.WithLabelValues("Page")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HandlerFailures.WithLabelValues("Page")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProtocolErrors))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DiscardedResponses))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DroppedMessages))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Connections.WithLabelValues("ok")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.CommandStarted()
		m.CommandFinished("A.b", OutcomeOK, time.Millisecond)
		m.EventReceived("A")
		m.HandlerFailed("A")
		m.ProtocolError()
		m.ResponseDiscarded()
		m.MessageDropped()
		m.ConnectAttempt("error")
	})
}

func TestRegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := NewRegistered(reg)
	require.NoError(t, err)

	_, err = NewRegistered(reg)
	assert.Error(t, err)
}
