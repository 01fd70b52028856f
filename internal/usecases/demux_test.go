package usecases

import (
	"context"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/FreePeak/golang-cdp-client/internal/domain"
	"github.com/FreePeak/golang-cdp-client/internal/domain/shared"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/logging"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/metrics"
	"github.com/FreePeak/golang-cdp-client/internal/testutil"
)

type demuxFixture struct {
	transport  *testutil.MockTransport
	correlator *Correlator
	router     *EventRouter
	queue      *MessageQueue
	metrics    *metrics.Metrics
	logs       *observer.ObservedLogs
	done       chan error
}

func startDemux(t *testing.T, mode QueueMode) *demuxFixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := logging.FromZap(zap.New(core))
	m := metrics.New()

	f := &demuxFixture{
		transport:  testutil.NewMockTransport(),
		correlator: NewCorrelator(m),
		router:     NewEventRouter(logger, m),
		queue:      NewMessageQueue(0, m),
		metrics:    m,
		logs:       logs,
		done:       make(chan error, 1),
	}
	demux := NewDemultiplexer(DemuxConfig{
		Transport:  f.transport,
		Correlator: f.correlator,
		Router:     f.router,
		Queue:      f.queue,
		QueueMode:  mode,
		Logger:     logger,
		Metrics:    m,
	})
	go func() { f.done <- demux.Run(context.Background()) }()
	t.Cleanup(func() { _ = f.transport.Close() })
	return f
}

func TestDemuxSkipsMalformedPayloads(t *testing.T) {
	f := startDemux(t, QueueEvents)

	f.transport.DeliverString(`not json`)
	f.transport.DeliverString(`{"id": "seven", "result": {}}`)
	f.transport.DeliverEvent("Page.loadEventFired", map[string]any{"timestamp": 1.5})

	match, _, err := f.queue.WaitEvent(context.Background(), "Page.loadEventFired", 2*time.Second)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, float64(2), promtestutil.ToFloat64(f.metrics.ProtocolErrors))
	assert.Equal(t, 2, f.logs.FilterMessage("skipping malformed message").Len())
}

func TestDemuxQueueModes(t *testing.T) {
	t.Run("None", func(t *testing.T) {
		f := startDemux(t, QueueNone)
		seen := make(chan string, 1)
		f.router.AddHandler(AllEvents, func(ctx context.Context, event shared.Event) error {
			seen <- event.Method
			return nil
		})

		f.transport.DeliverEvent("Log.entryAdded", nil)
		assert.Equal(t, "Log.entryAdded", <-seen)
		assert.Equal(t, 0, f.queue.Len())
	})

	t.Run("All", func(t *testing.T) {
		f := startDemux(t, QueueAll)
		pc, err := f.correlator.Register("Page.navigate")
		require.NoError(t, err)

		f.transport.DeliverResult(pc.id, map[string]string{"frameId": "F1"})
		<-pc.done

		msg, err := f.queue.WaitMessage(context.Background(), 2*time.Second)
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, shared.KindResponse, msg.Kind)
		assert.Equal(t, pc.id, msg.Response.ID)
	})
}

func TestDemuxDiscardsUnknownResponses(t *testing.T) {
	f := startDemux(t, QueueEvents)

	f.transport.DeliverResult(99, map[string]any{})
	f.transport.DeliverEvent("Marker.event", nil)

	_, _, err := f.queue.WaitEvent(context.Background(), "Marker.event", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, float64(1), promtestutil.ToFloat64(f.metrics.DiscardedResponses))
	assert.Equal(t, 0, f.queue.Len())
}

func TestDemuxReturnsTransportError(t *testing.T) {
	f := startDemux(t, QueueEvents)
	require.NoError(t, f.transport.Close())

	select {
	case err := <-f.done:
		assert.True(t, domain.IsNotConnected(err))
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not stop")
	}
}
