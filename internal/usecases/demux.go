package usecases

import (
	"context"

	"github.com/FreePeak/golang-cdp-client/internal/domain/shared"
	"github.com/FreePeak/golang-cdp-client/internal/domain/transport"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/logging"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/metrics"
)

// maxLoggedPayload bounds the payload excerpt attached to protocol warnings.
const maxLoggedPayload = 512

// Demultiplexer is the single reader of a transport. It routes responses to
// the correlator and events to the queue and the router, in wire order.
type Demultiplexer struct {
	transport  transport.Transport
	correlator *Correlator
	router     *EventRouter
	queue      *MessageQueue
	queueMode  QueueMode

	logger  *logging.Logger
	metrics *metrics.Metrics
}

// DemuxConfig contains the collaborators of a Demultiplexer.
type DemuxConfig struct {
	Transport  transport.Transport
	Correlator *Correlator
	Router     *EventRouter
	Queue      *MessageQueue
	QueueMode  QueueMode
	Logger     *logging.Logger
	Metrics    *metrics.Metrics
}

// NewDemultiplexer creates a Demultiplexer.
func NewDemultiplexer(config DemuxConfig) *Demultiplexer {
	logger := config.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	mode := config.QueueMode
	if mode == "" {
		mode = QueueEvents
	}
	return &Demultiplexer{
		transport:  config.Transport,
		correlator: config.Correlator,
		router:     config.Router,
		queue:      config.Queue,
		queueMode:  mode,
		logger:     logger,
		metrics:    config.Metrics,
	}
}

// Run reads until the transport fails or ctx is done and returns the error
// that ended the loop. Malformed payloads are logged and skipped.
func (d *Demultiplexer) Run(ctx context.Context) error {
	for {
		data, err := d.transport.Receive(ctx)
		if err != nil {
			return err
		}
		d.handle(ctx, data)
	}
}

func (d *Demultiplexer) handle(ctx context.Context, data []byte) {
	msg, err := shared.ParseMessage(data)
	if err != nil {
		d.metrics.ProtocolError()
		d.logger.Warn("skipping malformed message", logging.Fields{
			"error":   err,
			"payload": excerpt(data),
		})
		return
	}

	switch msg.Kind {
	case shared.KindResponse:
		if !d.correlator.Complete(msg.Response) {
			d.metrics.ResponseDiscarded()
			d.logger.Debug("discarding response with unknown id", logging.Fields{"id": msg.Response.ID})
		}
		if d.queueMode == QueueAll {
			d.queue.Push(msg)
		}
	case shared.KindEvent:
		d.metrics.EventReceived(msg.Event.Domain())
		if d.queueMode != QueueNone {
			d.queue.Push(msg)
		}
		d.router.Dispatch(ctx, *msg.Event)
	}
}

func excerpt(data []byte) string {
	if len(data) > maxLoggedPayload {
		return string(data[:maxLoggedPayload]) + "..."
	}
	return string(data)
}
