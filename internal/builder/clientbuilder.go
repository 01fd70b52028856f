package builder

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/FreePeak/golang-cdp-client/internal/config"
	"github.com/FreePeak/golang-cdp-client/internal/domain"
	"github.com/FreePeak/golang-cdp-client/internal/domain/transport"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/discovery"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/logging"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/metrics"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/store"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/websocket"
	"github.com/FreePeak/golang-cdp-client/internal/usecases"
)

// ClientBuilder implements the Builder pattern for creating protocol clients
type ClientBuilder struct {
	host             string
	port             int
	scheme           string
	suppressOrigin   bool
	commandTimeout   time.Duration
	handshakeTimeout time.Duration
	queueMode        usecases.QueueMode
	queueCapacity    int
	logger           *logging.Logger
	registerer       prometheus.Registerer
	metrics          *metrics.Metrics
	dialer           transport.Dialer
	sessions         domain.SessionSource
	domainRepo       domain.DomainRepository
}

// NewClientBuilder creates a new client builder with default values
func NewClientBuilder() *ClientBuilder {
	return FromConfig(config.Default())
}

// FromConfig creates a builder seeded from a loaded configuration
func FromConfig(cfg *config.Config) *ClientBuilder {
	return &ClientBuilder{
		host:             cfg.Host,
		port:             cfg.Port,
		scheme:           cfg.Scheme,
		suppressOrigin:   cfg.SuppressOrigin,
		commandTimeout:   cfg.CommandTimeout,
		handshakeTimeout: cfg.HandshakeTimeout,
		queueMode:        cfg.QueueMode(),
		queueCapacity:    cfg.Queue.Capacity,
	}
}

// WithAddress sets the peer host and port
func (b *ClientBuilder) WithAddress(host string, port int) *ClientBuilder {
	b.host = host
	b.port = port
	return b
}

// WithScheme sets the discovery scheme
func (b *ClientBuilder) WithScheme(scheme string) *ClientBuilder {
	b.scheme = scheme
	return b
}

// WithSuppressOrigin omits the Origin handshake header
func (b *ClientBuilder) WithSuppressOrigin(suppress bool) *ClientBuilder {
	b.suppressOrigin = suppress
	return b
}

// WithCommandTimeout sets the default command timeout
func (b *ClientBuilder) WithCommandTimeout(d time.Duration) *ClientBuilder {
	b.commandTimeout = d
	return b
}

// WithHandshakeTimeout sets the socket handshake timeout
func (b *ClientBuilder) WithHandshakeTimeout(d time.Duration) *ClientBuilder {
	b.handshakeTimeout = d
	return b
}

// WithQueue sets the queue mode and capacity
func (b *ClientBuilder) WithQueue(mode usecases.QueueMode, capacity int) *ClientBuilder {
	b.queueMode = mode
	b.queueCapacity = capacity
	return b
}

// WithLogger sets the logger
func (b *ClientBuilder) WithLogger(logger *logging.Logger) *ClientBuilder {
	b.logger = logger
	return b
}

// WithMetrics sets the metrics collectors
func (b *ClientBuilder) WithMetrics(m *metrics.Metrics) *ClientBuilder {
	b.metrics = m
	return b
}

// WithRegisterer creates metrics and registers them on reg when built
func (b *ClientBuilder) WithRegisterer(reg prometheus.Registerer) *ClientBuilder {
	b.registerer = reg
	return b
}

// WithDialer replaces the WebSocket dialer
func (b *ClientBuilder) WithDialer(dialer transport.Dialer) *ClientBuilder {
	b.dialer = dialer
	return b
}

// WithSessionSource replaces the discovery resolver
func (b *ClientBuilder) WithSessionSource(sessions domain.SessionSource) *ClientBuilder {
	b.sessions = sessions
	return b
}

// WithDomainRepository sets the enabled-domain store
func (b *ClientBuilder) WithDomainRepository(repo domain.DomainRepository) *ClientBuilder {
	b.domainRepo = repo
	return b
}

func (b *ClientBuilder) buildLogger() *logging.Logger {
	if b.logger == nil {
		b.logger = logging.NewNop()
	}
	return b.logger
}

// BuildResolver builds the discovery resolver
func (b *ClientBuilder) BuildResolver() *discovery.Resolver {
	return discovery.NewResolver(b.host, b.port,
		discovery.WithScheme(b.scheme),
		discovery.WithLogger(b.buildLogger().Named("discovery")),
	)
}

// BuildDialer builds the WebSocket dialer
func (b *ClientBuilder) BuildDialer() *websocket.Dialer {
	return websocket.NewDialer(
		websocket.WithHandshakeTimeout(b.handshakeTimeout),
		websocket.WithSuppressOrigin(b.suppressOrigin),
		websocket.WithLogger(b.buildLogger().Named("websocket")),
	)
}

// BuildMetrics returns the configured metrics, registering them when a
// registerer was supplied
func (b *ClientBuilder) BuildMetrics() (*metrics.Metrics, error) {
	if b.metrics != nil {
		return b.metrics, nil
	}
	if b.registerer == nil {
		return nil, nil
	}
	m, err := metrics.NewRegistered(b.registerer)
	if err != nil {
		return nil, err
	}
	b.metrics = m
	return m, nil
}

// BuildClient builds a disconnected client
func (b *ClientBuilder) BuildClient() (*usecases.Client, error) {
	m, err := b.BuildMetrics()
	if err != nil {
		return nil, err
	}

	// Fall back to the real socket and discovery implementations
	dialer := b.dialer
	if dialer == nil {
		dialer = b.BuildDialer()
	}
	sessions := b.sessions
	if sessions == nil {
		sessions = b.BuildResolver()
	}
	repo := b.domainRepo
	if repo == nil {
		repo = store.NewInMemoryDomainRepository()
	}

	return usecases.NewClient(usecases.ClientConfig{
		Dialer:         dialer,
		Sessions:       sessions,
		DomainRepo:     repo,
		Logger:         b.buildLogger().Named("client"),
		Metrics:        m,
		CommandTimeout: b.commandTimeout,
		QueueMode:      b.queueMode,
		QueueCapacity:  b.queueCapacity,
	})
}
