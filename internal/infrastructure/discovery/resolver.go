// Package discovery queries the HTTP discovery endpoint of a debugging peer
// for the sessions it will accept socket connections for.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/FreePeak/golang-cdp-client/internal/domain"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/logging"
)

const (
	listPath    = "/json"
	versionPath = "/json/version"

	// maxBodySize bounds discovery responses; listings are small.
	maxBodySize = 4 << 20
)

// Resolver lists and selects sessions from a discovery endpoint.
type Resolver struct {
	scheme     string
	host       string
	port       int
	httpClient *http.Client
	logger     *logging.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the HTTP client used for discovery requests.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		r.httpClient = c
	}
}

// WithScheme sets the URL scheme (default "http").
func WithScheme(scheme string) Option {
	return func(r *Resolver) {
		r.scheme = scheme
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a resolver for host:port.
func NewResolver(host string, port int, opts ...Option) *Resolver {
	r := &Resolver{
		scheme:     "http",
		host:       host,
		port:       port,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BaseURL returns the discovery base URL.
func (r *Resolver) BaseURL() string {
	return fmt.Sprintf("%s://%s", r.scheme, net.JoinHostPort(r.host, strconv.Itoa(r.port)))
}

// ListSessions returns the raw session listing.
func (r *Resolver) ListSessions(ctx context.Context) ([]domain.Session, error) {
	var sessions []domain.Session
	if err := r.getJSON(ctx, listPath, &sessions); err != nil {
		return nil, err
	}
	r.logger.Debug("listed sessions", logging.Fields{"count": len(sessions)})
	return sessions, nil
}

// Version returns the peer's browser and protocol version.
func (r *Resolver) Version(ctx context.Context) (domain.BrowserVersion, error) {
	var version domain.BrowserVersion
	if err := r.getJSON(ctx, versionPath, &version); err != nil {
		return domain.BrowserVersion{}, err
	}
	return version, nil
}

// Resolve lists sessions and applies the selector.
func (r *Resolver) Resolve(ctx context.Context, selector domain.Selector) (domain.Session, bool, error) {
	sessions, err := r.ListSessions(ctx)
	if err != nil {
		return domain.Session{}, false, err
	}
	session, ok := SelectSession(sessions, selector)
	return session, ok, nil
}

// SelectSession picks a session: exact id first, then URL substring, then
// title substring. With an empty selector the first session is returned.
func SelectSession(sessions []domain.Session, selector domain.Selector) (domain.Session, bool) {
	return selector.Select(sessions)
}

func (r *Resolver) getJSON(ctx context.Context, path string, out any) error {
	endpoint := r.BaseURL() + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.NewDiscoveryError(endpoint, errors.Wrap(err, "failed to create HTTP request"))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return domain.NewDiscoveryError(endpoint, errors.Wrap(err, "failed to send HTTP request"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.NewDiscoveryError(endpoint, errors.Errorf("unexpected status: %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return domain.NewDiscoveryError(endpoint, errors.Wrap(err, "failed to read response body"))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.NewDiscoveryError(endpoint, errors.Wrap(err, "failed to parse response JSON"))
	}
	return nil
}
