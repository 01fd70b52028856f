package usecases

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/FreePeak/golang-cdp-client/internal/domain"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/logging"
)

// Commander sends a command and waits for its result.
type Commander interface {
	SendCommand(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// DomainRegistry tracks which protocol domains are enabled on the current
// connection. Enabling an enabled domain, or disabling a disabled one, sends
// nothing.
type DomainRegistry struct {
	commander Commander
	repo      domain.DomainRepository
	group     singleflight.Group
	logger    *logging.Logger

	// mu orders recording a result against Close.
	mu     sync.Mutex
	closed bool
}

// NewDomainRegistry creates a registry backed by repo.
func NewDomainRegistry(commander Commander, repo domain.DomainRepository, logger *logging.Logger) *DomainRegistry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &DomainRegistry{
		commander: commander,
		repo:      repo,
		logger:    logger,
	}
}

// Enable sends "<name>.enable" unless the domain is already enabled.
//
// Concurrent calls for the same domain share one command. The shared command
// is detached from every caller's context and is bounded only by the
// commander's own timeout, so a caller whose ctx ends stops waiting without
// cancelling it for the others.
func (r *DomainRegistry) Enable(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("domain name is required")
	}
	if r.repo.HasDomain(ctx, name) {
		return nil
	}

	method := name + ".enable"
	detached := context.WithoutCancel(ctx)
	ch := r.group.DoChan("enable:"+name, func() (any, error) {
		if r.repo.HasDomain(detached, name) {
			return nil, nil
		}
		if _, err := r.commander.SendCommand(detached, method, nil); err != nil {
			return nil, err
		}
		if err := r.record(method, func() error { return r.repo.AddDomain(detached, name) }); err != nil {
			return nil, err
		}
		r.logger.Debug("domain enabled", logging.Fields{"domain": name})
		return nil, nil
	})
	return r.await(ctx, method, ch)
}

// Disable sends "<name>.disable" if the domain is enabled. The domain stays
// enabled when the command fails.
func (r *DomainRegistry) Disable(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("domain name is required")
	}
	if !r.repo.HasDomain(ctx, name) {
		return nil
	}

	method := name + ".disable"
	detached := context.WithoutCancel(ctx)
	ch := r.group.DoChan("disable:"+name, func() (any, error) {
		if !r.repo.HasDomain(detached, name) {
			return nil, nil
		}
		if _, err := r.commander.SendCommand(detached, method, nil); err != nil {
			return nil, err
		}
		if err := r.record(method, func() error { return r.repo.RemoveDomain(detached, name) }); err != nil {
			return nil, err
		}
		r.logger.Debug("domain disabled", logging.Fields{"domain": name})
		return nil, nil
	})
	return r.await(ctx, method, ch)
}

// record applies a confirmed change unless the registry was closed while
// the command was in flight.
func (r *DomainRegistry) record(method string, apply func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return domain.NewNotConnectedError(method, nil)
	}
	return apply()
}

func (r *DomainRegistry) await(ctx context.Context, method string, ch <-chan singleflight.Result) error {
	started := time.Now()
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		select {
		case res := <-ch:
			return res.Err
		default:
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &domain.TimeoutError{Op: method, Elapsed: time.Since(started)}
		}
		return ctx.Err()
	}
}

// IsEnabled reports whether name is enabled.
func (r *DomainRegistry) IsEnabled(ctx context.Context, name string) bool {
	return r.repo.HasDomain(ctx, name)
}

// List returns the enabled domains, sorted.
func (r *DomainRegistry) List(ctx context.Context) []string {
	return r.repo.ListDomains(ctx)
}

// Reset forgets every enabled domain without sending anything.
func (r *DomainRegistry) Reset(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repo.Reset(ctx)
}

// Close forgets every enabled domain and ignores results of commands still
// in flight.
func (r *DomainRegistry) Close(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.repo.Reset(ctx)
}
