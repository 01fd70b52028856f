package domain

import "context"

// DomainRepository tracks which peer feature namespaces are enabled.
type DomainRepository interface {
	// AddDomain records name as enabled. Adding an enabled name is a no-op.
	AddDomain(ctx context.Context, name string) error

	// RemoveDomain records name as disabled. Removing an unknown name is a no-op.
	RemoveDomain(ctx context.Context, name string) error

	// HasDomain reports whether name is currently enabled.
	HasDomain(ctx context.Context, name string) bool

	// ListDomains returns the enabled names in sorted order.
	ListDomains(ctx context.Context) []string

	// Reset forgets every enabled name.
	Reset(ctx context.Context)
}

// SessionSource enumerates connectable sessions.
type SessionSource interface {
	// ListSessions returns the raw discovery listing.
	ListSessions(ctx context.Context) ([]Session, error)

	// Version returns browser and protocol version information.
	Version(ctx context.Context) (BrowserVersion, error)
}
