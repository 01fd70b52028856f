// Package store holds in-memory implementations of the domain repositories.
package store

import (
	"context"
	"sort"
	"sync"
)

// InMemoryDomainRepository implements a DomainRepository using in-memory storage.
type InMemoryDomainRepository struct {
	domains sync.Map
}

// NewInMemoryDomainRepository creates a new InMemoryDomainRepository.
func NewInMemoryDomainRepository() *InMemoryDomainRepository {
	return &InMemoryDomainRepository{}
}

// AddDomain records a domain as enabled.
func (r *InMemoryDomainRepository) AddDomain(ctx context.Context, name string) error {
	r.domains.Store(name, struct{}{})
	return nil
}

// RemoveDomain records a domain as disabled.
func (r *InMemoryDomainRepository) RemoveDomain(ctx context.Context, name string) error {
	r.domains.Delete(name)
	return nil
}

// HasDomain reports whether a domain is enabled.
func (r *InMemoryDomainRepository) HasDomain(ctx context.Context, name string) bool {
	_, ok := r.domains.Load(name)
	return ok
}

// ListDomains returns all enabled domains, sorted.
func (r *InMemoryDomainRepository) ListDomains(ctx context.Context) []string {
	var names []string
	r.domains.Range(func(key, _ interface{}) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// Reset removes every domain.
func (r *InMemoryDomainRepository) Reset(ctx context.Context) {
	r.domains.Range(func(key, _ interface{}) bool {
		r.domains.Delete(key)
		return true
	})
}
