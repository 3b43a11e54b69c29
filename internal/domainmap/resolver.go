// Package domainmap resolves domain names to search endpoints. Bindings come
// from a static mapping or from a discovery API, and are held as an immutable
// snapshot that a refresh swaps out atomically.
package domainmap

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"fedcat/internal/domain"
)

const refreshTimeout = 30 * time.Second

// Options configure a Resolver.
type Options struct {
	// Mapping is the static "name=endpoint,..." string. Ignored when
	// Discovery is set.
	Mapping string
	// Discovery enables auto-discovery when non-nil.
	Discovery domain.DiscoveryClient
}

// Resolver maps domain names to endpoints.
type Resolver struct {
	current   atomic.Pointer[domain.DomainMap]
	discovery domain.DiscoveryClient
	group     singleflight.Group
	refreshes atomic.Int64
	logger    *slog.Logger
}

// New builds a Resolver. With discovery enabled the initial snapshot is
// loaded from the discovery API, and a failure to do so fails construction.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Resolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{discovery: opts.Discovery, logger: logger}

	if r.discovery != nil {
		if _, err := r.Refresh(ctx); err != nil {
			return nil, err
		}
		return r, nil
	}

	entries, err := ParseMapping(opts.Mapping)
	if err != nil {
		return nil, err
	}
	r.current.Store(domain.NewDomainMap(entries))
	return r, nil
}

// AutoDiscover reports whether the resolver refreshes from a discovery API.
func (r *Resolver) AutoDiscover() bool {
	return r.discovery != nil
}

// Snapshot returns the current domain map.
func (r *Resolver) Snapshot() *domain.DomainMap {
	return r.current.Load()
}

// Refreshes returns how many discovery refreshes have completed.
func (r *Resolver) Refreshes() int64 {
	return r.refreshes.Load()
}

// Resolve returns the endpoint for name. On a miss with auto-discovery
// enabled, the map is rebuilt once and the lookup retried; otherwise a
// *domain.DomainNotFoundError is returned.
func (r *Resolver) Resolve(ctx context.Context, name string) (domain.Endpoint, error) {
	if ep, ok := r.current.Load().Lookup(name); ok {
		return ep, nil
	}
	if r.discovery == nil {
		return domain.Endpoint{}, &domain.DomainNotFoundError{Domain: name}
	}

	r.logger.Warn("domain not in map, refreshing", "domain", name)
	snapshot, err := r.Refresh(ctx)
	if err != nil {
		return domain.Endpoint{}, err
	}
	if ep, ok := snapshot.Lookup(name); ok {
		return ep, nil
	}
	return domain.Endpoint{}, &domain.DomainNotFoundError{Domain: name}
}

// Refresh rebuilds the snapshot from the discovery API. Concurrent callers
// share one in-flight request, which runs detached from any single caller's
// cancellation and is bounded by refreshTimeout. Each caller still returns
// when its own ctx is done. On failure the previous snapshot is kept.
func (r *Resolver) Refresh(ctx context.Context) (*domain.DomainMap, error) {
	if r.discovery == nil {
		return r.current.Load(), nil
	}

	ch := r.group.DoChan("refresh", func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		bindings, err := r.discovery.ListDomainBindings(rctx)
		if err != nil {
			return nil, domain.ErrUnreachable("domain discovery", err)
		}
		snapshot := domain.NewDomainMap(bindings)
		r.current.Store(snapshot)
		r.refreshes.Add(1)
		r.logger.Debug("domain map refreshed", "domains", snapshot.Len())
		return snapshot, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			r.logger.Warn("domain map refresh failed", "error", res.Err)
			return nil, res.Err
		}
		return res.Val.(*domain.DomainMap), nil
	}
}

// Names lists the known domain names, refreshing first when requested and
// auto-discovery is enabled.
func (r *Resolver) Names(ctx context.Context, refresh bool) ([]string, error) {
	if refresh && r.discovery != nil {
		snapshot, err := r.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		return snapshot.Names(), nil
	}
	return r.current.Load().Names(), nil
}
