// Package splits plans parallel scan units over the physical shards of a
// table.
package splits

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"fedcat/internal/domain"
)

// EndpointResolver maps a domain name to its endpoint.
type EndpointResolver interface {
	Resolve(ctx context.Context, name string) (domain.Endpoint, error)
}

// ClientProvider returns the shared source client for an endpoint.
type ClientProvider interface {
	GetOrCreate(ep domain.Endpoint) (domain.SourceClient, error)
}

// Options tunes planning.
type Options struct {
	// ShardSplitting plans one split per eligible shard. When false a single
	// split covers the whole logical table.
	ShardSplitting bool
	// MaxSplitsPerCall pages the split list; zero disables paging.
	MaxSplitsPerCall int
	// QueryTimeout bounds the shard health query.
	QueryTimeout time.Duration
}

// Planner plans splits for search tables.
type Planner struct {
	resolver EndpointResolver
	clients  ClientProvider
	spill    domain.SpillLocator
	keys     domain.KeyFactory
	opts     Options
	logger   *slog.Logger
}

// NewPlanner creates a Planner. spill and keys may be nil to plan splits
// without spill locations or encryption keys.
func NewPlanner(resolver EndpointResolver, clients ClientProvider, spill domain.SpillLocator, keys domain.KeyFactory, opts Options, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		resolver: resolver,
		clients:  clients,
		spill:    spill,
		keys:     keys,
		opts:     opts,
		logger:   logger,
	}
}

// Plan returns the splits of req.Table. With shard splitting enabled the
// result holds exactly one split per primary, started shard of every
// physical object behind the table, taken from a single health snapshot
// and ordered by object then shard id.
func (p *Planner) Plan(ctx context.Context, req domain.GetSplitsRequest) (*domain.GetSplitsResponse, error) {
	ep, err := p.resolver.Resolve(ctx, req.Table.Schema)
	if err != nil {
		return nil, err
	}
	client, err := p.clients.GetOrCreate(ep)
	if err != nil {
		return nil, fmt.Errorf("create client for %s: %w", req.Table.Schema, err)
	}

	var planned []domain.Split
	if p.opts.ShardSplitting {
		planned, err = p.shardSplits(ctx, client, req.Table, ep)
		if err != nil {
			return nil, err
		}
	} else {
		planned = []domain.Split{{
			Domain:   req.Table.Schema,
			Endpoint: ep.URL,
			Object:   req.Table.Table,
		}}
	}

	page, next, err := domain.Page(planned, domain.PageRequest{
		MaxResults: p.opts.MaxSplitsPerCall,
		PageToken:  req.ContinuationToken,
	})
	if err != nil {
		return nil, err
	}

	// Spill locations and keys are only allocated for the splits handed out.
	out := make([]domain.Split, len(page))
	for i, s := range page {
		if p.spill != nil {
			s.SpillLocation = p.spill.New(req.QueryID)
		}
		if p.keys != nil {
			key, err := p.keys.Create(ctx)
			if err != nil {
				return nil, fmt.Errorf("create encryption key: %w", err)
			}
			s.EncryptionKey = key
		}
		out[i] = s
	}

	p.logger.Info("planned splits",
		"query_id", req.QueryID,
		"table", req.Table.String(),
		"total", len(planned),
		"returned", len(out),
	)
	return &domain.GetSplitsResponse{
		Catalog:           req.Catalog,
		Splits:            out,
		ContinuationToken: next,
	}, nil
}

func (p *Planner) shardSplits(ctx context.Context, client domain.SourceClient, table domain.TableName, ep domain.Endpoint) ([]domain.Split, error) {
	objects, err := client.GetPhysicalObjectsForLogicalTable(ctx, table.Table)
	if err != nil {
		return nil, fmt.Errorf("expand table %s: %w", table, err)
	}
	if len(objects) == 0 {
		return nil, nil
	}

	names := make([]string, len(objects))
	for i, o := range objects {
		names[i] = o.Name
	}
	shards, err := client.GetShardHealth(ctx, names, p.opts.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("shard health for %s: %w", table, err)
	}

	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}

	type key struct {
		object string
		id     int
	}
	seen := make(map[key]struct{}, len(shards))
	var planned []domain.Split
	for _, sh := range shards {
		if _, ok := wanted[sh.Object]; !ok || !sh.Eligible() {
			continue
		}
		k := key{sh.Object, sh.ID}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		planned = append(planned, domain.Split{
			Domain:   table.Schema,
			Endpoint: ep.URL,
			Object:   sh.Object,
			Shard:    sh.ID,
			Routing:  domain.ShardRouting(sh.ID),
		})
	}

	sort.Slice(planned, func(i, j int) bool {
		if planned[i].Object != planned[j].Object {
			return planned[i].Object < planned[j].Object
		}
		return planned[i].Shard < planned[j].Shard
	})
	return planned, nil
}
