package splits

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fedcat/internal/domain"
)

type mockResolver struct {
	endpoints map[string]domain.Endpoint
}

func (m *mockResolver) Resolve(_ context.Context, name string) (domain.Endpoint, error) {
	ep, ok := m.endpoints[name]
	if !ok {
		return domain.Endpoint{}, &domain.DomainNotFoundError{Domain: name}
	}
	return ep, nil
}

type mockSource struct {
	domain.SourceClient
	objects       map[string][]domain.PhysicalObject
	shards        []domain.Shard
	shardErr      error
	healthCalls   int
	healthTimeout time.Duration
	healthObjects []string
}

func (m *mockSource) GetPhysicalObjectsForLogicalTable(_ context.Context, name string) ([]domain.PhysicalObject, error) {
	objs, ok := m.objects[name]
	if !ok {
		return nil, domain.ErrNotFound("index %s", name)
	}
	return objs, nil
}

func (m *mockSource) GetShardHealth(_ context.Context, objects []string, timeout time.Duration) ([]domain.Shard, error) {
	m.healthCalls++
	m.healthTimeout = timeout
	m.healthObjects = objects
	return m.shards, m.shardErr
}

type staticClients struct {
	client domain.SourceClient
	err    error
}

func (s staticClients) GetOrCreate(domain.Endpoint) (domain.SourceClient, error) {
	return s.client, s.err
}

type countingSpill struct{ n int }

func (c *countingSpill) New(queryID string) domain.SpillLocation {
	c.n++
	return domain.SpillLocation{URI: fmt.Sprintf("s3://spill/%s/%d/", queryID, c.n)}
}

type mockKeys struct {
	calls int
	err   error
}

func (m *mockKeys) Create(context.Context) (*domain.EncryptionKey, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &domain.EncryptionKey{Key: make([]byte, 32), Nonce: make([]byte, 12)}, nil
}

var logsEndpoint = domain.Endpoint{URL: "https://logs.example.com"}

func newTestPlanner(src *mockSource, keys domain.KeyFactory, opts Options) (*Planner, *countingSpill) {
	spill := &countingSpill{}
	p := NewPlanner(
		&mockResolver{endpoints: map[string]domain.Endpoint{"logs": logsEndpoint}},
		staticClients{client: src},
		spill,
		keys,
		opts,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return p, spill
}

func splitsRequest(table string) domain.GetSplitsRequest {
	return domain.GetSplitsRequest{
		QueryID: "q-1",
		Catalog: "search",
		Table:   domain.TableName{Schema: "logs", Table: table},
	}
}

func TestPlan_OnlyPrimaryStartedShards(t *testing.T) {
	src := &mockSource{
		objects: map[string][]domain.PhysicalObject{"orders": {{Name: "orders"}}},
		shards: []domain.Shard{
			{Object: "orders", ID: 0, Primary: true, State: "STARTED"},
			{Object: "orders", ID: 1, Primary: false, State: "STARTED"},
			{Object: "orders", ID: 2, Primary: true, State: "RELOCATING"},
		},
	}
	keys := &mockKeys{}
	p, _ := newTestPlanner(src, keys, Options{ShardSplitting: true, QueryTimeout: 10 * time.Second})

	resp, err := p.Plan(context.Background(), splitsRequest("orders"))
	require.NoError(t, err)
	require.Len(t, resp.Splits, 1)

	s := resp.Splits[0]
	assert.Equal(t, "orders", s.Object)
	assert.Equal(t, 0, s.Shard)
	assert.Equal(t, map[string]string{
		"logs":  "https://logs.example.com",
		"index": "orders",
		"shard": "_shards:0",
	}, s.Properties())
	assert.NotEmpty(t, s.SpillLocation.URI)
	assert.NotNil(t, s.EncryptionKey)
	assert.Equal(t, 1, keys.calls)
	assert.Empty(t, resp.ContinuationToken)
	assert.Equal(t, "search", resp.Catalog)
	assert.Equal(t, 10*time.Second, src.healthTimeout)
}

func TestPlan_DataStreamSingleSnapshot(t *testing.T) {
	src := &mockSource{
		objects: map[string][]domain.PhysicalObject{"events": {
			{Name: ".ds-events-000001"}, {Name: ".ds-events-000002"},
		}},
		shards: []domain.Shard{
			{Object: ".ds-events-000002", ID: 1, Primary: true, State: "STARTED"},
			{Object: ".ds-events-000001", ID: 1, Primary: true, State: "STARTED"},
			{Object: ".ds-events-000002", ID: 0, Primary: true, State: "STARTED"},
			{Object: ".ds-events-000001", ID: 0, Primary: true, State: "STARTED"},
			{Object: ".ds-events-000001", ID: 0, Primary: false, State: "STARTED"},
			{Object: "unrelated", ID: 0, Primary: true, State: "STARTED"},
		},
	}
	p, spill := newTestPlanner(src, nil, Options{ShardSplitting: true})

	resp, err := p.Plan(context.Background(), splitsRequest("events"))
	require.NoError(t, err)

	assert.Equal(t, 1, src.healthCalls, "one health snapshot for all objects")
	assert.Equal(t, []string{".ds-events-000001", ".ds-events-000002"}, src.healthObjects)

	var got []string
	uris := map[string]struct{}{}
	for _, s := range resp.Splits {
		got = append(got, fmt.Sprintf("%s/%d", s.Object, s.Shard))
		uris[s.SpillLocation.URI] = struct{}{}
		assert.Nil(t, s.EncryptionKey)
	}
	assert.Equal(t, []string{
		".ds-events-000001/0", ".ds-events-000001/1",
		".ds-events-000002/0", ".ds-events-000002/1",
	}, got)
	assert.Len(t, uris, 4, "each split gets its own spill location")
	assert.Equal(t, 4, spill.n)
}

func TestPlan_NoEligibleShards(t *testing.T) {
	src := &mockSource{
		objects: map[string][]domain.PhysicalObject{"orders": {{Name: "orders"}}},
		shards:  []domain.Shard{{Object: "orders", ID: 0, Primary: true, State: "INITIALIZING"}},
	}
	p, _ := newTestPlanner(src, nil, Options{ShardSplitting: true})

	resp, err := p.Plan(context.Background(), splitsRequest("orders"))
	require.NoError(t, err)
	assert.Empty(t, resp.Splits)
}

func TestPlan_Failures(t *testing.T) {
	t.Run("unknown_domain", func(t *testing.T) {
		p, _ := newTestPlanner(&mockSource{}, nil, Options{ShardSplitting: true})
		req := splitsRequest("orders")
		req.Table.Schema = "nope"

		_, err := p.Plan(context.Background(), req)
		var nf *domain.DomainNotFoundError
		require.ErrorAs(t, err, &nf)
	})

	t.Run("health_failure", func(t *testing.T) {
		src := &mockSource{
			objects:  map[string][]domain.PhysicalObject{"orders": {{Name: "orders"}}},
			shardErr: domain.ErrUnreachable("https://logs.example.com", context.DeadlineExceeded),
		}
		p, _ := newTestPlanner(src, nil, Options{ShardSplitting: true})

		_, err := p.Plan(context.Background(), splitsRequest("orders"))
		var unreachable *domain.SourceUnreachableError
		require.ErrorAs(t, err, &unreachable)
	})

	t.Run("client_failure", func(t *testing.T) {
		p := NewPlanner(
			&mockResolver{endpoints: map[string]domain.Endpoint{"logs": logsEndpoint}},
			staticClients{err: errors.New("bad endpoint")},
			&countingSpill{}, nil, Options{ShardSplitting: true}, nil,
		)
		_, err := p.Plan(context.Background(), splitsRequest("orders"))
		require.Error(t, err)
	})

	t.Run("key_failure", func(t *testing.T) {
		src := &mockSource{
			objects: map[string][]domain.PhysicalObject{"orders": {{Name: "orders"}}},
			shards:  []domain.Shard{{Object: "orders", ID: 0, Primary: true, State: "STARTED"}},
		}
		p, _ := newTestPlanner(src, &mockKeys{err: errors.New("kms down")}, Options{ShardSplitting: true})

		_, err := p.Plan(context.Background(), splitsRequest("orders"))
		require.ErrorContains(t, err, "kms down")
	})
}

func TestPlan_WholeTable(t *testing.T) {
	src := &mockSource{}
	p, _ := newTestPlanner(src, nil, Options{ShardSplitting: false})

	resp, err := p.Plan(context.Background(), splitsRequest("orders"))
	require.NoError(t, err)
	require.Len(t, resp.Splits, 1)
	assert.Equal(t, "orders", resp.Splits[0].Object)
	assert.Empty(t, resp.Splits[0].Routing)
	assert.NotContains(t, resp.Splits[0].Properties(), domain.SplitShardKey)
	assert.Equal(t, 0, src.healthCalls)
}

func TestPlan_Paging(t *testing.T) {
	var shards []domain.Shard
	for i := 0; i < 5; i++ {
		shards = append(shards, domain.Shard{Object: "orders", ID: i, Primary: true, State: "STARTED"})
	}
	src := &mockSource{
		objects: map[string][]domain.PhysicalObject{"orders": {{Name: "orders"}}},
		shards:  shards,
	}
	p, _ := newTestPlanner(src, nil, Options{ShardSplitting: true, MaxSplitsPerCall: 2})

	var ids []int
	req := splitsRequest("orders")
	pages := 0
	for {
		resp, err := p.Plan(context.Background(), req)
		require.NoError(t, err)
		pages++
		assert.LessOrEqual(t, len(resp.Splits), 2)
		for _, s := range resp.Splits {
			ids = append(ids, s.Shard)
		}
		if resp.ContinuationToken == "" {
			break
		}
		req.ContinuationToken = resp.ContinuationToken
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, ids, "pages concatenate to the unpaged set")
}

func TestPlan_InvalidToken(t *testing.T) {
	src := &mockSource{
		objects: map[string][]domain.PhysicalObject{"orders": {{Name: "orders"}}},
		shards:  []domain.Shard{{Object: "orders", ID: 0, Primary: true, State: "STARTED"}},
	}
	p, _ := newTestPlanner(src, nil, Options{ShardSplitting: true, MaxSplitsPerCall: 2})

	req := splitsRequest("orders")
	req.ContinuationToken = "not base64!"
	_, err := p.Plan(context.Background(), req)
	var valErr *domain.ValidationError
	require.ErrorAs(t, err, &valErr)
}
