// Package search reads structural metadata (indices, aliases, data streams,
// mappings and shard health) from an Elasticsearch or OpenSearch endpoint.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"fedcat/internal/domain"
)

var _ domain.SourceClient = (*Client)(nil)

// Options configures transport-level behaviour of a Client.
type Options struct {
	// SigV4 signs every request for a managed domain using Credentials and Region.
	SigV4       bool
	Credentials aws.CredentialsProvider
	Region      string
	// Transport overrides the underlying HTTP transport.
	Transport http.RoundTripper
}

// Client implements domain.SourceClient over the search REST API.
type Client struct {
	endpoint  domain.Endpoint
	transport esapi.Transport
}

// NewClient creates a client for ep.
func NewClient(ep domain.Endpoint, opts Options) (*Client, error) {
	u, err := url.Parse(ep.URL)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %s: %w", ep, err)
	}

	rt := opts.Transport
	if opts.SigV4 {
		if opts.Credentials == nil {
			return nil, domain.ErrConfiguration("sigv4_signing", "signing requires AWS credentials")
		}
		rt = NewSigV4Transport(rt, opts.Credentials, opts.Region)
	}

	tp, err := elastictransport.New(elastictransport.Config{
		URLs:      []*url.URL{u},
		Username:  ep.Username,
		Password:  ep.Password,
		Transport: rt,
	})
	if err != nil {
		return nil, fmt.Errorf("create transport for %s: %w", ep, err)
	}
	return &Client{endpoint: ep, transport: tp}, nil
}

// Endpoint returns the endpoint the client talks to.
func (c *Client) Endpoint() domain.Endpoint {
	return c.endpoint
}

// ListPhysicalObjects returns every index and alias name, including
// internal ones, sorted and deduplicated.
func (c *Client) ListPhysicalObjects(ctx context.Context) ([]string, error) {
	var resp map[string]struct {
		Aliases map[string]json.RawMessage `json:"aliases"`
	}
	if err := c.do(ctx, esapi.IndicesGetAliasRequest{}, "get aliases", &resp); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(resp))
	for index, entry := range resp {
		seen[index] = struct{}{}
		for alias := range entry.Aliases {
			seen[alias] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}

// ListLogicalTables returns the names of all data streams.
func (c *Client) ListLogicalTables(ctx context.Context) ([]string, error) {
	var resp struct {
		DataStreams []struct {
			Name string `json:"name"`
		} `json:"data_streams"`
	}
	req := esapi.IndicesGetDataStreamRequest{Name: []string{"*"}}
	if err := c.do(ctx, req, "get data streams", &resp); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(resp.DataStreams))
	for _, ds := range resp.DataStreams {
		names = append(names, ds.Name)
	}
	sort.Strings(names)
	return names, nil
}

// GetPhysicalObjectsForLogicalTable expands name (an index, alias or data
// stream) into the concrete indices behind it, sorted by name.
func (c *Client) GetPhysicalObjectsForLogicalTable(ctx context.Context, name string) ([]domain.PhysicalObject, error) {
	var resp map[string]json.RawMessage
	req := esapi.IndicesGetRequest{Index: []string{name}, FilterPath: []string{"*.settings.index.uuid"}}
	if err := c.do(ctx, req, "get index "+name, &resp); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(resp))
	for index := range resp {
		names = append(names, index)
	}
	sort.Strings(names)

	objects := make([]domain.PhysicalObject, 0, len(names))
	for _, n := range names {
		objects = append(objects, domain.PhysicalObject{Name: n})
	}
	return objects, nil
}

// GetStructuralMapping returns the mapping of object. When object names an
// alias the mappings of all indices behind it are merged.
func (c *Client) GetStructuralMapping(ctx context.Context, object string) (map[string]any, error) {
	var resp map[string]struct {
		Mappings map[string]any `json:"mappings"`
	}
	req := esapi.IndicesGetMappingRequest{Index: []string{object}}
	if err := c.do(ctx, req, "get mapping "+object, &resp); err != nil {
		return nil, err
	}

	if entry, ok := resp[object]; ok {
		return entry.Mappings, nil
	}
	indices := make([]string, 0, len(resp))
	for index := range resp {
		indices = append(indices, index)
	}
	sort.Strings(indices)

	props := map[string]any{}
	meta := map[string]any{}
	for _, index := range indices {
		m := resp[index].Mappings
		mergeProperties(props, asMap(m["properties"]))
		for k, v := range asMap(m["_meta"]) {
			if _, ok := meta[k]; !ok {
				meta[k] = v
			}
		}
	}
	return map[string]any{"properties": props, "_meta": meta}, nil
}

type catShard struct {
	Index  string `json:"index"`
	Shard  string `json:"shard"`
	PriRep string `json:"prirep"`
	State  string `json:"state"`
}

// GetShardHealth returns every shard copy of objects from a single
// _cat/shards snapshot. A positive timeout bounds the request.
func (c *Client) GetShardHealth(ctx context.Context, objects []string, timeout time.Duration) ([]domain.Shard, error) {
	if len(objects) == 0 {
		return nil, nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var rows []catShard
	req := esapi.CatShardsRequest{
		Index:  objects,
		Format: "json",
		H:      []string{"index", "shard", "prirep", "state"},
	}
	if err := c.do(ctx, req, "cat shards", &rows); err != nil {
		return nil, err
	}

	shards := make([]domain.Shard, 0, len(rows))
	for _, r := range rows {
		id, err := strconv.Atoi(r.Shard)
		if err != nil {
			return nil, domain.ErrUnreachable(c.endpoint.String(), fmt.Errorf("cat shards: invalid shard id %q for %s", r.Shard, r.Index))
		}
		shards = append(shards, domain.Shard{
			Object:  r.Index,
			ID:      id,
			Primary: r.PriRep == "p" || r.PriRep == "primary",
			State:   r.State,
		})
	}
	return shards, nil
}

// do performs req and decodes a successful JSON body into out. A 404 becomes
// a *domain.NotFoundError; transport failures and other error statuses
// become a *domain.SourceUnreachableError.
func (c *Client) do(ctx context.Context, req esapi.Request, op string, out any) error {
	res, err := req.Do(ctx, c.transport)
	if err != nil {
		return domain.ErrUnreachable(c.endpoint.String(), fmt.Errorf("%s: %w", op, err))
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		if res.StatusCode == http.StatusNotFound {
			return domain.ErrNotFound("%s: %s", op, body)
		}
		return domain.ErrUnreachable(c.endpoint.String(), fmt.Errorf("%s: status %d: %s", op, res.StatusCode, body))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return domain.ErrUnreachable(c.endpoint.String(), fmt.Errorf("%s: decode response: %w", op, err))
	}
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
