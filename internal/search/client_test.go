package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fedcat/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(domain.Endpoint{URL: server.URL, Username: "reader", Password: "s3cret"}, Options{})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestClient_ListPhysicalObjects(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_alias", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "reader", user)
		assert.Equal(t, "s3cret", pass)
		writeJSON(w, `{
			"orders-2024": {"aliases": {"orders": {}}},
			"orders-2023": {"aliases": {"orders": {}}},
			".kibana_1": {"aliases": {".kibana": {}}},
			".ds-events-000001": {"aliases": {}}
		}`)
	})

	got, err := c.ListPhysicalObjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{".ds-events-000001", ".kibana", ".kibana_1", "orders", "orders-2023", "orders-2024"}, got)
}

func TestClient_ListLogicalTables(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_data_stream/*", r.URL.Path)
		writeJSON(w, `{"data_streams": [
			{"name": "metrics", "indices": [{"index_name": ".ds-metrics-000001"}]},
			{"name": "events", "indices": [{"index_name": ".ds-events-000001"}]}
		]}`)
	})

	got, err := c.ListLogicalTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"events", "metrics"}, got)
}

func TestClient_GetPhysicalObjectsForLogicalTable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events", r.URL.Path)
		writeJSON(w, `{
			".ds-events-000002": {"settings": {"index": {"uuid": "b"}}},
			".ds-events-000001": {"settings": {"index": {"uuid": "a"}}}
		}`)
	})

	got, err := c.GetPhysicalObjectsForLogicalTable(context.Background(), "events")
	require.NoError(t, err)
	assert.Equal(t, []domain.PhysicalObject{{Name: ".ds-events-000001"}, {Name: ".ds-events-000002"}}, got)
}

func TestClient_GetPhysicalObjectsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, `{"error": {"type": "index_not_found_exception"}}`)
	})

	_, err := c.GetPhysicalObjectsForLogicalTable(context.Background(), "missing")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestClient_GetStructuralMapping(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/orders-2024/_mapping", r.URL.Path)
			writeJSON(w, `{"orders-2024": {"mappings": {"properties": {"id": {"type": "long"}}}}}`)
		})

		got, err := c.GetStructuralMapping(context.Background(), "orders-2024")
		require.NoError(t, err)
		assert.Contains(t, asMap(got["properties"]), "id")
	})

	t.Run("alias_merges_indices", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, `{
				"orders-2023": {"mappings": {"properties": {"id": {"type": "long"}}}},
				"orders-2024": {"mappings": {"properties": {"id": {"type": "keyword"}, "note": {"type": "text"}}, "_meta": {"tags": "list"}}}
			}`)
		})

		got, err := c.GetStructuralMapping(context.Background(), "orders")
		require.NoError(t, err)
		props := asMap(got["properties"])
		assert.Equal(t, "long", asMap(props["id"])["type"], "first index wins")
		assert.Contains(t, props, "note")
		assert.Equal(t, "list", asMap(got["_meta"])["tags"])
	})
}

func TestClient_GetShardHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_cat/shards/orders-2023,orders-2024", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "index,shard,prirep,state", r.URL.Query().Get("h"))
		writeJSON(w, `[
			{"index": "orders-2023", "shard": "0", "prirep": "p", "state": "STARTED"},
			{"index": "orders-2023", "shard": "1", "prirep": "r", "state": "STARTED"},
			{"index": "orders-2024", "shard": "2", "prirep": "p", "state": "RELOCATING"}
		]`)
	})

	got, err := c.GetShardHealth(context.Background(), []string{"orders-2023", "orders-2024"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []domain.Shard{
		{Object: "orders-2023", ID: 0, Primary: true, State: "STARTED"},
		{Object: "orders-2023", ID: 1, Primary: false, State: "STARTED"},
		{Object: "orders-2024", ID: 2, Primary: true, State: "RELOCATING"},
	}, got)
}

func TestClient_GetShardHealthNoObjects(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected")
	})

	got, err := c.GetShardHealth(context.Background(), nil, time.Second)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClient_GetShardHealthTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		writeJSON(w, `[]`)
	})

	_, err := c.GetShardHealth(context.Background(), []string{"orders"}, 50*time.Millisecond)
	var unreachable *domain.SourceUnreachableError
	require.ErrorAs(t, err, &unreachable)
}

func TestClient_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, `{"error": "boom"}`)
	})

	_, err := c.ListPhysicalObjects(context.Background())
	var unreachable *domain.SourceUnreachableError
	require.ErrorAs(t, err, &unreachable)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_SigV4(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		assert.True(t, strings.HasPrefix(auth, "AWS4-HMAC-SHA256 "), auth)
		assert.Contains(t, auth, "Credential=AKID/")
		assert.Contains(t, auth, "/us-west-2/es/aws4_request")
		assert.NotEmpty(t, r.Header.Get("X-Amz-Date"))
		writeJSON(w, `{"data_streams": []}`)
	}))
	defer server.Close()

	c, err := NewClient(domain.Endpoint{URL: server.URL}, Options{
		SigV4:       true,
		Credentials: credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
		Region:      "us-west-2",
	})
	require.NoError(t, err)

	got, err := c.ListLogicalTables(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewClient_SigV4WithoutCredentials(t *testing.T) {
	_, err := NewClient(domain.Endpoint{URL: "https://search.example.com"}, Options{SigV4: true})
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}
