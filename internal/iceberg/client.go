// Package iceberg is a client for the Iceberg REST catalog protocol,
// covering the read-only metadata calls: config, namespaces, tables and
// table loading.
package iceberg

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"fedcat/internal/domain"
)

// catalogScope is the OAuth2 scope requested for catalog access.
const catalogScope = "catalog"

const headerPropertyPrefix = "header."

// Config configures a Client.
type Config struct {
	URI        string
	Warehouse  string
	Credential string // "client_id:client_secret" or a bare secret
	Headers    map[string]string
	// HTTPClient is the base client for catalog and token requests.
	HTTPClient *http.Client
}

// Client talks to one Iceberg REST catalog.
type Client struct {
	base    *url.URL
	prefix  string
	headers map[string]string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client and resolves the catalog's path prefix from
// its config endpoint. Tokens are fetched with the OAuth2 client
// credentials grant against <uri>/v1/oauth/tokens.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base, err := url.Parse(strings.TrimRight(cfg.URI, "/"))
	if err != nil {
		return nil, domain.ErrConfiguration("iceberg_rest_uri", "invalid URI %q", cfg.URI)
	}

	// The token source outlives ctx, so only its values are kept.
	tokenCtx := context.WithoutCancel(ctx)
	if cfg.HTTPClient != nil {
		tokenCtx = context.WithValue(tokenCtx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	clientID, secret := splitCredential(cfg.Credential)
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: secret,
		TokenURL:     base.String() + "/v1/oauth/tokens",
		Scopes:       []string{catalogScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	c := &Client{
		base:    base,
		headers: headerNames(cfg.Headers),
		http:    cc.Client(tokenCtx),
		logger:  logger,
	}

	var catalogCfg struct {
		Defaults  map[string]string `json:"defaults"`
		Overrides map[string]string `json:"overrides"`
	}
	query := url.Values{}
	if cfg.Warehouse != "" {
		query.Set("warehouse", cfg.Warehouse)
	}
	if err := c.get(ctx, "config", query, &catalogCfg); err != nil {
		return nil, fmt.Errorf("load catalog config: %w", err)
	}
	c.prefix = catalogCfg.Overrides["prefix"]
	if c.prefix == "" {
		c.prefix = catalogCfg.Defaults["prefix"]
	}
	logger.Info("initialized iceberg rest catalog", "uri", base.String(), "warehouse", cfg.Warehouse, "prefix", c.prefix)
	return c, nil
}

// headerNames accepts both bare header names and the catalog property form
// "header.<Name>".
func headerNames(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[strings.TrimPrefix(k, headerPropertyPrefix)] = v
	}
	return out
}

func splitCredential(credential string) (id, secret string) {
	if id, secret, ok := strings.Cut(credential, ":"); ok {
		return id, secret
	}
	return "", credential
}

// ListNamespaces returns all top-level namespaces, following pagination.
func (c *Client) ListNamespaces(ctx context.Context) ([][]string, error) {
	var out [][]string
	err := c.paginate(ctx, c.path("namespaces"), func(raw []byte) (string, error) {
		var page struct {
			Namespaces    [][]string `json:"namespaces"`
			NextPageToken string     `json:"next-page-token"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return "", err
		}
		out = append(out, page.Namespaces...)
		return page.NextPageToken, nil
	})
	return out, err
}

// ListTables returns the table names of a namespace, following pagination.
func (c *Client) ListTables(ctx context.Context, namespace []string) ([]string, error) {
	var out []string
	err := c.paginate(ctx, c.path("namespaces", encodeNamespace(namespace), "tables"), func(raw []byte) (string, error) {
		var page struct {
			Identifiers []struct {
				Namespace []string `json:"namespace"`
				Name      string   `json:"name"`
			} `json:"identifiers"`
			NextPageToken string `json:"next-page-token"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return "", err
		}
		for _, id := range page.Identifiers {
			out = append(out, id.Name)
		}
		return page.NextPageToken, nil
	})
	return out, err
}

// LoadTable returns the current metadata of a table.
func (c *Client) LoadTable(ctx context.Context, namespace []string, table string) (*TableMetadata, error) {
	var result struct {
		MetadataLocation string        `json:"metadata-location"`
		Metadata         TableMetadata `json:"metadata"`
	}
	if err := c.get(ctx, c.path("namespaces", encodeNamespace(namespace), "tables", table), nil, &result); err != nil {
		return nil, err
	}
	return &result.Metadata, nil
}

func (c *Client) path(segments ...string) string {
	escaped := make([]string, 0, len(segments)+1)
	for _, p := range strings.Split(c.prefix, "/") {
		if p != "" {
			escaped = append(escaped, url.PathEscape(p))
		}
	}
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return strings.Join(escaped, "/")
}

func (c *Client) paginate(ctx context.Context, path string, handle func(raw []byte) (string, error)) error {
	token := ""
	for {
		query := url.Values{}
		if token != "" {
			query.Set("pageToken", token)
		}
		var raw json.RawMessage
		if err := c.get(ctx, path, query, &raw); err != nil {
			return err
		}
		next, err := handle(raw)
		if err != nil {
			return domain.ErrUnreachable("iceberg", fmt.Errorf("decode %s: %w", path, err))
		}
		if next == "" || next == token {
			return nil
		}
		token = next
	}
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// get issues GET <uri>/v1/<path>. A 404 becomes a *domain.NotFoundError;
// other failures become a *domain.SourceUnreachableError.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.base.String() + "/v1/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ErrUnreachable("iceberg", fmt.Errorf("GET %s: %w", path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e errorResponse
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
			msg = e.Error.Type + ": " + e.Error.Message
		}
		if resp.StatusCode == http.StatusNotFound {
			return domain.ErrNotFound("%s", msg)
		}
		return domain.ErrUnreachable("iceberg", fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.ErrUnreachable("iceberg", fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}
