// Package api serves the connector calls over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"fedcat/internal/connector"
	"fedcat/internal/domain"
	"fedcat/internal/middleware"
)

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 1 << 20

// Options configures the router.
type Options struct {
	// RateLimit is applied per client to /v1 routes when RequestsPerSecond
	// is positive.
	RateLimit   middleware.RateLimitConfig
	CORSOrigins []string

	// Auth, when set, requires a valid bearer token on /v1 routes.
	Auth middleware.TokenValidator
}

// Server adapts a connector.Handler to HTTP.
type Server struct {
	handler connector.Handler
	logger  *slog.Logger
}

// NewServer creates a Server.
func NewServer(h connector.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{handler: h, logger: logger}
}

// Routes builds the router. ctx bounds background work of the middleware.
func (s *Server) Routes(ctx context.Context, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(s.logger))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "source_type": s.handler.SourceType()})
	})

	doc := OpenAPI()
	r.Get("/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, doc)
	})

	r.Route("/v1/catalogs/{catalog}", func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(middleware.Auth(opts.Auth))
		}
		if opts.RateLimit.RequestsPerSecond > 0 {
			r.Use(middleware.NewRateLimiter(ctx, opts.RateLimit).Handler)
		}
		r.Get("/schemas", s.listSchemas)
		r.Get("/configs", s.getDataSourceConfigs)
		r.Route("/schemas/{schema}/tables", func(r chi.Router) {
			r.Get("/", s.listTables)
			r.Get("/{table}", s.getTable)
			r.Post("/{table}/partitions", s.getPartitions)
			r.Post("/{table}/splits", s.getSplits)
		})
	})
	return r
}

func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

func tableFromPath(r *http.Request) domain.TableName {
	return domain.TableName{Schema: pathParam(r, "schema"), Table: pathParam(r, "table")}
}

func queryID(r *http.Request) string {
	return middleware.RequestIDFromContext(r.Context())
}

// pageFromQuery extracts a PageRequest from the page_size and token params.
func pageFromQuery(r *http.Request) (domain.PageRequest, error) {
	p := domain.PageRequest{PageToken: r.URL.Query().Get("token")}
	if v := r.URL.Query().Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, domain.ErrValidation("page_size must be a non-negative integer, got %q", v)
		}
		p.MaxResults = n
	}
	return p, nil
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

func (s *Server) listSchemas(w http.ResponseWriter, r *http.Request) {
	resp, err := s.handler.ListSchemas(r.Context(), domain.ListSchemasRequest{
		QueryID: queryID(r),
		Catalog: pathParam(r, "catalog"),
	})
	if err != nil {
		s.writeError(w, r, "ListSchemas", err)
		return
	}
	writeJSON(w, http.StatusOK, ListSchemasFromDomain(resp))
}

func (s *Server) listTables(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		s.writeError(w, r, "ListTables", err)
		return
	}
	resp, err := s.handler.ListTables(r.Context(), domain.ListTablesRequest{
		QueryID: queryID(r),
		Catalog: pathParam(r, "catalog"),
		Schema:  pathParam(r, "schema"),
		Page:    page,
	})
	if err != nil {
		s.writeError(w, r, "ListTables", err)
		return
	}
	writeJSON(w, http.StatusOK, ListTablesFromDomain(resp))
}

func (s *Server) getTable(w http.ResponseWriter, r *http.Request) {
	resp, err := s.handler.GetTable(r.Context(), domain.GetTableRequest{
		QueryID: queryID(r),
		Catalog: pathParam(r, "catalog"),
		Table:   tableFromPath(r),
	})
	if err != nil {
		s.writeError(w, r, "GetTable", err)
		return
	}
	out, err := GetTableFromDomain(resp)
	if err != nil {
		s.writeError(w, r, "GetTable", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getPartitions(w http.ResponseWriter, r *http.Request) {
	var body GetPartitionsRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, "GetPartitions", err)
		return
	}
	if body.QueryID == "" {
		body.QueryID = queryID(r)
	}
	resp, err := s.handler.GetPartitions(r.Context(), domain.GetPartitionsRequest{
		QueryID:   body.QueryID,
		Catalog:   pathParam(r, "catalog"),
		Table:     tableFromPath(r),
		Predicate: body.Predicate,
	})
	if err != nil {
		s.writeError(w, r, "GetPartitions", err)
		return
	}
	writeJSON(w, http.StatusOK, GetPartitionsFromDomain(resp))
}

func (s *Server) getSplits(w http.ResponseWriter, r *http.Request) {
	var body GetSplitsRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, "GetSplits", err)
		return
	}
	if body.QueryID == "" {
		body.QueryID = queryID(r)
	}
	resp, err := s.handler.GetSplits(r.Context(), domain.GetSplitsRequest{
		QueryID:           body.QueryID,
		Catalog:           pathParam(r, "catalog"),
		Table:             tableFromPath(r),
		Partitions:        body.Partitions,
		Predicate:         body.Predicate,
		ContinuationToken: body.ContinuationToken,
	})
	if err != nil {
		s.writeError(w, r, "GetSplits", err)
		return
	}
	writeJSON(w, http.StatusOK, GetSplitsFromDomain(resp))
}

func (s *Server) getDataSourceConfigs(w http.ResponseWriter, r *http.Request) {
	resp, err := s.handler.GetDataSourceConfigs(r.Context(), domain.GetDataSourceConfigsRequest{
		QueryID: queryID(r),
		Catalog: pathParam(r, "catalog"),
	})
	if err != nil {
		s.writeError(w, r, "GetDataSourceConfigs", err)
		return
	}
	writeJSON(w, http.StatusOK, GetDataSourceConfigsFromDomain(resp))
}
