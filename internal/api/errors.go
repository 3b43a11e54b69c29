package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"fedcat/internal/domain"
)

// Error codes returned in the body of failed calls.
const (
	CodeDomainNotFound    = "domain_not_found"
	CodeNotFound          = "not_found"
	CodeInvalidRequest    = "invalid_request"
	CodeConfiguration     = "configuration_error"
	CodeUnsupported       = "unsupported_operation"
	CodeSourceUnreachable = "source_unreachable"
	CodeSchemaResolution  = "schema_resolution_failed"
	CodeInternal          = "internal_error"
)

// ErrorResponse is the body of every failed call.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFromError maps domain errors to an HTTP status and error code. A
// missing domain wins over the schema failure that wraps it.
func statusFromError(err error) (int, string) {
	var (
		domainNotFound *domain.DomainNotFoundError
		resolution     *domain.SchemaResolutionError
		notFound       *domain.NotFoundError
		validation     *domain.ValidationError
		configuration  *domain.ConfigurationError
		unsupported    *domain.UnsupportedOperationError
		unreachable    *domain.SourceUnreachableError
	)

	switch {
	case errors.As(err, &domainNotFound):
		return http.StatusNotFound, CodeDomainNotFound
	case errors.As(err, &resolution):
		return http.StatusBadGateway, CodeSchemaResolution
	case errors.As(err, &notFound):
		return http.StatusNotFound, CodeNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.As(err, &configuration):
		return http.StatusBadRequest, CodeConfiguration
	case errors.As(err, &unsupported):
		return http.StatusNotImplemented, CodeUnsupported
	case errors.As(err, &unreachable):
		return http.StatusBadGateway, CodeSourceUnreachable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// ErrorCode returns the code reported for err in error bodies.
func ErrorCode(err error) string {
	_, code := statusFromError(err)
	return code
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := statusFromError(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "call failed", "op", op, "code", code, "error", err)
	} else {
		s.logger.WarnContext(r.Context(), "call rejected", "op", op, "code", code, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: err.Error()})
}
