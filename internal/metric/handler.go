package metric

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
	"github.com/aevon-lab/aevon-metrics/internal/core/aggregation"
	httperr "github.com/aevon-lab/aevon-metrics/internal/core/errors"
	"github.com/aevon-lab/aevon-metrics/internal/core/storage"
)

const (
	msgReadBodyFailed  = "Failed to read request body"
	msgInvalidJSON     = "Invalid JSON body"
	msgMetricNotFound  = "Metric not found"
	msgInternalFailure = "Internal error"
)

// apiError carries the structured HTTP error shape from a helper back to the
// handler. Helpers return it instead of writing to gin.Context directly.
type apiError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *apiError) Error() string {
	return e.message
}

type itemsResponse struct {
	Items []*v1.Metric `json:"items"`
}

// CreateHandler handles POST /v1/metrics with a JSON array of inputs.
func (s *Service) CreateHandler(c *gin.Context) {
	var inputs []v1.MetricInput
	if err := s.bindJSON(c, &inputs); err != nil {
		writeError(c, err)
		return
	}

	created, err := s.Create(c.Request.Context(), inputs)
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.JSON(http.StatusCreated, itemsResponse{Items: created})
}

// UpsertHandler handles PUT /v1/metrics.
func (s *Service) UpsertHandler(c *gin.Context) {
	var inputs []v1.MetricInput
	if err := s.bindJSON(c, &inputs); err != nil {
		writeError(c, err)
		return
	}

	out, err := s.Upsert(c.Request.Context(), inputs)
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.JSON(http.StatusOK, itemsResponse{Items: out})
}

// ReadHandler handles GET /v1/metrics/:id.
func (s *Service) ReadHandler(c *gin.Context) {
	m, err := s.Read(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.JSON(http.StatusOK, m)
}

// UpdateHandler handles PATCH /v1/metrics/:id.
func (s *Service) UpdateHandler(c *gin.Context) {
	var patch v1.MetricPatch
	if err := s.bindJSON(c, &patch); err != nil {
		writeError(c, err)
		return
	}

	m, err := s.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.JSON(http.StatusOK, m)
}

// DeleteHandler handles DELETE /v1/metrics/:id.
func (s *Service) DeleteHandler(c *gin.Context) {
	if err := s.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// SearchHandler handles POST /v1/metrics/search.
func (s *Service) SearchHandler(c *gin.Context) {
	var filters v1.SearchFilters
	if err := s.bindJSON(c, &filters); err != nil {
		writeError(c, err)
		return
	}

	page, err := s.Search(c.Request.Context(), filters)
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.JSON(http.StatusOK, page)
}

// AggregateHandler handles POST /v1/metrics/aggregate.
func (s *Service) AggregateHandler(c *gin.Context) {
	var req aggregation.Request
	if err := s.bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	res, err := s.Aggregate(c.Request.Context(), req)
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// bindJSON reads at most maxBodySizeBytes and decodes the body into dst.
func (s *Service) bindJSON(c *gin.Context, dst interface{}) *apiError {
	maxBytes := int64(s.maxBodySizeBytes)
	bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes+1))
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return &apiError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return &apiError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpRequestTooLargeError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	if err := c.ShouldBindJSON(dst); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return &apiError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}
	return nil
}

// toAPIError maps service errors to HTTP: validation 400, missing 404,
// everything else 500.
func toAPIError(err error) *apiError {
	var verr *v1.ValidationError
	switch {
	case errors.As(err, &verr):
		slog.Warn("Rejected metric request", "error", err)
		return &apiError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			message:    verr.Message,
			details:    verr.Details(),
		}
	case errors.Is(err, storage.ErrNotFound):
		return &apiError{
			statusCode: http.StatusNotFound,
			errorType:  httperr.HttpNotFoundError,
			message:    msgMetricNotFound,
		}
	default:
		slog.Error("Metric request failed", "error", err)
		return &apiError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgInternalFailure,
		}
	}
}

// writeError serializes an apiError as the JSON HTTP response.
func writeError(c *gin.Context, err *apiError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
