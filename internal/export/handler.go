package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
	httperr "github.com/aevon-lab/aevon-metrics/internal/core/errors"
)

const (
	HeaderUserID    = "X-User-Id"
	HeaderOrgID     = "X-Org-Id"
	HeaderUserEmail = "X-User-Email"

	maxRequestBytes = 1024 * 1024
)

// ExportRequest is the body of POST /v1/metrics/export.
type ExportRequest struct {
	Filters v1.SearchFilters `json:"filters"`
	Columns []string         `json:"columns,omitempty"`
}

// ExportAccepted is returned once the job is queued.
type ExportAccepted struct {
	Status string `json:"status"`
	Email  string `json:"email"`
}

type Handler struct {
	engine    *Engine
	publisher Publisher
}

func NewHandler(engine *Engine, publisher Publisher) *Handler {
	return &Handler{engine: engine, publisher: publisher}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/metrics/export", h.ExportHandler)
}

// ExportHandler validates the request, queues the job and answers 202.
func (h *Handler) ExportHandler(c *gin.Context) {
	bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBytes+1))
	if err != nil || len(bodyBytes) > maxRequestBytes {
		c.JSON(http.StatusRequestEntityTooLarge, httperr.ErrorResponse{
			ErrorType: httperr.HttpRequestTooLargeError,
			Message:   "Request body exceeds maximum allowed size",
		})
		return
	}

	var req ExportRequest
	dec := json.NewDecoder(bytes.NewReader(bodyBytes))
	if err := dec.Decode(&req); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid JSON body",
		})
		return
	}

	requester := Requester{
		UserID: c.GetHeader(HeaderUserID),
		OrgID:  c.GetHeader(HeaderOrgID),
		Email:  c.GetHeader(HeaderUserEmail),
		Locale: preferredLocale(c.GetHeader("Accept-Language")),
	}

	msg, err := h.engine.Request(c.Request.Context(), req.Filters, req.Columns, requester)
	if err != nil {
		writeRequestError(c, err)
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("[Export] Failed to encode job message", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Internal error",
		})
		return
	}
	if err := h.publisher.Publish(c.Request.Context(), msg.Params.OrgID, payload); err != nil {
		c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnavailableError,
			Message:   "Export queue unavailable",
		})
		return
	}

	slog.Info("[Export] Job queued", "org_id", msg.Params.OrgID, "columns", len(msg.Columns))
	c.JSON(http.StatusAccepted, ExportAccepted{Status: "queued", Email: msg.Email})
}

func writeRequestError(c *gin.Context, err error) {
	var verr *v1.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpValidationError,
			Message:   verr.Message,
			Details:   verr.Details(),
		})
		return
	}
	var serr *ServerError
	if errors.As(err, &serr) {
		slog.Error("[Export] Request failed", "step", serr.Step, "error", serr.Err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   serr.MessageKey,
		})
		return
	}
	slog.Error("[Export] Request failed", "error", err)
	c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
		ErrorType: httperr.HttpInternalError,
		Message:   "Internal error",
	})
}

// preferredLocale takes the first Accept-Language tag, e.g. "fr-CA".
func preferredLocale(header string) string {
	first, _, _ := strings.Cut(header, ",")
	tag, _, _ := strings.Cut(first, ";")
	tag = strings.TrimSpace(tag)
	if tag == "*" {
		return ""
	}
	return tag
}
