package results

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vendorquery-backend/internal/jobs"
	"vendorquery-backend/internal/shared/server/respond"
	"vendorquery-backend/internal/shared/telemetry"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches query routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/jobs/:jobId/queries", h.list)
	rg.GET("/jobs/:jobId/queries/export", h.export)
	rg.PUT("/jobs/:jobId/queries/:queryId/annotation", h.annotate)
}

func (h *Handler) list(c *gin.Context) {
	jobID := c.Param("jobId")
	c.Set("jobId", jobID)

	f, ok := parseFilter(c)
	if !ok {
		return
	}
	records, err := h.Svc.Records(c.Request.Context(), jobID, f)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, recordsResponse{JobID: jobID, Count: len(records), Records: records})
}

func (h *Handler) export(c *gin.Context) {
	jobID := c.Param("jobId")
	c.Set("jobId", jobID)

	records, err := h.Svc.Records(c.Request.Context(), jobID, Filter{})
	if err != nil {
		writeError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, records); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to build export", nil)
		return
	}
	respond.Attachment(c, "queries-"+jobID+".xlsx", xlsxContentType, buf.Bytes())
}

func (h *Handler) annotate(c *gin.Context) {
	jobID := c.Param("jobId")
	queryID := c.Param("queryId")
	c.Set("jobId", jobID)

	var req annotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	a := Annotation{
		AnswerText:       req.AnswerText,
		InterventionFlag: req.InterventionFlag,
		InternalNote:     req.InternalNote,
	}
	if req.StatusMarker != nil {
		st, ok := ParseStatus(*req.StatusMarker)
		if !ok {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unknown statusMarker", nil)
			return
		}
		a.StatusMarker = &st
	}
	if a.AnswerText == nil && a.InterventionFlag == nil && a.StatusMarker == nil && a.InternalNote == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "no fields to update", nil)
		return
	}

	saved, err := h.Svc.Annotate(c.Request.Context(), jobID, queryID, a)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, saved)
}

func parseFilter(c *gin.Context) (Filter, bool) {
	var f Filter
	if raw := c.Query("category"); raw != "" {
		cat, ok := ParseCategory(raw)
		if !ok {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unknown category", nil)
			return Filter{}, false
		}
		f.Category = cat
	}
	if raw := c.Query("status"); raw != "" {
		st, ok := ParseStatus(raw)
		if !ok {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unknown status", nil)
			return Filter{}, false
		}
		f.Status = st
	}
	if raw := c.Query("intervention"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "intervention must be true or false", nil)
			return Filter{}, false
		}
		f.Intervention = &v
	}
	return f, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
	case errors.Is(err, ErrQueryNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "query not found", nil)
	case errors.Is(err, ErrNotComplete):
		respond.Error(c, http.StatusConflict, "precondition_failed", err.Error(), nil)
	case errors.Is(err, ErrArtifact):
		telemetry.Error("results.materialize.failed", map[string]any{
			"job_id": c.Param("jobId"),
			"err":    err.Error(),
		})
		respond.Error(c, http.StatusBadGateway, "artifact_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load queries", nil)
	}
}
