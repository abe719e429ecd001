package batches

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vendorquery-backend/internal/jobs"
	"vendorquery-backend/internal/shared/server/respond"
	"vendorquery-backend/internal/uploads"
)

const (
	maxUploadSize = 256 << 20 // 256MB per request
	maxWait       = 120 * time.Second
)

// Handler wires HTTP handlers to the supervisor.
type Handler struct {
	Sup *Supervisor
}

// NewHandler constructs a Handler.
func NewHandler(sup *Supervisor) *Handler {
	return &Handler{Sup: sup}
}

// RegisterRoutes attaches batch and job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/batches", h.submit)
	rg.GET("/batches/:batchId", h.get)
	rg.GET("/batches/:batchId/summary", h.summary)
	rg.GET("/jobs/:jobId", h.job)
}

func (h *Handler) submit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form with files is required", nil)
		return
	}
	headers := form.File["files"]
	prerequisite := c.PostForm("prerequisiteUri")

	files := make([]uploads.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file "+fh.Filename, nil)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file "+fh.Filename, nil)
			return
		}
		files = append(files, uploads.File{
			Name:            fh.Filename,
			ContentType:     fh.Header.Get("Content-Type"),
			DeclaredSize:    fh.Size,
			Data:            data,
			PrerequisiteURI: prerequisite,
		})
	}

	sub, err := h.Sup.Submit(c.Request.Context(), files)
	if err != nil {
		var verr *uploads.ValidationError
		switch {
		case errors.As(err, &verr):
			respond.Error(c, http.StatusBadRequest, "validation_error", "no acceptable files in batch", verr.Rejections)
		case errors.Is(err, uploads.ErrEmptyBatch), errors.Is(err, uploads.ErrBatchTooLarge):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit batch", nil)
		}
		return
	}

	c.Set("batchId", sub.BatchID)
	respond.Accepted(c, sub)
}

func (h *Handler) get(c *gin.Context) {
	batchID := c.Param("batchId")
	c.Set("batchId", batchID)
	ctx := c.Request.Context()

	list, err := h.Sup.JobsOf(ctx, batchID)
	if err != nil {
		writeError(c, err)
		return
	}
	summary, err := h.Sup.Summary(ctx, batchID)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, batchResponse{BatchID: batchID, Complete: summary.Done, Summary: summary, Jobs: list})
}

func (h *Handler) summary(c *gin.Context) {
	batchID := c.Param("batchId")
	c.Set("batchId", batchID)

	wait, ok := parseWait(c.Query("wait"))
	if !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "wait must be a duration such as 30s", nil)
		return
	}
	if wait == 0 {
		summary, err := h.Sup.Summary(c.Request.Context(), batchID)
		if err != nil {
			writeError(c, err)
			return
		}
		respond.OK(c, summary)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
	defer cancel()
	summary, err := h.Sup.Wait(ctx, batchID)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		writeError(c, err)
		return
	}
	respond.OK(c, summary)
}

func (h *Handler) job(c *gin.Context) {
	jobID := c.Param("jobId")
	c.Set("jobId", jobID)

	job, err := h.Sup.Jobs.GetByID(c.Request.Context(), jobID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set("batchId", job.BatchID)
	respond.OK(c, job)
}

func parseWait(raw string) (time.Duration, bool) {
	if raw == "" {
		return 0, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, false
	}
	if d > maxWait {
		d = maxWait
	}
	return d, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrBatchNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "batch not found", nil)
	case errors.Is(err, jobs.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load batch", nil)
	}
}
