package local

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"vendorquery-backend/internal/shared/server/respond"
	"vendorquery-backend/internal/shared/storage/object"
)

const maxBlobSize = 64 << 20 // 64MB

// Handler serves the signed write URLs and read URLs issued by Store.
type Handler struct {
	Store *Store
}

// NewHandler constructs a Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{Store: store}
}

// RegisterRoutes attaches blob routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.PUT("/blobs/*key", h.put)
	rg.GET("/blobs/*key", h.get)
}

func (h *Handler) put(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := h.Store.Verify(http.MethodPut, key, c.Query("expires"), c.Query("signature")); err != nil {
		switch {
		case errors.Is(err, ErrInvalidKey):
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid blob key", nil)
		default:
			respond.Error(c, http.StatusForbidden, "forbidden", err.Error(), nil)
		}
		return
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxBlobSize)
	if _, err := h.Store.SaveWithKey(c.Request.Context(), key, body); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store blob", nil)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) get(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	rc, err := h.Store.Open(c.Request.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, object.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "blob not found", nil)
		case errors.Is(err, ErrInvalidKey):
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid blob key", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to open blob", nil)
		}
		return
	}
	defer rc.Close()

	contentType := "application/octet-stream"
	if strings.EqualFold(path.Ext(key), ".json") {
		contentType = "application/json"
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}
