package documents

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"library-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents", h.list)
	rg.GET("/documents/stats", h.stats)
	rg.GET("/documents/:id", h.get)
	rg.DELETE("/documents/:id", h.remove)
	rg.POST("/documents/:id/archive", h.archive)
}

func (h *Handler) list(c *gin.Context) {
	filter := ListFilter{
		DocType:     strings.TrimSpace(c.Query("type")),
		DocCategory: strings.TrimSpace(c.Query("category")),
		Search:      strings.TrimSpace(c.Query("search")),
		Limit:       20,
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Offset = parsed
		}
	}

	docs, err := h.Svc.List(c.Request.Context(), filter)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list documents", nil)
		return
	}

	out := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toResponse(doc))
	}
	respond.JSON(c, http.StatusOK, out)
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.Svc.Stats(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to compute stats", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{
		"totalDocuments": stats.TotalDocuments,
		"totalChunks":    stats.TotalChunks,
		"totalWords":     stats.TotalWords,
		"byType":         stats.ByType,
		"byCategory":     stats.ByCategory,
	})
}

func (h *Handler) get(c *gin.Context) {
	doc, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch document", nil)
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(doc))
}

func (h *Handler) remove(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete document", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) archive(c *gin.Context) {
	if err := h.Svc.Archive(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "document is not active or does not exist", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to archive document", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"archived": true})
}
