package review

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"library-backend/internal/processing"
	"library-backend/internal/shared/server/middleware"
	"library-backend/internal/shared/server/respond"
	"library-backend/internal/workflow"
)

// Handler wires HTTP handlers to the review service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches review routes to the router group. All review
// routes require the reviewer role.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	review := rg.Group("/review", middleware.RequireReviewer())
	review.GET("/queue", h.queue)
	review.POST("/files/:id/start", h.start)
	review.POST("/files/:id/return", h.returnToQueue)
	review.POST("/files/:id/approve", h.approve)
	review.POST("/files/:id/reject", h.reject)
}

type queueItemResponse struct {
	FileID           string             `json:"fileId"`
	BatchID          string             `json:"batchId"`
	DocumentID       string             `json:"documentId,omitempty"`
	Status           string             `json:"status"`
	OriginalFilename string             `json:"originalFilename"`
	Metadata         *workflow.Metadata `json:"aiMetadata,omitempty"`
	ReviewedBy       string             `json:"reviewedBy,omitempty"`
	UploadedAt       time.Time          `json:"uploadedAt"`
}

func toQueueItem(f processing.File) queueItemResponse {
	return queueItemResponse{
		FileID:           f.ID,
		BatchID:          f.BatchID,
		DocumentID:       f.DocumentID,
		Status:           string(f.Status),
		OriginalFilename: f.OriginalFilename,
		Metadata:         f.Metadata,
		ReviewedBy:       f.ReviewedBy,
		UploadedAt:       f.CreatedAt,
	}
}

func (h *Handler) queue(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	files, err := h.Svc.Queue(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list review queue", nil)
		return
	}

	out := make([]queueItemResponse, 0, len(files))
	for _, f := range files {
		out = append(out, toQueueItem(f))
	}
	respond.JSON(c, http.StatusOK, out)
}

func (h *Handler) start(c *gin.Context) {
	reviewerID := middleware.UserIDFromContext(c)
	file, err := h.Svc.Start(c.Request.Context(), c.Param("id"), reviewerID)
	h.respondFile(c, file, err)
}

func (h *Handler) returnToQueue(c *gin.Context) {
	file, err := h.Svc.Return(c.Request.Context(), c.Param("id"))
	h.respondFile(c, file, err)
}

type verdictRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) approve(c *gin.Context) {
	var body verdictRequest
	_ = c.ShouldBindJSON(&body)
	reviewerID := middleware.UserIDFromContext(c)
	file, err := h.Svc.Approve(c.Request.Context(), c.Param("id"), reviewerID, body.Notes)
	h.respondFile(c, file, err)
}

func (h *Handler) reject(c *gin.Context) {
	var body verdictRequest
	_ = c.ShouldBindJSON(&body)
	reviewerID := middleware.UserIDFromContext(c)
	file, err := h.Svc.Reject(c.Request.Context(), c.Param("id"), reviewerID, body.Notes)
	h.respondFile(c, file, err)
}

func (h *Handler) respondFile(c *gin.Context, file processing.File, err error) {
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrFileNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
		case errors.Is(err, workflow.ErrInvalidTransition):
			respond.Error(c, http.StatusConflict, "conflict", "file is not in a reviewable state", nil)
		case errors.Is(err, workflow.ErrStaleTransition):
			respond.Error(c, http.StatusConflict, "conflict", "file changed concurrently, reload and retry", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "review action failed", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, toQueueItem(file))
}
