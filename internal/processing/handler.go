package processing

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"library-backend/internal/shared/server/middleware"
	"library-backend/internal/shared/server/respond"
	"library-backend/internal/workflow"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches processing routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/processing/batches", h.createBatch)
	rg.GET("/processing/batches", h.listBatches)
	rg.GET("/processing/batches/:id", h.batchStatus)
	rg.POST("/processing/batches/:id/cancel", h.cancelBatch)
	rg.GET("/processing/batches/:id/logs", h.batchLogs)
	rg.GET("/processing/files/:id", h.getFile)
	rg.POST("/processing/files/:id/cancel", h.cancelFile)
}

func (h *Handler) createBatch(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.MaxFileBytes*int64(h.Svc.MaxBatchFiles))

	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form required", nil)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "at least one file is required", nil)
		return
	}

	uploads := make([]Upload, 0, len(headers))
	closers := make([]func() error, 0, len(headers))
	defer func() {
		for _, closeFn := range closers {
			_ = closeFn()
		}
	}()
	for _, header := range headers {
		part, err := header.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file "+header.Filename, nil)
			return
		}
		closers = append(closers, part.Close)
		uploads = append(uploads, Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Reader:      part,
		})
	}

	batch, files, err := h.Svc.CreateBatch(c.Request.Context(), userID, uploads)
	if err != nil {
		switch {
		case errors.Is(err, ErrBatchTooLarge):
			respond.Error(c, http.StatusBadRequest, "validation_error", "too many files in batch", nil)
		case errors.Is(err, ErrFileTooLarge):
			respond.Error(c, http.StatusBadRequest, "validation_error", "file exceeds the 50MB limit", nil)
		case errors.Is(err, ErrUnsupportedMime):
			respond.Error(c, http.StatusBadRequest, "validation_error", "unsupported file type", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create batch", nil)
		}
		return
	}

	fileResponses := make([]FileResponse, 0, len(files))
	for _, f := range files {
		fileResponses = append(fileResponses, toFileResponse(f))
	}
	respond.JSON(c, http.StatusCreated, gin.H{
		"batch": toBatchResponse(batch),
		"files": fileResponses,
	})
}

func (h *Handler) listBatches(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

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

	batches, err := h.Svc.ListBatches(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list batches", nil)
		return
	}

	out := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, toBatchResponse(b))
	}
	respond.JSON(c, http.StatusOK, out)
}

func (h *Handler) batchStatus(c *gin.Context) {
	view, err := h.Svc.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "batch not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch batch", nil)
		return
	}
	respond.JSON(c, http.StatusOK, toBatchStatusResponse(view))
}

func (h *Handler) cancelBatch(c *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	batch, err := h.Svc.CancelBatch(c.Request.Context(), c.Param("id"), body.Reason)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "batch not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to cancel batch", nil)
		return
	}
	respond.JSON(c, http.StatusOK, toBatchResponse(batch))
}

func (h *Handler) getFile(c *gin.Context) {
	file, err := h.Svc.GetFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, workflow.ErrFileNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch file", nil)
		return
	}
	respond.JSON(c, http.StatusOK, toFileResponse(file))
}

func (h *Handler) cancelFile(c *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	file, err := h.Svc.CancelFile(c.Request.Context(), c.Param("id"), body.Reason)
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrFileNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
		case errors.Is(err, workflow.ErrInvalidTransition):
			respond.Error(c, http.StatusConflict, "conflict", "file is already in a terminal status", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to cancel file", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, toFileResponse(file))
}

func (h *Handler) batchLogs(c *gin.Context) {
	logs, err := h.Svc.BatchLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "batch not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch logs", nil)
		return
	}
	out := make([]LogEntryResponse, 0, len(logs))
	for _, entry := range logs {
		out = append(out, toLogEntryResponse(entry))
	}
	respond.JSON(c, http.StatusOK, gin.H{"logs": out, "totalLogs": len(out)})
}
