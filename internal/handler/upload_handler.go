package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectflow/internal/service"
)

// UploadHandler proxies photo uploads to the file-storage service and
// hands back the ref that daily updates reference.
type UploadHandler struct {
	fileStore *service.FileStoreClient
	logger    *zap.Logger
}

func NewUploadHandler(fileStore *service.FileStoreClient, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		fileStore: fileStore,
		logger:    logger,
	}
}

// Upload handles POST /photos (multipart form, field "file")
func (h *UploadHandler) Upload(c *gin.Context) {
	if _, ok := actorFrom(c); !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer f.Close()

	ref, err := h.fileStore.Upload(c.Request.Context(), fileHeader.Filename, f)
	if err != nil {
		h.logger.Error("Failed to upload file", zap.String("filename", fileHeader.Filename), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "file storage unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ref": ref})
}
