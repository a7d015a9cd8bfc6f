package handlers

import (
	"net/http"
	"strings"

	"github.com/coachline/coachline/internal/media"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// maxUploadBytes caps a single image upload.
const maxUploadBytes = 5 << 20

// uploadFolders are the key prefixes an upload may target.
var uploadFolders = map[string]struct{}{
	"sliders":    {},
	"products":   {},
	"classes":    {},
	"mock-tests": {},
}

// MediaHandler accepts image uploads.
type MediaHandler struct {
	store media.Store
}

// NewMediaHandler constructs a media handler.
func NewMediaHandler(store media.Store) *MediaHandler {
	return &MediaHandler{store: store}
}

// Upload stores the multipart "file" field and returns its URL.
func (h *MediaHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes+1<<10)
	fileHeader, errForm := c.FormFile("file")
	if errForm != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	folder := strings.TrimSpace(c.PostForm("folder"))
	if folder == "" {
		folder = "misc"
	} else if _, ok := uploadFolders[folder]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid folder"})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	ext, ok := media.ExtensionFor(contentType)
	if !ok {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported content type"})
		return
	}

	file, errOpen := fileHeader.Open()
	if errOpen != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read file failed"})
		return
	}
	defer func() {
		_ = file.Close()
	}()

	key := media.NewKey(folder, ext)
	url, errPut := h.store.Put(c.Request.Context(), key, contentType, file)
	if errPut != nil {
		log.WithError(errPut).WithField("key", key).Error("admin: media upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": key, "url": url})
}

// Delete removes an uploaded object by key.
func (h *MediaHandler) Delete(c *gin.Context) {
	key := strings.TrimPrefix(strings.TrimSpace(c.Param("key")), "/")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}
	if errDelete := h.store.Delete(c.Request.Context(), key); errDelete != nil {
		log.WithError(errDelete).WithField("key", key).Error("admin: media delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
