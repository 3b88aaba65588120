package httpserver

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/example/lanshare/modules/transfer"
	"github.com/gin-gonic/gin"
)

// Handlers contains HTTP request handlers for transfer operations.
type Handlers struct {
	service *transfer.Service
}

// NewHandlers creates a new handlers instance.
func NewHandlers(service *transfer.Service) *Handlers {
	return &Handlers{service: service}
}

// handleTransferError writes an appropriate HTTP error response for transfer
// service errors.
func handleTransferError(c *gin.Context, err error, operation string) {
	switch {
	case errors.Is(err, transfer.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
	case errors.Is(err, transfer.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	case errors.Is(err, transfer.ErrInvalidFilename):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filename"})
	case errors.Is(err, transfer.ErrNotRegularFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Not a file"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   fmt.Sprintf("Failed to %s", operation),
			"details": err.Error(),
		})
	}
}

// ListFiles handles file listing requests (GET /api/files).
func (h *Handlers) ListFiles(c *gin.Context) {
	files, err := h.service.List(c.Request.Context())
	if err != nil {
		handleTransferError(c, err, "list files")
		return
	}
	c.JSON(http.StatusOK, files)
}

// DownloadFile streams a file, compressed by default
// (GET /api/download/:filename?compressed=true|false).
func (h *Handlers) DownloadFile(c *gin.Context) {
	filename := c.Param("filename")
	compressed := c.DefaultQuery("compressed", "true") != "false"

	dl, err := h.service.Download(c.Request.Context(), filename, compressed)
	if err != nil {
		handleTransferError(c, err, "download file")
		return
	}
	defer dl.Stream.Close()

	safeFilename := strings.NewReplacer("\"", "", "\n", "", "\r", "").Replace(dl.Name)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", safeFilename))

	if compressed {
		// Compressed length is unknown ahead of streaming; the zstd frame is
		// self-delimiting, so no Content-Length is sent.
		c.Header("Content-Encoding", "zstd")
		c.Header("Content-Type", "application/octet-stream")
	} else {
		c.Header("Content-Length", fmt.Sprintf("%d", dl.Size))
		c.Header("Content-Type", contentTypeFor(dl.Name))
	}

	c.Status(http.StatusOK)
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			// Client gone; the deferred Close releases the file handle.
			return
		default:
		}

		chunk, err := dl.Stream.Next()
		if len(chunk) > 0 {
			if _, werr := c.Writer.Write(chunk); werr != nil {
				return
			}
			c.Writer.Flush()
		}
		if err != nil {
			// io.EOF is normal exhaustion. The status line is already out, so
			// a mid-stream read error can only truncate the body.
			return
		}
	}
}

// UploadFile handles single file uploads (POST /api/upload).
func (h *Handlers) UploadFile(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, transfer.UploadResult{Success: false, Error: "No file provided"})
		return
	}
	defer file.Close()

	result := h.service.Upload(c.Request.Context(), header.Filename, file)
	if !result.Success {
		c.JSON(http.StatusBadRequest, result)
		return
	}

	c.JSON(http.StatusOK, result)
}

// UploadMultipleFiles handles batch uploads (POST /api/upload-multiple).
func (h *Handlers) UploadMultipleFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid form data"})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No files provided"})
		return
	}

	items := make([]transfer.UploadItem, len(files))
	for i, fh := range files {
		fh := fh
		items[i] = transfer.UploadItem{
			Name: fh.Filename,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		}
	}

	results, summary := h.service.UploadBatch(c.Request.Context(), items)

	c.JSON(http.StatusOK, gin.H{
		"success": summary.Failed == 0,
		"files":   results,
		"summary": summary,
	})
}

// DeleteFile handles single file deletion (DELETE /api/files/:filename).
func (h *Handlers) DeleteFile(c *gin.Context) {
	filename := c.Param("filename")

	if _, err := h.service.Delete(c.Request.Context(), filename); err != nil {
		handleTransferError(c, err, "delete file")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": filename})
}

// DeleteMultipleFiles handles batch deletion (DELETE /api/files).
func (h *Handlers) DeleteMultipleFiles(c *gin.Context) {
	var body struct {
		Filenames []string `json:"filenames"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}
	if len(body.Filenames) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No filenames provided"})
		return
	}

	results, summary := h.service.DeleteBatch(c.Request.Context(), body.Filenames)

	c.JSON(http.StatusOK, gin.H{
		"success": summary.Failed == 0,
		"results": results,
		"summary": summary,
	})
}

// Status handles server status requests (GET /api/status).
func (h *Handlers) Status(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context())
	if err != nil {
		handleTransferError(c, err, "get status")
		return
	}
	c.JSON(http.StatusOK, status)
}

// HealthCheck handles health check requests (GET /health).
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "lanshare",
	})
}

// contentTypeFor determines the content type for raw downloads based on the
// file extension.
func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
