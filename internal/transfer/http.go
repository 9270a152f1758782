package transfer

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/haoyun/filedrop/internal/store"
)

// RegisterRoutes mounts the transfer endpoints under the provided router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/file", handler.uploadFile)
	group.POST("/text", handler.receiveText)
	group.GET("/files", handler.listFiles)
	group.GET("/download", handler.download)
}

type httpHandler struct {
	service *Service
}

// uploadFile streams the raw request body into today's bucket. The desired
// file name arrives URL-encoded in the X-Filename header.
func (h *httpHandler) uploadFile(c *gin.Context) {
	rawName := c.GetHeader("X-Filename")
	if decoded, err := url.QueryUnescape(rawName); err == nil {
		rawName = decoded
	}
	if strings.TrimSpace(rawName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-Filename header"})
		return
	}

	contentType := c.GetHeader("X-Filetype")
	date := h.service.Today()

	finalName, err := h.service.Upload(c.Request.Context(), date, rawName, contentType, c.Request.Body)
	if err != nil {
		if errors.Is(err, store.ErrWriteInterrupted) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload interrupted"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to receive file"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("file %s received", finalName),
		"name":    finalName,
		"date":    date,
	})
}

// receiveText appends the request body to the text drop log.
func (h *httpHandler) receiveText(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read text"})
		return
	}

	if err := h.service.ReceiveText(c.Request.Context(), string(body)); err != nil {
		if errors.Is(err, ErrEmptyText) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty text"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to receive text"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "text received"})
}

// listFiles returns the entries of one date bucket.
func (h *httpHandler) listFiles(c *gin.Context) {
	date := c.Query("date")

	list, err := h.service.List(c.Request.Context(), date)
	if err != nil {
		if errors.Is(err, store.ErrInvalidDate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing date"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"fileList": list})
}

// download serves one file directly or several as a zip stream. Every
// successful serve records one activity event for the client address.
func (h *httpHandler) download(c *gin.Context) {
	date := c.Query("date")
	names := splitNames(c.Query("names"))

	if err := h.service.ValidateDownload(date, names); err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidDate):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date format"})
		case errors.Is(err, ErrNoNames):
			c.JSON(http.StatusBadRequest, gin.H{"error": "no file names provided"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file name detected"})
		}
		return
	}

	if len(names) == 1 {
		h.downloadSingle(c, date, names[0])
		return
	}
	h.downloadArchive(c, date, names)
}

func (h *httpHandler) downloadSingle(c *gin.Context, date, name string) {
	reader, entry, contentType, err := h.service.OpenFile(c.Request.Context(), date, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send download file"})
		return
	}
	defer reader.Close()

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entry.Name))
	c.Header("Content-Length", fmt.Sprintf("%d", entry.Size))

	if _, err := io.Copy(c.Writer, reader); err != nil {
		// Bytes already flowed; nothing left but to drop the connection.
		c.Abort()
		return
	}

	h.service.RecordDownload(c.ClientIP(), date, []string{name})
}

func (h *httpHandler) downloadArchive(c *gin.Context, date string, names []string) {
	zipName := fmt.Sprintf("files_%s.zip", date)
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", zipName))

	if _, err := h.service.StreamArchive(c.Request.Context(), date, names, c.Writer); err != nil {
		// Headers are out; the truncated stream is the failure signal.
		c.Abort()
		return
	}

	h.service.RecordDownload(c.ClientIP(), date, names)
}

func splitNames(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}
