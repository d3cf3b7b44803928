package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"filedrop/internal/models"
	"filedrop/internal/pipeline"
	"filedrop/internal/store"
)

// Admitter is the pipeline's write surface into the record store.
type Admitter interface {
	Admit(ctx context.Context, inputs []pipeline.FileInput) []*models.FileRecord
}

// Handler wires HTTP routes to the record store and the enrichment pipeline.
type Handler struct {
	pipe           Admitter
	store          *store.Store
	log            *zap.Logger
	maxUploadBytes int64
}

// NewHandler constructs a Handler instance.
func NewHandler(pipe Admitter, st *store.Store, log *zap.Logger, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		pipe:           pipe,
		store:          st,
		log:            log,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/files", h.uploadFiles)
	api.GET("/files", h.listFiles)
	api.GET("/files/:id", h.getFile)
	api.DELETE("/files", h.clearFiles)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// The drop surface accepts what the UI's file picker did: images, PDFs,
// plain text and common archives.
var allowedContentTypes = []string{
	"image/",
	"application/pdf",
	"text/",
	"application/zip",
	"application/x-zip-compressed",
	"application/x-rar-compressed",
	"application/vnd.rar",
}

func isAllowedContentType(ct string) bool {
	for _, allowed := range allowedContentTypes {
		if strings.HasPrefix(ct, allowed) {
			return true
		}
	}
	return false
}

// uploadFiles admits one multipart batch. Records for every file in the
// request appear together; enrichment continues in the background after the
// response is sent. Part contents are copied out before responding: net/http
// tears the multipart form down, disk temp files included, as soon as the
// handler returns, so the pipeline must never touch the form itself.
func (h *Handler) uploadFiles(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(h.maxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	form := c.Request.MultipartForm
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one file is required"})
		return
	}

	modTimes := form.Value["last_modified"]
	inputs := make([]pipeline.FileInput, 0, len(headers))
	for i, fh := range headers {
		if fh.Size > h.maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large: " + fh.Filename})
			return
		}
		data, err := readPart(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed: " + fh.Filename})
			return
		}
		contentType := http.DetectContentType(data)
		if !isAllowedContentType(contentType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type: " + fh.Filename})
			return
		}

		input := pipeline.FileInput{
			Name:     filepath.Base(fh.Filename),
			Size:     fh.Size,
			MimeType: contentType,
			Open: func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(data)), nil
			},
		}
		if i < len(modTimes) {
			if t, perr := time.Parse(time.RFC3339, modTimes[i]); perr == nil {
				input.LastModified = t
			}
		}
		inputs = append(inputs, input)
	}

	batch := h.pipe.Admit(c.Request.Context(), inputs)
	h.log.Info("batch admitted", zap.Int("files", len(batch)))
	c.JSON(http.StatusAccepted, gin.H{"files": batch})
}

func (h *Handler) listFiles(c *gin.Context) {
	records := h.store.List()
	if records == nil {
		records = make([]*models.FileRecord, 0)
	}
	c.JSON(http.StatusOK, gin.H{"files": records})
}

func (h *Handler) getFile(c *gin.Context) {
	rec := h.store.Get(c.Param("id"))
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": rec})
}

func (h *Handler) clearFiles(c *gin.Context) {
	h.store.Clear()
	h.log.Info("record store cleared")
	c.Status(http.StatusNoContent)
}

// readPart copies one part's content out of the request-scoped form. The
// detected content type comes from these bytes too, ignoring whatever the
// client declared.
func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
