package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/textstat/internal/pkg/errcode"
	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
	"github.com/xxxsen/textstat/internal/pkg/response"
	"github.com/xxxsen/textstat/internal/service"
)

// multipartOverhead leaves room for boundaries and part headers on top of
// the file size limit.
const multipartOverhead = 1 << 20

type FileHandler struct {
	files    *service.FileService
	maxBytes int64
}

type UploadResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Hash     string `json:"hash"`
	Location string `json:"location"`
	Size     int64  `json:"size"`
	Message  string `json:"message"`
}

func NewFileHandler(files *service.FileService, maxBytes int64) *FileHandler {
	return &FileHandler{files: files, maxBytes: maxBytes}
}

func (h *FileHandler) Upload(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, errcode.ErrInvalidFile, "file exceeds "+formatUploadLimit(h.maxBytes))
			return
		}
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		response.Error(c, errcode.ErrInvalidFile, "file exceeds "+formatUploadLimit(h.maxBytes))
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	data, err := io.ReadAll(opened)
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to read file")
		return
	}
	res, err := h.files.Upload(c.Request.Context(), file.Filename, data)
	if err != nil {
		handleError(c, fmt.Errorf("upload %s: %w", file.Filename, err))
		return
	}
	response.Success(c, UploadResponse{
		ID:       res.File.ID,
		Name:     res.File.Name,
		Hash:     res.File.Hash,
		Location: res.File.Location,
		Size:     res.File.Size,
		Message:  res.Message(),
	})
}

// Get streams the raw bytes of a stored file. Unknown ids get a bare 404 so
// the endpoint can back the analysis fetcher directly.
func (h *FileHandler) Get(c *gin.Context) {
	rec, data, err := h.files.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		if appErr.IsNotFound(err) {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": rec.Name}))
	c.Data(http.StatusOK, "application/octet-stream", data)
}
