package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GoblinVrc/service-request-backend/internal/service"
)

// UploadAttachments stores multipart files[] for the request in form field request_id
func (h *Handler) UploadAttachments(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload too large", "message": "request body exceeds the upload limit"})
			return
		}
		badRequest(c, "Body must be multipart/form-data with request_id and files")
		return
	}

	id, err := strconv.ParseInt(c.PostForm("request_id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "request_id must be a positive integer")
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	files := make([]service.FileUpload, 0, len(headers))
	for _, fh := range headers {
		files = append(files, fileUpload(fh))
	}

	res, err := h.attachments.Upload(c.Request.Context(), p, id, files)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func fileUpload(fh *multipart.FileHeader) service.FileUpload {
	return service.FileUpload{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// DownloadAttachment returns a signed URL for /api/download/:id/:file
func (h *Handler) DownloadAttachment(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := requestID(c, "id")
	if !ok {
		return
	}

	res, err := h.attachments.DownloadURL(c.Request.Context(), p, id, c.Param("file"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
