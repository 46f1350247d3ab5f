package handler

import (
	"io"
	"net/http"
	"strconv"

	"procurement/internal/service"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

const maxUploadSize = 10 << 20

// formUpload opens the multipart "file" field. The caller closes the returned reader.
func formUpload(c *gin.Context) (service.FileUpload, io.Closer, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error("file is required", nil))
		return service.FileUpload{}, nil, false
	}
	if header.Size > maxUploadSize {
		file.Close()
		c.JSON(http.StatusRequestEntityTooLarge, response.Error("file exceeds maximum size of 10MB", nil))
		return service.FileUpload{}, nil, false
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return service.FileUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Content:     file,
	}, file, true
}

// sendFile streams a stored object back as an attachment
func sendFile(c *gin.Context, body io.Reader, name, contentType string, size int64) {
	c.DataFromReader(http.StatusOK, size, contentType, body, map[string]string{
		"Content-Disposition": "attachment; filename=" + strconv.Quote(name),
	})
}
