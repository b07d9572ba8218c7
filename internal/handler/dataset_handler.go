package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/geo-dashboard/internal/config"
	"github.com/jengzang/geo-dashboard/internal/service"
	"github.com/jengzang/geo-dashboard/pkg/response"
)

// DatasetHandler handles HTTP requests for the dataset and districts
type DatasetHandler struct {
	service *service.DatasetService
	paths   func() config.DataConfig
}

// NewDatasetHandler creates a new dataset handler. paths returns the current
// file locations and upload limit.
func NewDatasetHandler(service *service.DatasetService, paths func() config.DataConfig) *DatasetHandler {
	return &DatasetHandler{service: service, paths: paths}
}

// GetDataset handles GET /api/v1/dataset
func (h *DatasetHandler) GetDataset(c *gin.Context) {
	info, err := h.service.Info()
	if err != nil {
		fail(c, "Failed to get dataset", err)
		return
	}
	response.Success(c, info)
}

// ReloadDataset handles POST /api/v1/dataset/reload
func (h *DatasetHandler) ReloadDataset(c *gin.Context) {
	paths := h.paths()
	ctx := c.Request.Context()

	info, err := h.service.LoadFile(ctx, paths.GPSPath)
	if err != nil {
		fail(c, "Failed to reload GPS data", err)
		return
	}
	if paths.DistrictsPath != "" {
		if err := h.service.LoadDistricts(ctx, paths.DistrictsPath); err != nil {
			fail(c, "Failed to reload districts", err)
			return
		}
	}
	response.Success(c, info)
}

// UploadDataset handles POST /api/v1/dataset/upload. The CSV is taken from
// the multipart field "file" or, for other content types, the request body.
func (h *DatasetHandler) UploadDataset(c *gin.Context) {
	if max := h.paths().MaxUploadBytes; max > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
	}

	var (
		body io.Reader
		name = "body"
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			status := http.StatusBadRequest
			if statusOf(err) == http.StatusRequestEntityTooLarge {
				status = http.StatusRequestEntityTooLarge
			}
			response.Error(c, status, "Missing upload file", err)
			return
		}
		f, err := fh.Open()
		if err != nil {
			fail(c, "Failed to open upload", err)
			return
		}
		defer f.Close()
		body, name = f, fh.Filename
	} else {
		body = c.Request.Body
	}

	info, err := h.service.Upload(c.Request.Context(), body, name)
	if err != nil {
		fail(c, "Failed to load upload", err)
		return
	}
	response.Success(c, info)
}

// GetDistricts handles GET /api/v1/districts
func (h *DatasetHandler) GetDistricts(c *gin.Context) {
	infos, err := h.service.DistrictInfos()
	if err != nil {
		fail(c, "Failed to get districts", err)
		return
	}
	response.Success(c, infos)
}
