// Package handlers exposes the import service over HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinica/import-service/internal/entities"
	"github.com/clinica/import-service/internal/exporter"
	"github.com/clinica/import-service/internal/importer"
	"github.com/clinica/import-service/internal/runs"
	"github.com/clinica/import-service/internal/types"
)

// DefaultMaxUploadBytes caps multipart uploads when no limit is configured
const DefaultMaxUploadBytes = 10 << 20

// Submitter starts background import runs
type Submitter interface {
	Submit(ctx context.Context, schema *entities.Schema, filename string, content []byte) (*types.ImportRun, error)
}

// Deps are the collaborators the handlers use
type Deps struct {
	Runner         Submitter
	Store          runs.Store
	Backend        exporter.Lister
	ReadOptions    importer.ReadOptions
	MaxRows        int
	MaxUploadBytes int64
}

var deps Deps

// Init installs the handler dependencies.
// This should be called during application startup
func Init(d Deps) {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if d.MaxRows <= 0 {
		d.MaxRows = importer.DefaultMaxRows
	}
	deps = d
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func lookupEntity(c *gin.Context) (*entities.Schema, bool) {
	name := c.Param("entity")
	schema, ok := entities.Lookup(name)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "entidade desconhecida: " + name,
			Code:  "unknown_entity",
		})
		return nil, false
	}
	return schema, true
}

// abortImport writes the response for errors that stop an upload before
// any row is submitted; it reports false for other errors
func abortImport(c *gin.Context, err error) bool {
	var ffe *importer.FileFormatError
	var sle *importer.SizeLimitError
	switch {
	case errors.As(err, &ffe):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ffe.Error(), Code: "file_format"})
	case errors.As(err, &sle):
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: sle.Error(), Code: "size_limit"})
	default:
		return false
	}
	return true
}

// RegisterRoutes mounts the import API on group
func RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/templates/:entity", GetTemplate)
	api.GET("/exports/:entity", ExportEntity)

	api.GET("/imports", ListRuns)
	api.GET("/imports/:runId", GetRun)
	api.POST("/imports/:entity", StartImport)
	api.POST("/imports/:entity/validate", ValidateImport)
}
