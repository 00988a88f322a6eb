package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/clinica/import-service/internal/importer"
)

// StartImportResponse represents the 202 response when an import is started
type StartImportResponse struct {
	RunID     string `json:"runId"`
	Status    string `json:"status"`
	TotalRows int    `json:"totalRows"`
	PollURL   string `json:"pollUrl"`
}

// StartImport accepts a spreadsheet upload and imports it in the background
// @Summary Start an import
// @Description Parses the uploaded file and submits its rows to the clinic backend asynchronously
// @Tags imports
// @Accept multipart/form-data
// @Produce json
// @Param entity path string true "Entity" Enums(insumos, produtos, pacientes)
// @Param file formData file true "CSV or XLSX file"
// @Success 202 {object} StartImportResponse
// @Failure 400 {object} ErrorResponse "Invalid file"
// @Failure 404 {object} ErrorResponse "Unknown entity"
// @Failure 413 {object} ErrorResponse "Too many rows or file too large"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /api/imports/{entity} [post]
func StartImport(c *gin.Context) {
	schema, ok := lookupEntity(c)
	if !ok {
		return
	}

	filename, content, ok := readUpload(c)
	if !ok {
		return
	}

	run, err := deps.Runner.Submit(c.Request.Context(), schema, filename, content)
	if err != nil {
		if abortImport(c, err) {
			return
		}
		log.Error().Err(err).Str("entity", schema.Name).Msg("Failed to start import")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to start import"})
		return
	}

	c.JSON(http.StatusAccepted, StartImportResponse{
		RunID:     run.ID,
		Status:    string(run.Status),
		TotalRows: run.TotalRows,
		PollURL:   fmt.Sprintf("/api/imports/%s", run.ID),
	})
}

// ValidateImport parses and normalizes an upload without submitting it
// @Summary Validate an import file
// @Description Dry run: reports which rows would be rejected and which optional values would be dropped
// @Tags imports
// @Accept multipart/form-data
// @Produce json
// @Param entity path string true "Entity" Enums(insumos, produtos, pacientes)
// @Param file formData file true "CSV or XLSX file"
// @Success 200 {object} types.ValidationReport
// @Failure 400 {object} ErrorResponse "Invalid file"
// @Failure 404 {object} ErrorResponse "Unknown entity"
// @Failure 413 {object} ErrorResponse "Too many rows or file too large"
// @Router /api/imports/{entity}/validate [post]
func ValidateImport(c *gin.Context) {
	schema, ok := lookupEntity(c)
	if !ok {
		return
	}

	filename, content, ok := readUpload(c)
	if !ok {
		return
	}

	rows, err := importer.ReadFile(filename, content, deps.ReadOptions)
	if err == nil {
		err = importer.CheckRows(rows, deps.MaxRows)
	}
	if err != nil {
		if !abortImport(c, err) {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, importer.Validate(schema, rows))
}

func readUpload(c *gin.Context) (string, []byte, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "campo 'file' é obrigatório", Code: "missing_file"})
		return "", nil, false
	}
	if fh.Size > deps.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: fmt.Sprintf("arquivo excede o limite de %d bytes", deps.MaxUploadBytes),
			Code:  "file_too_large",
		})
		return "", nil, false
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "não foi possível ler o arquivo", Code: "file_format"})
		return "", nil, false
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, deps.MaxUploadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "não foi possível ler o arquivo", Code: "file_format"})
		return "", nil, false
	}
	return fh.Filename, content, true
}
