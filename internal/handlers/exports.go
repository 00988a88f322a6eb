package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/clinica/import-service/internal/exporter"
)

// ExportEntity downloads the current backend records in template layout
// @Summary Export records
// @Description Lists the entity on the clinic backend and renders it with the import template columns
// @Tags exports
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param entity path string true "Entity" Enums(insumos, produtos, pacientes)
// @Param format query string false "File format" Enums(csv, xlsx) default(csv)
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponse "Unsupported format"
// @Failure 404 {object} ErrorResponse "Unknown entity"
// @Failure 502 {object} ErrorResponse "Backend unavailable"
// @Router /api/exports/{entity} [get]
func ExportEntity(c *gin.Context) {
	schema, ok := lookupEntity(c)
	if !ok {
		return
	}

	format, err := exporter.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "unsupported_format"})
		return
	}

	file, err := exporter.Export(c.Request.Context(), deps.Backend, schema, format)
	if err != nil {
		log.Error().Err(err).Str("entity", schema.Name).Msg("Export failed")
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: "backend"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
