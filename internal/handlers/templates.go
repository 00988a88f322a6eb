package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetTemplate downloads the CSV template of an entity
// @Summary Download CSV template
// @Tags templates
// @Produce text/csv
// @Param entity path string true "Entity" Enums(insumos, produtos, pacientes)
// @Success 200 {file} file
// @Failure 404 {object} ErrorResponse "Unknown entity"
// @Router /api/templates/{entity} [get]
func GetTemplate(c *gin.Context) {
	schema, ok := lookupEntity(c)
	if !ok {
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", schema.TemplateFilename()))
	c.Data(http.StatusOK, "text/csv;charset=utf-8", []byte(schema.Template))
}
