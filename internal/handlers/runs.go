package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinica/import-service/internal/runs"
	"github.com/clinica/import-service/internal/types"
)

// ListRunsRequest represents query parameters for listing import runs
type ListRunsRequest struct {
	Entity string `form:"entity" json:"entity"`
	Status string `form:"status" json:"status" binding:"omitempty,oneof=pending running completed failed interrupted" jsonschema:"enum=pending,enum=running,enum=completed,enum=failed,enum=interrupted"`
	Limit  int    `form:"limit" json:"limit" binding:"omitempty,min=1,max=100" jsonschema:"minimum=1,maximum=100"`
	Offset int    `form:"offset" json:"offset" binding:"min=0" jsonschema:"minimum=0"`
}

// ListRunsResponse represents the response for listing import runs
type ListRunsResponse struct {
	Runs []types.ImportRun `json:"runs" jsonschema:"required"`
}

// ListRuns returns a paginated list of import runs with optional filters
// @Summary List import runs
// @Description Returns import runs newest first with optional entity and status filters
// @Tags imports
// @Produce json
// @Param entity query string false "Filter by entity"
// @Param status query string false "Filter by status" Enums(pending, running, completed, failed, interrupted)
// @Param limit query int false "Number of items to return" default(50) minimum(1) maximum(100)
// @Param offset query int false "Number of items to skip" default(0) minimum(0)
// @Success 200 {object} ListRunsResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /api/imports [get]
func ListRuns(c *gin.Context) {
	var req ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	list, err := deps.Store.List(c.Request.Context(), runs.ListOptions{
		Entity: req.Entity,
		Status: types.RunStatus(req.Status),
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch runs"})
		return
	}

	c.JSON(http.StatusOK, ListRunsResponse{Runs: list})
}

// GetRun returns a single import run by ID
// @Summary Get import run
// @Description Returns status, progress and, once finished, the tally of an import run
// @Tags imports
// @Produce json
// @Param runId path string true "Run ID"
// @Success 200 {object} types.ImportRun
// @Failure 404 {object} ErrorResponse "Run not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /api/imports/{runId} [get]
func GetRun(c *gin.Context) {
	run, err := deps.Store.Get(c.Request.Context(), c.Param("runId"))
	if errors.Is(err, runs.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch run"})
		return
	}
	c.JSON(http.StatusOK, run)
}
