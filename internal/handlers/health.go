package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinica/import-service/internal/database"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string     `json:"status"`
	Database string     `json:"database"`
	Pool     *PoolStats `json:"pool,omitempty"`
}

// PoolStats reports database connection pool usage
type PoolStats struct {
	Total    int32 `json:"total"`
	Idle     int32 `json:"idle"`
	Acquired int32 `json:"acquired"`
}

// HealthCheck handles the health check endpoint
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status: "ok",
	}

	// Runs live in memory when no database is configured
	if database.Pool() != nil {
		err := database.Status(c.Request.Context())
		if err != nil {
			response.Status = "degraded"
			response.Database = "disconnected"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
		response.Database = "connected"
		if stat := database.Stats(); stat != nil {
			response.Pool = &PoolStats{
				Total:    stat.TotalConns(),
				Idle:     stat.IdleConns(),
				Acquired: stat.AcquiredConns(),
			}
		}
	} else {
		response.Database = "not configured"
	}

	c.JSON(http.StatusOK, response)
}
