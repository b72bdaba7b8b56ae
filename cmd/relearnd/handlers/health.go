package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AbortCounter reports how many runs in a row ended aborted.
type AbortCounter interface {
	ConsecutiveAborts() int
}

type HealthResponse struct {
	Status            string `json:"status"`
	ConsecutiveAborts int    `json:"consecutiveAborts"`
}

// HealthHandler reports ok, or degraded once retraining keeps aborting.
func HealthHandler(counter AbortCounter, degradedAfter int) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		aborts := counter.ConsecutiveAborts()
		status := "ok"
		if degradedAfter <= aborts {
			status = "degraded"
		}
		return c.JSON(http.StatusOK, HealthResponse{
			Status:            status,
			ConsecutiveAborts: aborts,
		})
	}
}
