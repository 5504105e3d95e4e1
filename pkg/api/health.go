package api

import (
	"net/http"
)

func (a *API) health(*http.Request) Response {
	return JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: a.state.Version(),
		Uptime:  a.state.Uptime().Seconds(),
	})
}
