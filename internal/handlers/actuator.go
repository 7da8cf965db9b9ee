package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/nkiryanov/refarch/internal/handlers/render"
	"github.com/nkiryanov/refarch/internal/logger"
)

const readinessTimeout = 2 * time.Second

type healthResponse struct {
	Status string `json:"status"`
}

func handleHealth() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		render.JSON(w, healthResponse{Status: "UP"})
	})
}

// Ready when database answers
func handleReadiness(db pinger, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			l.Warn("Readiness check failed", "error", err)
			render.JSONWithStatus(w, healthResponse{Status: "DOWN"}, http.StatusServiceUnavailable)
			return
		}
		render.JSON(w, healthResponse{Status: "UP"})
	})
}

func handleInfo(version string) http.Handler {
	type app struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	type response struct {
		App app `json:"app"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		render.JSON(w, response{App: app{Name: "refarch", Version: version}})
	})
}
