package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"braintree-checkout-api/utils"
)

type HealthHandler struct {
	db        Pinger
	redis     Pinger
	startTime time.Time
}

func NewHealthHandler(db, redis Pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, startTime: time.Now()}
}

type healthResponse struct {
	Status    string `json:"status"`
	Time      string `json:"time"`
	Database  string `json:"database"`
	Redis     string `json:"redis"`
	Uptime    string `json:"uptime"`
	GoVersion string `json:"go_version"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := healthResponse{
		Status:    "ok",
		Time:      time.Now().Format(time.RFC3339),
		Database:  "connected",
		Redis:     "connected",
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		GoVersion: runtime.Version(),
	}

	if err := ping(ctx, h.db); err != nil {
		health.Status = "degraded"
		health.Database = "error"
	}
	if err := ping(ctx, h.redis); err != nil {
		health.Status = "degraded"
		health.Redis = "error"
	}

	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	utils.SendJSON(w, status, health)
}

func ping(ctx context.Context, p Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return p.Ping(ctx)
}
