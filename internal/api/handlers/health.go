package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bigkaa/confighost/internal/config"
	"github.com/bigkaa/confighost/internal/database"
)

// HealthHandler — liveness и readiness probes.
type HealthHandler struct {
	readiness *database.ReadinessChecker
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(readiness *database.ReadinessChecker) *HealthHandler {
	return &HealthHandler{readiness: readiness}
}

// healthResponse — тело ответа health endpoint.
type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Version string `json:"version"`
}

// Live обрабатывает GET /health/live.
// Процесс жив и отвечает — всегда 200.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: config.Version,
	})
}

// Ready обрабатывает GET /health/ready.
// Проверяет доступность PostgreSQL; при отказе — 503.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status, message := h.readiness.CheckReady()

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, healthResponse{
		Status:  status,
		Message: message,
		Version: config.Version,
	})
}

func writeHealth(w http.ResponseWriter, statusCode int, resp healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}
