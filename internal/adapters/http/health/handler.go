package health

import (
	"log/slog"
	"net/http"

	apphealth "amlchecker/internal/application/health"
	httperrors "amlchecker/internal/infrastructure/http"
)

// Handler bridges HTTP traffic with the health application service.
type Handler struct {
	service *apphealth.Service
	log     *slog.Logger
}

func NewHandler(service *apphealth.Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Status answers 200 when every dependency is up and 503 otherwise.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	response := h.service.Status(r.Context())

	code := http.StatusOK
	if !response.Healthy() {
		code = http.StatusServiceUnavailable
	}
	httperrors.WriteJSON(w, code, response, h.log)
}
