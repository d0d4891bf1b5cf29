package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"lectern/internal/jobs"
	"lectern/internal/logging"
	"lectern/internal/services"
)

// HealthFunc supplies the daemon's health payload for GET /api/health.
type HealthFunc func(r *http.Request) (payload any, ready bool)

// submitRequest is the body of POST /api/jobs.
type submitRequest struct {
	Path  string `json:"path"`
	Owner string `json:"owner,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler builds the HTTP surface over the job service.
func NewHandler(svc *Service, health HealthFunc, logger *slog.Logger) http.Handler {
	h := &httpHandler{
		svc:    svc,
		health: health,
		logger: logging.NewComponentLogger(logger, "http"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/jobs", h.listJobs)
	mux.HandleFunc("POST /api/jobs", h.submitJob)
	mux.HandleFunc("GET /api/jobs/{id}", h.getJob)
	mux.HandleFunc("GET /api/jobs/{id}/result", h.getResult)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", h.cancelJob)
	mux.HandleFunc("POST /api/jobs/{id}/retry", h.retryJob)
	mux.HandleFunc("GET /api/health", h.getHealth)
	return mux
}

type httpHandler struct {
	svc    *Service
	health HealthFunc
	logger *slog.Logger
}

func (h *httpHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []jobs.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := jobs.ParseStatus(raw)
		if !ok {
			h.writeError(w, http.StatusBadRequest, errors.New("unknown status "+raw))
			return
		}
		statuses = append(statuses, status)
	}
	items, err := h.svc.List(r.Context(), statuses...)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ToJobViews(items))
}

func (h *httpHandler) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	job, err := h.svc.Submit(r.Context(), req.Path, req.Owner)
	if err != nil {
		h.writeError(w, statusForError(err), err)
		return
	}
	h.writeJSON(w, http.StatusCreated, ToJobView(job))
}

func (h *httpHandler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, statusForError(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, ToJobView(job))
}

func (h *httpHandler) getResult(w http.ResponseWriter, r *http.Request) {
	transcript, err := h.svc.Result(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, statusForError(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, transcript)
}

func (h *httpHandler) cancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.svc.Cancel(r.Context(), id); err != nil {
		h.writeError(w, statusForError(err), err)
		return
	}
	job, err := h.svc.Status(r.Context(), id)
	if err != nil {
		h.writeError(w, statusForError(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, ToJobView(job))
}

func (h *httpHandler) retryJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, statusForError(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, ToJobView(job))
}

func (h *httpHandler) getHealth(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	payload, ready := h.health(r)
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, payload)
}

func (h *httpHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("response encode failed", logging.Error(err))
	}
}

func (h *httpHandler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
