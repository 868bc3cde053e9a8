package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/holiday-agent/internal/criteria"
	"github.com/nidhogg/holiday-agent/internal/gateway"
	"github.com/nidhogg/holiday-agent/internal/metrics"
	"github.com/nidhogg/holiday-agent/internal/task"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const serviceName = "holiday-agent"

// Tasks is the part of task.Manager the handler needs.
type Tasks interface {
	Submit(req criteria.Request, caller task.CallerRef) (string, error)
	Get(id string) (task.Task, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	tasks   Tasks
	gw      *gateway.Gateway
	restGW  *gateway.RESTAdapter
	baseURL string
	logger  *zap.Logger
}

// NewHandler creates a new API handler. gw and restGW may be nil when no
// chat gateway is running.
func NewHandler(tasks Tasks, gw *gateway.Gateway, restGW *gateway.RESTAdapter, baseURL string, logger *zap.Logger) *Handler {
	return &Handler{
		tasks:   tasks,
		gw:      gw,
		restGW:  restGW,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(observeRequests)

	r.Get("/health", h.healthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/search", h.submitSearch)
	r.Get("/status/{taskID}", h.taskStatus)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Post("/search", h.submitSearch)
		r.Get("/status/{taskID}", h.taskStatus)
		r.Get("/gateway/status", h.gatewayStatus)
	})

	if h.restGW != nil {
		r.Mount("/chat", h.restGW.Routes())
	}

	return r
}

// observeRequests records request latency by route pattern, so task ids do
// not end up as label values.
func observeRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequestDuration(r.Method, path, strconv.Itoa(status), time.Since(start))
	})
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ok", "service": serviceName}
	if h.gw != nil {
		body["adapters"] = h.gw.Adapters()
	}
	writeJSON(w, http.StatusOK, body)
}

// searchRequest is the form or free-text payload plus an optional chat
// reference to push the completion to.
type searchRequest struct {
	criteria.Request
	Notify *task.CallerRef `json:"notify,omitempty"`
}

type searchAccepted struct {
	TaskID    string      `json:"task_id"`
	Status    task.Status `json:"status"`
	StatusURL string      `json:"status_url"`
}

func (h *Handler) submitSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	var caller task.CallerRef
	if req.Notify != nil {
		caller = *req.Notify
	}

	id, err := h.tasks.Submit(req.Request, caller)
	if err != nil {
		var verr *criteria.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error(), "field": verr.Field})
		case errors.Is(err, criteria.ErrEmptyRequest):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, task.ErrShuttingDown):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		default:
			h.logger.Error("submit search failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return
	}

	h.logger.Info("search accepted",
		zap.String("task_id", id),
		zap.Bool("free_text", req.IsFreeText()),
		zap.String("notify", caller.Platform))
	writeJSON(w, http.StatusAccepted, searchAccepted{
		TaskID:    id,
		Status:    task.StatusPending,
		StatusURL: h.baseURL + "/status/" + id,
	})
}

func (h *Handler) taskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	t, err := h.tasks.Get(id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.gw == nil {
		writeJSON(w, http.StatusOK, []gateway.AdapterStatus{})
		return
	}
	writeJSON(w, http.StatusOK, h.gw.Statuses())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
