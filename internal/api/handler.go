package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/seancallaway/modbot/internal/bot"
	"github.com/seancallaway/modbot/internal/store"
	"github.com/seancallaway/modbot/internal/tracker"
)

// Backend is the part of *bot.Bot the API reads from.
type Backend interface {
	Subreddit() string
	Interval() time.Duration
	Healthy(now time.Time) bool
	Signals() []bot.SignalStatus
	Signal(name string) (bot.SignalStatus, bool)
	Check(ctx context.Context, name string) (bot.Result, error)
	Events(ctx context.Context, limit int) ([]store.Event, error)
}

// Handler serves the status API.
type Handler struct {
	b      Backend
	router chi.Router
	now    func() time.Time
}

// New creates a Handler for b and registers all routes.
func New(b Backend) *Handler {
	h := &Handler{b: b, router: chi.NewRouter(), now: time.Now}

	h.router.Use(middleware.RequestID)
	h.router.Use(middleware.Recoverer)
	h.router.Use(accessLog)

	h.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Get("/signals", h.listSignals)
		r.Get("/signals/{name}", h.getSignal)
		r.Post("/signals/{name}/check", h.checkSignal)
		r.Get("/events", h.events)
	})
	h.router.Get("/metrics", h.metrics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns 200 while every signal has been checked recently, 503 otherwise.
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:      "ok",
		Subreddit:   h.b.Subreddit(),
		IntervalSec: int64(h.b.Interval() / time.Second),
		Signals:     len(h.b.Signals()),
	}
	code := http.StatusOK
	if !h.b.Healthy(h.now()) {
		resp.Status = "stale"
		code = http.StatusServiceUnavailable
	}
	jsonResp(w, code, resp)
}

func (h *Handler) listSignals(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, h.b.Signals())
}

func (h *Handler) getSignal(w http.ResponseWriter, r *http.Request) {
	s, ok := h.b.Signal(chi.URLParam(r, "name"))
	if !ok {
		jsonErr(w, http.StatusNotFound, "signal not found")
		return
	}
	jsonResp(w, http.StatusOK, s)
}

// checkSignal runs one check synchronously. A failed source is still a 200:
// the failure is part of the result, not of the request.
func (h *Handler) checkSignal(w http.ResponseWriter, r *http.Request) {
	res, err := h.b.Check(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, tracker.ErrUnknownSignal) {
		jsonErr(w, http.StatusNotFound, "signal not found")
		return
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := CheckResponse{
		Signal:  res.Signal,
		Count:   res.Count,
		Skipped: res.Skipped,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	if k := res.Outcome.Kind; k != tracker.KindNone {
		resp.Kind = string(k)
		resp.Message = res.Outcome.Message
	}
	resp.Delivered = res.Outcome.Attempted && res.Outcome.DeliveryErr == nil
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, store.MaxHistory)
	}

	evs, err := h.b.Events(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("api: read events failed")
		jsonErr(w, http.StatusInternalServerError, "could not read events")
		return
	}
	if evs == nil {
		evs = []store.Event{}
	}
	jsonResp(w, http.StatusOK, EventsResponse{Events: evs})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// accessLog logs each request at debug level.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("api: request")
	})
}
