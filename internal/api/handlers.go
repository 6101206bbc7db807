// Package api exposes the ledger over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/fitledger/internal/activity"
	"example.com/fitledger/internal/auth"
	"example.com/fitledger/internal/coach"
	"example.com/fitledger/internal/daykey"
	"example.com/fitledger/internal/nutrition"
	"example.com/fitledger/internal/recovery"
	"example.com/fitledger/internal/tracker"
)

const maxBodyBytes = 64 << 10

// Handler coordinates HTTP requests with the tracker.
type Handler struct {
	tracker *tracker.Tracker
	logger  logrus.FieldLogger
	now     func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(t *tracker.Tracker, logger logrus.FieldLogger) *Handler {
	return &Handler{tracker: t, logger: logger, now: time.Now}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)

	mux.HandleFunc("POST /v1/activity", h.write(h.logAction))
	mux.HandleFunc("GET /v1/activity/streak", h.read(h.streak))
	mux.HandleFunc("GET /v1/activity/calendar", h.read(h.calendar))
	mux.HandleFunc("GET /v1/activity/stats", h.read(h.stats))

	mux.HandleFunc("POST /v1/meals", h.write(h.addMeal))
	mux.HandleFunc("GET /v1/meals", h.read(h.listMeals))
	mux.HandleFunc("DELETE /v1/meals/{id}", h.write(h.removeMeal))
	mux.HandleFunc("POST /v1/meals/estimate", h.read(h.estimateMeal))

	mux.HandleFunc("GET /v1/nutrition/summary", h.read(h.summary))
	mux.HandleFunc("PUT /v1/goals", h.write(h.setGoals))
	mux.HandleFunc("POST /v1/plans", h.write(h.generatePlan))

	mux.HandleFunc("POST /v1/sleep", h.write(h.recordSleep))
	mux.HandleFunc("GET /v1/sleep", h.read(h.sleepHistory))
	mux.HandleFunc("GET /v1/sleep/{day}", h.read(h.sleepForDay))
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) read(next http.HandlerFunc) http.HandlerFunc {
	return h.requireScope(auth.ScopeLedgerRead, next)
}

func (h *Handler) write(next http.HandlerFunc) http.HandlerFunc {
	return h.requireScope(auth.ScopeLedgerWrite, next)
}

func (h *Handler) requireScope(scope string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if !claims.HasScope(scope) {
			writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
			return
		}
		next(w, r)
	}
}

func (h *Handler) logAction(w http.ResponseWriter, r *http.Request) {
	var req LogActionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	kind, err := activity.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	at := h.instant(req.At)
	changed, err := h.tracker.LogAction(r.Context(), kind, at)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LogActionResponse{
		Date:    h.tracker.Policy().FromTime(at),
		Kind:    kind,
		Changed: changed,
	})
}

func (h *Handler) streak(w http.ResponseWriter, r *http.Request) {
	today, ok := h.dayParam(w, r, "today")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, StreakResponse{Today: today, CurrentStreak: h.tracker.CurrentStreak(today)})
}

func (h *Handler) calendar(w http.ResponseWriter, r *http.Request) {
	today, ok := h.dayParam(w, r, "today")
	if !ok {
		return
	}
	month := today.Month()
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := daykey.ParseMonth(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "month must be YYYY-MM")
			return
		}
		month = parsed
	}
	writeJSON(w, http.StatusOK, CalendarResponse{Month: month.String(), Days: h.tracker.MonthCalendar(month, today)})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	today, ok := h.dayParam(w, r, "today")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.tracker.Stats(today))
}

func (h *Handler) addMeal(w http.ResponseWriter, r *http.Request) {
	var req AddMealRequest
	if !decodeBody(w, r, &req) {
		return
	}
	meal, err := h.tracker.AddMeal(r.Context(), nutrition.MealInput{
		Name:     req.Name,
		Calories: req.Calories,
		Protein:  req.Protein,
		Carbs:    req.Carbs,
		Fats:     req.Fats,
		Fiber:    req.Fiber,
	}, h.instant(req.At))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, meal)
}

func (h *Handler) listMeals(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("day") == "" {
		writeJSON(w, http.StatusOK, MealsResponse{Items: h.tracker.Meals()})
		return
	}
	day, ok := h.dayParam(w, r, "day")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, MealsResponse{Date: day, Items: h.tracker.MealsForDay(day)})
}

func (h *Handler) removeMeal(w http.ResponseWriter, r *http.Request) {
	removed, err := h.tracker.RemoveMeal(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "not_found", "meal not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) estimateMeal(w http.ResponseWriter, r *http.Request) {
	var req EstimateMealRequest
	if !decodeBody(w, r, &req) {
		return
	}
	est, err := h.tracker.EstimateMeal(r.Context(), req.Description)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r, "day")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.tracker.Summary(day))
}

func (h *Handler) setGoals(w http.ResponseWriter, r *http.Request) {
	var goals nutrition.Goals
	if !decodeBody(w, r, &goals) {
		return
	}
	if err := h.tracker.SetGoals(r.Context(), goals); err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (h *Handler) generatePlan(w http.ResponseWriter, r *http.Request) {
	var profile coach.Profile
	if !decodeBody(w, r, &profile) {
		return
	}
	res, err := h.tracker.GeneratePlan(r.Context(), profile, h.now())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, PlanResponse{Plan: res.Plan.Raw, Goals: res.Goals})
}

func (h *Handler) recordSleep(w http.ResponseWriter, r *http.Request) {
	var req RecordSleepRequest
	if !decodeBody(w, r, &req) {
		return
	}
	quality, err := recovery.ParseQuality(req.Quality)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	soreness, err := recovery.ParseSoreness(req.Soreness)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	res, err := h.tracker.RecordSleep(r.Context(), recovery.Input{Hours: req.Hours, Quality: quality, Soreness: soreness}, h.instant(req.At))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SleepResponse{Log: res.Log, Analysis: res.Analysis, Band: res.Band})
}

func (h *Handler) sleepHistory(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	resp := SleepHistoryResponse{Items: h.tracker.SleepHistory(limit)}
	if avg, ok := h.tracker.AverageReadiness(7); ok {
		resp.AverageReadiness = &avg
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) sleepForDay(w http.ResponseWriter, r *http.Request) {
	day, err := daykey.Parse(r.PathValue("day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	entry, ok := h.tracker.SleepForDay(day)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no sleep log for "+string(day))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// instant returns at, or the current time when the client omitted it.
func (h *Handler) instant(at *time.Time) time.Time {
	if at == nil || at.IsZero() {
		return h.now()
	}
	return *at
}

// dayParam reads a YYYY-MM-DD query parameter, defaulting to today.
func (h *Handler) dayParam(w http.ResponseWriter, r *http.Request, name string) (daykey.Key, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return h.tracker.Policy().FromTime(h.now()), true
	}
	day, err := daykey.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", name+" must be YYYY-MM-DD")
		return "", false
	}
	return day, true
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case tracker.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, coach.ErrUnavailable), errors.Is(err, coach.ErrMalformedResponse):
		h.logger.WithError(err).Warn("collaborator call failed")
		writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
	default:
		h.logger.WithError(err).Error("ledger operation failed")
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
