package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/availability"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/civil"
)

type SlotEngine interface {
	BookableSlotsForDate(ctx context.Context, date civil.Date, durationMinutes int) ([]time.Time, error)
	CalendarForMonth(ctx context.Context, month civil.Month, durationMinutes int) ([]availability.DaySummary, error)
}

type AvailabilityHandler struct {
	engine SlotEngine
	bounds DurationBounds
	logger *slog.Logger
}

func NewAvailabilityHandler(engine SlotEngine, bounds DurationBounds, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{engine: engine, bounds: bounds, logger: logger}
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r, "date")
	if err != nil {
		writeValidation(w, err)
		return
	}
	minutes, err := h.bounds.Minutes(r.URL.Query().Get("duration_minutes"))
	if err != nil {
		writeValidation(w, err)
		return
	}

	starts, err := h.engine.BookableSlotsForDate(r.Context(), date, minutes)
	if err != nil {
		h.logger.Error("slots lookup failed", "err", err, "date", date.String())
		http.Error(w, "failed to load slots", http.StatusInternalServerError)
		return
	}
	length := time.Duration(minutes) * time.Minute
	items := make([]slotItem, 0, len(starts))
	for _, s := range starts {
		items = append(items, slotItem{
			StartTime: s.UTC().Format(time.RFC3339),
			EndTime:   s.Add(length).UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AvailabilityHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("month"))
	if raw == "" {
		writeValidation(w, invalid("month", "required"))
		return
	}
	month, err := civil.ParseMonth(raw)
	if err != nil {
		writeValidation(w, invalid("month", "expected YYYY-MM"))
		return
	}
	minutes, err := h.bounds.Minutes(r.URL.Query().Get("duration_minutes"))
	if err != nil {
		writeValidation(w, err)
		return
	}

	days, err := h.engine.CalendarForMonth(r.Context(), month, minutes)
	if err != nil {
		h.logger.Error("calendar lookup failed", "err", err, "month", month.String())
		http.Error(w, "failed to load calendar", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, days)
}
