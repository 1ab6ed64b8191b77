package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/schedule"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/storage"
)

type ScheduleStore interface {
	WorkingSchedule(ctx context.Context) (*schedule.WorkingSchedule, error)
	SaveWorkingSchedule(ctx context.Context, ws *schedule.WorkingSchedule) error
	ListTimeOff(ctx context.Context, limit int) ([]schedule.TimeOffBlock, error)
	CreateTimeOff(ctx context.Context, b *schedule.TimeOffBlock) error
	DeleteTimeOff(ctx context.Context, id string) error
}

type ScheduleHandler struct {
	store        ScheduleStore
	fallbackZone string
	logger       *slog.Logger
}

func NewScheduleHandler(store ScheduleStore, fallbackZone string, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{store: store, fallbackZone: fallbackZone, logger: logger}
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws, err := h.store.WorkingSchedule(r.Context())
	if err != nil {
		h.logger.Error("schedule load failed", "err", err)
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	if ws == nil {
		ws = schedule.Default(h.fallbackZone)
	}
	writeJSON(w, http.StatusOK, ws)
}

func (h *ScheduleHandler) Put(w http.ResponseWriter, r *http.Request) {
	var ws schedule.WorkingSchedule
	if err := json.NewDecoder(r.Body).Decode(&ws); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := ws.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.SaveWorkingSchedule(r.Context(), &ws); err != nil {
		if errors.Is(err, storage.ErrScheduleReadOnly) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("schedule save failed", "err", err)
		http.Error(w, "failed to save schedule", http.StatusInternalServerError)
		return
	}
	h.logger.Info("working schedule replaced", "timezone", ws.Timezone, "days", len(ws.Days))
	writeJSON(w, http.StatusOK, ws)
}

func (h *ScheduleHandler) ListTimeOff(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			writeValidation(w, invalid("limit", "must be between 1 and 1000"))
			return
		}
		limit = n
	}
	blocks, err := h.store.ListTimeOff(r.Context(), limit)
	if err != nil {
		h.logger.Error("time off list failed", "err", err)
		http.Error(w, "failed to list time off", http.StatusInternalServerError)
		return
	}
	if blocks == nil {
		blocks = []schedule.TimeOffBlock{}
	}
	writeJSON(w, http.StatusOK, blocks)
}

func (h *ScheduleHandler) CreateTimeOff(w http.ResponseWriter, r *http.Request) {
	var b schedule.TimeOffBlock
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := b.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.CreateTimeOff(r.Context(), &b); err != nil {
		h.logger.Error("time off create failed", "err", err)
		http.Error(w, "failed to create time off", http.StatusInternalServerError)
		return
	}
	h.logger.Info("time off added", "id", b.ID, "date_from", b.DateFrom.String(), "date_to", b.DateTo.String())
	writeJSON(w, http.StatusCreated, b)
}

func (h *ScheduleHandler) DeleteTimeOff(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.DeleteTimeOff(r.Context(), id); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "time off not found", http.StatusNotFound)
			return
		}
		h.logger.Error("time off delete failed", "err", err, "id", id)
		http.Error(w, "failed to delete time off", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
