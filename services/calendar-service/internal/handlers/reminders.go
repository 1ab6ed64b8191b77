package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/reminders"
)

type DispatchRunner interface {
	Run(ctx context.Context, kinds ...reminders.Kind) ([]reminders.Summary, error)
	Switch() *reminders.Switch
}

type ReminderHandler struct {
	runner DispatchRunner
	logger *slog.Logger
}

func NewReminderHandler(runner DispatchRunner, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{runner: runner, logger: logger}
}

type enabledBody struct {
	Enabled bool `json:"enabled"`
}

// Dispatch runs one on-demand pass for kind=24h, kind=1h or kind=all.
func (h *ReminderHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("kind"))
	var kinds []reminders.Kind
	if raw != "" && raw != "all" {
		kind, ok := reminders.ParseKind(raw)
		if !ok {
			writeValidation(w, invalid("kind", "expected 24h, 1h or all"))
			return
		}
		kinds = append(kinds, kind)
	}

	summaries, err := h.runner.Run(r.Context(), kinds...)
	if errors.Is(err, reminders.ErrDisabled) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		h.logger.Error("manual dispatch failed", "err", err)
		http.Error(w, "dispatch failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *ReminderHandler) GetEnabled(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, enabledBody{Enabled: h.runner.Switch().Enabled()})
}

func (h *ReminderHandler) PutEnabled(w http.ResponseWriter, r *http.Request) {
	var body enabledBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	h.runner.Switch().Set(body.Enabled)
	h.logger.Info("reminder dispatch toggled", "enabled", body.Enabled)
	writeJSON(w, http.StatusOK, body)
}
