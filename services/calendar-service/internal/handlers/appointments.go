package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/booking"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/model"
)

type Booker interface {
	Book(ctx context.Context, req booking.Request, idempotencyKey string) (model.Appointment, bool, error)
	Reschedule(ctx context.Context, id string, startsAt time.Time, durationMinutes int) (model.Appointment, error)
	SetStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error)
}

type AppointmentLister interface {
	ListRange(ctx context.Context, from, to time.Time, statuses ...model.Status) ([]model.Appointment, error)
}

// Locator resolves the zone civil dates are interpreted in.
type Locator interface {
	Location(ctx context.Context) (*time.Location, error)
}

type AppointmentHandler struct {
	booker  Booker
	lister  AppointmentLister
	locator Locator
	bounds  DurationBounds
	logger  *slog.Logger
}

func NewAppointmentHandler(booker Booker, lister AppointmentLister, locator Locator, bounds DurationBounds, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{booker: booker, lister: lister, locator: locator, bounds: bounds, logger: logger}
}

type createAppointmentRequest struct {
	StartsAt        string `json:"starts_at"`
	DurationMinutes int    `json:"duration_minutes"`
	ClientName      string `json:"client_name"`
	ClientEmail     string `json:"client_email"`
	ClientPhone     string `json:"client_phone"`
	Notes           string `json:"notes"`
}

type rescheduleRequest struct {
	StartsAt        string `json:"starts_at"`
	DurationMinutes int    `json:"duration_minutes"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type appointmentView struct {
	ID              string     `json:"id"`
	StartsAt        string     `json:"starts_at"`
	EndsAt          string     `json:"ends_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	ClientName      string     `json:"client_name"`
	ClientEmail     string     `json:"client_email,omitempty"`
	ClientPhone     string     `json:"client_phone,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	Send24hAt       *time.Time `json:"send_24h_at,omitempty"`
	Sent24hAt       *time.Time `json:"sent_24h_at,omitempty"`
	Send1hAt        *time.Time `json:"send_1h_at,omitempty"`
	Sent1hAt        *time.Time `json:"sent_1h_at,omitempty"`
	CreatedAt       string     `json:"created_at,omitempty"`
	UpdatedAt       string     `json:"updated_at,omitempty"`
}

func formatOptional(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func viewOf(a model.Appointment) appointmentView {
	return appointmentView{
		ID:              a.ID,
		StartsAt:        a.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:          a.EndsAt().UTC().Format(time.RFC3339),
		DurationMinutes: model.EffectiveDuration(a.DurationMinutes),
		Status:          string(a.Status),
		ClientName:      a.ClientName,
		ClientEmail:     a.ClientEmail,
		ClientPhone:     a.ClientPhone,
		Notes:           a.Notes,
		Send24hAt:       a.Reminders.Send24hAt,
		Sent24hAt:       a.Reminders.Sent24hAt,
		Send1hAt:        a.Reminders.Send1hAt,
		Sent1hAt:        a.Reminders.Sent1hAt,
		CreatedAt:       formatOptional(a.CreatedAt),
		UpdatedAt:       formatOptional(a.UpdatedAt),
	}
}

func parseStart(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, invalid("starts_at", "expected RFC3339 timestamp")
	}
	return t.UTC(), nil
}

// Create books a PENDING appointment on behalf of a client.
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ClientName = strings.TrimSpace(req.ClientName)
	if req.ClientName == "" {
		writeValidation(w, invalid("client_name", "required"))
		return
	}
	start, err := parseStart(req.StartsAt)
	if err != nil {
		writeValidation(w, err)
		return
	}
	minutes, err := h.bounds.Value(req.DurationMinutes)
	if err != nil {
		writeValidation(w, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	a, replayed, err := h.booker.Book(r.Context(), booking.Request{
		StartsAt:        start,
		DurationMinutes: minutes,
		ClientName:      req.ClientName,
		ClientEmail:     strings.TrimSpace(req.ClientEmail),
		ClientPhone:     strings.TrimSpace(req.ClientPhone),
		Notes:           strings.TrimSpace(req.Notes),
	}, key)
	var replay *booking.ReplayError
	switch {
	case errors.As(err, &replay):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(replay.StatusCode)
		_, _ = w.Write(replay.Body)
		return
	case errors.Is(err, booking.ErrSlotUnavailable):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case errors.Is(err, booking.ErrOverlap):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("appointment create failed", "err", err)
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	writeJSON(w, http.StatusCreated, viewOf(a))
}

// Cancel lets a client withdraw an appointment.
func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	a, err := h.booker.SetStatus(r.Context(), r.PathValue("id"), model.StatusCancelled)
	if err != nil {
		h.writeWriteError(w, err, "failed to cancel appointment")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(a))
}

func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	start, err := parseStart(req.StartsAt)
	if err != nil {
		writeValidation(w, err)
		return
	}
	minutes := 0
	if req.DurationMinutes != 0 {
		if minutes, err = h.bounds.Value(req.DurationMinutes); err != nil {
			writeValidation(w, err)
			return
		}
	}

	a, err := h.booker.Reschedule(r.Context(), r.PathValue("id"), start, minutes)
	if err != nil {
		h.writeWriteError(w, err, "failed to reschedule appointment")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(a))
}

func (h *AppointmentHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	status, ok := model.ParseStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !ok {
		writeValidation(w, invalid("status", "unknown status"))
		return
	}

	a, err := h.booker.SetStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		h.writeWriteError(w, err, "failed to update status")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(a))
}

func (h *AppointmentHandler) writeWriteError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, booking.ErrInvalidTransition), errors.Is(err, booking.ErrOverlap):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error(msg, "err", err)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

// List returns appointments starting on the inclusive civil date range
// [from, to], optionally filtered by status.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	from, err := parseDateParam(r, "from")
	if err != nil {
		writeValidation(w, err)
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		writeValidation(w, err)
		return
	}
	if to.Before(from) {
		writeValidation(w, invalid("to", "must not be before from"))
		return
	}
	var statuses []model.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		st, ok := model.ParseStatus(strings.ToUpper(raw))
		if !ok {
			writeValidation(w, invalid("status", "unknown status"))
			return
		}
		statuses = append(statuses, st)
	}

	ctx := r.Context()
	loc, err := h.locator.Location(ctx)
	if err != nil {
		h.logger.Error("schedule lookup failed", "err", err)
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	appts, err := h.lister.ListRange(ctx, from.Midnight(loc), to.AddDays(1).Midnight(loc), statuses...)
	if err != nil {
		h.logger.Error("appointment list failed", "err", err)
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	items := make([]appointmentView, 0, len(appts))
	for _, a := range appts {
		items = append(items, viewOf(a))
	}
	writeJSON(w, http.StatusOK, items)
}
