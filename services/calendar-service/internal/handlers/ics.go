package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/model"
)

// ICSHandler serves confirmed appointments as an iCalendar feed.
type ICSHandler struct {
	lister  AppointmentLister
	locator Locator
	logger  *slog.Logger
	now     func() time.Time
}

func NewICSHandler(lister AppointmentLister, locator Locator, logger *slog.Logger) *ICSHandler {
	return &ICSHandler{lister: lister, locator: locator, logger: logger, now: time.Now}
}

func (h *ICSHandler) Feed(w http.ResponseWriter, r *http.Request) {
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

	ctx := r.Context()
	loc, err := h.locator.Location(ctx)
	if err != nil {
		h.logger.Error("schedule lookup failed", "err", err)
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	appts, err := h.lister.ListRange(ctx, from.Midnight(loc), to.AddDays(1).Midnight(loc), model.StatusConfirmed)
	if err != nil {
		h.logger.Error("appointment list failed", "err", err)
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="appointments.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(buildCalendar(appts, h.now())))
}

func buildCalendar(appts []model.Appointment, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//slotcal//calendar-service//EN")
	cal.SetName("Appointments")
	for _, a := range appts {
		ev := cal.AddEvent(a.ID + "@slotcal")
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(a.StartsAt.UTC())
		ev.SetEndAt(a.EndsAt().UTC())
		ev.SetSummary(fmt.Sprintf("Appointment: %s", a.ClientName))
		ev.SetStatus(ical.ObjectStatusConfirmed)
		if desc := describe(a); desc != "" {
			ev.SetDescription(desc)
		}
		if !a.CreatedAt.IsZero() {
			ev.SetCreatedTime(a.CreatedAt.UTC())
		}
		if !a.UpdatedAt.IsZero() {
			ev.SetModifiedAt(a.UpdatedAt.UTC())
		}
	}
	return cal.Serialize()
}

func describe(a model.Appointment) string {
	var parts []string
	if a.ClientEmail != "" {
		parts = append(parts, "Email: "+a.ClientEmail)
	}
	if a.ClientPhone != "" {
		parts = append(parts, "Phone: "+a.ClientPhone)
	}
	if a.Notes != "" {
		parts = append(parts, a.Notes)
	}
	return strings.Join(parts, "\n")
}
