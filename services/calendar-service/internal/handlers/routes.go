package handlers

import "net/http"

// Routes groups the handlers mounted by Register.
type Routes struct {
	Availability *AvailabilityHandler
	Appointments *AppointmentHandler
	Schedule     *ScheduleHandler
	Reminders    *ReminderHandler
	ICS          *ICSHandler
}

// Register mounts every endpoint on mux. admin wraps operator endpoints and
// trigger wraps the machine dispatch trigger; public routes are passed
// through limit.
func Register(mux *http.ServeMux, rt Routes, limit, admin, trigger func(http.Handler) http.Handler) {
	pub := func(f http.HandlerFunc) http.Handler { return limit(f) }
	adm := func(f http.HandlerFunc) http.Handler { return admin(f) }

	mux.Handle("GET /api/v1/public/slots", pub(rt.Availability.Slots))
	mux.Handle("GET /api/v1/public/calendar", pub(rt.Availability.Calendar))
	mux.Handle("POST /api/v1/public/appointments", pub(rt.Appointments.Create))
	mux.Handle("POST /api/v1/public/appointments/{id}/cancel", pub(rt.Appointments.Cancel))

	mux.Handle("GET /api/v1/admin/appointments", adm(rt.Appointments.List))
	mux.Handle("POST /api/v1/admin/appointments/{id}/reschedule", adm(rt.Appointments.Reschedule))
	mux.Handle("POST /api/v1/admin/appointments/{id}/status", adm(rt.Appointments.SetStatus))
	mux.Handle("GET /api/v1/admin/schedule", adm(rt.Schedule.Get))
	mux.Handle("PUT /api/v1/admin/schedule", adm(rt.Schedule.Put))
	mux.Handle("GET /api/v1/admin/time-off", adm(rt.Schedule.ListTimeOff))
	mux.Handle("POST /api/v1/admin/time-off", adm(rt.Schedule.CreateTimeOff))
	mux.Handle("DELETE /api/v1/admin/time-off/{id}", adm(rt.Schedule.DeleteTimeOff))
	mux.Handle("GET /api/v1/admin/reminders/enabled", adm(rt.Reminders.GetEnabled))
	mux.Handle("PUT /api/v1/admin/reminders/enabled", adm(rt.Reminders.PutEnabled))
	mux.Handle("GET /api/v1/admin/calendar.ics", adm(rt.ICS.Feed))

	mux.Handle("POST /api/v1/internal/reminders/dispatch", trigger(http.HandlerFunc(rt.Reminders.Dispatch)))
}
