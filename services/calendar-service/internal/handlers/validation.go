package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/civil"
)

// ValidationError is a client input problem reported as 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// DurationBounds limits the appointment length a caller may ask for.
type DurationBounds struct {
	Min     int
	Max     int
	Default int
}

// Minutes validates raw. Empty input yields the default.
func (b DurationBounds) Minutes(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return b.Default, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid("duration_minutes", "must be an integer")
	}
	return b.check(n)
}

// Value is Minutes for an already decoded JSON field, where 0 means absent.
func (b DurationBounds) Value(n int) (int, error) {
	if n == 0 {
		return b.Default, nil
	}
	return b.check(n)
}

func (b DurationBounds) check(n int) (int, error) {
	if n < b.Min || n > b.Max {
		return 0, invalid("duration_minutes", fmt.Sprintf("must be between %d and %d", b.Min, b.Max))
	}
	return n, nil
}

func parseDateParam(r *http.Request, name string) (civil.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return civil.Date{}, invalid(name, "required")
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return civil.Date{}, invalid(name, "expected YYYY-MM-DD")
	}
	return d, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeValidation(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusBadRequest)
}
