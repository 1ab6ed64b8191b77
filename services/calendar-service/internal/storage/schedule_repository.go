package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotcal/libs/db"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/civil"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/schedule"
)

// ErrScheduleReadOnly is returned when the schedule comes from a file snapshot.
var ErrScheduleReadOnly = errors.New("working schedule is read-only")

type ScheduleRepository struct {
	pool   *db.Pool
	static *schedule.WorkingSchedule
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

// WithStatic serves ws instead of the stored row. Closures still come from the
// database.
func (r *ScheduleRepository) WithStatic(ws *schedule.WorkingSchedule) *ScheduleRepository {
	return &ScheduleRepository{pool: r.pool, static: ws}
}

func (r *ScheduleRepository) ReadOnly() bool { return r.static != nil }

// WorkingSchedule returns nil when no schedule has been saved yet.
func (r *ScheduleRepository) WorkingSchedule(ctx context.Context) (*schedule.WorkingSchedule, error) {
	if r.static != nil {
		return r.static, nil
	}
	var ws schedule.WorkingSchedule
	var days []byte
	err := r.pool.QueryRow(ctx, `SELECT timezone, days FROM working_schedule WHERE id = 1`).Scan(&ws.Timezone, &days)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(days, &ws.Days); err != nil {
		return nil, err
	}
	return &ws, nil
}

func (r *ScheduleRepository) SaveWorkingSchedule(ctx context.Context, ws *schedule.WorkingSchedule) error {
	if r.static != nil {
		return ErrScheduleReadOnly
	}
	days := ws.Days
	if days == nil {
		days = []schedule.DayRule{}
	}
	raw, err := json.Marshal(days)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO working_schedule (id, timezone, days, updated_at)
		VALUES (1, $1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET timezone = EXCLUDED.timezone,
			days = EXCLUDED.days,
			updated_at = now()
	`, ws.Timezone, string(raw))
	return err
}

func dateParam(d civil.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// TimeOffBetween returns blocks overlapping the inclusive range [from, to].
func (r *ScheduleRepository) TimeOffBetween(ctx context.Context, from, to civil.Date) ([]schedule.TimeOffBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, date_from, date_to, reason
		FROM time_off_blocks
		WHERE date_from <= $2 AND date_to >= $1
		ORDER BY date_from ASC
	`, dateParam(from), dateParam(to))
	if err != nil {
		return nil, err
	}
	return collectTimeOff(rows)
}

func (r *ScheduleRepository) ListTimeOff(ctx context.Context, limit int) ([]schedule.TimeOffBlock, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, date_from, date_to, reason
		FROM time_off_blocks
		ORDER BY date_from DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return collectTimeOff(rows)
}

func (r *ScheduleRepository) CreateTimeOff(ctx context.Context, b *schedule.TimeOffBlock) error {
	b.ID = uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO time_off_blocks (id, date_from, date_to, reason)
		VALUES ($1, $2, $3, $4)
	`, b.ID, dateParam(b.DateFrom), dateParam(b.DateTo), b.Reason)
	return err
}

// DeleteTimeOff returns pgx.ErrNoRows when nothing was deleted.
func (r *ScheduleRepository) DeleteTimeOff(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return pgx.ErrNoRows
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM time_off_blocks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func collectTimeOff(rows pgx.Rows) ([]schedule.TimeOffBlock, error) {
	defer rows.Close()
	var blocks []schedule.TimeOffBlock
	for rows.Next() {
		var b schedule.TimeOffBlock
		var from, to time.Time
		if err := rows.Scan(&b.ID, &from, &to, &b.Reason); err != nil {
			return nil, err
		}
		b.DateFrom = civil.DateOf(from, time.UTC)
		b.DateTo = civil.DateOf(to, time.UTC)
		blocks = append(blocks, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return blocks, nil
}
