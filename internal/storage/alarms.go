package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"prayernote/internal/models"
)

// ---------- alarms ----------------------------------------------------------

func (d *DB) queryAlarms(ctx context.Context, query string, args ...any) ([]models.Alarm, error) {
	rows, err := d.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.Alarm{}
	for rows.Next() {
		var a models.Alarm
		if err := rows.Scan(&a.ID, &a.Hour, &a.Minute, &a.Enabled); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (d *DB) InsertAlarm(ctx context.Context, a *models.Alarm) error {
	if err := a.Validate(); err != nil {
		return err
	}
	res, err := d.ExecContext(ctx,
		`INSERT INTO alarm_times(hour, minute, enabled) VALUES(?, ?, ?)`, a.Hour, a.Minute, a.Enabled)
	if err != nil {
		return fmt.Errorf("failed to insert alarm: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	d.hub.notify(tableAlarms)
	return nil
}

func (d *DB) UpdateAlarm(ctx context.Context, a *models.Alarm) error {
	if err := a.Validate(); err != nil {
		return err
	}
	res, err := d.ExecContext(ctx,
		`UPDATE alarm_times SET hour = ?, minute = ?, enabled = ? WHERE id = ?`,
		a.Hour, a.Minute, a.Enabled, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update alarm %d: %w", a.ID, err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return err
	}
	d.hub.notify(tableAlarms)
	return nil
}

// SetAlarmEnabled toggles an alarm and returns its new state.
func (d *DB) SetAlarmEnabled(ctx context.Context, id int64, enabled bool) (*models.Alarm, error) {
	res, err := d.ExecContext(ctx, `UPDATE alarm_times SET enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle alarm %d: %w", id, err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return nil, err
	}
	d.hub.notify(tableAlarms)
	return d.GetAlarm(ctx, id)
}

func (d *DB) DeleteAlarm(ctx context.Context, id int64) error {
	res, err := d.ExecContext(ctx, `DELETE FROM alarm_times WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete alarm %d: %w", id, err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return err
	}
	d.hub.notify(tableAlarms)
	return nil
}

func (d *DB) GetAlarm(ctx context.Context, id int64) (*models.Alarm, error) {
	var a models.Alarm
	err := d.QueryRowContext(ctx,
		`SELECT id, hour, minute, enabled FROM alarm_times WHERE id = ?`, id).
		Scan(&a.ID, &a.Hour, &a.Minute, &a.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alarm %d: %w", id, err)
	}
	return &a, nil
}

// ListAlarms returns all alarms in time-of-day order.
func (d *DB) ListAlarms(ctx context.Context) ([]models.Alarm, error) {
	res, err := d.queryAlarms(ctx,
		`SELECT id, hour, minute, enabled FROM alarm_times ORDER BY hour, minute, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list alarms: %w", err)
	}
	return res, nil
}

func (d *DB) EnabledAlarms(ctx context.Context) ([]models.Alarm, error) {
	res, err := d.queryAlarms(ctx,
		`SELECT id, hour, minute, enabled FROM alarm_times WHERE enabled = 1 ORDER BY hour, minute, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled alarms: %w", err)
	}
	return res, nil
}
