package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"prayernote/internal/models"
)

// ---------- history ---------------------------------------------------------

const historyColumns = `id, topic_id, person_id, prayed_at`

func (d *DB) queryHistory(ctx context.Context, query string, args ...any) ([]models.History, error) {
	rows, err := d.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.History{}
	for rows.Next() {
		var (
			h      models.History
			prayed int64
		)
		if err := rows.Scan(&h.ID, &h.TopicID, &h.PersonID, &prayed); err != nil {
			return nil, err
		}
		h.PrayedAt = fromUnix(prayed)
		res = append(res, h)
	}
	return res, rows.Err()
}

func (d *DB) InsertHistory(ctx context.Context, h *models.History) error {
	res, err := d.ExecContext(ctx,
		`INSERT INTO prayer_history(topic_id, person_id, prayed_at) VALUES(?, ?, ?)`,
		h.TopicID, h.PersonID, unix(h.PrayedAt))
	if err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}
	if h.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	d.hub.notify(tableHistory)
	return nil
}

// HasHistoryOn reports whether topicID was recorded on the calendar day of at.
func (d *DB) HasHistoryOn(ctx context.Context, topicID int64, at time.Time) (bool, error) {
	start, end := d.dayBounds(at)
	return hasHistoryOn(ctx, d, topicID, start, end)
}

func hasHistoryOn(ctx context.Context, q querier, topicID int64, start, end time.Time) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM prayer_history WHERE topic_id = ? AND prayed_at >= ? AND prayed_at < ?)`,
		topicID, unix(start), unix(end)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check history of topic %d: %w", topicID, err)
	}
	return exists, nil
}

// RecordPrayed inserts a history row for the topic unless one already exists
// on the same calendar day. It reports whether a row was written.
func (d *DB) RecordPrayed(ctx context.Context, topicID, personID int64, at time.Time) (bool, error) {
	start, end := d.dayBounds(at)
	inserted := false
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		exists, err := hasHistoryOn(ctx, tx, topicID, start, end)
		if err != nil || exists {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prayer_history(topic_id, person_id, prayed_at) VALUES(?, ?, ?)`,
			topicID, personID, unix(at)); err != nil {
			return fmt.Errorf("failed to insert history: %w", err)
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if inserted {
		d.hub.notify(tableHistory)
	}
	return inserted, nil
}

func (d *DB) HistoryByTopic(ctx context.Context, topicID int64) ([]models.History, error) {
	res, err := d.queryHistory(ctx, `SELECT `+historyColumns+` FROM prayer_history
		WHERE topic_id = ? ORDER BY prayed_at DESC, id DESC`, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history of topic %d: %w", topicID, err)
	}
	return res, nil
}

func (d *DB) HistoryByPerson(ctx context.Context, personID int64) ([]models.History, error) {
	res, err := d.queryHistory(ctx, `SELECT `+historyColumns+` FROM prayer_history
		WHERE person_id = ? ORDER BY prayed_at DESC, id DESC`, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history of person %d: %w", personID, err)
	}
	return res, nil
}

// HistoryBetween returns rows with start <= prayed_at < end, newest first.
func (d *DB) HistoryBetween(ctx context.Context, start, end time.Time) ([]models.History, error) {
	res, err := d.queryHistory(ctx, `SELECT `+historyColumns+` FROM prayer_history
		WHERE prayed_at >= ? AND prayed_at < ? ORDER BY prayed_at DESC, id DESC`, unix(start), unix(end))
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return res, nil
}
