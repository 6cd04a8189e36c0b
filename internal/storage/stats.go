package storage

import (
	"context"
	"fmt"
	"time"

	"prayernote/internal/models"
)

// ---------- statistics ------------------------------------------------------

// DefaultStatsMonths is the period used when none is chosen.
const DefaultStatsMonths = 6

// StatsPeriods are the selectable statistics periods in months.
var StatsPeriods = []int{1, 3, 6, 12}

// PeriodStart returns the instant months calendar months before now.
func (d *DB) PeriodStart(now time.Time, months int) time.Time {
	if months <= 0 {
		months = DefaultStatsMonths
	}
	return now.In(d.loc).AddDate(0, -months, 0)
}

// PeriodEnd returns the end of now's calendar day, so that today counts.
func (d *DB) PeriodEnd(now time.Time) time.Time {
	_, end := d.dayBounds(now)
	return end
}

func (d *DB) PrayerCountBetween(ctx context.Context, start, end time.Time) (int, error) {
	var n int
	err := d.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM prayer_history WHERE prayed_at >= ? AND prayed_at < ?`,
		unix(start), unix(end)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}

// StatsByPerson counts history rows per person, most prayed first.
func (d *DB) StatsByPerson(ctx context.Context, start, end time.Time) ([]models.PersonStat, error) {
	rows, err := d.QueryContext(ctx, `SELECT p.id, p.name, COUNT(h.id) AS cnt
		FROM prayer_history h JOIN persons p ON p.id = h.person_id
		WHERE h.prayed_at >= ? AND h.prayed_at < ?
		GROUP BY p.id, p.name
		ORDER BY cnt DESC, p.name ASC`, unix(start), unix(end))
	if err != nil {
		return nil, fmt.Errorf("failed to compute person stats: %w", err)
	}
	defer rows.Close()

	res := []models.PersonStat{}
	for rows.Next() {
		var s models.PersonStat
		if err := rows.Scan(&s.PersonID, &s.PersonName, &s.Count); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// MonthlyCounts counts history rows per calendar month of the store location,
// oldest month first. Months without rows are omitted.
func (d *DB) MonthlyCounts(ctx context.Context, start, end time.Time) ([]models.MonthStat, error) {
	rows, err := d.QueryContext(ctx,
		`SELECT prayed_at FROM prayer_history WHERE prayed_at >= ? AND prayed_at < ? ORDER BY prayed_at`,
		unix(start), unix(end))
	if err != nil {
		return nil, fmt.Errorf("failed to compute monthly stats: %w", err)
	}
	defer rows.Close()

	res := []models.MonthStat{}
	for rows.Next() {
		var sec int64
		if err := rows.Scan(&sec); err != nil {
			return nil, err
		}
		month := fromUnix(sec).In(d.loc).Format("2006-01")
		if n := len(res); n > 0 && res[n-1].Month == month {
			res[n-1].Count++
			continue
		}
		res = append(res, models.MonthStat{Month: month, Count: 1})
	}
	return res, rows.Err()
}

// AnswerRate is the percentage of topics touched in the period that were
// answered in it. A topic is touched if it was prayed for or answered.
func (d *DB) AnswerRate(ctx context.Context, start, end time.Time) (float64, error) {
	var total, answered int
	err := d.QueryRowContext(ctx, `
		WITH touched AS (
			SELECT topic_id AS id FROM prayer_history WHERE prayed_at >= ? AND prayed_at < ?
			UNION
			SELECT id FROM prayer_topics WHERE answered_at >= ? AND answered_at < ?
		)
		SELECT
			(SELECT COUNT(*) FROM touched),
			(SELECT COUNT(*) FROM prayer_topics WHERE status = ? AND answered_at >= ? AND answered_at < ?)`,
		unix(start), unix(end), unix(start), unix(end),
		int(models.StatusAnswered), unix(start), unix(end)).Scan(&total, &answered)
	if err != nil {
		return 0, fmt.Errorf("failed to compute answer rate: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(answered) * 100 / float64(total), nil
}

// Stats gathers every statistic for [start, end).
func (d *DB) Stats(ctx context.Context, start, end time.Time) (*models.Stats, error) {
	s := &models.Stats{Start: start, End: end}
	var err error
	if s.Total, err = d.PrayerCountBetween(ctx, start, end); err != nil {
		return nil, err
	}
	if s.ByPerson, err = d.StatsByPerson(ctx, start, end); err != nil {
		return nil, err
	}
	if s.Monthly, err = d.MonthlyCounts(ctx, start, end); err != nil {
		return nil, err
	}
	if s.AnswerRate, err = d.AnswerRate(ctx, start, end); err != nil {
		return nil, err
	}
	if s.ActiveTopics, s.AnsweredTopics, err = d.TopicCounts(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
