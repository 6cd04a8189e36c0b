package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"prayernote/internal/models"
)

// ---------- topics ----------------------------------------------------------

const topicColumns = `t.id, t.person_id, t.title, t.priority, t.status, t.created_at, t.answered_at`

func scanTopic(row rowScanner, extra ...any) (models.Topic, error) {
	var (
		t        models.Topic
		status   int
		created  int64
		answered sql.NullInt64
	)
	dest := append([]any{&t.ID, &t.PersonID, &t.Title, &t.Priority, &status, &created, &answered}, extra...)
	if err := row.Scan(dest...); err != nil {
		return t, err
	}
	t.Status = models.TopicStatus(status)
	t.CreatedAt = fromUnix(created)
	t.AnsweredAt = fromNullUnix(answered)
	return t, nil
}

func (d *DB) queryTopics(ctx context.Context, query string, args ...any) ([]models.Topic, error) {
	rows, err := d.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.Topic{}
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// InsertTopic stores t with its priority as given.
func (d *DB) InsertTopic(ctx context.Context, t *models.Topic) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	res, err := d.ExecContext(ctx,
		`INSERT INTO prayer_topics(person_id, title, priority, status, created_at, answered_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		t.PersonID, t.Title, t.Priority, int(t.Status), unix(t.CreatedAt), nullUnix(t.AnsweredAt))
	if err != nil {
		return fmt.Errorf("failed to insert topic: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	d.hub.notify(tableTopics)
	return nil
}

// AddTopic stores a new active topic above every other topic of its person.
func (d *DB) AddTopic(ctx context.Context, t *models.Topic) error {
	t.Status = models.StatusActive
	t.AnsweredAt = nil
	if err := t.Validate(); err != nil {
		return err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(priority), 0) + 1 FROM prayer_topics WHERE person_id = ?`,
			t.PersonID).Scan(&t.Priority); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO prayer_topics(person_id, title, priority, status, created_at)
			 VALUES(?, ?, ?, ?, ?)`,
			t.PersonID, t.Title, t.Priority, int(t.Status), unix(t.CreatedAt))
		if err != nil {
			return err
		}
		t.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to add topic: %w", err)
	}
	d.hub.notify(tableTopics)
	return nil
}

func (d *DB) UpdateTopic(ctx context.Context, t *models.Topic) error {
	if err := t.Validate(); err != nil {
		return err
	}
	res, err := d.ExecContext(ctx,
		`UPDATE prayer_topics SET person_id = ?, title = ?, priority = ?, status = ?, answered_at = ?
		 WHERE id = ?`,
		t.PersonID, t.Title, t.Priority, int(t.Status), nullUnix(t.AnsweredAt), t.ID)
	if err != nil {
		return fmt.Errorf("failed to update topic %d: %w", t.ID, err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return err
	}
	d.hub.notify(tableTopics)
	return nil
}

func (d *DB) DeleteTopic(ctx context.Context, id int64) error {
	res, err := d.ExecContext(ctx, `DELETE FROM prayer_topics WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete topic %d: %w", id, err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return err
	}
	d.hub.notify(tableTopics, tableHistory)
	return nil
}

func (d *DB) GetTopic(ctx context.Context, id int64) (*models.Topic, error) {
	t, err := scanTopic(d.QueryRowContext(ctx, `SELECT `+topicColumns+` FROM prayer_topics t WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get topic %d: %w", id, err)
	}
	return &t, nil
}

// TopicsByPerson returns all topics of a person, highest priority first,
// oldest first on ties.
func (d *DB) TopicsByPerson(ctx context.Context, personID int64) ([]models.Topic, error) {
	res, err := d.queryTopics(ctx, `SELECT `+topicColumns+` FROM prayer_topics t
		WHERE t.person_id = ? ORDER BY t.priority DESC, t.created_at ASC, t.id ASC`, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics of person %d: %w", personID, err)
	}
	return res, nil
}

// ActiveTopicsByPerson is TopicsByPerson restricted to active topics.
func (d *DB) ActiveTopicsByPerson(ctx context.Context, personID int64) ([]models.Topic, error) {
	res, err := d.queryTopics(ctx, `SELECT `+topicColumns+` FROM prayer_topics t
		WHERE t.person_id = ? AND t.status = ?
		ORDER BY t.priority DESC, t.created_at ASC, t.id ASC`, personID, int(models.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to list active topics of person %d: %w", personID, err)
	}
	return res, nil
}

// ActiveTopicsForDay returns the active topics of every person due on day,
// grouped by person and ordered within each person by priority then age.
func (d *DB) ActiveTopicsForDay(ctx context.Context, day models.Weekday) ([]models.Topic, error) {
	res, err := d.queryTopics(ctx, `SELECT `+topicColumns+` FROM prayer_topics t
		WHERE t.status = ? AND EXISTS (
			SELECT 1 FROM day_assignments da
			WHERE da.person_id = t.person_id AND da.day_of_week IN (?, ?))
		ORDER BY t.person_id, t.priority DESC, t.created_at ASC, t.id ASC`,
		int(models.StatusActive), int(day), int(models.EveryDay))
	if err != nil {
		return nil, fmt.Errorf("failed to list active topics for %s: %w", day, err)
	}
	return res, nil
}

// AllTopics returns every topic ordered by person then priority.
func (d *DB) AllTopics(ctx context.Context) ([]models.Topic, error) {
	res, err := d.queryTopics(ctx, `SELECT `+topicColumns+` FROM prayer_topics t
		ORDER BY t.person_id, t.priority DESC, t.created_at ASC, t.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return res, nil
}

// AnsweredTopics lists answered topics with their person, newest answer first.
func (d *DB) AnsweredTopics(ctx context.Context) ([]models.AnsweredTopic, error) {
	rows, err := d.QueryContext(ctx, `SELECT `+topicColumns+`, p.name
		FROM prayer_topics t JOIN persons p ON p.id = t.person_id
		WHERE t.status = ?
		ORDER BY t.answered_at DESC, t.id DESC`, int(models.StatusAnswered))
	if err != nil {
		return nil, fmt.Errorf("failed to list answered topics: %w", err)
	}
	defer rows.Close()

	res := []models.AnsweredTopic{}
	for rows.Next() {
		var a models.AnsweredTopic
		if a.Topic, err = scanTopic(rows, &a.PersonName); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// MarkAnswered moves an active topic to answered at the given instant.
func (d *DB) MarkAnswered(ctx context.Context, id int64, at time.Time) (*models.Topic, error) {
	return d.transition(ctx, id, func(t *models.Topic) error { return t.MarkAnswered(at) })
}

// RestoreTopic moves an answered topic back to active.
func (d *DB) RestoreTopic(ctx context.Context, id int64) (*models.Topic, error) {
	return d.transition(ctx, id, func(t *models.Topic) error { return t.Restore() })
}

func (d *DB) transition(ctx context.Context, id int64, apply func(*models.Topic) error) (*models.Topic, error) {
	t, err := d.GetTopic(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(t); err != nil {
		return nil, err
	}
	res, err := d.ExecContext(ctx,
		`UPDATE prayer_topics SET status = ?, answered_at = ? WHERE id = ?`,
		int(t.Status), nullUnix(t.AnsweredAt), t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update topic %d status: %w", id, err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return nil, err
	}
	d.hub.notify(tableTopics)
	return t, nil
}

// ReorderTopics assigns descending priorities following ids order.
func (d *DB) ReorderTopics(ctx context.Context, ids []int64) error {
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		for i, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`UPDATE prayer_topics SET priority = ? WHERE id = ?`, len(ids)-i, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reorder topics: %w", err)
	}
	d.hub.notify(tableTopics)
	return nil
}

// TopicCounts returns the number of active and answered topics.
func (d *DB) TopicCounts(ctx context.Context) (active, answered int, err error) {
	err = d.QueryRowContext(ctx, `SELECT
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM prayer_topics`, int(models.StatusActive), int(models.StatusAnswered)).Scan(&active, &answered)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count topics: %w", err)
	}
	return active, answered, nil
}
