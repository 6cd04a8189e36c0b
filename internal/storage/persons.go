package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"prayernote/internal/models"
)

// ---------- persons ---------------------------------------------------------

const personColumns = `p.id, p.name, p.memo, p.priority, p.created_at,
	COALESCE((SELECT group_concat(da.day_of_week) FROM day_assignments da WHERE da.person_id = p.id), '')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (models.Person, error) {
	var (
		p       models.Person
		created int64
		days    string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Memo, &p.Priority, &created, &days); err != nil {
		return p, err
	}
	p.CreatedAt = fromUnix(created)
	set, err := parseDays(days)
	if err != nil {
		return p, err
	}
	p.Days = set
	return p, nil
}

func parseDays(s string) (models.WeekdaySet, error) {
	set := models.WeekdaySet{}
	if s == "" {
		return set, nil
	}
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad day_of_week %q: %w", part, err)
		}
		set = set.With(models.Weekday(n))
	}
	return set, nil
}

func (d *DB) queryPersons(ctx context.Context, q querier, where string, args ...any) ([]models.Person, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+personColumns+` FROM persons p `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func setDays(ctx context.Context, tx *sql.Tx, personID int64, days models.WeekdaySet) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM day_assignments WHERE person_id = ?`, personID); err != nil {
		return err
	}
	for _, day := range days {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO day_assignments(person_id, day_of_week) VALUES(?, ?)`, personID, int(day)); err != nil {
			return err
		}
	}
	return nil
}

// InsertPerson stores p and its day set, filling ID and CreatedAt.
func (d *DB) InsertPerson(ctx context.Context, p *models.Person) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Days == nil {
		p.Days = models.WeekdaySet{}
	}

	err := d.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO persons(name, memo, priority, created_at) VALUES(?, ?, ?, ?)`,
			p.Name, p.Memo, p.Priority, unix(p.CreatedAt))
		if err != nil {
			return err
		}
		if p.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		return setDays(ctx, tx, p.ID, p.Days)
	})
	if err != nil {
		return fmt.Errorf("failed to insert person: %w", err)
	}
	d.hub.notify(tablePersons, tableAssignments)
	return nil
}

// UpdatePerson overwrites name, memo, priority and days.
func (d *DB) UpdatePerson(ctx context.Context, p *models.Person) error {
	if err := p.Validate(); err != nil {
		return err
	}
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE persons SET name = ?, memo = ?, priority = ? WHERE id = ?`,
			p.Name, p.Memo, p.Priority, p.ID)
		if err != nil {
			return err
		}
		if err := affectedOrNotFound(res); err != nil {
			return err
		}
		return setDays(ctx, tx, p.ID, p.Days)
	})
	if err != nil {
		return fmt.Errorf("failed to update person %d: %w", p.ID, err)
	}
	d.hub.notify(tablePersons, tableAssignments)
	return nil
}

// SetPersonDays replaces the day set of a person.
func (d *DB) SetPersonDays(ctx context.Context, personID int64, days models.WeekdaySet) error {
	if err := days.Validate(); err != nil {
		return err
	}
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM persons WHERE id = ?`, personID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		return setDays(ctx, tx, personID, days)
	})
	if err != nil {
		return fmt.Errorf("failed to set days of person %d: %w", personID, err)
	}
	d.hub.notify(tableAssignments)
	return nil
}

// DeletePerson removes a person; topics, assignments and history cascade.
func (d *DB) DeletePerson(ctx context.Context, id int64) error {
	res, err := d.ExecContext(ctx, `DELETE FROM persons WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete person %d: %w", id, err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return err
	}
	d.hub.notify(tablePersons, tableAssignments, tableTopics, tableHistory)
	return nil
}

func (d *DB) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	p, err := scanPerson(d.QueryRowContext(ctx, `SELECT `+personColumns+` FROM persons p WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person %d: %w", id, err)
	}
	return &p, nil
}

// FindPersonByName returns the first person whose name equals name exactly.
func (d *DB) FindPersonByName(ctx context.Context, name string) (*models.Person, error) {
	p, err := scanPerson(d.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons p WHERE p.name = ? ORDER BY p.id LIMIT 1`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find person %q: %w", name, err)
	}
	return &p, nil
}

// ListPersons returns everyone, highest priority first, newest first on ties.
func (d *DB) ListPersons(ctx context.Context) ([]models.Person, error) {
	res, err := d.queryPersons(ctx, d, `ORDER BY p.priority DESC, p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	return res, nil
}

// SearchPersons matches query as a case-sensitive substring of the name.
// An empty query returns everyone.
func (d *DB) SearchPersons(ctx context.Context, query string) ([]models.Person, error) {
	if query == "" {
		return d.ListPersons(ctx)
	}
	res, err := d.queryPersons(ctx, d,
		`WHERE instr(p.name, ?) > 0 ORDER BY p.priority DESC, p.created_at DESC, p.id DESC`, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search persons: %w", err)
	}
	return res, nil
}

// PersonsByDay returns persons due on day, including every-day persons,
// ordered by priority then name.
func (d *DB) PersonsByDay(ctx context.Context, day models.Weekday) ([]models.Person, error) {
	res, err := d.queryPersons(ctx, d, `
		WHERE EXISTS (SELECT 1 FROM day_assignments da
		              WHERE da.person_id = p.id AND da.day_of_week IN (?, ?))
		ORDER BY p.priority DESC, p.name ASC, p.id ASC`, int(day), int(models.EveryDay))
	if err != nil {
		return nil, fmt.Errorf("failed to list persons for %s: %w", day, err)
	}
	return res, nil
}

// ReorderPersons assigns descending priorities following ids order.
func (d *DB) ReorderPersons(ctx context.Context, ids []int64) error {
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		for i, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`UPDATE persons SET priority = ? WHERE id = ?`, len(ids)-i, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reorder persons: %w", err)
	}
	d.hub.notify(tablePersons)
	return nil
}

func (d *DB) PersonCount(ctx context.Context) (int, error) {
	var n int
	if err := d.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count persons: %w", err)
	}
	return n, nil
}
