package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"finledger/internal/core"
)

// SavingFilter narrows ListSavings. Zero fields match everything.
type SavingFilter struct {
	Range  core.DateRange
	Source string
	GoalID int64
}

const savingColumns = `id, date, amount_cents, source, note, goal_id`

// CreateSaving persists a validated saving and returns it with its new ID.
// Goal contributions go through AddContribution instead.
func (s *Store) CreateSaving(ctx context.Context, sv core.Saving) (core.Saving, error) {
	sv.GoalID = 0
	if err := sv.Validate(); err != nil {
		return core.Saving{}, err
	}

	err := s.write(ctx, "create saving", func(tx *sql.Tx) error {
		var err error
		sv.ID, err = s.insertSaving(ctx, tx, sv)
		return err
	})
	if err != nil {
		return core.Saving{}, err
	}

	slog.DebugContext(ctx, "Saving saved to SQLite", "id", sv.ID, "amount_cents", sv.Amount.Cents, "source", sv.Source)
	return sv, nil
}

func (s *Store) insertSaving(ctx context.Context, tx *sql.Tx, sv core.Saving) (int64, error) {
	var goalID sql.NullInt64
	if sv.GoalID != 0 {
		goalID = sql.NullInt64{Int64: sv.GoalID, Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO savings (date, amount_cents, source, note, goal_id) VALUES (?, ?, ?, ?, ?)`,
		sv.Date.String(), sv.Amount.Cents, sv.Source, sv.Note, goalID)
	if err != nil {
		return 0, s.fail("create saving", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, s.fail("create saving", err)
	}
	return id, nil
}

// GetSaving retrieves a single saving by ID.
func (s *Store) GetSaving(ctx context.Context, id int64) (core.Saving, error) {
	var sv core.Saving
	err := s.read(func() error {
		var err error
		sv, err = s.getSaving(ctx, s.db, id)
		return err
	})
	return sv, err
}

func (s *Store) getSaving(ctx context.Context, q queryer, id int64) (core.Saving, error) {
	row := q.QueryRowContext(ctx, `SELECT `+savingColumns+` FROM savings WHERE id = ?`, id)
	sv, err := scanSaving(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Saving{}, core.NotFound("saving", id)
	}
	if err != nil {
		return core.Saving{}, s.fail("get saving", err)
	}
	return sv, nil
}

// ListSavings returns matching savings ordered by date, then ID.
func (s *Store) ListSavings(ctx context.Context, f SavingFilter) ([]core.Saving, error) {
	if err := f.Range.Validate(); err != nil {
		return nil, err
	}

	var w where
	w.dateRange("date", f.Range)
	if f.Source != "" {
		w.add("source = ?", f.Source)
	}
	if f.GoalID != 0 {
		w.add("goal_id = ?", f.GoalID)
	}

	savings := []core.Saving{}
	err := s.read(func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+savingColumns+` FROM savings`+w.String()+` ORDER BY date ASC, id ASC`, w.args...)
		if err != nil {
			return s.fail("list savings", err)
		}
		defer rows.Close()

		for rows.Next() {
			sv, err := scanSaving(rows)
			if err != nil {
				return s.fail("list savings", err)
			}
			savings = append(savings, sv)
		}
		if err := rows.Err(); err != nil {
			return s.fail("list savings", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return savings, nil
}

// UpdateSaving applies mutate to the stored saving under the writer lock.
// The goal link of a contribution cannot be changed.
func (s *Store) UpdateSaving(ctx context.Context, id int64, mutate func(*core.Saving) error) (core.Saving, error) {
	var updated core.Saving
	err := s.write(ctx, "update saving", func(tx *sql.Tx) error {
		sv, err := s.getSaving(ctx, tx, id)
		if err != nil {
			return err
		}
		goalID := sv.GoalID
		if err := mutate(&sv); err != nil {
			return err
		}
		sv.ID, sv.GoalID = id, goalID
		if err := sv.Validate(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE savings SET date = ?, amount_cents = ?, source = ?, note = ? WHERE id = ?`,
			sv.Date.String(), sv.Amount.Cents, sv.Source, sv.Note, id)
		if err != nil {
			return s.fail("update saving", err)
		}
		updated = sv
		return nil
	})
	if err != nil {
		return core.Saving{}, err
	}
	return updated, nil
}

// DeleteSaving removes a saving. Deleting a missing ID is ErrNotFound.
// Goal progress recorded by a deleted contribution is kept.
func (s *Store) DeleteSaving(ctx context.Context, id int64) error {
	return s.write(ctx, "delete saving", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM savings WHERE id = ?`, id)
		if err != nil {
			return s.fail("delete saving", err)
		}
		ok, err := affectedOne(res)
		if err != nil {
			return s.fail("delete saving", err)
		}
		if !ok {
			return core.NotFound("saving", id)
		}
		return nil
	})
}

func scanSaving(sc scanner) (core.Saving, error) {
	var (
		sv     core.Saving
		date   string
		goalID sql.NullInt64
	)
	if err := sc.Scan(&sv.ID, &date, &sv.Amount.Cents, &sv.Source, &sv.Note, &goalID); err != nil {
		return core.Saving{}, err
	}
	d, err := parseStoredDate(date)
	if err != nil {
		return core.Saving{}, err
	}
	sv.Date = d
	sv.GoalID = goalID.Int64
	return sv, nil
}
