package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"finledger/internal/core"
)

const goalColumns = `id, name, target_cents, target_date, progress_cents, created_date, note`

// CreateGoal persists a goal. Its progress starts at zero.
func (s *Store) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	g.CurrentProgress = core.Money{}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	if err := g.CreatedDate.Validate(); err != nil {
		return core.Goal{}, err
	}

	err := s.write(ctx, "create goal", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO saving_goals (name, target_cents, target_date, progress_cents, created_date, note)
			 VALUES (?, ?, ?, 0, ?, ?)`,
			g.Name, g.TargetAmount.Cents, g.TargetDate.String(), g.CreatedDate.String(), g.Note)
		if err != nil {
			return s.fail("create goal", err)
		}
		g.ID, err = res.LastInsertId()
		if err != nil {
			return s.fail("create goal", err)
		}
		return nil
	})
	if err != nil {
		return core.Goal{}, err
	}

	slog.DebugContext(ctx, "Goal saved to SQLite", "id", g.ID, "target_cents", g.TargetAmount.Cents)
	return g, nil
}

// GetGoal retrieves a single goal by ID.
func (s *Store) GetGoal(ctx context.Context, id int64) (core.Goal, error) {
	var g core.Goal
	err := s.read(func() error {
		var err error
		g, err = s.getGoal(ctx, s.db, id)
		return err
	})
	return g, err
}

func (s *Store) getGoal(ctx context.Context, q queryer, id int64) (core.Goal, error) {
	row := q.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM saving_goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, core.NotFound("goal", id)
	}
	if err != nil {
		return core.Goal{}, s.fail("get goal", err)
	}
	return g, nil
}

// ListGoals returns all goals ordered by target date, then ID.
func (s *Store) ListGoals(ctx context.Context) ([]core.Goal, error) {
	goals := []core.Goal{}
	err := s.read(func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+goalColumns+` FROM saving_goals ORDER BY target_date ASC, id ASC`)
		if err != nil {
			return s.fail("list goals", err)
		}
		defer rows.Close()

		for rows.Next() {
			g, err := scanGoal(rows)
			if err != nil {
				return s.fail("list goals", err)
			}
			goals = append(goals, g)
		}
		if err := rows.Err(); err != nil {
			return s.fail("list goals", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return goals, nil
}

// UpdateGoal applies mutate under the writer lock. Progress and creation date
// are owned by the store and cannot be changed through mutate.
func (s *Store) UpdateGoal(ctx context.Context, id int64, mutate func(*core.Goal) error) (core.Goal, error) {
	var updated core.Goal
	err := s.write(ctx, "update goal", func(tx *sql.Tx) error {
		g, err := s.getGoal(ctx, tx, id)
		if err != nil {
			return err
		}
		progress, created := g.CurrentProgress, g.CreatedDate
		if err := mutate(&g); err != nil {
			return err
		}
		g.ID, g.CurrentProgress, g.CreatedDate = id, progress, created
		if err := g.Validate(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE saving_goals SET name = ?, target_cents = ?, target_date = ?, note = ? WHERE id = ?`,
			g.Name, g.TargetAmount.Cents, g.TargetDate.String(), g.Note, id)
		if err != nil {
			return s.fail("update goal", err)
		}
		updated = g
		return nil
	})
	if err != nil {
		return core.Goal{}, err
	}
	return updated, nil
}

// DeleteGoal removes a goal. Its contributions stay as plain savings.
func (s *Store) DeleteGoal(ctx context.Context, id int64) error {
	return s.write(ctx, "delete goal", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM saving_goals WHERE id = ?`, id)
		if err != nil {
			return s.fail("delete goal", err)
		}
		ok, err := affectedOne(res)
		if err != nil {
			return s.fail("delete goal", err)
		}
		if !ok {
			return core.NotFound("goal", id)
		}
		return nil
	})
}

// AddContribution records sv as a saving earmarked to the goal and advances
// the goal's progress by its amount, in one transaction.
func (s *Store) AddContribution(ctx context.Context, goalID int64, sv core.Saving) (core.Saving, core.Goal, error) {
	sv.GoalID = goalID
	if err := sv.Validate(); err != nil {
		return core.Saving{}, core.Goal{}, err
	}

	var goal core.Goal
	err := s.write(ctx, "add contribution", func(tx *sql.Tx) error {
		g, err := s.getGoal(ctx, tx, goalID)
		if err != nil {
			return err
		}
		sv.ID, err = s.insertSaving(ctx, tx, sv)
		if err != nil {
			return err
		}
		g.CurrentProgress = g.CurrentProgress.Add(sv.Amount)
		_, err = tx.ExecContext(ctx,
			`UPDATE saving_goals SET progress_cents = ? WHERE id = ?`, g.CurrentProgress.Cents, goalID)
		if err != nil {
			return s.fail("add contribution", err)
		}
		goal = g
		return nil
	})
	if err != nil {
		return core.Saving{}, core.Goal{}, err
	}
	return sv, goal, nil
}

func scanGoal(sc scanner) (core.Goal, error) {
	var (
		g                   core.Goal
		targetDate, created string
	)
	if err := sc.Scan(&g.ID, &g.Name, &g.TargetAmount.Cents, &targetDate, &g.CurrentProgress.Cents, &created, &g.Note); err != nil {
		return core.Goal{}, err
	}
	var err error
	if g.TargetDate, err = parseStoredDate(targetDate); err != nil {
		return core.Goal{}, err
	}
	if g.CreatedDate, err = parseStoredDate(created); err != nil {
		return core.Goal{}, err
	}
	return g, nil
}
