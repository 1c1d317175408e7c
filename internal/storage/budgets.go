package storage

import (
	"context"
	"database/sql"
	"errors"

	"finledger/internal/core"
)

// BudgetFilter narrows ListBudgets. Zero fields match everything.
type BudgetFilter struct {
	Period   core.Period
	Category string
}

const budgetColumns = `id, category, period, limit_cents`

// SetBudget creates the budget for (category, period) or replaces its limit.
func (s *Store) SetBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	var saved core.Budget
	err := s.write(ctx, "set budget", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO budgets (category, period, limit_cents) VALUES (?, ?, ?)
			 ON CONFLICT (category, period) DO UPDATE SET limit_cents = excluded.limit_cents`,
			b.Category, b.Period.String(), b.Limit.Cents)
		if err != nil {
			return s.fail("set budget", err)
		}
		saved, err = s.getBudget(ctx, tx, b.Category, b.Period)
		return err
	})
	if err != nil {
		return core.Budget{}, err
	}
	return saved, nil
}

// UpdateBudget changes the limit of an existing budget.
func (s *Store) UpdateBudget(ctx context.Context, category string, period core.Period, limit core.Money) (core.Budget, error) {
	b := core.Budget{Category: category, Period: period, Limit: limit}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	var saved core.Budget
	err := s.write(ctx, "update budget", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE budgets SET limit_cents = ? WHERE category = ? AND period = ?`,
			limit.Cents, category, period.String())
		if err != nil {
			return s.fail("update budget", err)
		}
		ok, err := affectedOne(res)
		if err != nil {
			return s.fail("update budget", err)
		}
		if !ok {
			return core.NotFound("budget", category+"/"+period.String())
		}
		saved, err = s.getBudget(ctx, tx, category, period)
		return err
	})
	if err != nil {
		return core.Budget{}, err
	}
	return saved, nil
}

// GetBudget returns the budget for (category, period).
func (s *Store) GetBudget(ctx context.Context, category string, period core.Period) (core.Budget, error) {
	var b core.Budget
	err := s.read(func() error {
		var err error
		b, err = s.getBudget(ctx, s.db, category, period)
		return err
	})
	return b, err
}

func (s *Store) getBudget(ctx context.Context, q queryer, category string, period core.Period) (core.Budget, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE category = ? AND period = ?`, category, period.String())
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.NotFound("budget", category+"/"+period.String())
	}
	if err != nil {
		return core.Budget{}, s.fail("get budget", err)
	}
	return b, nil
}

// ListBudgets returns budgets ordered by period, then category.
func (s *Store) ListBudgets(ctx context.Context, f BudgetFilter) ([]core.Budget, error) {
	var w where
	if f.Period != (core.Period{}) {
		w.add("period = ?", f.Period.String())
	}
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}

	budgets := []core.Budget{}
	err := s.read(func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+budgetColumns+` FROM budgets`+w.String()+` ORDER BY period ASC, category ASC`, w.args...)
		if err != nil {
			return s.fail("list budgets", err)
		}
		defer rows.Close()

		for rows.Next() {
			b, err := scanBudget(rows)
			if err != nil {
				return s.fail("list budgets", err)
			}
			budgets = append(budgets, b)
		}
		if err := rows.Err(); err != nil {
			return s.fail("list budgets", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return budgets, nil
}

// DeleteBudget removes the budget for (category, period).
func (s *Store) DeleteBudget(ctx context.Context, category string, period core.Period) error {
	return s.write(ctx, "delete budget", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM budgets WHERE category = ? AND period = ?`, category, period.String())
		if err != nil {
			return s.fail("delete budget", err)
		}
		ok, err := affectedOne(res)
		if err != nil {
			return s.fail("delete budget", err)
		}
		if !ok {
			return core.NotFound("budget", category+"/"+period.String())
		}
		return nil
	})
}

func scanBudget(sc scanner) (core.Budget, error) {
	var (
		b      core.Budget
		period string
	)
	if err := sc.Scan(&b.ID, &b.Category, &period, &b.Limit.Cents); err != nil {
		return core.Budget{}, err
	}
	p, err := core.ParsePeriod(period)
	if err != nil {
		return core.Budget{}, err
	}
	b.Period = p
	return b, nil
}
