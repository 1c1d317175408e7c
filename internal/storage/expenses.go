package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"finledger/internal/core"
)

// ExpenseFilter narrows ListExpenses and SummarizeExpenses. Zero fields match everything.
type ExpenseFilter struct {
	Range    core.DateRange
	Category string
}

const expenseColumns = `id, date, amount_cents, category, subcategory, note`

// CreateExpense persists a validated expense and returns it with its new ID.
func (s *Store) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	err := s.write(ctx, "create expense", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (date, amount_cents, category, subcategory, note) VALUES (?, ?, ?, ?, ?)`,
			e.Date.String(), e.Amount.Cents, e.Category, e.Subcategory, e.Note)
		if err != nil {
			return s.fail("create expense", err)
		}
		e.ID, err = res.LastInsertId()
		if err != nil {
			return s.fail("create expense", err)
		}
		return nil
	})
	if err != nil {
		return core.Expense{}, err
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"amount_cents", e.Amount.Cents,
		"category", e.Category,
		"subcategory", e.Subcategory)

	return e, nil
}

// GetExpense retrieves a single expense by ID.
func (s *Store) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	var e core.Expense
	err := s.read(func() error {
		var err error
		e, err = s.getExpense(ctx, s.db, id)
		return err
	})
	return e, err
}

func (s *Store) getExpense(ctx context.Context, q queryer, id int64) (core.Expense, error) {
	row := q.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.NotFound("expense", id)
	}
	if err != nil {
		return core.Expense{}, s.fail("get expense", err)
	}
	return e, nil
}

// ListExpenses returns matching expenses ordered by date, then ID.
func (s *Store) ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error) {
	if err := f.Range.Validate(); err != nil {
		return nil, err
	}

	var w where
	w.dateRange("date", f.Range)
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}

	expenses := []core.Expense{}
	err := s.read(func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+expenseColumns+` FROM expenses`+w.String()+` ORDER BY date ASC, id ASC`, w.args...)
		if err != nil {
			return s.fail("list expenses", err)
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanExpense(rows)
			if err != nil {
				return s.fail("list expenses", err)
			}
			expenses = append(expenses, e)
		}
		if err := rows.Err(); err != nil {
			return s.fail("list expenses", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

// UpdateExpense loads the expense, applies mutate and saves the result, all
// under the writer lock. mutate sees the current stored values.
func (s *Store) UpdateExpense(ctx context.Context, id int64, mutate func(*core.Expense) error) (core.Expense, error) {
	var updated core.Expense
	err := s.write(ctx, "update expense", func(tx *sql.Tx) error {
		e, err := s.getExpense(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := mutate(&e); err != nil {
			return err
		}
		e.ID = id
		if err := e.Validate(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE expenses SET date = ?, amount_cents = ?, category = ?, subcategory = ?, note = ? WHERE id = ?`,
			e.Date.String(), e.Amount.Cents, e.Category, e.Subcategory, e.Note, id)
		if err != nil {
			return s.fail("update expense", err)
		}
		updated = e
		return nil
	})
	if err != nil {
		return core.Expense{}, err
	}
	return updated, nil
}

// DeleteExpense removes an expense. Deleting a missing ID is ErrNotFound.
func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	return s.write(ctx, "delete expense", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
		if err != nil {
			return s.fail("delete expense", err)
		}
		ok, err := affectedOne(res)
		if err != nil {
			return s.fail("delete expense", err)
		}
		if !ok {
			return core.NotFound("expense", id)
		}
		return nil
	})
}

// SumExpenses totals the expenses of one category within an inclusive date range.
func (s *Store) SumExpenses(ctx context.Context, category string, r core.DateRange) (core.Money, error) {
	var w where
	w.add("category = ?", category)
	w.dateRange("date", r)

	var total core.Money
	err := s.read(func() error {
		err := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses`+w.String(), w.args...).Scan(&total.Cents)
		if err != nil {
			return s.fail("sum expenses", err)
		}
		return nil
	})
	return total, err
}

// SummarizeExpenses groups matching expenses by category, largest total first.
func (s *Store) SummarizeExpenses(ctx context.Context, f ExpenseFilter) ([]core.CategoryAmount, error) {
	if err := f.Range.Validate(); err != nil {
		return nil, err
	}

	var w where
	w.dateRange("date", f.Range)
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}

	summary := []core.CategoryAmount{}
	err := s.read(func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT category, SUM(amount_cents) AS total, COUNT(*) FROM expenses`+w.String()+
				` GROUP BY category ORDER BY total DESC, category ASC`, w.args...)
		if err != nil {
			return s.fail("summarize expenses", err)
		}
		defer rows.Close()

		for rows.Next() {
			var ca core.CategoryAmount
			if err := rows.Scan(&ca.Name, &ca.Amount.Cents, &ca.Count); err != nil {
				return s.fail("summarize expenses", err)
			}
			summary = append(summary, ca)
		}
		if err := rows.Err(); err != nil {
			return s.fail("summarize expenses", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(sc scanner) (core.Expense, error) {
	var (
		e    core.Expense
		date string
	)
	if err := sc.Scan(&e.ID, &date, &e.Amount.Cents, &e.Category, &e.Subcategory, &e.Note); err != nil {
		return core.Expense{}, err
	}
	d, err := parseStoredDate(date)
	if err != nil {
		return core.Expense{}, err
	}
	e.Date = d
	return e, nil
}
