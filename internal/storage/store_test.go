package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finledger/internal/core"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alice", "ledger.db")
	s, err := Open(path, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func expense(date core.Date, cents int64, category string) core.Expense {
	return core.Expense{Date: date, Amount: core.Money{Cents: cents}, Category: category, Subcategory: "other"}
}

func TestOpen_RunsMigrations(t *testing.T) {
	s, _ := openTestStore(t)
	version, err := s.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestOpen_ReusesExistingStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bob", "ledger.db")
	ctx := context.Background()

	s, err := Open(path, Options{})
	require.NoError(t, err)
	created, err := s.CreateExpense(ctx, expense(core.NewDate(2026, 1, 5), 1200, "food"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path, Options{})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.ListExpenses(ctx, ExpenseFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, created, got[0])
}

func TestOpen_RefusesDirtySchema(t *testing.T) {
	s, path := openTestStore(t)
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE schema_migrations SET dirty = 1`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path, Options{})
	assert.ErrorIs(t, err, core.ErrStorage)
}

func TestOpen_ErrorsHideStoreLocation(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "users")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, err := Open(filepath.Join(blocker, "alice", "ledger.db"), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.NotContains(t, err.Error(), root)
	assert.NotContains(t, err.Error(), filepath.ToSlash(root))
}

func TestRedact(t *testing.T) {
	path := filepath.Join("/var", "lib", "finledger", "users", "alice", "ledger.db")
	err := redact(errors.New("unable to open file:"+filepath.ToSlash(path)+"?_pragma=x"), path)
	assert.False(t, strings.Contains(err.Error(), "finledger"), err.Error())
	assert.Contains(t, err.Error(), "<store>")

	plain := errors.New("disk I/O error")
	assert.Same(t, plain, redact(plain, path))
}

func TestExpenses_CreateAndList(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	empty, err := s.ListExpenses(ctx, ExpenseFilter{})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	// Inserted out of date order on purpose.
	late, err := s.CreateExpense(ctx, expense(core.NewDate(2026, 2, 1), 300, "food"))
	require.NoError(t, err)
	early, err := s.CreateExpense(ctx, expense(core.NewDate(2026, 1, 10), 100, "transport"))
	require.NoError(t, err)
	sameDay, err := s.CreateExpense(ctx, expense(core.NewDate(2026, 1, 10), 200, "food"))
	require.NoError(t, err)

	assert.Less(t, late.ID, early.ID)
	assert.Less(t, early.ID, sameDay.ID)

	all, err := s.ListExpenses(ctx, ExpenseFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{early.ID, sameDay.ID, late.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})

	january, err := s.ListExpenses(ctx, ExpenseFilter{Range: core.DateRange{
		From: core.NewDate(2026, 1, 1),
		To:   core.NewDate(2026, 1, 31),
	}})
	require.NoError(t, err)
	assert.Len(t, january, 2)

	inclusive, err := s.ListExpenses(ctx, ExpenseFilter{Range: core.DateRange{
		From: core.NewDate(2026, 2, 1),
		To:   core.NewDate(2026, 2, 1),
	}})
	require.NoError(t, err)
	require.Len(t, inclusive, 1)
	assert.Equal(t, late.ID, inclusive[0].ID)

	food, err := s.ListExpenses(ctx, ExpenseFilter{Category: "food"})
	require.NoError(t, err)
	assert.Len(t, food, 2)

	_, err = s.ListExpenses(ctx, ExpenseFilter{Range: core.DateRange{
		From: core.NewDate(2026, 3, 1),
		To:   core.NewDate(2026, 2, 1),
	}})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestExpenses_CreateRejectsInvalid(t *testing.T) {
	s, _ := openTestStore(t)
	_, err := s.CreateExpense(context.Background(), expense(core.NewDate(2026, 1, 1), -5, "food"))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = s.CreateExpense(context.Background(), expense(core.Date{}, 5, "food"))
	assert.ErrorIs(t, err, core.ErrInvalidDate)
}

func TestExpenses_Update(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	e, err := s.CreateExpense(ctx, core.Expense{
		Date: core.NewDate(2026, 1, 3), Amount: core.Money{Cents: 500},
		Category: "food", Subcategory: "groceries", Note: "weekly shop",
	})
	require.NoError(t, err)

	updated, err := s.UpdateExpense(ctx, e.ID, func(cur *core.Expense) error {
		cur.Amount = core.Money{Cents: 750}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(750), updated.Amount.Cents)
	assert.Equal(t, "weekly shop", updated.Note)
	assert.Equal(t, "groceries", updated.Subcategory)

	got, err := s.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	_, err = s.UpdateExpense(ctx, e.ID, func(cur *core.Expense) error {
		cur.Amount = core.Money{Cents: -1}
		return nil
	})
	assert.ErrorIs(t, err, core.ErrValidation)

	got, err = s.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(750), got.Amount.Cents, "failed update must not be applied")

	_, err = s.UpdateExpense(ctx, 9999, func(*core.Expense) error { return nil })
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestExpenses_DeleteTwice(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	e, err := s.CreateExpense(ctx, expense(core.NewDate(2026, 1, 3), 500, "food"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteExpense(ctx, e.ID))
	assert.ErrorIs(t, s.DeleteExpense(ctx, e.ID), core.ErrNotFound)

	_, err = s.GetExpense(ctx, e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestExpenses_IDsNotReused(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	first, err := s.CreateExpense(ctx, expense(core.NewDate(2026, 1, 3), 500, "food"))
	require.NoError(t, err)
	require.NoError(t, s.DeleteExpense(ctx, first.ID))

	second, err := s.CreateExpense(ctx, expense(core.NewDate(2026, 1, 3), 500, "food"))
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)
}

func TestExpenses_SumAndSummary(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	for _, e := range []core.Expense{
		expense(core.NewDate(2026, 1, 1), 1000, "food"),
		expense(core.NewDate(2026, 1, 31), 2500, "food"),
		expense(core.NewDate(2026, 2, 1), 9999, "food"),
		expense(core.NewDate(2026, 1, 15), 4000, "transport"),
	} {
		_, err := s.CreateExpense(ctx, e)
		require.NoError(t, err)
	}

	jan := core.DateRange{From: core.NewDate(2026, 1, 1), To: core.NewDate(2026, 1, 31)}
	total, err := s.SumExpenses(ctx, "food", jan)
	require.NoError(t, err)
	assert.Equal(t, int64(3500), total.Cents)

	none, err := s.SumExpenses(ctx, "health", jan)
	require.NoError(t, err)
	assert.Equal(t, int64(0), none.Cents)

	summary, err := s.SummarizeExpenses(ctx, ExpenseFilter{Range: jan})
	require.NoError(t, err)
	assert.Equal(t, []core.CategoryAmount{
		{Name: "transport", Amount: core.Money{Cents: 4000}, Count: 1},
		{Name: "food", Amount: core.Money{Cents: 3500}, Count: 2},
	}, summary)
}

func TestExpenses_ConcurrentCreatesHaveUniqueIDs(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	const n = 40
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := s.CreateExpense(ctx, expense(core.NewDate(2026, 1, 1+i%28), int64(100+i), "food"))
			if err != nil {
				t.Errorf("create %d: %v", i, err)
				return
			}
			ids <- e.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	all, err := s.ListExpenses(ctx, ExpenseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, n)
}

func TestSavings_CRUD(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	sv, err := s.CreateSaving(ctx, core.Saving{Date: core.NewDate(2026, 3, 1), Amount: core.Money{Cents: 20000}, Source: "salary"})
	require.NoError(t, err)
	_, err = s.CreateSaving(ctx, core.Saving{Date: core.NewDate(2026, 2, 1), Amount: core.Money{Cents: 5000}, Source: "gift"})
	require.NoError(t, err)

	salary, err := s.ListSavings(ctx, SavingFilter{Source: "salary"})
	require.NoError(t, err)
	require.Len(t, salary, 1)
	assert.Equal(t, sv, salary[0])

	all, err := s.ListSavings(ctx, SavingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "gift", all[0].Source)

	updated, err := s.UpdateSaving(ctx, sv.ID, func(cur *core.Saving) error {
		cur.Note = "march"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "march", updated.Note)
	assert.Equal(t, int64(20000), updated.Amount.Cents)

	require.NoError(t, s.DeleteSaving(ctx, sv.ID))
	assert.ErrorIs(t, s.DeleteSaving(ctx, sv.ID), core.ErrNotFound)
	_, err = s.UpdateSaving(ctx, sv.ID, func(*core.Saving) error { return nil })
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBudgets_SetReplacesLimit(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	jan := core.Period{Year: 2026, Month: 1}

	first, err := s.SetBudget(ctx, core.Budget{Category: "food", Period: jan, Limit: core.Money{Cents: 10000}})
	require.NoError(t, err)
	second, err := s.SetBudget(ctx, core.Budget{Category: "food", Period: jan, Limit: core.Money{Cents: 20000}})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(20000), second.Limit.Cents)

	_, err = s.SetBudget(ctx, core.Budget{Category: "food", Period: core.Period{Year: 2026, Month: 2}, Limit: core.Money{Cents: 5000}})
	require.NoError(t, err)

	all, err := s.ListBudgets(ctx, BudgetFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, jan, all[0].Period)

	janOnly, err := s.ListBudgets(ctx, BudgetFilter{Period: jan})
	require.NoError(t, err)
	assert.Len(t, janOnly, 1)

	_, err = s.SetBudget(ctx, core.Budget{Category: "food", Period: jan, Limit: core.Money{Cents: 0}})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestBudgets_UpdateAndDelete(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	jan := core.Period{Year: 2026, Month: 1}

	_, err := s.UpdateBudget(ctx, "food", jan, core.Money{Cents: 100})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = s.SetBudget(ctx, core.Budget{Category: "food", Period: jan, Limit: core.Money{Cents: 10000}})
	require.NoError(t, err)

	b, err := s.UpdateBudget(ctx, "food", jan, core.Money{Cents: 15000})
	require.NoError(t, err)
	assert.Equal(t, int64(15000), b.Limit.Cents)

	require.NoError(t, s.DeleteBudget(ctx, "food", jan))
	assert.ErrorIs(t, s.DeleteBudget(ctx, "food", jan), core.ErrNotFound)
	_, err = s.GetBudget(ctx, "food", jan)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGoals_ContributionAdvancesProgress(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	g, err := s.CreateGoal(ctx, core.Goal{
		Name:         "Bike",
		TargetAmount: core.Money{Cents: 100000},
		TargetDate:   core.NewDate(2026, 12, 1),
		CreatedDate:  core.NewDate(2026, 1, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), g.CurrentProgress.Cents)

	sv, goal, err := s.AddContribution(ctx, g.ID, core.Saving{Date: core.NewDate(2026, 1, 15), Amount: core.Money{Cents: 25000}, Source: "salary"})
	require.NoError(t, err)
	assert.Equal(t, g.ID, sv.GoalID)
	assert.Equal(t, int64(25000), goal.CurrentProgress.Cents)

	_, goal, err = s.AddContribution(ctx, g.ID, core.Saving{Date: core.NewDate(2026, 2, 15), Amount: core.Money{Cents: 5000}, Source: "gift"})
	require.NoError(t, err)
	assert.Equal(t, int64(30000), goal.CurrentProgress.Cents)

	contributions, err := s.ListSavings(ctx, SavingFilter{GoalID: g.ID})
	require.NoError(t, err)
	assert.Len(t, contributions, 2)

	_, _, err = s.AddContribution(ctx, 999, core.Saving{Date: core.NewDate(2026, 2, 15), Amount: core.Money{Cents: 5000}, Source: "gift"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	all, err := s.ListSavings(ctx, SavingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2, "failed contribution must not leave a saving behind")
}

func TestGoals_UpdateKeepsProgress(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	g, err := s.CreateGoal(ctx, core.Goal{
		Name:         "Trip",
		TargetAmount: core.Money{Cents: 50000},
		TargetDate:   core.NewDate(2026, 8, 1),
		CreatedDate:  core.NewDate(2026, 1, 1),
	})
	require.NoError(t, err)
	_, _, err = s.AddContribution(ctx, g.ID, core.Saving{Date: core.NewDate(2026, 1, 2), Amount: core.Money{Cents: 1000}, Source: "other"})
	require.NoError(t, err)

	updated, err := s.UpdateGoal(ctx, g.ID, func(cur *core.Goal) error {
		cur.Name = "Summer trip"
		cur.CurrentProgress = core.Money{Cents: 999999}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Summer trip", updated.Name)
	assert.Equal(t, int64(1000), updated.CurrentProgress.Cents)
	assert.Equal(t, core.NewDate(2026, 1, 1), updated.CreatedDate)
}

func TestGoals_DeleteUnlinksContributions(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	g, err := s.CreateGoal(ctx, core.Goal{
		Name:         "Laptop",
		TargetAmount: core.Money{Cents: 150000},
		TargetDate:   core.NewDate(2026, 6, 1),
		CreatedDate:  core.NewDate(2026, 1, 1),
	})
	require.NoError(t, err)
	sv, _, err := s.AddContribution(ctx, g.ID, core.Saving{Date: core.NewDate(2026, 1, 2), Amount: core.Money{Cents: 1000}, Source: "other"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteGoal(ctx, g.ID))
	assert.ErrorIs(t, s.DeleteGoal(ctx, g.ID), core.ErrNotFound)

	kept, err := s.GetSaving(ctx, sv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), kept.GoalID)
}

func TestStorageErrorAfterClose(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.CreateExpense(context.Background(), expense(core.NewDate(2026, 1, 1), 100, "food"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrStorage))
	assert.False(t, errors.Is(err, core.ErrValidation))
}
