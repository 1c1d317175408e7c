// Package services implements the ledger operations exposed to callers:
// input normalization, CRUD over a user's store, and the budget and goal
// analytics computed from it.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/registry"
	"finledger/internal/storage"
	"finledger/internal/vocab"
)

// ErrContributionAmount rejects changing the amount of a goal contribution,
// which would desynchronize the goal's progress.
var ErrContributionAmount = fmt.Errorf("%w: contribution amount cannot be changed", core.ErrValidation)

// Publisher receives an event after every committed mutation.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, evt *amqp.LedgerEvent) error
}

// Policy holds the thresholds used by the budget and goal analytics.
type Policy struct {
	// NearThreshold is the share of a budget limit from which spending is "near".
	NearThreshold decimal.Decimal
	// PaceTolerance is the relative band around the required pace counted as on track.
	PaceTolerance decimal.Decimal
}

// DefaultPolicy returns the 90% near threshold and ±10% pace tolerance.
func DefaultPolicy() Policy {
	return Policy{
		NearThreshold: decimal.RequireFromString("0.9"),
		PaceTolerance: decimal.RequireFromString("0.1"),
	}
}

// NewPolicy builds a policy from configuration values.
func NewPolicy(nearThreshold, paceTolerance float64) Policy {
	return Policy{
		NearThreshold: decimal.NewFromFloat(nearThreshold),
		PaceTolerance: decimal.NewFromFloat(paceTolerance),
	}
}

// Ledger orchestrates normalization, storage and event publication for
// one user at a time. The user is always the handle passed in; Ledger
// holds no per-user state and is safe for concurrent use.
type Ledger struct {
	vocab     *vocab.Vocabulary
	publisher Publisher
	logger    *log.Logger
	policy    Policy
	now       func() time.Time
}

type Option func(*Ledger)

// WithPublisher sets the event publisher. Without one, events are not sent.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) { l.logger = logger.WithComponent(log.ComponentLedger) }
}

func WithPolicy(p Policy) Option {
	return func(l *Ledger) { l.policy = p }
}

// WithClock overrides the evaluation clock, used for "today" and goal pacing.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(v *vocab.Vocabulary, opts ...Option) *Ledger {
	if v == nil {
		v = vocab.Default()
	}
	l := &Ledger{
		vocab:  v,
		logger: log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger),
		policy: DefaultPolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Vocabulary returns the closed vocabulary inputs are normalized against.
func (l *Ledger) Vocabulary() *vocab.Vocabulary {
	return l.vocab
}

func (l *Ledger) today() core.Date {
	return core.DateOf(l.now())
}

// Inputs carry caller text as-is; amounts and dates are parsed here so that
// malformed values surface as validation errors.
type (
	ExpenseInput struct {
		Date        string
		Amount      string
		Category    string
		Subcategory string
		Note        string
	}

	// ExpensePatch updates only the non-nil fields.
	ExpensePatch struct {
		Date        *string
		Amount      *string
		Category    *string
		Subcategory *string
		Note        *string
	}

	SavingInput struct {
		Date   string
		Amount string
		Source string
		Note   string
	}

	SavingPatch struct {
		Date   *string
		Amount *string
		Source *string
		Note   *string
	}

	// ListQuery filters list and summary operations. Empty fields match everything.
	ListQuery struct {
		From     string
		To       string
		Category string // category for expenses, source for savings
	}
)

// AddExpense normalizes and stores a new expense.
func (l *Ledger) AddExpense(ctx context.Context, h *registry.Handle, in ExpenseInput) (core.Expense, error) {
	date, err := parseRequiredDate(in.Date)
	if err != nil {
		return core.Expense{}, err
	}
	amount, err := core.ParseMoney(in.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	category := l.vocab.NormalizeCategory(in.Category)
	e := core.Expense{
		Date:        date,
		Amount:      amount,
		Category:    category,
		Subcategory: l.vocab.NormalizeSubcategory(category, in.Subcategory),
		Note:        strings.TrimSpace(in.Note),
	}

	saved, err := h.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, l.failed(ctx, h, amqp.RecordExpense, log.OpCreate, err)
	}
	l.committed(ctx, h, amqp.RecordExpense, log.OpCreate, saved.ID, expenseKey(saved))
	return saved, nil
}

// ListExpenses returns the user's expenses ordered by date, then ID.
func (l *Ledger) ListExpenses(ctx context.Context, h *registry.Handle, q ListQuery) ([]core.Expense, error) {
	f, err := l.expenseFilter(q)
	if err != nil {
		return nil, err
	}
	return h.ListExpenses(ctx, f)
}

// SummarizeExpenses totals the user's expenses per category.
func (l *Ledger) SummarizeExpenses(ctx context.Context, h *registry.Handle, q ListQuery) ([]core.CategoryAmount, error) {
	f, err := l.expenseFilter(q)
	if err != nil {
		return nil, err
	}
	return h.SummarizeExpenses(ctx, f)
}

func (l *Ledger) expenseFilter(q ListQuery) (storage.ExpenseFilter, error) {
	r, err := parseRange(q.From, q.To)
	if err != nil {
		return storage.ExpenseFilter{}, err
	}
	f := storage.ExpenseFilter{Range: r}
	if strings.TrimSpace(q.Category) != "" {
		f.Category = l.vocab.NormalizeCategory(q.Category)
	}
	return f, nil
}

// UpdateExpense applies a partial update. Changing the category without a
// subcategory re-normalizes the stored subcategory against the new category.
func (l *Ledger) UpdateExpense(ctx context.Context, h *registry.Handle, id int64, p ExpensePatch) (core.Expense, error) {
	var (
		date   core.Date
		amount core.Money
		err    error
	)
	if p.Date != nil {
		if date, err = parseRequiredDate(*p.Date); err != nil {
			return core.Expense{}, err
		}
	}
	if p.Amount != nil {
		if amount, err = core.ParseMoney(*p.Amount); err != nil {
			return core.Expense{}, err
		}
	}

	updated, err := h.UpdateExpense(ctx, id, func(e *core.Expense) error {
		if p.Date != nil {
			e.Date = date
		}
		if p.Amount != nil {
			e.Amount = amount
		}
		if p.Category != nil {
			e.Category = l.vocab.NormalizeCategory(*p.Category)
		}
		switch {
		case p.Subcategory != nil:
			e.Subcategory = l.vocab.NormalizeSubcategory(e.Category, *p.Subcategory)
		case p.Category != nil:
			e.Subcategory = l.vocab.NormalizeSubcategory(e.Category, e.Subcategory)
		}
		if p.Note != nil {
			e.Note = strings.TrimSpace(*p.Note)
		}
		return nil
	})
	if err != nil {
		return core.Expense{}, l.failed(ctx, h, amqp.RecordExpense, log.OpUpdate, err)
	}
	l.committed(ctx, h, amqp.RecordExpense, log.OpUpdate, id, expenseKey(updated))
	return updated, nil
}

func (l *Ledger) DeleteExpense(ctx context.Context, h *registry.Handle, id int64) error {
	// Read first so the event can name the budget the expense counted against.
	e, err := h.GetExpense(ctx, id)
	if err == nil {
		err = h.DeleteExpense(ctx, id)
	}
	if err != nil {
		return l.failed(ctx, h, amqp.RecordExpense, log.OpDelete, err)
	}
	l.committed(ctx, h, amqp.RecordExpense, log.OpDelete, id, expenseKey(e))
	return nil
}

// expenseKey names the budget an expense counts against.
func expenseKey(e core.Expense) string {
	return budgetKey(e.Category, e.Date.Period())
}

// ParseBudgetKey splits an event key of the form category/YYYY-MM.
func ParseBudgetKey(key string) (string, core.Period, error) {
	category, period, ok := strings.Cut(key, "/")
	if !ok || category == "" {
		return "", core.Period{}, fmt.Errorf("%w: budget key %q", core.ErrValidation, key)
	}
	p, err := core.ParsePeriod(period)
	if err != nil {
		return "", core.Period{}, err
	}
	return category, p, nil
}

// AddSaving normalizes and stores a new saving.
func (l *Ledger) AddSaving(ctx context.Context, h *registry.Handle, in SavingInput) (core.Saving, error) {
	date, err := parseRequiredDate(in.Date)
	if err != nil {
		return core.Saving{}, err
	}
	amount, err := core.ParseMoney(in.Amount)
	if err != nil {
		return core.Saving{}, err
	}

	saved, err := h.CreateSaving(ctx, core.Saving{
		Date:   date,
		Amount: amount,
		Source: l.vocab.NormalizeSource(in.Source),
		Note:   strings.TrimSpace(in.Note),
	})
	if err != nil {
		return core.Saving{}, l.failed(ctx, h, amqp.RecordSaving, log.OpCreate, err)
	}
	l.committed(ctx, h, amqp.RecordSaving, log.OpCreate, saved.ID, "")
	return saved, nil
}

// ListSavings returns the user's savings ordered by date, then ID.
func (l *Ledger) ListSavings(ctx context.Context, h *registry.Handle, q ListQuery) ([]core.Saving, error) {
	r, err := parseRange(q.From, q.To)
	if err != nil {
		return nil, err
	}
	f := storage.SavingFilter{Range: r}
	if strings.TrimSpace(q.Category) != "" {
		f.Source = l.vocab.NormalizeSource(q.Category)
	}
	return h.ListSavings(ctx, f)
}

func (l *Ledger) UpdateSaving(ctx context.Context, h *registry.Handle, id int64, p SavingPatch) (core.Saving, error) {
	var (
		date   core.Date
		amount core.Money
		err    error
	)
	if p.Date != nil {
		if date, err = parseRequiredDate(*p.Date); err != nil {
			return core.Saving{}, err
		}
	}
	if p.Amount != nil {
		if amount, err = core.ParseMoney(*p.Amount); err != nil {
			return core.Saving{}, err
		}
	}

	updated, err := h.UpdateSaving(ctx, id, func(sv *core.Saving) error {
		if p.Date != nil {
			sv.Date = date
		}
		if p.Amount != nil {
			if sv.GoalID != 0 && amount != sv.Amount {
				return ErrContributionAmount
			}
			sv.Amount = amount
		}
		if p.Source != nil {
			sv.Source = l.vocab.NormalizeSource(*p.Source)
		}
		if p.Note != nil {
			sv.Note = strings.TrimSpace(*p.Note)
		}
		return nil
	})
	if err != nil {
		return core.Saving{}, l.failed(ctx, h, amqp.RecordSaving, log.OpUpdate, err)
	}
	l.committed(ctx, h, amqp.RecordSaving, log.OpUpdate, id, "")
	return updated, nil
}

func (l *Ledger) DeleteSaving(ctx context.Context, h *registry.Handle, id int64) error {
	if err := h.DeleteSaving(ctx, id); err != nil {
		return l.failed(ctx, h, amqp.RecordSaving, log.OpDelete, err)
	}
	l.committed(ctx, h, amqp.RecordSaving, log.OpDelete, id, "")
	return nil
}

// committed logs a successful mutation and publishes it. A publish failure
// is logged; the mutation has already been persisted and stands.
func (l *Ledger) committed(ctx context.Context, h *registry.Handle, record, op string, id int64, key string) {
	fields := log.NewFields().WithUser(h.UserID).WithRecord(record, id).WithOperation(op)
	if key != "" {
		fields["key"] = key
	}
	l.logger.InfoContext(ctx, "Ledger record committed", fields.ToSlice()...)

	if l.publisher == nil {
		return
	}
	evt := amqp.NewLedgerEvent(h.UserID, record, op, id)
	evt.Key = key
	if err := l.publisher.PublishLedgerEvent(ctx, evt); err != nil {
		l.logger.ErrorContext(ctx, "Failed to publish ledger event",
			fields.WithError(err, log.ErrorTypeInternal).ToSlice()...)
	}
}

// failed logs a rejected mutation and returns err unchanged.
func (l *Ledger) failed(ctx context.Context, h *registry.Handle, record, op string, err error) error {
	fields := log.NewFields().WithUser(h.UserID).WithRecord(record, 0).WithOperation(op)
	switch {
	case errors.Is(err, core.ErrValidation):
		l.logger.WarnContext(ctx, "Ledger mutation rejected", fields.WithError(err, log.ErrorTypeValidation).ToSlice()...)
	case errors.Is(err, core.ErrNotFound):
		l.logger.WarnContext(ctx, "Ledger mutation rejected", fields.WithError(err, log.ErrorTypeNotFound).ToSlice()...)
	case errors.Is(err, core.ErrStorage):
		l.logger.ErrorContext(ctx, "Ledger mutation failed", fields.WithError(err, log.ErrorTypeStorage).ToSlice()...)
	default:
		l.logger.ErrorContext(ctx, "Ledger mutation failed", fields.WithError(err, log.ErrorTypeInternal).ToSlice()...)
	}
	return err
}

func parseRequiredDate(s string) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return core.Date{}, fmt.Errorf("%w: date is required", core.ErrInvalidDate)
	}
	return core.ParseDate(s)
}

func parseRange(from, to string) (core.DateRange, error) {
	var (
		r   core.DateRange
		err error
	)
	if strings.TrimSpace(from) != "" {
		if r.From, err = core.ParseDate(from); err != nil {
			return core.DateRange{}, err
		}
	}
	if strings.TrimSpace(to) != "" {
		if r.To, err = core.ParseDate(to); err != nil {
			return core.DateRange{}, err
		}
	}
	return r, r.Validate()
}
