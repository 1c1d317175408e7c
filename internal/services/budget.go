package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/registry"
	"finledger/internal/storage"
)

// BudgetState classifies spending against a budget limit.
type BudgetState string

const (
	BudgetUnder BudgetState = "under"
	BudgetNear  BudgetState = "near"
	BudgetOver  BudgetState = "over"
)

// BudgetInput sets the limit for a category in a YYYY-MM period.
type BudgetInput struct {
	Category string
	Period   string
	Limit    string
}

// BudgetStatus reports spending for one budget.
type BudgetStatus struct {
	Category     string          `json:"category"`
	Period       core.Period     `json:"period"`
	Limit        core.Money      `json:"limit"`
	Spent        core.Money      `json:"spent"`
	Remaining    core.Money      `json:"remaining"` // negative when overspent
	UsagePercent decimal.Decimal `json:"usage_percent"`
	Status       BudgetState     `json:"status"`
}

// EvaluateBudget classifies spent against limit. Spending is "over" above
// the limit, "near" from nearThreshold×limit up to and including the limit,
// and "under" otherwise.
func EvaluateBudget(limit, spent core.Money, nearThreshold decimal.Decimal) (BudgetState, decimal.Decimal) {
	l, s := limit.Decimal(), spent.Decimal()

	usage := decimal.Zero
	if l.IsPositive() {
		usage = s.Div(l).Mul(decimal.NewFromInt(100)).Round(2)
	}

	switch {
	case s.GreaterThan(l):
		return BudgetOver, usage
	case s.GreaterThanOrEqual(l.Mul(nearThreshold)):
		return BudgetNear, usage
	default:
		return BudgetUnder, usage
	}
}

// SetBudget creates the budget for (category, period) or replaces its limit.
func (l *Ledger) SetBudget(ctx context.Context, h *registry.Handle, in BudgetInput) (core.Budget, error) {
	b, err := l.budgetFromInput(in)
	if err != nil {
		return core.Budget{}, err
	}
	saved, err := h.SetBudget(ctx, b)
	if err != nil {
		return core.Budget{}, l.failed(ctx, h, amqp.RecordBudget, log.OpSet, err)
	}
	l.committed(ctx, h, amqp.RecordBudget, log.OpSet, saved.ID, budgetKey(saved.Category, saved.Period))
	return saved, nil
}

// UpdateBudget changes the limit of an existing budget; unlike SetBudget it
// fails with ErrNotFound when the budget is missing.
func (l *Ledger) UpdateBudget(ctx context.Context, h *registry.Handle, in BudgetInput) (core.Budget, error) {
	b, err := l.budgetFromInput(in)
	if err != nil {
		return core.Budget{}, err
	}
	saved, err := h.UpdateBudget(ctx, b.Category, b.Period, b.Limit)
	if err != nil {
		return core.Budget{}, l.failed(ctx, h, amqp.RecordBudget, log.OpUpdate, err)
	}
	l.committed(ctx, h, amqp.RecordBudget, log.OpUpdate, saved.ID, budgetKey(saved.Category, saved.Period))
	return saved, nil
}

// ListBudgets returns budgets, optionally restricted to a period and category.
func (l *Ledger) ListBudgets(ctx context.Context, h *registry.Handle, category, period string) ([]core.Budget, error) {
	var f storage.BudgetFilter
	if strings.TrimSpace(period) != "" {
		p, err := core.ParsePeriod(period)
		if err != nil {
			return nil, err
		}
		f.Period = p
	}
	if strings.TrimSpace(category) != "" {
		f.Category = l.vocab.NormalizeCategory(category)
	}
	return h.ListBudgets(ctx, f)
}

func (l *Ledger) DeleteBudget(ctx context.Context, h *registry.Handle, category, period string) error {
	p, err := core.ParsePeriod(period)
	if err != nil {
		return err
	}
	category = l.vocab.NormalizeCategory(category)
	if err := h.DeleteBudget(ctx, category, p); err != nil {
		return l.failed(ctx, h, amqp.RecordBudget, log.OpDelete, err)
	}
	l.committed(ctx, h, amqp.RecordBudget, log.OpDelete, 0, budgetKey(category, p))
	return nil
}

// CheckBudget sums the category's expenses over the period and evaluates
// them against the budget. A missing budget is ErrNotFound; no default
// limit is assumed.
func (l *Ledger) CheckBudget(ctx context.Context, h *registry.Handle, category, period string) (BudgetStatus, error) {
	p, err := core.ParsePeriod(period)
	if err != nil {
		return BudgetStatus{}, err
	}
	category = l.vocab.NormalizeCategory(category)

	b, err := h.GetBudget(ctx, category, p)
	if err != nil {
		return BudgetStatus{}, err
	}
	spent, err := h.SumExpenses(ctx, category, core.DateRange{From: p.Start(), To: p.End()})
	if err != nil {
		return BudgetStatus{}, err
	}

	state, usage := EvaluateBudget(b.Limit, spent, l.policy.NearThreshold)
	l.logger.DebugContext(ctx, "Budget evaluated",
		log.FieldUserID, h.UserID,
		log.FieldCategory, category,
		log.FieldPeriod, p.String(),
		log.FieldStatus, string(state))

	return BudgetStatus{
		Category:     category,
		Period:       p,
		Limit:        b.Limit,
		Spent:        spent,
		Remaining:    b.Limit.Sub(spent),
		UsagePercent: usage,
		Status:       state,
	}, nil
}

func (l *Ledger) budgetFromInput(in BudgetInput) (core.Budget, error) {
	p, err := core.ParsePeriod(in.Period)
	if err != nil {
		return core.Budget{}, err
	}
	limit, err := core.ParseMoney(in.Limit)
	if err != nil {
		return core.Budget{}, err
	}
	return core.Budget{
		Category: l.vocab.NormalizeCategory(in.Category),
		Period:   p,
		Limit:    limit,
	}, nil
}

func budgetKey(category string, p core.Period) string {
	return category + "/" + p.String()
}
