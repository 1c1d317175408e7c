package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/registry"
)

// Projection classifies a goal's pace against its deadline.
type Projection string

const (
	ProjectionOnTrack Projection = "on_track"
	ProjectionBehind  Projection = "behind"
	ProjectionAhead   Projection = "ahead"
	ProjectionOverdue Projection = "overdue"
)

type (
	GoalInput struct {
		Name         string
		TargetAmount string
		TargetDate   string
		Note         string
	}

	GoalPatch struct {
		Name         *string
		TargetAmount *string
		TargetDate   *string
		Note         *string
	}

	// ContributionInput records money put towards a goal. An empty date
	// means today; the source is normalized like any saving.
	ContributionInput struct {
		Date   string
		Amount string
		Source string
		Note   string
	}
)

// GoalInsight is derived on read and never stored. Paces are in major
// currency units per day.
type GoalInsight struct {
	GoalID            int64           `json:"goal_id"`
	Name              string          `json:"name"`
	TargetAmount      core.Money      `json:"target_amount"`
	CurrentProgress   core.Money      `json:"current_progress"`
	Remaining         core.Money      `json:"remaining"`
	PercentComplete   decimal.Decimal `json:"percent_complete"` // clamped to [0, 1]
	ProgressRatio     decimal.Decimal `json:"progress_ratio"`   // unclamped
	Achieved          bool            `json:"achieved"`
	DaysElapsed       int             `json:"days_elapsed"`
	DaysRemaining     int             `json:"days_remaining"`
	RequiredDailyPace decimal.Decimal `json:"required_daily_pace"`
	ActualDailyPace   decimal.Decimal `json:"actual_daily_pace"`
	Projection        Projection      `json:"projection"`
	EvaluatedOn       core.Date       `json:"evaluated_on"`
}

// ComputeInsight evaluates goal g as of today. tolerance is the relative
// band around the required pace that still counts as on track.
func ComputeInsight(g core.Goal, today core.Date, tolerance decimal.Decimal) GoalInsight {
	target, progress := g.TargetAmount.Decimal(), g.CurrentProgress.Decimal()
	one := decimal.NewFromInt(1)

	ratio := decimal.Zero
	if target.IsPositive() {
		ratio = progress.Div(target)
	}
	percent := decimal.Max(decimal.Zero, decimal.Min(ratio, one))
	achieved := ratio.GreaterThanOrEqual(one)

	daysRemaining := today.DaysUntil(g.TargetDate)
	daysElapsed := g.CreatedDate.DaysUntil(today)

	remaining := decimal.Max(target.Sub(progress), decimal.Zero)
	required := remaining.Div(decimal.NewFromInt(int64(max(daysRemaining, 1))))
	actual := progress.Div(decimal.NewFromInt(int64(max(daysElapsed, 1))))

	var projection Projection
	switch {
	case achieved:
		projection = ProjectionAhead
	case daysRemaining < 0:
		projection = ProjectionOverdue
	case actual.GreaterThanOrEqual(required.Mul(one.Add(tolerance))):
		projection = ProjectionAhead
	case actual.GreaterThanOrEqual(required.Mul(one.Sub(tolerance))):
		projection = ProjectionOnTrack
	default:
		projection = ProjectionBehind
	}

	return GoalInsight{
		GoalID:            g.ID,
		Name:              g.Name,
		TargetAmount:      g.TargetAmount,
		CurrentProgress:   g.CurrentProgress,
		Remaining:         core.MoneyFromDecimal(remaining),
		PercentComplete:   percent.Round(4),
		ProgressRatio:     ratio.Round(4),
		Achieved:          achieved,
		DaysElapsed:       daysElapsed,
		DaysRemaining:     daysRemaining,
		RequiredDailyPace: required.Round(2),
		ActualDailyPace:   actual.Round(2),
		Projection:        projection,
		EvaluatedOn:       today,
	}
}

// AddGoal creates a goal dated today. Its target date must be after today.
func (l *Ledger) AddGoal(ctx context.Context, h *registry.Handle, in GoalInput) (core.Goal, error) {
	target, err := core.ParseMoney(in.TargetAmount)
	if err != nil {
		return core.Goal{}, err
	}
	targetDate, err := parseRequiredDate(in.TargetDate)
	if err != nil {
		return core.Goal{}, err
	}
	created := l.today()
	if !targetDate.After(created.Time) {
		return core.Goal{}, core.ErrTargetDateNotFuture
	}

	saved, err := h.CreateGoal(ctx, core.Goal{
		Name:         strings.TrimSpace(in.Name),
		TargetAmount: target,
		TargetDate:   targetDate,
		CreatedDate:  created,
		Note:         strings.TrimSpace(in.Note),
	})
	if err != nil {
		return core.Goal{}, l.failed(ctx, h, amqp.RecordGoal, log.OpCreate, err)
	}
	l.committed(ctx, h, amqp.RecordGoal, log.OpCreate, saved.ID, "")
	return saved, nil
}

func (l *Ledger) ListGoals(ctx context.Context, h *registry.Handle) ([]core.Goal, error) {
	return h.ListGoals(ctx)
}

// UpdateGoal applies a partial update. A new target date must still fall
// after the goal's creation date; progress is only changed by contributions.
func (l *Ledger) UpdateGoal(ctx context.Context, h *registry.Handle, id int64, p GoalPatch) (core.Goal, error) {
	var (
		target     core.Money
		targetDate core.Date
		err        error
	)
	if p.TargetAmount != nil {
		if target, err = core.ParseMoney(*p.TargetAmount); err != nil {
			return core.Goal{}, err
		}
	}
	if p.TargetDate != nil {
		if targetDate, err = parseRequiredDate(*p.TargetDate); err != nil {
			return core.Goal{}, err
		}
	}

	updated, err := h.UpdateGoal(ctx, id, func(g *core.Goal) error {
		if p.Name != nil {
			g.Name = strings.TrimSpace(*p.Name)
		}
		if p.TargetAmount != nil {
			g.TargetAmount = target
		}
		if p.TargetDate != nil {
			if !targetDate.After(g.CreatedDate.Time) {
				return core.ErrTargetDateNotFuture
			}
			g.TargetDate = targetDate
		}
		if p.Note != nil {
			g.Note = strings.TrimSpace(*p.Note)
		}
		return nil
	})
	if err != nil {
		return core.Goal{}, l.failed(ctx, h, amqp.RecordGoal, log.OpUpdate, err)
	}
	l.committed(ctx, h, amqp.RecordGoal, log.OpUpdate, id, "")
	return updated, nil
}

// DeleteGoal removes a goal; its contributions remain as plain savings.
func (l *Ledger) DeleteGoal(ctx context.Context, h *registry.Handle, id int64) error {
	if err := h.DeleteGoal(ctx, id); err != nil {
		return l.failed(ctx, h, amqp.RecordGoal, log.OpDelete, err)
	}
	l.committed(ctx, h, amqp.RecordGoal, log.OpDelete, id, "")
	return nil
}

// ContributeToGoal records a saving earmarked to the goal and advances its
// progress by the same amount.
func (l *Ledger) ContributeToGoal(ctx context.Context, h *registry.Handle, goalID int64, in ContributionInput) (core.Saving, core.Goal, error) {
	date := l.today()
	if strings.TrimSpace(in.Date) != "" {
		var err error
		if date, err = core.ParseDate(in.Date); err != nil {
			return core.Saving{}, core.Goal{}, err
		}
	}
	amount, err := core.ParseMoney(in.Amount)
	if err != nil {
		return core.Saving{}, core.Goal{}, err
	}

	sv, g, err := h.AddContribution(ctx, goalID, core.Saving{
		Date:   date,
		Amount: amount,
		Source: l.vocab.NormalizeSource(in.Source),
		Note:   strings.TrimSpace(in.Note),
	})
	if err != nil {
		return core.Saving{}, core.Goal{}, l.failed(ctx, h, amqp.RecordGoal, log.OpContribute, err)
	}
	l.committed(ctx, h, amqp.RecordSaving, log.OpCreate, sv.ID, "")
	l.committed(ctx, h, amqp.RecordGoal, log.OpContribute, g.ID, "")
	return sv, g, nil
}

// GoalInsight computes pacing for a stored goal as of the ledger's clock.
func (l *Ledger) GoalInsight(ctx context.Context, h *registry.Handle, goalID int64) (GoalInsight, error) {
	g, err := h.GetGoal(ctx, goalID)
	if err != nil {
		return GoalInsight{}, err
	}
	insight := ComputeInsight(g, l.today(), l.policy.PaceTolerance)
	l.logger.DebugContext(ctx, "Goal insight computed",
		log.FieldUserID, h.UserID,
		log.FieldID, goalID,
		log.FieldStatus, string(insight.Projection))
	return insight, nil
}
