// Package worker reacts to ledger events delivered over AMQP.
package worker

import (
	"context"
	"errors"
	"fmt"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/registry"
	"finledger/internal/services"
)

// BudgetAlert is raised when an expense change leaves a budget near or over its limit.
type BudgetAlert struct {
	UserID string                `json:"user_id"`
	Budget services.BudgetStatus `json:"budget"`
}

// BudgetWorker re-evaluates the budget an expense event touches.
type BudgetWorker struct {
	registry *registry.Registry
	ledger   *services.Ledger
	logger   *log.Logger
	alert    func(BudgetAlert) error
}

func NewBudgetWorker(reg *registry.Registry, ledger *services.Ledger, logger *log.Logger, alert func(BudgetAlert) error) *BudgetWorker {
	return &BudgetWorker{
		registry: reg,
		ledger:   ledger,
		logger:   logger.WithComponent(log.ComponentWorker),
		alert:    alert,
	}
}

// HandleLedgerEvent processes a single ledger event from AMQP. Events other
// than expense changes are ignored, as are unknown users and expenses with
// no budget set.
func (w *BudgetWorker) HandleLedgerEvent(ctx context.Context, evt *amqp.LedgerEvent) error {
	if evt.Record != amqp.RecordExpense || evt.Key == "" {
		return nil
	}

	category, period, err := services.ParseBudgetKey(evt.Key)
	if err != nil {
		w.logger.WarnContext(ctx, "Skipping event with malformed budget key",
			log.FieldUserID, evt.UserID, log.FieldID, evt.ID, log.FieldError, err)
		return nil
	}

	// Lookup, not Resolve: an event must never provision a ledger.
	h, err := w.registry.Lookup(ctx, evt.UserID)
	if err != nil {
		if errors.Is(err, core.ErrValidation) || errors.Is(err, core.ErrNotFound) {
			w.logger.WarnContext(ctx, "Skipping event for unknown user", log.FieldUserID, evt.UserID, log.FieldError, err)
			return nil
		}
		return fmt.Errorf("look up user: %w", err)
	}

	status, err := w.ledger.CheckBudget(ctx, h, category, period.String())
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check budget %s: %w", evt.Key, err)
	}

	w.logger.DebugContext(ctx, "Budget re-evaluated",
		log.FieldUserID, evt.UserID,
		log.FieldCategory, category,
		log.FieldPeriod, period.String(),
		log.FieldStatus, string(status.Status))

	if status.Status == services.BudgetUnder {
		return nil
	}

	w.logger.WarnContext(ctx, "Budget threshold reached",
		log.FieldUserID, evt.UserID,
		log.FieldCategory, category,
		log.FieldPeriod, period.String(),
		log.FieldStatus, string(status.Status),
		log.FieldAmountCents, status.Spent.Cents)

	if w.alert == nil {
		return nil
	}
	return w.alert(BudgetAlert{UserID: evt.UserID, Budget: status})
}
