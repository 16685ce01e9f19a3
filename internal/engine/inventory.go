package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"pharmadesk/m/domain"
)

// ProcessRestock adds qty units of medID to stock at wholesale cost, paid out
// of the pharmacy budget. Only managers may restock, and the budget is read
// and checked inside the same transaction as the write, so two concurrent
// restocks can never jointly overdraw it.
func (e *Engine) ProcessRestock(ctx context.Context, actorID, medID string, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	return e.inTx(ctx, func(tx *sqlx.Tx) error {
		var role string
		err := tx.GetContext(ctx, &role, `SELECT role FROM users WHERE id = ?`, actorID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: user %q", ErrNotFound, actorID)
		}
		if err != nil {
			return fmt.Errorf("%w: read actor role: %v", ErrStore, err)
		}
		if role != domain.RoleManager {
			return fmt.Errorf("%w: only managers can restock inventory", ErrUnauthorized)
		}

		var wholesale float64
		err = tx.GetContext(ctx, &wholesale, `SELECT wholesale_price FROM medications WHERE id = ?`, medID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: medication %q", ErrNotFound, medID)
		}
		if err != nil {
			return fmt.Errorf("%w: read medication: %v", ErrStore, err)
		}
		totalCost := wholesale * float64(qty)

		budget, err := readBudget(ctx, tx)
		if err != nil {
			return err
		}
		// Bankruptcy guard: refuse before touching any row.
		if budget < totalCost {
			return fmt.Errorf("%w: restock costs %.2f, budget is %.2f", ErrRuleViolation, totalCost, budget)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE medications SET stock_quantity = stock_quantity + ? WHERE id = ?`, qty, medID); err != nil {
			return fmt.Errorf("%w: add stock: %v", ErrStore, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE pharmacy_financials SET total_budget = total_budget - ? WHERE id = 1`, totalCost); err != nil {
			return fmt.Errorf("%w: charge budget: %v", ErrStore, err)
		}
		return nil
	})
}

// readBudget reads the singleton balance-sheet row (always id 1).
func readBudget(ctx context.Context, tx *sqlx.Tx) (float64, error) {
	var budget float64
	err := tx.GetContext(ctx, &budget, `SELECT total_budget FROM pharmacy_financials WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: pharmacy financials not initialized", ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read budget: %v", ErrStore, err)
	}
	return budget, nil
}
