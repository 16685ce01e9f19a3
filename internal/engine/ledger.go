package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/jmoiron/sqlx"
)

// ProcessTransaction posts a charge against a user: debt, total revenue, and
// total budget all move by amount in one transaction. The amount may carry
// either sign; the engine does not tie a posting to a prior fulfillment, and
// composing "dispense then bill" is the caller's concern.
func (e *Engine) ProcessTransaction(ctx context.Context, userID string, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: amount must be a finite number", ErrInvalidInput)
	}
	return e.inTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		err := tx.GetContext(ctx, &exists, `SELECT 1 FROM users WHERE id = ?`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: user %q", ErrNotFound, userID)
		}
		if err != nil {
			return fmt.Errorf("%w: read user: %v", ErrStore, err)
		}
		if _, err := readBudget(ctx, tx); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `UPDATE users SET debt = debt + ? WHERE id = ?`, amount, userID); err != nil {
			return fmt.Errorf("%w: post debt: %v", ErrStore, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE pharmacy_financials SET total_revenue = total_revenue + ?, total_budget = total_budget + ? WHERE id = 1`, amount, amount); err != nil {
			return fmt.Errorf("%w: post revenue: %v", ErrStore, err)
		}
		return nil
	})
}
