package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type resolvedItem struct {
	ID               string `db:"id"`
	PrescriptionID   string `db:"prescription_id"`
	RemainingPeriods int64  `db:"remaining_periods"`
}

// The ORDER BY makes the match deterministic if a user somehow holds more
// than one active item for the same medication.
const activeItemQuery = `SELECT pi.id, pi.prescription_id, pi.remaining_periods
    FROM prescriptions p
    JOIN prescription_items pi ON pi.prescription_id = p.id
    WHERE p.user_id = ? AND pi.med_id = ? AND p.is_active = 1
    ORDER BY pi.id
    LIMIT 1`

func resolveActiveItem(ctx context.Context, q sqlx.QueryerContext, userID, medID string, qty int64) (resolvedItem, error) {
	var item resolvedItem
	err := sqlx.GetContext(ctx, q, &item, activeItemQuery, userID, medID)
	if errors.Is(err, sql.ErrNoRows) {
		return item, fmt.Errorf("%w: no active prescription for user %q and medication %q", ErrNotFound, userID, medID)
	}
	if err != nil {
		return item, fmt.Errorf("%w: resolve prescription item: %v", ErrStore, err)
	}
	if item.RemainingPeriods < qty {
		return item, fmt.Errorf("%w: %d remaining periods, %d requested", ErrRuleViolation, item.RemainingPeriods, qty)
	}
	return item, nil
}

// ValidateFulfillment checks that userID holds an active prescription item
// for medID with at least qty remaining periods, and returns the item id.
// Read-only; a later FulfillPrescription re-checks everything inside its own
// transaction and never trusts this result.
func (e *Engine) ValidateFulfillment(ctx context.Context, userID, medID string, qty int64) (string, error) {
	if qty <= 0 {
		return "", fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	item, err := resolveActiveItem(ctx, e.db, userID, medID, qty)
	if err != nil {
		return "", err
	}
	return item.ID, nil
}

// FulfillPrescription dispenses qty units of medID against the user's active
// prescription: it consumes qty remaining periods, decrements stock by qty,
// and deactivates the prescription once no item on it has periods left. The
// whole sequence commits atomically or not at all.
func (e *Engine) FulfillPrescription(ctx context.Context, userID, medID string, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	return e.inTx(ctx, func(tx *sqlx.Tx) error {
		item, err := resolveActiveItem(ctx, tx, userID, medID, qty)
		if err != nil {
			return err
		}

		var stock int64
		err = tx.GetContext(ctx, &stock, `SELECT stock_quantity FROM medications WHERE id = ?`, medID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: medication %q", ErrNotFound, medID)
		}
		if err != nil {
			return fmt.Errorf("%w: read stock: %v", ErrStore, err)
		}
		if stock < qty {
			return fmt.Errorf("%w: %d in stock, %d requested", ErrRuleViolation, stock, qty)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE prescription_items SET remaining_periods = remaining_periods - ? WHERE id = ?`, qty, item.ID); err != nil {
			return fmt.Errorf("%w: consume periods: %v", ErrStore, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE medications SET stock_quantity = stock_quantity - ? WHERE id = ?`, qty, medID); err != nil {
			return fmt.Errorf("%w: consume stock: %v", ErrStore, err)
		}

		var open int64
		if err := tx.GetContext(ctx, &open, `SELECT COUNT(*) FROM prescription_items WHERE prescription_id = ? AND remaining_periods > 0`, item.PrescriptionID); err != nil {
			return fmt.Errorf("%w: count open items: %v", ErrStore, err)
		}
		if open == 0 {
			if _, err := tx.ExecContext(ctx, `UPDATE prescriptions SET is_active = 0 WHERE id = ?`, item.PrescriptionID); err != nil {
				return fmt.Errorf("%w: deactivate prescription: %v", ErrStore, err)
			}
		}
		return nil
	})
}
