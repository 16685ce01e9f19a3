package engine

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"pharmadesk/m/internal/migrations"
)

// newTestEngine opens a fresh in-memory store, runs the real migrations, and
// installs the baseline fixture: a customer holding an active prescription of
// three Ritalin refill periods, a manager, a doctor, and a 10000 budget.
func newTestEngine(t *testing.T) (*Engine, *sqlx.DB) {
	t.Helper()

	db, err := sqlx.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	migrations.Run(db)

	fixture := []string{
		`INSERT INTO users (id, name, email, password, role, debt) VALUES
            ('User_Gal', 'User Gal', 'gal@example.com', 'x', 'customer', 0),
            ('User_Manager', 'User Manager', 'manager@example.com', 'x', 'manager', 0),
            ('Dr_Smith', 'Dr. Smith', 'dr.smith@example.com', 'x', 'doctor', 0)`,
		`INSERT INTO medications (id, name, active_ingredient, category, dosage_instructions, stock_quantity, requires_prescription, retail_price, wholesale_price) VALUES
            ('med_acamol', 'Acamol', 'Paracetamol', 'Analgesic', 'Take 1 tablet every 6 hours as needed', 10, 0, 10, 5),
            ('med_ritalin', 'Ritalin', 'Methylphenidate', 'CNS Stimulant', 'Take as prescribed by doctor', 20, 1, 50, 30)`,
		`INSERT INTO prescriptions (id, user_id, doctor_id, issued_date, is_active) VALUES
            ('rx_001', 'User_Gal', 'Dr_Smith', '2026-01-01T00:00:00Z', 1)`,
		`INSERT INTO prescription_items (id, prescription_id, med_id, initial_periods, remaining_periods) VALUES
            ('rx_item_ritalin', 'rx_001', 'med_ritalin', 3, 3)`,
	}
	for _, stmt := range fixture {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return New(db), db
}

func setBudget(t *testing.T, db *sqlx.DB, budget float64) {
	t.Helper()
	_, err := db.Exec(`UPDATE pharmacy_financials SET total_budget = ? WHERE id = 1`, budget)
	require.NoError(t, err)
}

func getItem(t *testing.T, db *sqlx.DB, id string) (remaining, initial int64) {
	t.Helper()
	row := db.QueryRow(`SELECT remaining_periods, initial_periods FROM prescription_items WHERE id = ?`, id)
	require.NoError(t, row.Scan(&remaining, &initial))
	return remaining, initial
}

func getStock(t *testing.T, db *sqlx.DB, medID string) int64 {
	t.Helper()
	var stock int64
	require.NoError(t, db.Get(&stock, `SELECT stock_quantity FROM medications WHERE id = ?`, medID))
	return stock
}

func getFinancials(t *testing.T, db *sqlx.DB) (budget, revenue float64) {
	t.Helper()
	row := db.QueryRow(`SELECT total_budget, total_revenue FROM pharmacy_financials WHERE id = 1`)
	require.NoError(t, row.Scan(&budget, &revenue))
	return budget, revenue
}

func getDebt(t *testing.T, db *sqlx.DB, userID string) float64 {
	t.Helper()
	var debt float64
	require.NoError(t, db.Get(&debt, `SELECT debt FROM users WHERE id = ?`, userID))
	return debt
}

func isActive(t *testing.T, db *sqlx.DB, prescriptionID string) bool {
	t.Helper()
	var active bool
	require.NoError(t, db.Get(&active, `SELECT is_active FROM prescriptions WHERE id = ?`, prescriptionID))
	return active
}
