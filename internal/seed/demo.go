package seed

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// LoadDemoData installs a small development fixture: three users (one per
// role), two medications, and one active prescription holding three refill
// periods of Ritalin. Inserts ignore rows that already exist, so the fixture
// is safe to run on every boot.
func LoadDemoData(db *sqlx.DB) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		log.Warn().Err(err).Msg("unable to hash demo password")
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := db.Beginx()
	if err != nil {
		log.Warn().Err(err).Msg("unable to start demo seed transaction")
		return
	}
	defer tx.Rollback()

	users := [][]any{
		{"User_Gal", "User Gal", "gal@example.com", "customer"},
		{"User_Manager", "User Manager", "manager@example.com", "manager"},
		{"Dr_Smith", "Dr. Smith", "dr.smith@example.com", "doctor"},
	}
	for _, u := range users {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO users (id, name, email, password, role, debt, created_at)
            VALUES (?, ?, ?, ?, ?, 0, ?)`, u[0], u[1], u[2], hashed, u[3], now); err != nil {
			log.Warn().Err(err).Msg("unable to insert demo user")
			return
		}
	}

	medications := [][]any{
		{"med_acamol", "Acamol", "Paracetamol", "Analgesic", "Take 1 tablet every 6 hours as needed", 10, 0, 10.0, 5.0},
		{"med_ritalin", "Ritalin", "Methylphenidate", "CNS Stimulant", "Take as prescribed by doctor", 20, 1, 50.0, 30.0},
	}
	for _, m := range medications {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO medications
            (id, name, active_ingredient, category, dosage_instructions, stock_quantity, requires_prescription, retail_price, wholesale_price)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, m...); err != nil {
			log.Warn().Err(err).Msg("unable to insert demo medication")
			return
		}
	}

	if _, err := tx.Exec(`INSERT OR IGNORE INTO prescriptions (id, user_id, doctor_id, issued_date, is_active)
        VALUES ('rx_user_gal_001', 'User_Gal', 'Dr_Smith', ?, 1)`, now); err != nil {
		log.Warn().Err(err).Msg("unable to insert demo prescription")
		return
	}
	if _, err := tx.Exec(`INSERT OR IGNORE INTO prescription_items (id, prescription_id, med_id, initial_periods, remaining_periods)
        VALUES ('rx_item_user_gal_ritalin', 'rx_user_gal_001', 'med_ritalin', 3, 3)`); err != nil {
		log.Warn().Err(err).Msg("unable to insert demo prescription item")
		return
	}

	if err := tx.Commit(); err != nil {
		log.Warn().Err(err).Msg("unable to commit demo seed")
	} else {
		log.Info().Msg("seeded demo data")
	}
}
