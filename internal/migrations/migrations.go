package migrations

import (
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Run creates the database schema required for the pharmacy backend and
// installs the financials singleton row if it is not present yet.
func Run(db *sqlx.DB) {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL CHECK (role IN ('customer', 'manager', 'doctor')),
            debt REAL NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS medications (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            active_ingredient TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL DEFAULT '',
            dosage_instructions TEXT NOT NULL DEFAULT '',
            stock_quantity INTEGER NOT NULL DEFAULT 0,
            requires_prescription INTEGER NOT NULL DEFAULT 0 CHECK (requires_prescription IN (0, 1)),
            retail_price REAL NOT NULL DEFAULT 0,
            wholesale_price REAL NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS pharmacy_financials (
            id INTEGER PRIMARY KEY,
            total_budget REAL NOT NULL,
            total_revenue REAL NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS prescriptions (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            doctor_id TEXT NOT NULL,
            issued_date TEXT NOT NULL,
            is_active INTEGER NOT NULL CHECK (is_active IN (0, 1)),
            FOREIGN KEY(user_id) REFERENCES users(id),
            FOREIGN KEY(doctor_id) REFERENCES users(id)
        );`,
		`CREATE TABLE IF NOT EXISTS prescription_items (
            id TEXT PRIMARY KEY,
            prescription_id TEXT NOT NULL,
            med_id TEXT NOT NULL,
            initial_periods INTEGER NOT NULL,
            remaining_periods INTEGER NOT NULL,
            FOREIGN KEY(prescription_id) REFERENCES prescriptions(id),
            FOREIGN KEY(med_id) REFERENCES medications(id)
        );`,
		// The balance sheet is a singleton; the engine always addresses id 1.
		`INSERT OR IGNORE INTO pharmacy_financials (id, total_budget, total_revenue) VALUES (1, 10000, 0);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
	}
}
