package seed

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// LoadMedications ingests the CSV catalog into the medications table,
// ignoring duplicates. Expected columns:
// id,name,active_ingredient,category,dosage_instructions,stock_quantity,requires_prescription,retail_price,wholesale_price
func LoadMedications(db *sqlx.DB, csvPath string) {
	file, err := os.Open(csvPath)
	if err != nil {
		log.Warn().Err(err).Str("path", csvPath).Msg("unable to load medication catalog")
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Warn().Err(err).Msg("unable to read catalog header")
		return
	}

	tx, err := db.Beginx()
	if err != nil {
		log.Warn().Err(err).Msg("unable to start catalog transaction")
		return
	}
	stmt, err := tx.Preparex(`INSERT OR IGNORE INTO medications
        (id, name, active_ingredient, category, dosage_instructions, stock_quantity, requires_prescription, retail_price, wholesale_price)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		log.Warn().Err(err).Msg("unable to prepare medication insert")
		_ = tx.Rollback()
		return
	}
	defer stmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Err(err).Msg("unable to read catalog row")
			continue
		}
		if len(record) < 9 {
			continue
		}
		id := strings.TrimSpace(record[0])
		name := strings.TrimSpace(record[1])
		if id == "" || name == "" {
			continue
		}
		stock, _ := strconv.ParseInt(strings.TrimSpace(record[5]), 10, 64)
		if stock < 0 {
			stock = 0
		}
		requiresRx := 0
		if v, err := strconv.ParseBool(strings.TrimSpace(record[6])); err == nil && v {
			requiresRx = 1
		}
		retail, _ := strconv.ParseFloat(strings.TrimSpace(record[7]), 64)
		wholesale, _ := strconv.ParseFloat(strings.TrimSpace(record[8]), 64)

		if _, err := stmt.Exec(id, name, strings.TrimSpace(record[2]), strings.TrimSpace(record[3]),
			strings.TrimSpace(record[4]), stock, requiresRx, retail, wholesale); err != nil {
			log.Warn().Err(err).Str("medication", name).Msg("unable to insert medication")
		} else {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		log.Warn().Err(err).Msg("unable to commit catalog seed")
	} else {
		log.Info().Int("rows", rows).Msg("seeded medication catalog")
	}
}
