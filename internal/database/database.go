package database

import (
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Connect opens a SQLite database using the provided DSN. The pool is capped
// at a single connection, which makes every transaction fully serialized.
func Connect(dsn string) *sqlx.DB {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	db.SetMaxOpenConns(1)
	return db
}
