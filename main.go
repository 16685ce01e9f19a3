package main

import (
	"net/http"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"pharmadesk/m/internal/api"
	"pharmadesk/m/internal/config"
	"pharmadesk/m/internal/database"
	"pharmadesk/m/internal/migrations"
	"pharmadesk/m/internal/observability"
	"pharmadesk/m/internal/seed"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	observability.InitLogger("pharmadesk", cfg.Env)

	db := database.Connect(cfg.DatabaseDSN)
	defer db.Close()

	migrations.Run(db)
	if cfg.CatalogCSV != "" {
		seed.LoadMedications(db, cfg.CatalogCSV)
	}
	if cfg.SeedDemo {
		seed.LoadDemoData(db)
	}

	handler := api.New(db, cfg.Secret)

	log.Info().Str("port", cfg.HTTPPort).Msg("PharmaDesk server starting")
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
