// Command migrate applies the embedded schema migrations to the target
// database. Deploys that cannot migrate on boot run this before rolling
// the server.
package main

import (
	"flag"
	"os"

	"caseview/internal/platform/config"
	"caseview/internal/platform/database"
	"caseview/internal/platform/logger"
)

func main() {
	databaseURL := flag.String("database-url", "", "PostgreSQL connection string (defaults to DATABASE_URL)")
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	url := *databaseURL
	if url == "" {
		url = cfg.DatabaseURL
	}

	if err := database.Migrate(url); err != nil {
		log.Error("migration failed", "error", err.Error())
		os.Exit(1)
	}
	log.Info("migrations applied")
}
