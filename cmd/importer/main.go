// Command importer loads an upstream screening export (CSV or XLSX)
// into the case-review tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"caseview/internal/auth/store/operator"
	"caseview/internal/importer"
	"caseview/internal/platform/config"
	"caseview/internal/platform/database"
	"caseview/internal/platform/logger"
	"caseview/internal/review/store/feedback"
	"caseview/internal/review/store/source"
	"caseview/internal/review/store/status"
	"caseview/pkg/platform/tx"
)

func main() {
	databaseURL := flag.String("database-url", "", "PostgreSQL connection string (defaults to DATABASE_URL)")
	batchSize := flag.Int("batch-size", 50, "rows per commit batch")
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: importer [flags] <export.csv|export.xlsx>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	url := *databaseURL
	if url == "" {
		url = cfg.DatabaseURL
	}

	db, err := database.Open(url)
	if err != nil {
		log.Error("failed to connect to database", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(url); err != nil {
		log.Warn("schema migration failed, continuing with existing schema", "error", err.Error())
	}

	imp := importer.New(
		operator.NewPostgres(db),
		source.NewPostgres(db),
		feedback.NewPostgres(db),
		status.NewPostgres(db),
		tx.NewSQLRunner(db),
		log,
		*batchSize,
	)

	summary, err := imp.Run(context.Background(), path)
	if err != nil {
		log.Error("import failed", "error", err.Error())
		os.Exit(1)
	}
	if summary.RowsErr > 0 {
		os.Exit(1)
	}
}
