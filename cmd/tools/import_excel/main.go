package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"cmdb-api/internal/config"
	"cmdb-api/internal/logger"
	"cmdb-api/internal/reconcile"
	"cmdb-api/internal/store"
	"cmdb-api/pkg/importer"
)

func main() {
	var (
		filePath  = flag.String("file", "", "Workbook to import (.xlsx)")
		mapping   = flag.String("mapping", "", "Mapping file (default: IMPORT_MAPPING)")
		dryRun    = flag.Bool("dry-run", false, "Build reports without staging them")
		maxErrors = flag.Int("max-errors", 50, "Stop after this many row errors")
	)
	flag.Parse()

	if *filePath == "" {
		fmt.Println("Usage: import_excel --file=path.xlsx [--mapping=configs/mapping/inventory.yaml] [--dry-run]")
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg := config.Load()
	if *mapping == "" {
		*mapping = cfg.ImportMapping
	}

	zl, err := logger.New(cfg.Logger())
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer zl.Sync()

	if cfg.DatabaseDSN == "" && !*dryRun {
		zl.Fatal("DB_DSN environment variable is required")
	}

	// a dry run never stages, so it needs no database
	var stager importer.Stager
	if !*dryRun {
		db, err := sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			zl.Fatal("failed to open database", zap.Error(err))
		}
		defer db.Close()
		stager = reconcile.New(store.NewPostgres(db, zl), reconcile.WithLogger(zl))
	}

	file, err := os.Open(*filePath)
	if err != nil {
		zl.Fatal("failed to open workbook", zap.Error(err))
	}
	defer file.Close()

	fmt.Printf("Importing from %s (dry_run=%v)\n", *filePath, *dryRun)
	fmt.Println(strings.Repeat("=", 60))

	summary, err := importer.ImportWorkbook(context.Background(), stager, file, importer.Options{
		MappingPath: *mapping,
		DryRun:      *dryRun,
		MaxErrors:   *maxErrors,
	})

	fmt.Println("IMPORT SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Batch: %s\n", summary.BatchID)
	fmt.Printf("Staged: %d\n", summary.Staged)
	fmt.Printf("Skipped: %d\n", summary.Skipped)
	fmt.Printf("Errors: %d\n", summary.Errors)
	fmt.Printf("Dry run: %v\n", summary.DryRun)
	if len(summary.Samples) > 0 {
		fmt.Println("\nError samples:")
		for _, sample := range summary.Samples {
			fmt.Printf("  %s row %d: %s\n", sample.Sheet, sample.Row, sample.Message)
		}
	}

	if err != nil {
		zl.Fatal("import failed", zap.Error(err))
	}
}
