package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"cmdb-api/internal/config"
	"cmdb-api/internal/logger"
	"cmdb-api/internal/migration"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: migrate [-path db/migrations] up|down|version|steps N|force V\n")
	flag.PrintDefaults()
}

func main() {
	path := flag.String("path", migration.DefaultPath, "migrations directory")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()

	zl, err := logger.New(cfg.Logger())
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer zl.Sync()

	if cfg.DatabaseDSN == "" {
		zl.Fatal("DB_DSN environment variable is required")
	}
	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		zl.Fatal("failed to open database", zap.Error(err))
	}

	m, err := migration.New(db, *path, zl)
	if err != nil {
		zl.Fatal("failed to initialise migrations", zap.Error(err))
	}
	defer m.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = m.Version()
		if err == nil {
			fmt.Printf("version=%d dirty=%v\n", version, dirty)
		}
	case "steps", "force":
		n, convErr := strconv.Atoi(flag.Arg(1))
		if convErr != nil {
			zl.Fatal("invalid argument", zap.String("command", cmd), zap.String("arg", flag.Arg(1)))
		}
		if cmd == "steps" {
			err = m.Steps(n)
		} else {
			err = m.Force(n)
		}
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		zl.Fatal("migration failed", zap.Error(err))
	}
}
