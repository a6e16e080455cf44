package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/config"
	"github.com/rl1809/inventory-ledger/internal/logger"
	"github.com/rl1809/inventory-ledger/internal/migration"
	"github.com/rl1809/inventory-ledger/migrations"
)

const usage = "usage: migrate [up|down|version]"

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	defer func() { _ = log.Sync() }()

	db, err := sql.Open("mysql", cfg.Database.DSN())
	if err != nil {
		log.Fatal("failed to open mysql", zap.Error(err))
	}

	m, err := migration.New(db, migrations.FS, log)
	if err != nil {
		log.Fatal("failed to create migrator", zap.Error(err))
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("failed to close migrator", zap.Error(err))
		}
	}()

	switch command {
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
			fmt.Printf("version: %d, dirty: %t\n", version, dirty)
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		log.Error("migration command failed", zap.String("command", command), zap.Error(err))
		os.Exit(1)
	}
}
