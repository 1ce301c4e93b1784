package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/yourusername/contest-api/internal/config"
	"github.com/yourusername/contest-api/pkg/database"
)

// Утилита обслуживания схемы:
//
//	migrate up          применить все новые миграции
//	migrate down -n 1   откатить N последних миграций
//	migrate force -v 1  выставить версию и снять dirty-флаг после упавшей миграции
//	migrate version     показать текущую версию
func main() {
	steps := flag.Int("n", 1, "number of migrations to roll back (down)")
	version := flag.Int("v", -1, "version to force (force)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: migrate [-n N] [-v V] up|down|force|version")
		os.Exit(2)
	}

	_ = godotenv.Load()
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.Driver != config.DatabaseDriverPostgres {
		log.Fatalf("migrate works only with the postgres driver, got %q", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.PostgresURL())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	m, err := database.NewMigrator(db, cfg.Database.MigrationsPath)
	if err != nil {
		log.Fatal(err)
	}

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = m.Up()
	case "down":
		if *steps < 1 {
			log.Fatal("-n must be at least 1")
		}
		err = m.Steps(-*steps)
	case "force":
		if *version < 0 {
			log.Fatal("force requires -v")
		}
		err = m.Force(*version)
	case "version":
	default:
		log.Fatalf("unknown command %q", cmd)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration failed: %v", err)
	}

	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		fmt.Println("Schema version: none")
	case err != nil:
		log.Fatalf("Failed to read version: %v", err)
	default:
		fmt.Printf("Schema version: %d (dirty=%t)\n", v, dirty)
	}
}
