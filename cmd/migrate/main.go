package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/kdimtricp/listenlog/internal/config"
	"github.com/kdimtricp/listenlog/internal/database"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file (optional)")
		dbType     = flag.String("db", "", "Database type (postgres or sqlite), overrides config")
		migrations = flag.String("migrations", "", "Path to migrations directory, overrides config")
		status     = flag.Bool("status", false, "Show migration status only")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("failed to load config", err)
	}
	if *dbType != "" {
		cfg.Database.Type = *dbType
	}
	if *migrations != "" {
		cfg.Database.MigrationsPath = *migrations
	}

	db, err := database.NewDB(database.Config{
		Type:       cfg.Database.Type,
		Host:       cfg.Database.Host,
		Port:       cfg.Database.Port,
		User:       cfg.Database.User,
		Password:   cfg.Database.Password,
		Name:       cfg.Database.Name,
		SQLitePath: cfg.Database.Path,
	})
	if err != nil {
		fatal("failed to connect to database", err)
	}
	defer db.Close()

	if !*status {
		fmt.Printf("Running migrations from %s...\n", cfg.Database.MigrationsPath)
		if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
			fatal("failed to run migrations", err)
		}
		fmt.Println("Migrations completed successfully!")
		return
	}

	if db.Type() != "postgres" {
		fmt.Printf("%s schema is created on startup; no migrations tracked.\n", db.Type())
		return
	}

	migrator := database.NewMigrator(db.Conn(), db.Type())
	if err := migrator.Initialize(); err != nil {
		fatal("failed to initialize migrator", err)
	}

	applied, err := migrator.GetAppliedMigrations()
	if err != nil {
		fatal("failed to get applied migrations", err)
	}

	list, err := migrator.LoadMigrations(cfg.Database.MigrationsPath)
	if err != nil {
		fatal("failed to load migrations", err)
	}

	fmt.Println("Migration Status:")
	fmt.Println("=================")
	for _, m := range list {
		state := "pending"
		if applied[m.Version] {
			state = "applied"
		}
		fmt.Printf("%s - %s [%s]\n", m.Version, m.Name, state)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
