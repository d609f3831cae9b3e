// Command migrate applies the pricewatch schema migrations.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/raulshma/tech-ticker-sub007/internal/config"
	infraconfig "github.com/raulshma/tech-ticker-sub007/internal/infrastructure/config"
)

// Exit codes for the migrate command.
const (
	exitSuccess = 0
	exitFailure = 1
)

// migrationsPath is the relative path to the migrations directory.
const migrationsPath = "file://migrations"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: migrate <up|down|version>")
		return exitFailure
	}

	action := args[0]
	if action != "up" && action != "down" && action != "version" {
		fmt.Fprintf(os.Stderr, "Invalid action: %q (must be \"up\", \"down\" or \"version\")\n", action)
		return exitFailure
	}

	cfg, err := config.Load(infraconfig.GetConfigPath("config.yml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitFailure
	}

	m, err := migrate.New(migrationsPath, cfg.Database.URL())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrate instance: %v\n", err)
		return exitFailure
	}
	defer func() { _, _ = m.Close() }()

	if action == "version" {
		v, dirty, vErr := m.Version()
		if errors.Is(vErr, migrate.ErrNilVersion) {
			fmt.Println("No migrations applied")
			return exitSuccess
		}
		if vErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to read version: %v\n", vErr)
			return exitFailure
		}
		fmt.Printf("Version %d (dirty: %t)\n", v, dirty)
		return exitSuccess
	}

	if err = runMigration(m, action); err != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", action, err)
		return exitFailure
	}

	fmt.Printf("Migration %s completed successfully\n", action)
	return exitSuccess
}

// runMigration executes the migration in the specified direction.
func runMigration(m *migrate.Migrate, direction string) error {
	var err error

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("No migrations to apply")
		return nil
	}

	return err
}
