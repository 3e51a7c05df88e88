// Command migrate applies the schema migrations in
// internal/database/migrations against the configured Postgres database.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"journal/internal/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var (
		command = flag.String("command", "", "Migration command: up, down, version, force")
		steps   = flag.Int("steps", 0, "Number of migration steps (for down)")
		version = flag.Int("version", 0, "Migration version (for force)")
		dir     = flag.String("dir", "internal/database/migrations", "Migrations directory")
	)
	flag.Parse()

	if *command == "" {
		fmt.Println("Usage: migrate -command [up|down|version|force] [options]")
		fmt.Println("  up       - Apply all pending migrations")
		fmt.Println("  down     - Rollback migrations (-steps N, default 1)")
		fmt.Println("  version  - Show current migration version")
		fmt.Println("  force    - Force set migration version (-version N)")
		os.Exit(1)
	}

	cfg := config.NewConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	m, err := migrate.New("file://"+*dir, "pgx5://"+trimScheme(cfg.Database.URL()))
	if err != nil {
		log.Fatalf("Failed to initialize migrator: %v", err)
	}
	defer m.Close()

	switch *command {
	case "up":
		err = m.Up()
	case "down":
		if *steps <= 0 {
			*steps = 1
		}
		err = m.Steps(-*steps)
	case "version":
		v, dirty, verr := m.Version()
		if verr != nil {
			log.Fatalf("Failed to read version: %v", verr)
		}
		fmt.Printf("version=%d dirty=%v\n", v, dirty)
		return
	case "force":
		err = m.Force(*version)
	default:
		log.Fatalf("Unknown command: %s", *command)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Done")
}

// trimScheme strips the postgres:// prefix so the URL can be rewritten for
// the pgx5 migrate driver.
func trimScheme(url string) string {
	const prefix = "postgres://"
	if len(url) > len(prefix) && url[:len(prefix)] == prefix {
		return url[len(prefix):]
	}
	return url
}
