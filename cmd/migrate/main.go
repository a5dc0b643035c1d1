package main

import (
	"errors"
	"flag"
	"log"

	"agrimart-orders/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	down := flag.Bool("down", false, "roll back all migrations")
	force := flag.Int("force", -1, "force the schema version and clear the dirty flag")
	flag.Parse()

	cfg := config.Load()

	m, err := migrate.New(cfg.Database.MigrationsPath, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open migrations: %v", err)
	}
	defer m.Close()

	if *force >= 0 {
		if err := m.Force(*force); err != nil {
			log.Fatalf("Failed to force version %d: %v", *force, err)
		}
		log.Printf("Forced schema version %d", *force)
		return
	}

	if *down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration failed: %v", err)
	}

	version, dirty, _ := m.Version()
	log.Printf("Migration successful: version=%d dirty=%t", version, dirty)
}
