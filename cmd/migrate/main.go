package main

import (
	"flag"
	"log"
	"os"

	"github.com/astroCoder-3409/SSS-Backend/internal/store"
)

var (
	dbPath    = flag.String("db", envOr("DATABASE_PATH", "bankingInformation.db"), "Path to the SQLite database file")
	appliedBy = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	status    = flag.Bool("status", false, "Show migration status without applying anything")
)

func main() {
	flag.Parse()

	db, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database %s: %v", *dbPath, err)
	}

	migrations, err := store.Migrations()
	if err != nil {
		log.Fatalf("Failed to read migrations: %v", err)
	}
	log.Printf("Found %d migration files", len(migrations))

	if *status {
		printStatus(db, migrations)
		return
	}

	applied, err := db.Migrate(*appliedBy)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if applied == 0 {
		log.Println("No new migrations to apply. Database is up to date.")
	} else {
		log.Printf("Successfully applied %d migration(s)", applied)
	}
}

func printStatus(db *store.Store, migrations []store.Migration) {
	applied, err := db.AppliedMigrations()
	if err != nil {
		log.Fatalf("Failed to read applied migrations: %v", err)
	}

	appliedVersions := make(map[int]store.AppliedMigration, len(applied))
	for _, am := range applied {
		appliedVersions[am.Version] = am
	}

	for _, m := range migrations {
		if am, ok := appliedVersions[m.Version]; ok {
			marker := "applied"
			if am.Checksum != m.Checksum {
				marker = "applied (CHECKSUM MISMATCH)"
			}
			log.Printf("  [%s] %04d_%s at %s by %s", marker, m.Version, m.Name, am.AppliedAt.Format("2006-01-02 15:04:05"), am.AppliedBy)
		} else {
			log.Printf("  [pending] %04d_%s", m.Version, m.Name)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
