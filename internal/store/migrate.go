package store

import (
	"crypto/sha256"
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration is a single versioned schema change.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration is a row in the schema_migrations table.
type AppliedMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"not null"`
	Checksum  string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
	AppliedBy string    `gorm:"not null"`
}

// TableName keeps the conventional migrations table name.
func (AppliedMigration) TableName() string { return "schema_migrations" }

// Migrations returns the embedded migration set, ordered by version.
func Migrations() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("Migrations: reading embedded dir: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		m := migrationPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			return nil, fmt.Errorf("Migrations: unexpected migration filename %q", entry.Name())
		}

		version, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("Migrations: parsing version from %q: %w", entry.Name(), err)
		}

		sqlBytes, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("Migrations: reading %q: %w", entry.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     m[2],
			Filename: entry.Name(),
			SQL:      string(sqlBytes),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(sqlBytes)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// AppliedMigrations returns the already-applied migrations ordered by version.
func (s *Store) AppliedMigrations() ([]AppliedMigration, error) {
	if err := s.db.AutoMigrate(&AppliedMigration{}); err != nil {
		return nil, fmt.Errorf("AppliedMigrations: ensuring schema_migrations: %w", err)
	}

	var applied []AppliedMigration
	if err := s.db.Order("version").Find(&applied).Error; err != nil {
		return nil, fmt.Errorf("AppliedMigrations: %w", err)
	}
	return applied, nil
}

// Migrate applies all pending migrations in order. Each migration runs inside
// its own transaction together with its schema_migrations record. A checksum
// mismatch on an already-applied migration is an error.
func (s *Store) Migrate(appliedBy string) (int, error) {
	migrations, err := Migrations()
	if err != nil {
		return 0, err
	}

	applied, err := s.AppliedMigrations()
	if err != nil {
		return 0, err
	}

	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	for _, a := range applied {
		appliedByVersion[a.Version] = a
	}

	var count int
	for _, m := range migrations {
		if prev, ok := appliedByVersion[m.Version]; ok {
			if prev.Checksum != m.Checksum {
				return count, fmt.Errorf("Migrate: migration %04d_%s was modified after being applied", m.Version, m.Name)
			}
			continue
		}

		err := s.db.Transaction(func(tx *gorm.DB) error {
			for _, stmt := range splitStatements(m.SQL) {
				if err := tx.Exec(stmt).Error; err != nil {
					return fmt.Errorf("executing %q: %w", stmt, err)
				}
			}
			record := AppliedMigration{
				Version:   m.Version,
				Name:      m.Name,
				Checksum:  m.Checksum,
				AppliedAt: time.Now().UTC(),
				AppliedBy: appliedBy,
			}
			return tx.Create(&record).Error
		})
		if err != nil {
			return count, fmt.Errorf("Migrate: applying %04d_%s: %w", m.Version, m.Name, err)
		}
		count++
	}

	return count, nil
}

// splitStatements breaks a migration file into individual SQL statements so
// each can be executed through the driver separately.
func splitStatements(sql string) []string {
	var stmts []string
	for _, raw := range strings.Split(sql, ";") {
		stmt := strings.TrimSpace(raw)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
