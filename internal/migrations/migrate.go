// Package migrations applies the versioned SQL schema in ./migrations.
package migrations

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	pg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

const versionTable = "schema_migrations_migrate"

// RunMigrations brings the database up to the latest migration. A database
// that already carries the schema but no version table (created before
// migrations were introduced) is baselined to the newest version first.
func RunMigrations(databaseURL string) error {
	if databaseURL == "" {
		return fmt.Errorf("database URL is empty")
	}

	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer sqlDB.Close()

	driver, err := pg.WithInstance(sqlDB, &pg.Config{MigrationsTable: versionTable})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	baselineIfNeeded(sqlDB, m)

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up: %w", err)
	}

	log.Printf("[MIGRATE] Schema is up to date")
	return nil
}

func tableExists(db *sql.DB, name string) bool {
	var exists bool
	row := db.QueryRow("SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)", name)
	if err := row.Scan(&exists); err != nil {
		return false
	}
	return exists
}

// baselineIfNeeded forces the version table to the newest migration when the
// players table exists without migration tracking.
func baselineIfNeeded(db *sql.DB, m *migrate.Migrate) {
	if !tableExists(db, "players") || tableExists(db, versionTable) {
		return
	}
	latest := latestMigrationVersion("migrations")
	if latest == 0 {
		return
	}
	log.Printf("[MIGRATE] Baselining existing schema at version %d", latest)
	if err := m.Force(int(latest)); err != nil {
		log.Printf("[MIGRATE] Baseline to %d failed: %v", latest, err)
	}
}

// latestMigrationVersion returns the highest numeric prefix among the
// migration files, or 0 when none can be read.
func latestMigrationVersion(dir string) int64 {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	re := regexp.MustCompile(`^0*([0-9]+)_`)
	var latest int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(e.Name())
		if len(m) < 2 {
			continue
		}
		if v, _ := strconv.ParseInt(m[1], 10, 64); v > latest {
			latest = v
		}
	}
	return latest
}
