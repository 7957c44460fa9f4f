package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load()

	mode := flag.String("mode", "up", "migration mode: up or down")
	dir := flag.String("dir", "./migrations", "directory holding the .sql migrations")
	flag.Parse()

	db, err := sql.Open("postgres", dsnFromEnv())
	if err != nil {
		log.Fatalf("failed to connect db: %v", err)
	}
	defer db.Close()

	if err := run(db, *mode, *dir); err != nil {
		log.Fatal(err)
	}
}

// dsnFromEnv builds the connection string from the same DB_* variables
// the server reads.
func dsnFromEnv() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"), os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"), os.Getenv("DB_PORT"),
	)
}

func run(db *sql.DB, mode, migrationsDir string) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	// Version prefixes sort lexicographically.
	sort.Strings(files)

	switch mode {
	case "up":
		return applyUp(db, files)
	case "down":
		return rollbackLast(db, files)
	default:
		return fmt.Errorf("unknown mode: %s (use 'up' or 'down')", mode)
	}
}

func applyUp(db *sql.DB, files []string) error {
	for _, file := range files {
		version := filepath.Base(file)

		var exists bool
		err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if exists {
			fmt.Printf("⏭ skipping applied migration: %s\n", version)
			continue
		}

		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		fmt.Printf("🚀 applying migration: %s\n", version)
		if _, err := db.Exec(sqlSection(string(content), "Up")); err != nil {
			return fmt.Errorf("migration failed (%s): %w", version, err)
		}

		_, err = db.Exec(`INSERT INTO schema_migrations (version) VALUES ($1)`, version)
		if err != nil {
			return fmt.Errorf("failed to record migration version: %w", err)
		}
	}
	fmt.Println("✅ all new migrations applied.")
	return nil
}

func rollbackLast(db *sql.DB, files []string) error {
	var lastVersion string
	err := db.QueryRow(`SELECT version FROM schema_migrations ORDER BY applied_at DESC LIMIT 1`).Scan(&lastVersion)
	if err == sql.ErrNoRows {
		fmt.Println("nothing to roll back.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get last applied migration: %w", err)
	}

	filePath := ""
	for _, f := range files {
		if filepath.Base(f) == lastVersion {
			filePath = f
			break
		}
	}
	if filePath == "" {
		return fmt.Errorf("migration file not found for version: %s", lastVersion)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	fmt.Printf("🧹 rolling back migration: %s\n", lastVersion)
	if _, err := db.Exec(sqlSection(string(content), "Down")); err != nil {
		return fmt.Errorf("rollback failed (%s): %w", filePath, err)
	}

	_, err = db.Exec(`DELETE FROM schema_migrations WHERE version = $1`, lastVersion)
	if err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	fmt.Println("✅ rollback successful.")
	return nil
}

// sqlSection returns the statements between the "-- +migrate <section>"
// marker and the next marker.
func sqlSection(content, section string) string {
	var part strings.Builder
	var inPart bool

	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(line, "-- +migrate "+section) {
			inPart = true
			continue
		}
		if inPart && strings.HasPrefix(line, "-- +migrate") {
			break
		}
		if inPart {
			part.WriteString(line + "\n")
		}
	}
	return part.String()
}
