package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/rtx-labs/posengine/database"
)

func main() {
	upCmd := flag.Bool("up", false, "Run all pending migrations")
	downCmd := flag.Bool("down", false, "Rollback last migration")
	statusCmd := flag.Bool("status", false, "Show migration status")
	initCmd := flag.Bool("init", false, "Initialize the schema_migrations table")
	dryRun := flag.Bool("dry-run", false, "Print what would run without executing it")
	verbose := flag.Bool("verbose", false, "Log skipped migrations too")

	flag.Parse()

	connStr := database.GetConnectionString()
	db, err := database.Connect(connStr)
	if err != nil {
		log.Fatalf("[migrate] failed to connect to database: %v", err)
	}
	defer db.Close()

	migrator := database.NewMigrator(db,
		database.WithDryRun(*dryRun),
		database.WithVerbose(*verbose),
	)

	if err := migrator.Initialize(); err != nil {
		log.Fatalf("[migrate] failed to initialize schema_migrations: %v", err)
	}

	switch {
	case *initCmd:
		log.Println("[migrate] schema_migrations table ready")

	case *upCmd:
		if err := migrator.Up(); err != nil {
			log.Fatalf("[migrate] up failed: %v", err)
		}

	case *downCmd:
		if err := migrator.Down(); err != nil {
			log.Fatalf("[migrate] down failed: %v", err)
		}

	case *statusCmd:
		if err := migrator.Status(); err != nil {
			log.Fatalf("[migrate] status failed: %v", err)
		}

	default:
		fmt.Println("posengine migrate - database migration tool")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  migrate -init            Initialize schema_migrations table")
		fmt.Println("  migrate -up              Run all pending migrations")
		fmt.Println("  migrate -down            Rollback the last migration")
		fmt.Println("  migrate -status          Show migration status")
		fmt.Println("  migrate -dry-run         Combine with -up/-down to preview only")
		fmt.Println()
		fmt.Println("Connects using DATABASE_URL, or discrete DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME/DB_SSLMODE.")
		os.Exit(1)
	}
}
