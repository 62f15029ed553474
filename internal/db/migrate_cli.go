package db

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"log"
	"strings"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching. in is
// read for the force confirmation prompt; status output goes to out.
func RunMigrateCommand(args []string, dbPath string, in io.Reader, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return fmt.Errorf("missing migrate action")
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(out)
		return nil
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		return err
	}

	// Open without running schema initialization; migrations manage the schema.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action {
	case "up":
		return handleMigrateUp(database, migrationsFS)
	case "down":
		return handleMigrateDown(database, migrationsFS)
	case "status":
		return handleMigrateStatus(database, migrationsFS, out)
	case "version":
		if len(args) < 2 {
			return fmt.Errorf("usage: boxtrack migrate version <version_number>")
		}
		return handleMigrateVersion(database, migrationsFS, args[1])
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: boxtrack migrate force <version_number>")
		}
		return handleMigrateForce(database, migrationsFS, args[1], in, out)
	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action %q", action)
	}
}

// handleMigrateUp applies all pending migrations
func handleMigrateUp(database *DB, migrationsFS fs.FS) error {
	log.Printf("Running migrations...")
	if err := database.MigrateUp(migrationsFS); err != nil {
		return err
	}
	log.Println("✓ All migrations applied successfully")

	version, dirty, _ := database.MigrateVersion(migrationsFS)
	log.Printf("Current version: %d (dirty: %v)", version, dirty)
	return nil
}

// handleMigrateDown rolls back one migration
func handleMigrateDown(database *DB, migrationsFS fs.FS) error {
	log.Printf("Rolling back one migration...")
	if err := database.MigrateDown(migrationsFS); err != nil {
		return err
	}
	log.Println("✓ Migration rolled back successfully")

	version, dirty, _ := database.MigrateVersion(migrationsFS)
	log.Printf("Current version: %d (dirty: %v)", version, dirty)
	return nil
}

// handleMigrateStatus displays the current migration status
func handleMigrateStatus(database *DB, migrationsFS fs.FS, out io.Writer) error {
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	latest, err := GetLatestMigrationVersion(migrationsFS)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", version)
	fmt.Fprintf(out, "Latest available: %d\n", latest)
	fmt.Fprintf(out, "Dirty: %v\n", dirty)

	switch {
	case dirty:
		fmt.Fprintln(out, "\n⚠️  WARNING: Database is in a dirty state!")
		fmt.Fprintln(out, "A migration failed mid-execution. Inspect the database, fix it, then run:")
		fmt.Fprintln(out, "  boxtrack migrate force <version>")
	case version < latest:
		fmt.Fprintf(out, "\n⚠️  Database is %d version(s) behind. Run 'boxtrack migrate up' to update.\n", latest-version)
	default:
		fmt.Fprintln(out, "\n✓ Database is up to date!")
	}
	return nil
}

// handleMigrateVersion migrates to a specific version
func handleMigrateVersion(database *DB, migrationsFS fs.FS, versionStr string) error {
	var targetVersion uint
	if _, err := fmt.Sscanf(versionStr, "%d", &targetVersion); err != nil {
		return fmt.Errorf("invalid version number: %s", versionStr)
	}

	log.Printf("Migrating to version %d...", targetVersion)
	if err := database.MigrateTo(migrationsFS, targetVersion); err != nil {
		return err
	}
	log.Printf("✓ Migrated to version %d successfully", targetVersion)
	return nil
}

// handleMigrateForce forces the migration version (recovery only)
func handleMigrateForce(database *DB, migrationsFS fs.FS, versionStr string, in io.Reader, out io.Writer) error {
	var forceVersion int
	if _, err := fmt.Sscanf(versionStr, "%d", &forceVersion); err != nil {
		return fmt.Errorf("invalid version number: %s", versionStr)
	}

	fmt.Fprintf(out, "⚠️  WARNING: Forcing migration version to %d\n", forceVersion)
	fmt.Fprintln(out, "This should only be used to recover from a dirty migration state.")
	fmt.Fprint(out, "Continue? [y/N]: ")

	response, _ := bufio.NewReader(in).ReadString('\n')
	response = strings.TrimSpace(response)
	if response != "y" && response != "Y" {
		log.Println("Aborted")
		return nil
	}

	if err := database.MigrateForce(migrationsFS, forceVersion); err != nil {
		return err
	}
	log.Printf("✓ Migration version forced to %d", forceVersion)
	return nil
}

// PrintMigrateHelp displays the help message for the migrate command
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Database Migration Commands

Usage: boxtrack migrate [-db path] <command> [options]

Commands:
  up              Apply all pending migrations
  down            Rollback one migration
  status          Show current migration status and version
  version <N>     Migrate to specific version N
  force <N>       Force migration version to N (recovery only)
  help            Show this help message

Examples:
  boxtrack migrate up
  boxtrack migrate -db detections.db status
  boxtrack migrate version 1
`)
}
