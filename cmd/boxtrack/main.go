// Command boxtrack assigns persistent identities to per-frame bounding-box
// detections.
//
// Usage:
//
//	boxtrack track   [-config tuning.json] (-in log.json | -db detections.db) [-out objects.json]
//	boxtrack import  -db detections.db -in log.json
//	boxtrack runs    -db detections.db [list | show <run-id> | delete <run-id>]
//	boxtrack migrate -db detections.db <up|down|status|version N|force N|help>
//	boxtrack version
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatalf("boxtrack: %v", err)
	}
}

// run dispatches a subcommand. Reports and listings go to stdout; progress
// goes through the log package.
func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) < 1 {
		printUsage(stdout)
		return fmt.Errorf("missing command")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "track":
		return runTrack(ctx, rest, stdout)
	case "import":
		return runImport(ctx, rest)
	case "runs":
		return runRuns(ctx, rest, stdout)
	case "migrate":
		return runMigrate(rest, stdin, stdout)
	case "version":
		return runVersion(stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stdout)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `boxtrack - IoU identity tracking for bounding-box detection logs

Commands:
  track     Resolve object identities from a detection log
  import    Load a detection log file into the database
  runs      List, show or delete stored tracking runs
  migrate   Manage the database schema
  version   Print version information

Run 'boxtrack <command> -h' for command flags.
`)
}
