package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"text/tabwriter"

	"github.com/banshee-data/boxtrack/internal/db"
	"github.com/banshee-data/boxtrack/internal/ingest"
	"github.com/banshee-data/boxtrack/internal/report"
	"github.com/banshee-data/boxtrack/internal/version"
)

func runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	dbPath := fs.String("db", "", "SQLite database path")
	inPath := fs.String("in", "", "detection log file (.json, .jsonl, .ndjson)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" || *inPath == "" {
		return errors.New("import needs -db and -in")
	}

	records, err := ingest.LoadFile(*inPath)
	if err != nil {
		return err
	}
	database, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer database.Close()

	n, err := database.InsertDetectionRecords(ctx, records)
	if err != nil {
		return err
	}
	log.Printf("✓ Imported %d records from %s", n, *inPath)
	return nil
}

func runRuns(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	dbPath := fs.String("db", "", "SQLite database path")
	camera := fs.String("camera", "", "only list runs for this camera")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return errors.New("runs needs -db")
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer database.Close()
	store := database.Runs()

	action := "list"
	rest := fs.Args()
	if len(rest) > 0 {
		action, rest = rest[0], rest[1:]
	}

	switch action {
	case "list":
		runs, err := store.ListRuns(ctx, *camera)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN ID\tCAMERA\tCREATED\tFRAMES\tDETECTIONS\tOBJECTS\tASSIGNMENT")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
				r.RunID, r.Camera, r.CreatedAt.Format("2006-01-02 15:04:05"),
				r.Stats.Frames, r.Stats.DetectionsAccepted, r.Stats.ObjectsCreated, r.Params.Assignment)
		}
		return tw.Flush()

	case "show":
		if len(rest) != 1 {
			return errors.New("usage: boxtrack runs -db PATH show <run-id>")
		}
		run, err := store.GetRun(ctx, rest[0])
		if err != nil {
			return err
		}
		objs, err := store.RunObjects(ctx, run.RunID)
		if err != nil {
			return err
		}
		doc := report.NewDocument(run.Camera, run.Stats, objs, report.Filter{})
		doc.RunID = run.RunID
		return report.WriteJSON(stdout, []report.Document{doc})

	case "delete":
		if len(rest) != 1 {
			return errors.New("usage: boxtrack runs -db PATH delete <run-id>")
		}
		if err := store.DeleteRun(ctx, rest[0]); err != nil {
			return err
		}
		log.Printf("✓ Deleted run %s", rest[0])
		return nil

	default:
		return fmt.Errorf("unknown runs action %q (want list, show or delete)", action)
	}
}

func runMigrate(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbPath := fs.String("db", "", "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return errors.New("migrate needs -db")
	}
	return db.RunMigrateCommand(fs.Args(), *dbPath, stdin, stdout)
}

func runVersion(stdout io.Writer) error {
	_, err := fmt.Fprintln(stdout, version.String())
	return err
}
