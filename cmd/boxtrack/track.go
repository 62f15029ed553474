package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/boxtrack/internal/config"
	"github.com/banshee-data/boxtrack/internal/db"
	"github.com/banshee-data/boxtrack/internal/ingest"
	"github.com/banshee-data/boxtrack/internal/monitoring"
	"github.com/banshee-data/boxtrack/internal/report"
	"github.com/banshee-data/boxtrack/internal/security"
	"github.com/banshee-data/boxtrack/internal/track"
	"github.com/banshee-data/boxtrack/internal/version"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot/vg"
)

// cameraResult is the outcome of resolving one camera's stream.
type cameraResult struct {
	stream  ingest.Stream
	objects []*track.TrackedObject
	stats   track.Stats
	runID   string
}

func runTrack(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("track", flag.ContinueOnError)
	var (
		configPath   = fs.String("config", "", "tuning config JSON (defaults built in)")
		inPath       = fs.String("in", "", "detection log file (.json, .jsonl, .ndjson)")
		dbPath       = fs.String("db", "", "SQLite database to read the detection log from and store runs in")
		camera       = fs.String("camera", "", "only track this camera")
		outPath      = fs.String("out", "-", "report output path, - for stdout")
		timelinePath = fs.String("timeline", "", "write an HTML timeline chart to this path")
		plotPath     = fs.String("plot", "", "write a PNG trajectory plot to this path")
		save         = fs.Bool("save", false, "store the run in -db")
		sortRecords  = fs.Bool("sort", false, "sort records by frame index or time before tracking")
		verbose      = fs.Bool("v", false, "log every frame")

		iou         = fs.Float64("iou", 0, "override iou_threshold")
		maxTimeGap  = fs.Float64("max-time-gap", 0, "override max_time_gap (seconds)")
		maxFrameGap = fs.Int("max-frame-gap", 0, "override max_frame_gap")
		assignment  = fs.String("assignment", "", "override assignment (greedy or hungarian)")
		frameRate   = fs.Float64("frame-rate", 0, "override frame_rate used when records carry no timestamp")
		minLifetime = fs.Float64("min-lifetime", 0, "override min_lifetime_seconds")
		minDets     = fs.Int("min-detections", 0, "override min_detections")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" && *dbPath == "" {
		return fmt.Errorf("track needs -in or -db")
	}
	if *save && *dbPath == "" {
		return fmt.Errorf("-save needs -db")
	}
	monitoring.SetVerbose(*verbose)

	tuning := config.DefaultTuningConfig()
	if *configPath != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(*configPath); err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "iou":
			tuning.IoUThreshold = iou
		case "max-time-gap":
			tuning.MaxTimeGap = maxTimeGap
		case "max-frame-gap":
			tuning.MaxFrameGap = maxFrameGap
		case "assignment":
			tuning.Assignment = assignment
		case "frame-rate":
			tuning.FrameRate = frameRate
		case "min-lifetime":
			tuning.MinLifetimeSeconds = minLifetime
		case "min-detections":
			tuning.MinDetections = minDets
		}
	})
	if err := tuning.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	resolverCfg := track.ResolverConfigFromTuning(tuning)
	filter := report.FilterFromTuning(tuning)

	var database *db.DB
	if *dbPath != "" {
		var err error
		if database, err = db.NewDB(*dbPath); err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer database.Close()
	}

	var records []ingest.Record
	var err error
	if *inPath != "" {
		records, err = ingest.LoadFile(*inPath)
	} else {
		records, err = database.DetectionRecords(ctx, *camera)
	}
	if err != nil {
		return err
	}
	if *sortRecords {
		ingest.SortRecords(records)
	}

	streams, err := ingest.Split(records, tuning.GetFrameRate())
	if err != nil {
		return err
	}
	if *camera != "" {
		streams = selectCamera(streams, *camera)
		if len(streams) == 0 {
			return fmt.Errorf("no records for camera %q", *camera)
		}
	}
	log.Printf("✓ Loaded %d records across %d camera(s)", len(records), len(streams))

	results, err := resolveStreams(ctx, resolverCfg, streams)
	if err != nil {
		return err
	}

	if *save {
		runs := database.Runs()
		for i := range results {
			res := &results[i]
			tr := &db.TrackingRun{
				Camera:      res.stream.Camera,
				Params:      db.NewRunParams(resolverCfg),
				ToolVersion: version.String(),
				Stats:       res.stats,
			}
			if err := runs.SaveRun(ctx, tr, res.objects); err != nil {
				return err
			}
			res.runID = tr.RunID
			log.Printf("✓ Saved run %s for %s", tr.RunID, tr.Camera)
		}
	}

	docs := make([]report.Document, len(results))
	for i, res := range results {
		docs[i] = report.NewDocument(res.stream.Camera, res.stats, res.objects, filter)
		docs[i].RunID = res.runID
		log.Printf("✓ %s: %d frames, %d detections, %d objects (%d reported)",
			res.stream.Camera, res.stats.Frames, res.stats.DetectionsAccepted,
			res.stats.ObjectsCreated, len(docs[i].Objects))
	}

	if err := writeOutput(*outPath, stdout, func(w io.Writer) error {
		return report.WriteJSON(w, docs)
	}); err != nil {
		return err
	}

	cameras := make([]string, len(results))
	for i, res := range results {
		cameras[i] = res.stream.Camera
	}
	timelinePaths := cameraPaths(*timelinePath, cameras)
	plotPaths := cameraPaths(*plotPath, cameras)
	for i, res := range results {
		kept := filter.Apply(res.objects)
		if *timelinePath != "" {
			path := timelinePaths[i]
			if err := writeOutput(path, stdout, func(w io.Writer) error {
				return report.RenderTimeline(w, res.stream.Camera, kept)
			}); err != nil {
				return err
			}
			log.Printf("✓ Timeline written to %s", path)
		}
		if *plotPath != "" {
			path := plotPaths[i]
			if err := writeOutput(path, stdout, func(w io.Writer) error {
				return report.PlotTrajectories(w, res.stream.Camera, kept, 10*vg.Inch, 6*vg.Inch)
			}); err != nil {
				return err
			}
			log.Printf("✓ Trajectory plot written to %s", path)
		}
	}
	return nil
}

// resolveStreams runs one resolver per camera concurrently. Results keep
// the order of streams. An ordering violation in any camera fails the run.
func resolveStreams(ctx context.Context, cfg track.ResolverConfig, streams []ingest.Stream) ([]cameraResult, error) {
	results := make([]cameraResult, len(streams))
	g, ctx := errgroup.WithContext(ctx)
	for i := range streams {
		g.Go(func() error {
			s := streams[i]
			r, err := track.NewResolver(cfg)
			if err != nil {
				return err
			}
			for _, f := range s.Frames {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := r.ProcessFrame(f); err != nil {
					return fmt.Errorf("camera %s: %w", s.Camera, err)
				}
			}
			results[i] = cameraResult{stream: s, objects: r.Finalize(), stats: r.Stats()}
			if n := len(r.Rejections()); n > 0 {
				log.Printf("camera %s: %d malformed detections skipped", s.Camera, n)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func selectCamera(streams []ingest.Stream, camera string) []ingest.Stream {
	for _, s := range streams {
		if s.Camera == camera {
			return []ingest.Stream{s}
		}
	}
	return nil
}

// cameraPaths derives one output path per camera from path. With several
// cameras it inserts "-<camera>" before the extension, and a numeric suffix
// when two camera ids sanitize to the same name.
func cameraPaths(path string, cameras []string) []string {
	paths := make([]string, len(cameras))
	if len(cameras) <= 1 || path == "-" {
		for i := range paths {
			paths[i] = path
		}
		return paths
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	used := make(map[string]bool, len(cameras))
	for i, camera := range cameras {
		name := security.SanitizeFilename(camera)
		p := base + "-" + name + ext
		for n := 2; used[p]; n++ {
			p = fmt.Sprintf("%s-%s-%d%s", base, name, n, ext)
		}
		used[p] = true
		paths[i] = p
	}
	return paths
}

// writeOutput writes to stdout for "-", otherwise to a new file at path.
func writeOutput(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "-" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
