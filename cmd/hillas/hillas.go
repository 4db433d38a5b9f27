// Command hillas runs the full image analysis chain over an event
// file: cleaning, Hillas parameterisation, and stereo reconstruction,
// writing the products to a sqlite results database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/badpixels"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/camera"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/cleaning"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/config"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/db"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/monitor"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/pipeline"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/source"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/stereo"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/storage/sqlite"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/version"
)

var (
	eventsFile    = flag.String("events", "", "input event file (.jsonl)")
	configFile    = flag.String("config", "", "analysis config file (.json); defaults apply when omitted")
	dbFile        = flag.String("db", "results.db", "path to the sqlite results database")
	migrationsDir = flag.String("migrations", "migrations", "path to the schema migrations directory")
	obsID         = flag.Int64("obs", 0, "observation ID for this run")
	workers       = flag.Int("workers", runtime.NumCPU(), "number of parallel event workers")
	reportFile    = flag.String("report", "", "optional HTML run report output path")
)

// defaultArray places two MAGIC-sized telescopes on an east-west
// baseline, used when the config file does not define the array.
func defaultArray() map[int]stereo.Position {
	return map[int]stereo.Position{
		1: {X: -42.5, Y: 0},
		2: {X: 42.5, Y: 0},
	}
}

func defaultCamera() (*camera.Geometry, error) {
	// 18 rings of 30 mm hexagonal pixels behind a 17 m reflector.
	return camera.Hexagonal("magic", 18, 0.03, 17.0)
}

func main() {
	flag.Parse()
	log.Printf("hillas %s", version.String())
	if *eventsFile == "" {
		flag.Usage()
		log.Fatal("missing required -events flag")
	}

	cfg := config.DefaultAnalysisConfig()
	if *configFile != "" {
		loaded, err := config.LoadAnalysisConfig(*configFile)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	if err := runAnalysis(cfg); err != nil {
		log.Fatal(err)
	}
}

func runAnalysis(cfg *config.AnalysisConfig) error {
	database, err := db.NewDB(*dbFile)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if err := database.MigrateUp(*migrationsDir); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	src, err := source.Open(*eventsFile)
	if err != nil {
		return fmt.Errorf("open events: %w", err)
	}
	defer src.Close()

	proc, err := buildProcessor(cfg)
	if err != nil {
		return err
	}

	runStore := sqlite.NewRunStore(database.DB)
	hillasStore := sqlite.NewHillasStore(database.DB)
	stereoStore := sqlite.NewStereoStore(database.DB)
	proc.Hillas = hillasStore
	proc.Stereo = stereoStore

	run := &sqlite.Run{
		ObsID:        *obsID,
		SourceFile:   *eventsFile,
		StereoMethod: cfg.GetStereoMethod(),
	}
	if err := runStore.InsertRun(run); err != nil {
		return err
	}
	proc.RunID = run.RunID
	proc.ObsID = *obsID
	log.Printf("run %s started: obs=%d method=%s workers=%d",
		run.RunID, *obsID, cfg.GetStereoMethod(), *workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	stats, err := proc.Run(ctx, src, *workers)
	if err != nil {
		return fmt.Errorf("run %s: %w", run.RunID, err)
	}

	if err := runStore.FinishRun(run.RunID, stats.EventsProcessed); err != nil {
		return err
	}
	log.Printf("run %s finished in %s: read=%d processed=%d duplicates=%d hillas=%d stereo=%d",
		run.RunID, time.Since(start).Round(time.Millisecond),
		stats.EventsRead, stats.EventsProcessed, stats.Duplicates,
		stats.HillasWritten, stats.StereoWritten)

	if *reportFile != "" {
		recs, err := stereoStore.ListByRun(run.RunID)
		if err != nil {
			return err
		}
		stored, err := runStore.GetRun(run.RunID)
		if err != nil {
			return err
		}
		if err := monitor.WriteRunReport(*reportFile, stored, recs); err != nil {
			return err
		}
		log.Printf("report written to %s", *reportFile)
	}
	return nil
}

// buildProcessor wires telescopes from the config. Telescopes default
// to a two-telescope array with the standard camera when the config
// has no telescope sections.
func buildProcessor(cfg *config.AnalysisConfig) (*pipeline.Processor, error) {
	positions := defaultArray()
	if len(cfg.Telescopes) > 0 {
		positions = make(map[int]stereo.Position)
		for key, tc := range cfg.Telescopes {
			id, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("telescope key %q: %w", key, err)
			}
			var pos stereo.Position
			if tc != nil {
				if tc.PositionX != nil {
					pos.X = *tc.PositionX
				}
				if tc.PositionY != nil {
					pos.Y = *tc.PositionY
				}
				if tc.PositionZ != nil {
					pos.Z = *tc.PositionZ
				}
			}
			positions[id] = pos
		}
	}

	sharedCam, err := defaultCamera()
	if err != nil {
		return nil, err
	}

	calc, err := badpixels.NewCalculator(badpixels.Config{
		PedestalLevel:         cfg.GetPedestalLevel(),
		PedestalLevelVariance: cfg.GetPedestalLevelVariance(),
	})
	if err != nil {
		return nil, err
	}

	tels := make(map[int]*pipeline.Telescope)
	for id, pos := range positions {
		geom := sharedCam
		geomSource := "built-in hex grid"
		if tc := cfg.Telescope(id); tc != nil && tc.CameraFile != nil {
			geomSource = *tc.CameraFile
			raw, err := camera.LoadFile(*tc.CameraFile)
			if err != nil {
				return nil, fmt.Errorf("telescope %d: %w", id, err)
			}
			// Instrument files carry nominal pixel positions; correct for
			// the reflector's optical aberration before any moment math.
			geom, err = raw.Scale(1 / camera.MAGICAberration)
			if err != nil {
				return nil, fmt.Errorf("telescope %d: %w", id, err)
			}
		}

		cc := cfg.CleaningFor(id)
		engine, err := cleaning.NewEngine(geom, cleaning.Config{
			PictureThreshold:    cc.GetPictureThreshold(),
			BoundaryThreshold:   cc.GetBoundaryThreshold(),
			MaxTimeOffset:       cc.GetMaxTimeOffset(),
			MaxTimeDifference:   cc.GetMaxTimeDifference(),
			UseTime:             cc.GetUseTime(),
			UseSumTimeReference: cc.GetUseSumTimeReference(),
			FindHotPixels:       cc.GetFindHotPixels(),
			HotPixelFactor:      cc.GetHotPixelFactor(),
		})
		if err != nil {
			return nil, fmt.Errorf("telescope %d: %w", id, err)
		}

		log.Printf("telescope %d: camera %q (%d pixels, %s), position (%.1f, %.1f) m",
			id, geom.Name, geom.NumPixels(), geomSource, pos.X, pos.Y)

		tels[id] = &pipeline.Telescope{
			ID:        id,
			Geometry:  geom,
			Cleaner:   engine,
			BadPixels: calc,
			Position:  pos,
		}
	}

	var rec stereo.Reconstructor
	switch cfg.GetStereoMethod() {
	case "planefit":
		rec = stereo.NewPlaneFitter()
	default:
		rec = stereo.NewIntersector()
	}

	return &pipeline.Processor{
		Telescopes:    tels,
		Reconstructor: rec,
		Array:         stereo.ArrayGeometry{Positions: positions},
	}, nil
}
