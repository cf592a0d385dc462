package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/transitflow/vtrie/internal/catalog"
	"github.com/transitflow/vtrie/internal/config"
	"github.com/transitflow/vtrie/internal/errs"
	"github.com/transitflow/vtrie/internal/executor"
	"github.com/transitflow/vtrie/internal/fixtable"
	"github.com/transitflow/vtrie/internal/geo"
	"github.com/transitflow/vtrie/internal/manifest"
	"github.com/transitflow/vtrie/internal/sink"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		log.Println("[main] shutdown requested, cancelling outstanding tasks")
		cancel()
	}()

	os.Exit(run(ctx, cfg))
}

func run(ctx context.Context, cfg config.Config) int {
	start := time.Now()
	log.Printf("[main] VTRIE run for %s (wkid=%d, workers=%d)", cfg.Date, cfg.WKID, cfg.Workers)

	tripRoutes, err := catalog.LoadTripRoutes(cfg.GTFSDir)
	if err != nil {
		log.Printf("FATAL: load trips.txt: %v", err)
		return 3
	}

	fixPath := filepath.Join(cfg.InputDir, "GTFSRT_"+cfg.Date+".csv")
	fixesByRoute, loadErrs, err := fixtable.Load(fixPath, tripRoutes)
	if err != nil {
		log.Printf("FATAL: load fix table: %v", err)
		return 1
	}
	if len(loadErrs) > 0 {
		log.Printf("[main] %d fix rows skipped on load (bad timestamp or unknown trip)", len(loadErrs))
	}
	if len(fixesByRoute) == 0 {
		log.Printf("FATAL: no usable fixes for %s", cfg.Date)
		return 1
	}

	loader := &catalog.Loader{
		GTFSDir:    cfg.GTFSDir,
		StagingDir: filepath.Join(cfg.OutputDir, "2_staging"),
		WKID:       geo.WKID(cfg.WKID),
	}

	result, err := executor.Run(ctx, loader, geo.WKID(cfg.WKID), cfg.MaxSnapDistM, cfg.Workers, fixesByRoute)
	if err != nil {
		log.Printf("FATAL: executor: %v", err)
		return 3
	}

	for _, o := range result.Outcomes {
		if o.Failed {
			log.Printf("[executor] route %s: FAILED: %v", o.Route, o.FailErr)
			continue
		}
		log.Printf("[executor] route %s: %d fixes, retention %.2f, %d rows emitted, %d errors",
			o.Route, o.Retention.Input, o.Retention.Fraction(), o.Cleanup.Kept(), errCount(o.ErrCounts))
	}

	exitCode := manifest.ExitCode(result.Outcomes)

	if !cfg.SkipSink {
		if _, err := manifest.Write(cfg.OutputDir, cfg.Date, result.Outcomes); err != nil {
			log.Printf("[main] write manifest: %v", err)
			exitCode = maxInt(exitCode, 2)
		}
		if _, err := sink.WriteInterpolated(cfg.OutputDir, cfg.Date, result.Interpolated); err != nil {
			log.Printf("[main] write interpolated rows: %v", err)
			exitCode = maxInt(exitCode, 2)
		}
		if _, err := sink.WriteLevel1(cfg.OutputDir, cfg.Date, result.Level1); err != nil {
			log.Printf("[main] write level-1 aggregate: %v", err)
			exitCode = maxInt(exitCode, 2)
		}
		if _, err := sink.WriteLevel2(cfg.OutputDir, cfg.Date, result.Level2); err != nil {
			log.Printf("[main] write level-2 aggregate: %v", err)
			exitCode = maxInt(exitCode, 2)
		}
		if _, err := sink.WriteLevel3(cfg.OutputDir, cfg.Date, result.Level3); err != nil {
			log.Printf("[main] write level-3 aggregate: %v", err)
			exitCode = maxInt(exitCode, 2)
		}
		if err := sink.ArchiveLevel1(ctx, cfg, cfg.Date, result.Level1); err != nil {
			log.Printf("[main] archive level-1 aggregate: %v", err)
		}
	} else {
		log.Println("[main] VTRIE_SKIP_SINK set — outputs not written")
	}

	log.Printf("[main] done in %s, exit code %d", time.Since(start), exitCode)
	return exitCode
}

func errCount(counts map[errs.Kind]int) int {
	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
