// Package config resolves the run parameters the external CLI driver (§6,
// out of scope) would otherwise pass as flags, reading them from the
// environment the way the teacher's main.go/db.go read DATABASE_URL —
// plus an optional .env file via godotenv for local runs, the same way
// minibarcelona3d/apps/api loads its Postgres DSN.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is VTRIE's resolved run configuration for one day's batch job.
type Config struct {
	InputDir  string // directory holding GTFSRT_YYYY-MM-DD.csv (§6)
	GTFSDir   string // static GTFS bundle directory (§6)
	OutputDir string // root of the 0_external.../7_requests layout (§6)
	Date      string // YYYY-MM-DD, the day being processed

	WKID            int
	MaxSnapDistM    float64
	Workers         int
	Timeout         time.Duration
	SkipSink        bool

	ArchiveS3Endpoint  string
	ArchiveS3Bucket    string
	ArchiveS3AccessKey string
	ArchiveS3SecretKey string
}

// Load reads VTRIE_* environment variables, loading .env first if present
// (the error godotenv.Load returns for a missing .env is ignored).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		InputDir:     os.Getenv("VTRIE_INPUT_DIR"),
		GTFSDir:      os.Getenv("VTRIE_GTFS_DIR"),
		OutputDir:    os.Getenv("VTRIE_OUTPUT_DIR"),
		Date:         os.Getenv("VTRIE_DATE"),
		WKID:         4326,
		MaxSnapDistM: 200,
		Workers:      runtime.NumCPU(),
		Timeout:      0,

		ArchiveS3Endpoint:  os.Getenv("VTRIE_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Bucket:    os.Getenv("VTRIE_ARCHIVE_S3_BUCKET"),
		ArchiveS3AccessKey: os.Getenv("VTRIE_ARCHIVE_S3_ACCESS_KEY"),
		ArchiveS3SecretKey: os.Getenv("VTRIE_ARCHIVE_S3_SECRET_KEY"),
	}

	if v := os.Getenv("VTRIE_WKID"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("parse VTRIE_WKID: %w", err)
		}
		cfg.WKID = n
	}
	if v := os.Getenv("VTRIE_MAX_SNAP_DIST_M"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("parse VTRIE_MAX_SNAP_DIST_M: %w", err)
		}
		cfg.MaxSnapDistM = f
	}
	if v := os.Getenv("VTRIE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("parse VTRIE_WORKERS: %w", err)
		}
		cfg.Workers = n
	}
	if v := os.Getenv("VTRIE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("parse VTRIE_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if v := os.Getenv("VTRIE_SKIP_SINK"); v == "1" || v == "true" {
		cfg.SkipSink = true
	}

	if cfg.InputDir == "" || cfg.GTFSDir == "" || cfg.OutputDir == "" || cfg.Date == "" {
		return cfg, fmt.Errorf("VTRIE_INPUT_DIR, VTRIE_GTFS_DIR, VTRIE_OUTPUT_DIR and VTRIE_DATE are required")
	}
	return cfg, nil
}

// ArchiveEnabled reports whether S3 archival is configured.
func (c Config) ArchiveEnabled() bool {
	return c.ArchiveS3Endpoint != "" && c.ArchiveS3Bucket != "" &&
		c.ArchiveS3AccessKey != "" && c.ArchiveS3SecretKey != ""
}
