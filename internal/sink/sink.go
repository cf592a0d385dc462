// Package sink writes VTRIE's output tables to the conventional
// directory layout (§6), with optional Parquet archival and S3 upload
// mirroring the teacher's cron_archive.go Parquet-then-R2 pattern.
package sink

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gocarina/gocsv"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"

	"github.com/transitflow/vtrie/internal/aggregate"
	"github.com/transitflow/vtrie/internal/config"
	"github.com/transitflow/vtrie/internal/model"
)

type interpolatedCSV struct {
	RouteID      string  `csv:"route_id"`
	Direction    string  `csv:"direction"`
	TripID       string  `csv:"trip_id"`
	Idx          int     `csv:"idx"`
	StopSequence int     `csv:"stop_sequence"`
	StopID       string  `csv:"stop_id"`
	TravelType   int     `csv:"travel_type"`
	ProjSpeedKmh float64 `csv:"proj_speed_kmh"`
	DistM        float64 `csv:"dist_m"`
	DistFutrM    float64 `csv:"dist_futr_m"`
	OffEarr      string  `csv:"off_earr"`
	SchedArr     string  `csv:"sched_arr"`
	OffArrDifS   float64 `csv:"off_arrdif_s"`
	PercChge     float64 `csv:"perc_chge"`
	PerfRate     string  `csv:"perf_rate"`
	LastOfGroup  bool    `csv:"last_of_group"`
}

type tripStopCSV struct {
	RouteID      string  `csv:"route_id"`
	Direction    string  `csv:"direction"`
	TripID       string  `csv:"trip_id"`
	StopSequence int     `csv:"stop_sequence"`
	StopID       string  `csv:"stop_id"`
	SchedArr     string  `csv:"sched_arr"`
	Idx          int     `csv:"idx"`
	Satis        int     `csv:"satis"`
	Unsatis      int     `csv:"unsatis"`
	PrcObsSat    float64 `csv:"prc_obs_sat"`
	PrcObsUns    float64 `csv:"prc_obs_uns"`
	AvgSpd       float64 `csv:"avg_spd"`
	AvgArrDif    float64 `csv:"avg_arrdif"`
	LastOffArr   string  `csv:"last_off_earr"`
	LastPerfRate string  `csv:"last_perf_rate"`
	TotalObs     int     `csv:"total_obs"`
}

type hourCSV struct {
	RouteID      string  `csv:"route_id"`
	Direction    string  `csv:"direction"`
	StopID       string  `csv:"stop_id"`
	StopSequence int     `csv:"stop_sequence"`
	RefHour      int     `csv:"ref_hr"`
	AvgSpd       float64 `csv:"avg_spd"`
	AvgArrDif    float64 `csv:"avg_arrdif"`
	PrcObsSat    float64 `csv:"prc_obs_sat"`
	PrcObsUns    float64 `csv:"prc_obs_uns"`
	SpdW         float64 `csv:"spd_w"`
	ArrdW        float64 `csv:"arrd_w"`
	PrcwSat      float64 `csv:"prcw_sat"`
	PrcwUns      float64 `csv:"prcw_uns"`
	CntTripIDs   int     `csv:"cnt_trip_ids"`
	AllObs       int     `csv:"all_obs"`
	ActSatP      float64 `csv:"act_sat_p"`
	ActUnsP      float64 `csv:"act_uns_p"`
}

type dayCSV struct {
	RouteID      string  `csv:"route_id"`
	Direction    string  `csv:"direction"`
	StopID       string  `csv:"stop_id"`
	StopSequence int     `csv:"stop_sequence"`
	AvgSpd       float64 `csv:"avg_spd"`
	AvgArrDif    float64 `csv:"avg_arrdif"`
	PrcObsSat    float64 `csv:"prc_obs_sat"`
	PrcObsUns    float64 `csv:"prc_obs_uns"`
	SpdW         float64 `csv:"spd_w"`
	ArrdW        float64 `csv:"arrd_w"`
	PrcwSat      float64 `csv:"prcw_sat"`
	PrcwUns      float64 `csv:"prcw_uns"`
	CntTripIDs   int     `csv:"cnt_trip_ids"`
	AllObs       int     `csv:"all_obs"`
	ActSatP      float64 `csv:"act_sat_p"`
	ActUnsP      float64 `csv:"act_uns_p"`
	Agglength    int     `csv:"agglength"`
	ListRefHr    string  `csv:"list_refhr"`
}

// ParquetTripStop is the archival schema for the per-trip level-1
// aggregate, written alongside the CSV for long-term storage the way
// the teacher archives raw positions (§6, cron_archive.go).
type ParquetTripStop struct {
	RouteID      string  `parquet:"route_id"`
	Direction    string  `parquet:"direction"`
	TripID       string  `parquet:"trip_id"`
	StopSequence int32   `parquet:"stop_sequence"`
	StopID       string  `parquet:"stop_id"`
	SchedArr     string  `parquet:"sched_arr"`
	Satis        int32   `parquet:"satis"`
	Unsatis      int32   `parquet:"unsatis"`
	AvgSpd       float64 `parquet:"avg_spd"`
	AvgArrDif    float64 `parquet:"avg_arrdif"`
	TotalObs     int32   `parquet:"total_obs"`
}

// WriteInterpolated writes C7's cleaned interpolated rows under
// 5_conformed/<date>/interpolated.csv (§6).
func WriteInterpolated(outputDir, date string, rows []model.InterpolatedRow) (string, error) {
	dir := filepath.Join(outputDir, "5_conformed", date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create 5_conformed directory")
	}
	path := filepath.Join(dir, "interpolated.csv")

	out := make([]interpolatedCSV, 0, len(rows))
	for _, r := range rows {
		out = append(out, interpolatedCSV{
			RouteID:      r.RouteID,
			Direction:    r.Direction,
			TripID:       r.TripID,
			Idx:          r.Idx,
			StopSequence: r.StopSequence,
			StopID:       r.StopID,
			TravelType:   int(r.TravelType),
			ProjSpeedKmh: r.ProjSpeedKmh,
			DistM:        r.DistM,
			DistFutrM:    r.DistFutrM,
			OffEarr:      formatTime(r.OffArr),
			SchedArr:     formatTime(r.SchedArr),
			OffArrDifS:   r.OffArrDifS,
			PercChge:     r.PercChge,
			PerfRate:     r.PerfRate.String(),
			LastOfGroup:  r.LastOfGroup,
		})
	}
	if err := writeCSV(path, &out); err != nil {
		return "", err
	}
	return path, nil
}

// WriteLevel1 writes the per-(trip,stop) aggregate under
// 6_analyses/<date>/trip_stop.csv (§6).
func WriteLevel1(outputDir, date string, rows []aggregate.TripStopRow) (string, error) {
	dir := filepath.Join(outputDir, "6_analyses", date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create 6_analyses directory")
	}
	path := filepath.Join(dir, "trip_stop.csv")

	out := make([]tripStopCSV, 0, len(rows))
	for _, r := range rows {
		out = append(out, tripStopCSV{
			RouteID:      r.RouteID,
			Direction:    r.Direction,
			TripID:       r.TripID,
			StopSequence: r.StopSequence,
			StopID:       r.StopID,
			SchedArr:     formatTime(r.SchedArr),
			Idx:          r.Idx,
			Satis:        r.Satis,
			Unsatis:      r.Unsatis,
			PrcObsSat:    r.PrcObsSat,
			PrcObsUns:    r.PrcObsUns,
			AvgSpd:       r.AvgSpd,
			AvgArrDif:    r.AvgArrDif,
			LastOffArr:   formatTime(r.LastOffArr),
			LastPerfRate: r.LastPerfRte.String(),
			TotalObs:     r.TotalObs,
		})
	}
	if err := writeCSV(path, &out); err != nil {
		return "", err
	}
	return path, nil
}

// WriteLevel2 writes the per-(route,stop,hour) aggregate under
// 7_requests/<date>/hourly.csv.
func WriteLevel2(outputDir, date string, rows []aggregate.HourRow) (string, error) {
	dir := filepath.Join(outputDir, "7_requests", date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create 7_requests directory")
	}
	path := filepath.Join(dir, "hourly.csv")

	out := make([]hourCSV, 0, len(rows))
	for _, r := range rows {
		out = append(out, hourCSV{
			RouteID: r.RouteID, Direction: r.Direction, StopID: r.StopID, StopSequence: r.StopSequence,
			RefHour: r.RefHour, AvgSpd: r.AvgSpd, AvgArrDif: r.AvgArrDif,
			PrcObsSat: r.PrcObsSat, PrcObsUns: r.PrcObsUns,
			SpdW: r.SpdW, ArrdW: r.ArrdW, PrcwSat: r.PrcwSat, PrcwUns: r.PrcwUns,
			CntTripIDs: r.CntTripIDs, AllObs: r.AllObs, ActSatP: r.ActSatP, ActUnsP: r.ActUnsP,
		})
	}
	if err := writeCSV(path, &out); err != nil {
		return "", err
	}
	return path, nil
}

// WriteLevel3 writes the per-(route,stop) daily aggregate under
// 7_requests/<date>/daily.csv.
func WriteLevel3(outputDir, date string, rows []aggregate.DayRow) (string, error) {
	dir := filepath.Join(outputDir, "7_requests", date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create 7_requests directory")
	}
	path := filepath.Join(dir, "daily.csv")

	out := make([]dayCSV, 0, len(rows))
	for _, r := range rows {
		out = append(out, dayCSV{
			RouteID: r.RouteID, Direction: r.Direction, StopID: r.StopID, StopSequence: r.StopSequence,
			AvgSpd: r.AvgSpd, AvgArrDif: r.AvgArrDif, PrcObsSat: r.PrcObsSat, PrcObsUns: r.PrcObsUns,
			SpdW: r.SpdW, ArrdW: r.ArrdW, PrcwSat: r.PrcwSat, PrcwUns: r.PrcwUns,
			CntTripIDs: r.CntTripIDs, AllObs: r.AllObs, ActSatP: r.ActSatP, ActUnsP: r.ActUnsP,
			Agglength: r.Agglength, ListRefHr: formatHours(r.ListRefHr),
		})
	}
	if err := writeCSV(path, &out); err != nil {
		return "", err
	}
	return path, nil
}

func writeCSV[T any](path string, rows *[]T) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(rows, f); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatHours(hrs []int) string {
	s := ""
	for i, h := range hrs {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%d", h)
	}
	return s
}

// ArchiveLevel1 uploads the level-1 aggregate as Parquet to the
// configured S3-compatible endpoint, mirroring the teacher's
// runArchivePositions (cron_archive.go) almost verbatim but over
// aggregate rows instead of raw positions. A no-op if archival isn't
// configured.
func ArchiveLevel1(ctx context.Context, cfg config.Config, date string, rows []aggregate.TripStopRow) error {
	if !cfg.ArchiveEnabled() {
		return nil
	}
	if len(rows) == 0 {
		log.Printf("[archive] no level-1 rows for %s — skipping", date)
		return nil
	}

	client := s3.New(s3.Options{
		BaseEndpoint: &cfg.ArchiveS3Endpoint,
		Region:       "auto",
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.ArchiveS3AccessKey, cfg.ArchiveS3SecretKey, ""),
	})

	key := fmt.Sprintf("trip_stop/%s.parquet", date)

	out := make([]ParquetTripStop, 0, len(rows))
	for _, r := range rows {
		out = append(out, ParquetTripStop{
			RouteID:      r.RouteID,
			Direction:    r.Direction,
			TripID:       r.TripID,
			StopSequence: int32(r.StopSequence),
			StopID:       r.StopID,
			SchedArr:     formatTime(r.SchedArr),
			Satis:        int32(r.Satis),
			Unsatis:      int32(r.Unsatis),
			AvgSpd:       r.AvgSpd,
			AvgArrDif:    r.AvgArrDif,
			TotalObs:     int32(r.TotalObs),
		})
	}

	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[ParquetTripStop](&buf)
	if _, err := writer.Write(out); err != nil {
		return errors.Wrap(err, "write parquet rows")
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, "close parquet writer")
	}

	body := buf.Bytes()
	contentType := "application/vnd.apache.parquet"
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &cfg.ArchiveS3Bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
		Metadata: map[string]string{
			"rows": fmt.Sprintf("%d", len(out)),
			"date": date,
		},
	})
	if err != nil {
		return errors.Wrap(err, "upload to archive bucket")
	}

	log.Printf("[archive] archived %d trip-stop rows (%.2f MB) to %s", len(out), float64(len(body))/1024/1024, key)
	return nil
}
