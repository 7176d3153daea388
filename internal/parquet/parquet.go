// Package parquet provides data structures and functions for moving tzcluster
// data in and out of Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/huangsam/tzcluster/schema"
	"github.com/parquet-go/parquet-go"
)

// RegionalSummary represents one row of the regional_activity_clusters table.
type RegionalSummary struct {
	// RegionName is the unique key of the summary
	RegionName string `parquet:"region_name,snappy"`

	// TotalPosts is the cumulative number of posts attributed to the region
	TotalPosts int64 `parquet:"total_posts,snappy"`

	// AvgConfidence is the post-weighted mean confidence in [0, 1]
	AvgConfidence float64 `parquet:"avg_confidence,snappy"`

	// PeakHoursUTC are the cluster peaks from the most recent run
	PeakHoursUTC []float64 `parquet:"peak_hours_utc,list"`

	// LastUpdated is when the row last changed (stored as TIMESTAMP with nanosecond precision)
	LastUpdated time.Time `parquet:"last_updated,snappy"`
}

// Run represents a single analysis run with metadata.
// This struct maps to the tzcluster_runs database table.
type Run struct {
	RunID            string    `parquet:"run_id,snappy"`
	StartedAt        time.Time `parquet:"started_at,snappy"`
	CompletedAt      time.Time `parquet:"completed_at,snappy"`
	TotalRecords     int32     `parquet:"total_records,snappy"`
	ValidRecords     int32     `parquet:"valid_records,snappy"`
	DroppedRecords   int32     `parquet:"dropped_records,snappy"`
	Clusters         int32     `parquet:"clusters,snappy"`
	NonEmptyClusters int32     `parquet:"non_empty_clusters,snappy"`
	Iterations       int32     `parquet:"iterations,snappy"`
	Converged        bool      `parquet:"converged"`
	Seed             uint64    `parquet:"seed,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// Post is the columnar layout of an input dataset.
type Post struct {
	ID        string  `parquet:"id,snappy"`
	URI       *string `parquet:"uri,optional,snappy"`
	CreatedAt string  `parquet:"created_at,snappy"`
	Text      *string `parquet:"text,optional,snappy"`
}

// writeRows writes a slice of T to a new Parquet file, inferring the schema from T's tags.
func writeRows[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return file.Close()
}

// WriteSummariesParquet writes regional summaries to a Parquet file.
func WriteSummariesParquet(data []RegionalSummary, outputPath string) error {
	return writeRows(data, outputPath)
}

// WriteRunsParquet writes run records to a Parquet file.
func WriteRunsParquet(data []Run, outputPath string) error {
	return writeRows(data, outputPath)
}

// WritePostsParquet writes a post dataset to a Parquet file.
func WritePostsParquet(data []Post, outputPath string) error {
	return writeRows(data, outputPath)
}

// ReadPostsParquet reads every row of a post dataset.
func ReadPostsParquet(path string) ([]Post, error) {
	rows, err := parquet.ReadFile[Post](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file %s: %w", path, err)
	}
	return rows, nil
}

// ConvertSummaries converts schema.RegionalSummary to RegionalSummary for Parquet export.
func ConvertSummaries(records []schema.RegionalSummary) []RegionalSummary {
	result := make([]RegionalSummary, len(records))
	for i, record := range records {
		result[i] = RegionalSummary{
			RegionName:    record.Region,
			TotalPosts:    record.TotalPosts,
			AvgConfidence: record.AvgConfidence,
			PeakHoursUTC:  record.PeakHoursUTC,
			LastUpdated:   record.LastUpdated,
		}
	}
	return result
}

// ConvertRuns converts schema.RunRecord to Run for Parquet export.
func ConvertRuns(records []schema.RunRecord) []Run {
	result := make([]Run, len(records))
	for i, record := range records {
		var params *string
		if record.ConfigParams != nil {
			if data, err := json.Marshal(record.ConfigParams); err == nil {
				s := string(data)
				params = &s
			}
		}
		result[i] = Run{
			RunID:            record.RunID,
			StartedAt:        record.StartedAt,
			CompletedAt:      record.CompletedAt,
			TotalRecords:     int32(record.TotalRecords),
			ValidRecords:     int32(record.ValidRecords),
			DroppedRecords:   int32(record.DroppedRecords),
			Clusters:         int32(record.Clusters),
			NonEmptyClusters: int32(record.NonEmptyClusters),
			Iterations:       int32(record.Iterations),
			Converged:        record.Converged,
			Seed:             record.Seed,
			ConfigParams:     params,
		}
	}
	return result
}

// ConvertPosts turns Parquet rows into post records. The URI stands in for a missing ID.
func ConvertPosts(rows []Post) []schema.PostRecord {
	result := make([]schema.PostRecord, len(rows))
	for i, row := range rows {
		record := schema.PostRecord{ID: row.ID, CreatedAt: row.CreatedAt}
		if record.ID == "" && row.URI != nil {
			record.ID = *row.URI
		}
		if row.Text != nil {
			record.Text = *row.Text
		}
		result[i] = record
	}
	return result
}
