package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/huangsam/tzcluster/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintSummaries outputs stored regional summaries in the configured format.
func PrintSummaries(summaries []schema.RegionalSummary, cfg *contract.Config) error {
	fmtFloat, fmtPercent := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, summaries)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeSummariesCSV(w, summaries, fmtFloat)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			if err := writeSummaryTable(w, summaries, fmtPercent); err != nil {
				return err
			}
			var posts int64
			for _, s := range summaries {
				posts += s.TotalPosts
			}
			_, err := fmt.Fprintf(w, "Showing %d regions (total posts: %d)\n", len(summaries), posts)
			return err
		}, "Wrote table")
	}
}

// writeSummaryTable renders the per-region rollup.
func writeSummaryTable(w io.Writer, summaries []schema.RegionalSummary, fmtPercent func(float64) string) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "Region", "Posts", "Avg Confidence", "Label", "Peaks UTC", "Updated"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for i, s := range summaries {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			contract.ColorRegion(s.Region),
			strconv.FormatInt(s.TotalPosts, 10),
			fmtPercent(s.AvgConfidence),
			contract.GetColorLabel(s.AvgConfidence),
			formatHours(s.PeakHoursUTC, " "),
			s.LastUpdated.Local().Format(contract.DateTimeFormat),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeSummariesCSV writes one record per region.
func writeSummariesCSV(w io.Writer, summaries []schema.RegionalSummary, fmtFloat func(float64) string) error {
	header := []string{"rank", "region_name", "total_posts", "avg_confidence", "label", "peak_hours_utc", "last_updated"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for i, s := range summaries {
			rec := []string{
				strconv.Itoa(i + 1),
				s.Region,
				strconv.FormatInt(s.TotalPosts, 10),
				fmtFloat(s.AvgConfidence),
				contract.GetPlainLabel(s.AvgConfidence),
				formatHours(s.PeakHoursUTC, "|"),
				s.LastUpdated.UTC().Format(contract.DateTimeFormat),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// PrintRuns outputs the recorded run history in the configured format.
func PrintRuns(runs []schema.RunRecord, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, runs)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRunsCSV(w, runs)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRunsTable(w, runs)
		}, "Wrote table")
	}
}

func writeRunsTable(w io.Writer, runs []schema.RunRecord) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Run", "Started", "Duration", "Records", "Valid", "Dropped", "Clusters", "Iterations", "Converged", "Seed"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, r := range runs {
		data = append(data, []string{
			contract.TruncateText(r.RunID, 12),
			r.StartedAt.Local().Format(contract.DateTimeFormat),
			r.CompletedAt.Sub(r.StartedAt).String(),
			strconv.Itoa(r.TotalRecords),
			strconv.Itoa(r.ValidRecords),
			strconv.Itoa(r.DroppedRecords),
			fmt.Sprintf("%d/%d", r.NonEmptyClusters, r.Clusters),
			strconv.Itoa(r.Iterations),
			strconv.FormatBool(r.Converged),
			strconv.FormatUint(r.Seed, 10),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func writeRunsCSV(w io.Writer, runs []schema.RunRecord) error {
	header := []string{
		"run_id", "started_at", "completed_at", "total_records", "valid_records", "dropped_records",
		"clusters", "non_empty_clusters", "iterations", "converged", "seed", "config_params",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range runs {
			params := ""
			if r.ConfigParams != nil {
				data, err := json.Marshal(r.ConfigParams)
				if err != nil {
					return fmt.Errorf("failed to encode params of run %s: %w", r.RunID, err)
				}
				params = string(data)
			}
			rec := []string{
				r.RunID,
				r.StartedAt.UTC().Format(contract.DateTimeFormat),
				r.CompletedAt.UTC().Format(contract.DateTimeFormat),
				strconv.Itoa(r.TotalRecords),
				strconv.Itoa(r.ValidRecords),
				strconv.Itoa(r.DroppedRecords),
				strconv.Itoa(r.Clusters),
				strconv.Itoa(r.NonEmptyClusters),
				strconv.Itoa(r.Iterations),
				strconv.FormatBool(r.Converged),
				strconv.FormatUint(r.Seed, 10),
				params,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}
