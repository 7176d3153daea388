package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/huangsam/tzcluster/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintRunResult outputs one analysis run, dispatching based on the output format configured.
func PrintRunResult(result *schema.RunResult, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, fmtPercent := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, result)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeAssignmentsCSV(w, result.Assignments, fmtFloat)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRunText(w, result, cfg, fmtPercent, duration)
		}, "Wrote table")
	}
	return nil
}

// writeRunText renders the human-readable report of a run.
func writeRunText(w io.Writer, result *schema.RunResult, cfg *contract.Config, fmtPercent func(float64) string, duration time.Duration) error {
	run := result.Run
	if _, err := fmt.Fprintf(w, "🌍 Run %s: %d records, %d valid, %d dropped\n\n",
		run.RunID, run.TotalRecords, run.ValidRecords, run.DroppedRecords); err != nil {
		return err
	}

	if err := writeAssignmentTable(w, result.Assignments, cfg, fmtPercent); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	summaries := result.Summaries
	title := "Regions in this run"
	if len(result.Stored) > 0 {
		summaries = result.Stored
		title = "Stored regions after merge"
		if result.DryRun {
			title = "Stored regions after merge (preview)"
		}
	}
	if _, err := fmt.Fprintf(w, "%s\n", title); err != nil {
		return err
	}
	if err := writeSummaryTable(w, summaries, fmtPercent); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "Posts per UTC hour\n"); err != nil {
		return err
	}
	if err := writeHistogram(w, result.Histogram, getHistogramBarWidth(cfg)); err != nil {
		return err
	}

	if result.Warning != "" {
		if _, err := fmt.Fprintf(w, "\n⚠️  %s\n", result.Warning); err != nil {
			return err
		}
	}
	if len(result.Rejected) > 0 {
		if _, err := fmt.Fprintf(w, "\nDropped %d records, first %d:\n", run.DroppedRecords, len(result.Rejected)); err != nil {
			return err
		}
		for _, r := range result.Rejected {
			label := r.PostID
			if label == "" {
				label = fmt.Sprintf("record %d", r.Record)
			}
			if _, err := fmt.Fprintf(w, "  - %s: %q\n", label, r.Value); err != nil {
				return err
			}
		}
	}

	status := fmt.Sprintf("Store backend: %s", cfg.StoreBackend)
	switch {
	case result.DryRun:
		status = "Dry run, nothing was committed"
	case !result.Committed:
		status = "Summaries were not persisted"
	}
	_, err := fmt.Fprintf(w, "\nAnalysis completed in %v (%d clusters, %d non-empty, %d iterations). %s\n",
		duration, run.Clusters, run.NonEmptyClusters, run.Iterations, status)
	return err
}

// writeAssignmentTable renders one row per non-empty cluster.
func writeAssignmentTable(w io.Writer, assignments []schema.ClusterAssignment, cfg *contract.Config, fmtPercent func(float64) string) error {
	table := tablewriter.NewWriter(w)

	headers := []string{"Cluster", "Peak UTC", "Local", "Region", "Confidence", "Label", "Posts"}
	if cfg.Alternatives > 0 {
		headers = append(headers, "Alternatives")
	}
	table.Header(headers)
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})

	nameWidth := getMaxTableNameWidth(cfg)
	var data [][]string
	for _, a := range assignments {
		row := []string{
			strconv.Itoa(a.ClusterID),
			formatHour(a.PeakHourUTC),
			formatHour(a.LocalHour),
			contract.ColorRegion(contract.TruncateText(a.Region, nameWidth)),
			fmtPercent(a.Confidence),
			contract.GetColorLabel(a.Confidence),
			strconv.Itoa(a.MemberCount),
		}
		if cfg.Alternatives > 0 {
			row = append(row, strings.Join(a.Alternatives, ", "))
		}
		data = append(data, row)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeAssignmentsCSV writes one record per non-empty cluster.
func writeAssignmentsCSV(w io.Writer, assignments []schema.ClusterAssignment, fmtFloat func(float64) string) error {
	header := []string{
		"cluster_id",
		"peak_hour_utc",
		"local_hour",
		"region",
		"confidence",
		"label",
		"member_count",
		"alternatives",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, a := range assignments {
			rec := []string{
				strconv.Itoa(a.ClusterID),
				fmtFloat(a.PeakHourUTC),
				fmtFloat(a.LocalHour),
				a.Region,
				fmtFloat(a.Confidence),
				contract.GetPlainLabel(a.Confidence),
				strconv.Itoa(a.MemberCount),
				strings.Join(a.Alternatives, "|"),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}
