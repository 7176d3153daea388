package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/huangsam/tzcluster/schema"

	"github.com/olekukonko/tablewriter"
)

// PrintRegions outputs the region table used for mapping.
func PrintRegions(regions []schema.RegionCandidate, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, regions)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVWithHeader(w, []string{"name", "offset", "work_start", "work_end"}, func(cw *csv.Writer) error {
				for _, r := range regions {
					rec := []string{
						r.Name,
						strconv.FormatFloat(r.Offset, 'f', -1, 64),
						strconv.FormatFloat(r.WorkStart, 'f', -1, 64),
						strconv.FormatFloat(r.WorkEnd, 'f', -1, 64),
					}
					if err := cw.Write(rec); err != nil {
						return err
					}
				}
				return nil
			})
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRegionTable(w, regions)
		}, "Wrote table")
	}
}

// writeRegionTable shows each region's local window and where it lands in UTC.
func writeRegionTable(w io.Writer, regions []schema.RegionCandidate) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Region", "Offset", "Local Window", "UTC Window"})

	var data [][]string
	for _, r := range regions {
		data = append(data, []string{
			r.Name,
			formatOffset(r.Offset),
			fmt.Sprintf("%s-%s", formatHour(r.WorkStart), formatHour(r.WorkEnd)),
			fmt.Sprintf("%s-%s", formatHour(r.WorkStart-r.Offset), formatHour(r.WorkEnd-r.Offset)),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d regions\n", len(regions))
	return err
}
