package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/huangsam/tzcluster/internal/contract"
)

// writeWithFile opens the output target, hands it to writer and closes it again.
// An empty outputFile means stdout.
func writeWithFile(outputFile string, writer func(io.Writer) error, successMsg string) error {
	file, err := contract.SelectOutputFile(outputFile)
	if err != nil {
		return err
	}
	if file != os.Stdout {
		defer func() { _ = file.Close() }()
	}

	if err := writer(file); err != nil {
		return err
	}

	if file != os.Stdout {
		fmt.Fprintf(os.Stderr, "💾 %s to %s\n", successMsg, outputFile)
	}
	return nil
}

// writeJSON encodes data with two-space indentation.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeCSVWithHeader writes header and then lets writeRows fill in the records.
func writeCSVWithHeader(w io.Writer, header []string, writeRows func(*csv.Writer) error) error {
	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := writeRows(csvWriter); err != nil {
		return err
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

// createFormatters returns float and percentage formatters for the configured precision.
func createFormatters(precision int) (fmtFloat func(float64) string, fmtPercent func(float64) string) {
	fmtFloat = func(v float64) string {
		return fmt.Sprintf("%.*f", precision, v)
	}
	fmtPercent = func(v float64) string {
		return fmt.Sprintf("%.*f%%", max(precision-2, 0), v*100)
	}
	return fmtFloat, fmtPercent
}

// formatHour renders a fractional hour as HH:MM on a 24-hour clock.
func formatHour(h float64) string {
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}
	minutes := int(math.Round(h * 60))
	if minutes >= 24*60 {
		minutes -= 24 * 60
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// formatHours joins several hours for a single table cell.
func formatHours(hours []float64, sep string) string {
	parts := make([]string, len(hours))
	for i, h := range hours {
		parts[i] = formatHour(h)
	}
	return strings.Join(parts, sep)
}

// formatOffset renders a UTC offset like UTC-05:00 or UTC+05:30.
func formatOffset(offset float64) string {
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	minutes := int(math.Round(offset * 60))
	return fmt.Sprintf("UTC%s%02d:%02d", sign, minutes/60, minutes%60)
}
