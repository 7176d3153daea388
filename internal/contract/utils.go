package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/tzcluster/schema"
)

// Confidence label constants.
const (
	HighValue     = "High"   // High value
	MediumValue   = "Medium" // Medium value
	LowValue      = "Low"    // Low value
	NoneValue     = "None"   // No confidence at all
	SummaryDBFile = ".tzcluster.db"
)

// Color variables for console output.
var (
	HighColor         = color.New(color.FgGreen, color.Bold) // highColor represents a confident mapping.
	MediumColor       = color.New(color.FgYellow)            // mediumColor represents standard caution, not bold.
	LowColor          = color.New(color.FgMagenta)           // lowColor represents a weak mapping near a window edge.
	NoneColor         = color.New(color.FgRed, color.Bold)   // noneColor represents an unclassified cluster.
	UnclassifiedColor = color.New(color.FgHiBlack)
)

// GetPlainLabel returns a plain text label for a confidence in [0, 1].
// This is the core logic used for CSV, JSON, and table printing.
func GetPlainLabel(confidence float64) string {
	switch {
	case confidence >= 0.75:
		return HighValue
	case confidence >= 0.4:
		return MediumValue
	case confidence > 0:
		return LowValue
	default:
		return NoneValue
	}
}

// GetColorLabel returns a colored text label for console output (table).
// It uses GetPlainLabel to determine the string, and then applies the appropriate color.
func GetColorLabel(confidence float64) string {
	text := GetPlainLabel(confidence)

	switch text {
	case HighValue:
		return HighColor.Sprint(text)
	case MediumValue:
		return MediumColor.Sprint(text)
	case LowValue:
		return LowColor.Sprint(text)
	default: // "None"
		return NoneColor.Sprint(text)
	}
}

// ColorRegion dims the unclassified bucket so real regions stand out.
func ColorRegion(name string) string {
	if name == schema.UnclassifiedRegion {
		return UnclassifiedColor.Sprint(name)
	}
	return name
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. It falls back to os.Stdout when no path is given.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetSummaryDBFilePath returns the path to the SQLite DB file for regional summaries.
func GetSummaryDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return SummaryDBFile
	}
	return filepath.Join(homeDir, SummaryDBFile)
}

// TruncateText truncates a string to a maximum width with an ellipsis suffix.
// Requires maxWidth > 3 so there is room for the "..." and at least one character.
func TruncateText(s string, maxWidth int) string {
	runes := []rune(s)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return s
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
