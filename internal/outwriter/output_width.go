package outwriter

import (
	"os"

	"github.com/huangsam/tzcluster/internal/contract"
	"golang.org/x/term"
)

// Bounds for the variable-width columns of the tables.
const (
	defaultTermWidth = 80
	minNameWidth     = 12
	maxNameWidth     = 40
	minBarWidth      = 10
	maxBarWidth      = 60
)

// getTermWidth returns the width override, else the detected terminal width.
func getTermWidth(cfg *contract.Config) int {
	if cfg.Width > 0 {
		return cfg.Width
	}
	detected, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || detected <= 0 {
		// Not a terminal, e.g. CI or a pipe
		return defaultTermWidth
	}
	return detected
}

// getMaxTableNameWidth is the space left for region names in the assignment table.
func getMaxTableNameWidth(cfg *contract.Config) int {
	// Cluster + Peak + Local + Confidence + Label + Posts, with borders
	baseWidth := 70
	if cfg.Alternatives > 0 {
		baseWidth += 30
	}
	return clampWidth(getTermWidth(cfg)-baseWidth, minNameWidth, maxNameWidth)
}

// getHistogramBarWidth is the longest bar the hour histogram may draw.
func getHistogramBarWidth(cfg *contract.Config) int {
	// "HH:00 │ " prefix and the trailing count
	return clampWidth(getTermWidth(cfg)-18, minBarWidth, maxBarWidth)
}

func clampWidth(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
