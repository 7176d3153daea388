// Package agg rolls cluster assignments up into per-region summaries.
package agg

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/huangsam/tzcluster/schema"
)

// Summarize produces one summary per distinct region. Confidence is averaged
// with member counts as weights. Output is ordered by post volume, then name.
func Summarize(assignments []schema.ClusterAssignment, completedAt time.Time) []schema.RegionalSummary {
	byRegion := make(map[string]*schema.RegionalSummary)
	weighted := make(map[string]float64)
	var order []string

	for _, a := range assignments {
		if a.MemberCount <= 0 {
			continue
		}
		s, ok := byRegion[a.Region]
		if !ok {
			s = &schema.RegionalSummary{Region: a.Region, LastUpdated: completedAt}
			byRegion[a.Region] = s
			order = append(order, a.Region)
		}
		s.TotalPosts += int64(a.MemberCount)
		s.PeakHoursUTC = append(s.PeakHoursUTC, a.PeakHourUTC)
		weighted[a.Region] += a.Confidence * float64(a.MemberCount)
	}

	out := make([]schema.RegionalSummary, 0, len(order))
	for _, name := range order {
		s := byRegion[name]
		s.AvgConfidence = weighted[name] / float64(s.TotalPosts)
		slices.Sort(s.PeakHoursUTC)
		out = append(out, *s)
	}
	Sort(out)
	return out
}

// Merge folds a new run's summary into the stored row for the same region.
// Post counts accumulate and confidence is re-weighted by post volume.
// Peak hours and the update time come from the new run.
func Merge(stored, incoming schema.RegionalSummary) schema.RegionalSummary {
	total := stored.TotalPosts + incoming.TotalPosts
	if stored.TotalPosts <= 0 || total <= 0 {
		return incoming
	}
	return schema.RegionalSummary{
		Region:     incoming.Region,
		TotalPosts: total,
		AvgConfidence: (stored.AvgConfidence*float64(stored.TotalPosts) +
			incoming.AvgConfidence*float64(incoming.TotalPosts)) / float64(total),
		PeakHoursUTC: incoming.PeakHoursUTC,
		LastUpdated:  incoming.LastUpdated,
	}
}

// MergeAll merges incoming summaries over a stored set keyed by region.
// Regions not touched by the run are carried over unchanged.
func MergeAll(stored map[string]schema.RegionalSummary, incoming []schema.RegionalSummary) []schema.RegionalSummary {
	merged := make(map[string]schema.RegionalSummary, len(stored)+len(incoming))
	for name, s := range stored {
		merged[name] = s
	}
	for _, s := range incoming {
		if prev, ok := merged[s.Region]; ok {
			merged[s.Region] = Merge(prev, s)
			continue
		}
		merged[s.Region] = s
	}

	out := make([]schema.RegionalSummary, 0, len(merged))
	for _, s := range merged {
		out = append(out, s)
	}
	Sort(out)
	return out
}

// Sort orders summaries by total posts descending, then region name.
func Sort(summaries []schema.RegionalSummary) {
	slices.SortFunc(summaries, func(a, b schema.RegionalSummary) int {
		if c := cmp.Compare(b.TotalPosts, a.TotalPosts); c != 0 {
			return c
		}
		return strings.Compare(a.Region, b.Region)
	})
}
