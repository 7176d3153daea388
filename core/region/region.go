// Package region maps cluster peak hours onto candidate timezone regions.
package region

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/huangsam/tzcluster/core/feature"
	"github.com/huangsam/tzcluster/schema"
)

// hourEpsilon absorbs float noise from the atan2 decode at window boundaries.
const hourEpsilon = 1e-9

// Offset bounds of real-world timezones.
const (
	MinOffset = -12.0
	MaxOffset = 14.0
)

// Mapper assigns a region and confidence to each cluster.
type Mapper struct {
	regions      []schema.RegionCandidate
	decay        schema.DecayPolicy
	alternatives int
}

// Option customizes a Mapper.
type Option func(*Mapper)

// WithDecay selects the confidence decay policy.
func WithDecay(policy schema.DecayPolicy) Option {
	return func(m *Mapper) { m.decay = policy }
}

// WithAlternatives sets how many runner-up regions are reported per cluster.
func WithAlternatives(n int) Option {
	return func(m *Mapper) { m.alternatives = n }
}

// NewMapper validates the region table and returns a Mapper over a private copy of it.
func NewMapper(regions []schema.RegionCandidate, opts ...Option) (*Mapper, error) {
	if err := ValidateRegions(regions); err != nil {
		return nil, err
	}
	m := &Mapper{
		regions:      slices.Clone(regions),
		decay:        schema.LinearDecay,
		alternatives: schema.DefaultAlternatives,
	}
	for _, opt := range opts {
		opt(m)
	}
	if _, ok := schema.ValidDecayPolicies[m.decay]; !ok {
		return nil, fmt.Errorf("invalid decay policy '%s'. must be linear, cosine, quadratic, halfday", m.decay)
	}
	if m.alternatives < 0 {
		return nil, fmt.Errorf("alternatives must not be negative (received %d)", m.alternatives)
	}
	return m, nil
}

// ValidateRegions checks a region table for unique names and sane hours.
// Names are compared without regard to case.
func ValidateRegions(regions []schema.RegionCandidate) error {
	if len(regions) == 0 {
		return fmt.Errorf("region table must not be empty")
	}
	seen := make(map[string]struct{}, len(regions))
	for i, r := range regions {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return fmt.Errorf("region %d has an empty name", i)
		}
		if strings.EqualFold(name, schema.UnclassifiedRegion) {
			return fmt.Errorf("region name %q is reserved", r.Name)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate region name %q", name)
		}
		seen[key] = struct{}{}
		if r.Offset < MinOffset || r.Offset > MaxOffset {
			return fmt.Errorf("region %q: offset %g outside [%g, %g]", name, r.Offset, MinOffset, MaxOffset)
		}
		if r.WorkStart < 0 || r.WorkStart > 24 || r.WorkEnd < 0 || r.WorkEnd > 24 {
			return fmt.Errorf("region %q: work hours must be within [0, 24]", name)
		}
		if r.WorkStart == r.WorkEnd {
			return fmt.Errorf("region %q: work window is empty", name)
		}
	}
	return nil
}

// Regions returns a copy of the active region table.
func (m *Mapper) Regions() []schema.RegionCandidate {
	return slices.Clone(m.regions)
}

// Decay returns the active decay policy.
func (m *Mapper) Decay() schema.DecayPolicy {
	return m.decay
}

// Map assigns every non-empty cluster. Empty clusters carry no posts and are skipped.
func (m *Mapper) Map(clusters []schema.Cluster) []schema.ClusterAssignment {
	out := make([]schema.ClusterAssignment, 0, len(clusters))
	for _, c := range clusters {
		if c.MemberCount == 0 {
			continue
		}
		out = append(out, m.Assign(c))
	}
	return out
}

// scored is a region evaluated against one local peak hour.
type scored struct {
	region   schema.RegionCandidate
	local    float64
	inside   bool
	midDist  float64 // distance from the local hour to the window midpoint
	edgeDist float64 // distance to the window, zero when inside
}

// Assign decodes the cluster's peak hour and picks the best matching region.
func (m *Mapper) Assign(c schema.Cluster) schema.ClusterAssignment {
	peak := feature.Decode(c.Center[0], c.Center[1])
	out := schema.ClusterAssignment{
		ClusterID:   c.ID,
		PeakHourUTC: peak,
		LocalHour:   peak,
		Region:      schema.UnclassifiedRegion,
		MemberCount: c.MemberCount,
	}

	candidates := make([]scored, len(m.regions))
	for i, r := range m.regions {
		candidates[i] = score(r, peak)
	}

	// Matches first by midpoint distance then name; the rest by how far they miss.
	slices.SortFunc(candidates, func(a, b scored) int {
		if a.inside != b.inside {
			if a.inside {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(a.edgeDist, b.edgeDist); c != 0 {
			return c
		}
		if c := cmp.Compare(a.midDist, b.midDist); c != 0 {
			return c
		}
		return strings.Compare(a.region.Name, b.region.Name)
	})

	rest := candidates
	if best := candidates[0]; best.inside {
		out.Region = best.region.Name
		out.LocalHour = best.local
		out.Confidence = m.confidence(best)
		rest = candidates[1:]
	}

	for _, alt := range rest[:min(m.alternatives, len(rest))] {
		out.Alternatives = append(out.Alternatives, alt.region.Name)
	}
	return out
}

// score places the peak hour in the region's local time.
func score(r schema.RegionCandidate, peak float64) scored {
	local := feature.NormalizeHour(peak + r.Offset)
	s := scored{
		region:  r,
		local:   local,
		inside:  contains(r, local),
		midDist: feature.CircularDistance(local, midpoint(r)),
	}
	if !s.inside {
		s.edgeDist = math.Min(
			feature.CircularDistance(local, r.WorkStart),
			feature.CircularDistance(local, r.WorkEnd),
		)
	}
	return s
}

// confidence is 1 at the window midpoint and falls off per the decay policy.
func (m *Mapper) confidence(s scored) float64 {
	if m.decay == schema.HalfDayDecay {
		return clamp01(1 - s.midDist/(feature.HoursPerDay/2))
	}
	half := width(s.region) / 2
	x := clamp01(s.midDist / half)
	switch m.decay {
	case schema.CosineDecay:
		return clamp01((1 + math.Cos(math.Pi*x)) / 2)
	case schema.QuadraticDecay:
		return clamp01(1 - x*x)
	default:
		return clamp01(1 - x)
	}
}

// contains reports whether local falls inside the region's work window.
func contains(r schema.RegionCandidate, local float64) bool {
	if r.WorkStart <= r.WorkEnd {
		return local >= r.WorkStart-hourEpsilon && local <= r.WorkEnd+hourEpsilon
	}
	return local >= r.WorkStart-hourEpsilon || local <= r.WorkEnd+hourEpsilon
}

// width is the window length in hours, accounting for windows that wrap midnight.
func width(r schema.RegionCandidate) float64 {
	if r.WorkStart <= r.WorkEnd {
		return r.WorkEnd - r.WorkStart
	}
	return r.WorkEnd + feature.HoursPerDay - r.WorkStart
}

// midpoint is the center of the work window on the 24h clock.
func midpoint(r schema.RegionCandidate) float64 {
	return feature.NormalizeHour(r.WorkStart + width(r)/2)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
