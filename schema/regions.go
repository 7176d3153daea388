package schema

// Local working window shared by every built-in region.
const (
	DefaultWorkStart = 9.0
	DefaultWorkEnd   = 17.0
)

// defaultRegionOffsets maps each built-in region to its standard UTC offset.
var defaultRegionOffsets = []struct {
	name   string
	offset float64
}{
	// North America
	{"US Pacific", -8},
	{"US Mountain", -7},
	{"US Central", -6},
	{"US Eastern", -5},
	{"Canada Atlantic", -4},

	// South America
	{"Brazil East", -3},
	{"Argentina", -3},
	{"Chile", -4},

	// Europe
	{"UK", 0},
	{"Ireland", 0},
	{"Central Europe", 1},
	{"Eastern Europe", 2},
	{"Moscow", 3},

	// Asia
	{"Turkey", 3},
	{"UAE", 4},
	{"Pakistan", 5},
	{"India", 5.5},
	{"Bangladesh", 6},
	{"Thailand", 7},
	{"Singapore", 8},
	{"China", 8},
	{"Taiwan", 8},
	{"Japan", 9},
	{"Korea", 9},

	// Oceania
	{"Australia Western", 8},
	{"Australia Central", 9.5},
	{"Australia Eastern", 10},
	{"New Zealand", 12},
}

// DefaultRegions returns a fresh copy of the built-in region table.
func DefaultRegions() []RegionCandidate {
	regions := make([]RegionCandidate, len(defaultRegionOffsets))
	for i, r := range defaultRegionOffsets {
		regions[i] = RegionCandidate{
			Name:      r.name,
			Offset:    r.offset,
			WorkStart: DefaultWorkStart,
			WorkEnd:   DefaultWorkEnd,
		}
	}
	return regions
}
