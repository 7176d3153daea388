package region

import (
	"testing"

	"github.com/huangsam/tzcluster/core/feature"
	"github.com/huangsam/tzcluster/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clusterAt builds a cluster whose center decodes to hour h.
func clusterAt(id int, h float64, members int) schema.Cluster {
	sin, cos := feature.Encode(h)
	return schema.Cluster{ID: id, Center: [2]float64{sin, cos}, MemberCount: members}
}

var usEast = schema.RegionCandidate{Name: "US-East", Offset: -5, WorkStart: 9, WorkEnd: 17}

func TestValidateRegions(t *testing.T) {
	tests := []struct {
		name    string
		regions []schema.RegionCandidate
		errMsg  string
	}{
		{name: "defaults", regions: schema.DefaultRegions()},
		{name: "empty table", regions: nil, errMsg: "must not be empty"},
		{name: "blank name", regions: []schema.RegionCandidate{{Name: " ", WorkStart: 9, WorkEnd: 17}}, errMsg: "empty name"},
		{name: "reserved name", regions: []schema.RegionCandidate{{Name: "unclassified", WorkStart: 9, WorkEnd: 17}}, errMsg: "reserved"},
		{name: "duplicate", regions: []schema.RegionCandidate{usEast, usEast}, errMsg: "duplicate"},
		{name: "duplicate ignoring case", regions: []schema.RegionCandidate{
			{Name: "UK", WorkStart: 9, WorkEnd: 17},
			{Name: " uk", Offset: 1, WorkStart: 8, WorkEnd: 16},
		}, errMsg: `duplicate region name "uk"`},
		{name: "reserved name any case", regions: []schema.RegionCandidate{{Name: "UNCLASSIFIED", WorkStart: 9, WorkEnd: 17}}, errMsg: "reserved"},
		{name: "offset too large", regions: []schema.RegionCandidate{{Name: "X", Offset: 15, WorkStart: 9, WorkEnd: 17}}, errMsg: "offset"},
		{name: "hours out of range", regions: []schema.RegionCandidate{{Name: "X", WorkStart: 9, WorkEnd: 25}}, errMsg: "within [0, 24]"},
		{name: "empty window", regions: []schema.RegionCandidate{{Name: "X", WorkStart: 9, WorkEnd: 9}}, errMsg: "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegions(tt.regions)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewMapper_Options(t *testing.T) {
	_, err := NewMapper([]schema.RegionCandidate{usEast}, WithDecay("exponential"))
	assert.Error(t, err)

	_, err = NewMapper([]schema.RegionCandidate{usEast}, WithAlternatives(-1))
	assert.Error(t, err)

	m, err := NewMapper([]schema.RegionCandidate{usEast})
	require.NoError(t, err)
	assert.Equal(t, schema.LinearDecay, m.Decay())
	assert.Equal(t, []schema.RegionCandidate{usEast}, m.Regions())
}

func TestAssign_MidpointIsFullConfidence(t *testing.T) {
	m, err := NewMapper([]schema.RegionCandidate{usEast})
	require.NoError(t, err)

	// 18:00 UTC is 13:00 in US-East, the middle of 9-17
	a := m.Assign(clusterAt(3, 18, 10))
	assert.Equal(t, "US-East", a.Region)
	assert.Equal(t, 3, a.ClusterID)
	assert.Equal(t, 10, a.MemberCount)
	assert.InDelta(t, 18.0, a.PeakHourUTC, 1e-9)
	assert.InDelta(t, 13.0, a.LocalHour, 1e-9)
	assert.InDelta(t, 1.0, a.Confidence, 1e-9)
}

func TestAssign_ConfidenceByPolicy(t *testing.T) {
	// 16:00 UTC is 11:00 local: halfway between midpoint and boundary
	tests := []struct {
		policy   schema.DecayPolicy
		expected float64
	}{
		{schema.LinearDecay, 0.5},
		{schema.CosineDecay, 0.5},
		{schema.QuadraticDecay, 0.75},
		{schema.HalfDayDecay, 1 - 2.0/12},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			m, err := NewMapper([]schema.RegionCandidate{usEast}, WithDecay(tt.policy))
			require.NoError(t, err)
			a := m.Assign(clusterAt(0, 16, 1))
			assert.Equal(t, "US-East", a.Region)
			assert.InDelta(t, tt.expected, a.Confidence, 1e-9)
		})
	}
}

func TestAssign_ConfidenceBounds(t *testing.T) {
	for _, policy := range []schema.DecayPolicy{schema.LinearDecay, schema.CosineDecay, schema.QuadraticDecay, schema.HalfDayDecay} {
		m, err := NewMapper(schema.DefaultRegions(), WithDecay(policy))
		require.NoError(t, err)
		for h := 0.0; h < 24; h += 0.1 {
			a := m.Assign(clusterAt(0, h, 1))
			assert.GreaterOrEqual(t, a.Confidence, 0.0)
			assert.LessOrEqual(t, a.Confidence, 1.0)
			assert.NotEmpty(t, a.Region)
			if a.Confidence > 1-1e-9 {
				assert.InDelta(t, 13.0, a.LocalHour, 1e-3, "full confidence only at the midpoint")
			}
		}
	}
}

func TestAssign_BoundaryIsInside(t *testing.T) {
	m, err := NewMapper([]schema.RegionCandidate{usEast})
	require.NoError(t, err)

	// 14:00 UTC is exactly 09:00 local, the edge of the window
	a := m.Assign(clusterAt(0, 14, 3))
	assert.Equal(t, "US-East", a.Region)
	assert.InDelta(t, 9.0, a.LocalHour, 1e-9)
	assert.InDelta(t, 0.0, a.Confidence, 1e-9)

	h, err := NewMapper([]schema.RegionCandidate{usEast}, WithDecay(schema.HalfDayDecay))
	require.NoError(t, err)
	assert.Greater(t, h.Assign(clusterAt(0, 14, 3)).Confidence, 0.5)
}

func TestAssign_Unclassified(t *testing.T) {
	regions := []schema.RegionCandidate{
		{Name: "A", Offset: 0, WorkStart: 9, WorkEnd: 17},
		{Name: "B", Offset: 1, WorkStart: 9, WorkEnd: 17},
		{Name: "C", Offset: -2, WorkStart: 9, WorkEnd: 17},
	}
	m, err := NewMapper(regions)
	require.NoError(t, err)

	a := m.Assign(clusterAt(0, 3, 7))
	assert.Equal(t, schema.UnclassifiedRegion, a.Region)
	assert.Equal(t, 0.0, a.Confidence)
	assert.InDelta(t, 3.0, a.LocalHour, 1e-9)
	// B misses by 5 hours, A by 6, C by 8
	assert.Equal(t, []string{"B", "A"}, a.Alternatives)
}

func TestAssign_TieBreak(t *testing.T) {
	t.Run("closest midpoint wins", func(t *testing.T) {
		regions := []schema.RegionCandidate{
			{Name: "Early", Offset: 0, WorkStart: 6, WorkEnd: 14}, // midpoint 10
			{Name: "Late", Offset: 0, WorkStart: 10, WorkEnd: 18}, // midpoint 14
		}
		m, err := NewMapper(regions)
		require.NoError(t, err)
		a := m.Assign(clusterAt(0, 13, 1))
		assert.Equal(t, "Late", a.Region)
		assert.Equal(t, []string{"Early"}, a.Alternatives)
	})

	t.Run("equal distance falls back to name", func(t *testing.T) {
		regions := []schema.RegionCandidate{
			{Name: "UK", Offset: 0, WorkStart: 9, WorkEnd: 17},
			{Name: "Ireland", Offset: 0, WorkStart: 9, WorkEnd: 17},
		}
		m, err := NewMapper(regions)
		require.NoError(t, err)
		a := m.Assign(clusterAt(0, 12, 1))
		assert.Equal(t, "Ireland", a.Region)
		assert.Equal(t, []string{"UK"}, a.Alternatives)
	})
}

func TestAssign_WrappingWindow(t *testing.T) {
	night := schema.RegionCandidate{Name: "Night Shift", Offset: 0, WorkStart: 22, WorkEnd: 6}
	m, err := NewMapper([]schema.RegionCandidate{night})
	require.NoError(t, err)

	a := m.Assign(clusterAt(0, 2, 1))
	assert.Equal(t, "Night Shift", a.Region)
	assert.InDelta(t, 1.0, a.Confidence, 1e-9)

	a = m.Assign(clusterAt(0, 23, 1))
	assert.Equal(t, "Night Shift", a.Region)
	assert.InDelta(t, 0.25, a.Confidence, 1e-9)

	a = m.Assign(clusterAt(0, 12, 1))
	assert.Equal(t, schema.UnclassifiedRegion, a.Region)
}

func TestAssign_FractionalOffset(t *testing.T) {
	m, err := NewMapper(schema.DefaultRegions())
	require.NoError(t, err)

	// 07:30 UTC is 13:00 in India
	a := m.Assign(clusterAt(0, 7.5, 1))
	assert.Equal(t, "India", a.Region)
	assert.InDelta(t, 1.0, a.Confidence, 1e-9)
	assert.Len(t, a.Alternatives, schema.DefaultAlternatives)
}

func TestMap_SkipsEmptyClusters(t *testing.T) {
	m, err := NewMapper([]schema.RegionCandidate{usEast}, WithAlternatives(0))
	require.NoError(t, err)

	out := m.Map([]schema.Cluster{clusterAt(0, 18, 2), {ID: 1}, clusterAt(2, 3, 1)})
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].ClusterID)
	assert.Equal(t, 2, out[1].ClusterID)
	assert.Equal(t, schema.UnclassifiedRegion, out[1].Region)
	assert.Empty(t, out[0].Alternatives)
}

func TestWindowGeometry(t *testing.T) {
	assert.Equal(t, 8.0, width(usEast))
	assert.Equal(t, 13.0, midpoint(usEast))

	night := schema.RegionCandidate{WorkStart: 22, WorkEnd: 6}
	assert.Equal(t, 8.0, width(night))
	assert.Equal(t, 2.0, midpoint(night))
	assert.True(t, contains(night, 23.5))
	assert.True(t, contains(night, 0))
	assert.False(t, contains(night, 12))
	assert.Equal(t, 1.0, clamp01(1.5))
	assert.Equal(t, 0.0, clamp01(-0.2))
}
