package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegions(t *testing.T) {
	regions := DefaultRegions()
	require.Len(t, regions, 28)

	seen := make(map[string]struct{}, len(regions))
	for _, r := range regions {
		_, dup := seen[r.Name]
		assert.False(t, dup, "duplicate region %s", r.Name)
		seen[r.Name] = struct{}{}
		assert.Equal(t, DefaultWorkStart, r.WorkStart)
		assert.Equal(t, DefaultWorkEnd, r.WorkEnd)
		assert.GreaterOrEqual(t, r.Offset, -12.0)
		assert.LessOrEqual(t, r.Offset, 14.0)
	}
	assert.Contains(t, seen, "India")
	assert.NotContains(t, seen, UnclassifiedRegion)

	// Callers get their own copy
	regions[0].Name = "changed"
	assert.Equal(t, "US Pacific", DefaultRegions()[0].Name)
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("malformed timestamp", func(t *testing.T) {
		cause := errors.New("no zone")
		err := fmt.Errorf("extract: %w", &MalformedTimestampError{PostID: "p1", Value: "2024-01-01 10:00", Err: cause})
		assert.ErrorIs(t, err, ErrMalformedTimestamp)
		assert.ErrorIs(t, err, ErrInput)
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, ErrPersistence)

		var mte *MalformedTimestampError
		require.ErrorAs(t, err, &mte)
		assert.Equal(t, "p1", mte.PostID)
	})

	t.Run("empty input", func(t *testing.T) {
		err := &EmptyInputError{Total: 3, Rejected: 3}
		assert.ErrorIs(t, err, ErrEmptyInput)
		assert.ErrorIs(t, err, ErrInput)
		assert.Contains(t, err.Error(), "3 of 3")
	})

	t.Run("convergence", func(t *testing.T) {
		err := &ConvergenceError{Iterations: 300}
		assert.ErrorIs(t, err, ErrClustering)
		assert.Contains(t, err.Error(), "300")
	})

	t.Run("persistence", func(t *testing.T) {
		cause := errors.New("disk full")
		err := &PersistenceError{Op: "commit run", Backend: SQLiteBackend, Err: cause}
		assert.ErrorIs(t, err, ErrPersistence)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "commit run on sqlite backend: disk full", err.Error())
	})
}

func TestFeatureVectorPoint(t *testing.T) {
	fv := FeatureVector{HourSin: 0.5, HourCos: -0.25}
	assert.Equal(t, [2]float64{0.5, -0.25}, fv.Point())
}
