// Package cluster groups cyclical hour features with seeded K-means.
package cluster

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/huangsam/tzcluster/schema"
)

// pcgStream is the fixed second word of the PCG state; the seed supplies the first.
const pcgStream = 0x9e3779b97f4a7c15

// Engine runs Lloyd's K-means over 2-D feature vectors.
type Engine struct {
	k             int
	seed          uint64
	maxIterations int
	tolerance     float64
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMaxIterations caps the number of Lloyd iterations.
func WithMaxIterations(n int) Option {
	return func(e *Engine) { e.maxIterations = n }
}

// WithTolerance sets the largest center movement still considered converged.
func WithTolerance(tol float64) Option {
	return func(e *Engine) { e.tolerance = tol }
}

// NewEngine creates an engine for k clusters. The seed fully determines the output.
func NewEngine(k int, seed uint64, opts ...Option) (*Engine, error) {
	e := &Engine{
		k:             k,
		seed:          seed,
		maxIterations: schema.DefaultMaxIterations,
		tolerance:     schema.DefaultTolerance,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.k < 1 {
		return nil, fmt.Errorf("cluster count must be at least 1 (received %d)", e.k)
	}
	if e.maxIterations < 1 {
		return nil, fmt.Errorf("max iterations must be at least 1 (received %d)", e.maxIterations)
	}
	if e.tolerance < 0 || math.IsNaN(e.tolerance) {
		return nil, fmt.Errorf("tolerance must be non-negative (received %g)", e.tolerance)
	}
	return e, nil
}

// K returns the configured cluster count.
func (e *Engine) K() int { return e.k }

// Seed returns the configured seed.
func (e *Engine) Seed() uint64 { return e.seed }

// Result is the outcome of one clustering run.
type Result struct {
	Clusters   []schema.Cluster
	Labels     []int // Labels[i] is the cluster of the i-th input vector
	Iterations int
	Converged  bool
	Shift      float64 // Largest center movement in the final iteration
	Inertia    float64 // Sum of squared distances to assigned centers
}

// Warning returns a ConvergenceError when the iteration cap was hit, nil otherwise.
func (r Result) Warning() error {
	if r.Converged {
		return nil
	}
	return &schema.ConvergenceError{Iterations: r.Iterations, Shift: r.Shift}
}

// NonEmpty returns the clusters that received at least one member.
func (r Result) NonEmpty() []schema.Cluster {
	out := make([]schema.Cluster, 0, len(r.Clusters))
	for _, c := range r.Clusters {
		if c.MemberCount > 0 {
			out = append(out, c)
		}
	}
	return out
}

// point is a distinct feature position and how many vectors share it.
type point struct {
	pos    [2]float64
	weight float64
	label  int
}

// Fit clusters the vectors. Identical vectors are collapsed into weighted
// points first, which yields the same partition as clustering each vector.
// Fewer distinct points than k leaves the surplus clusters empty.
func (e *Engine) Fit(ctx context.Context, vectors []schema.FeatureVector) (Result, error) {
	if len(vectors) == 0 {
		return Result{}, &schema.EmptyInputError{}
	}

	points, index := collapse(vectors)
	active := min(e.k, len(points))

	rng := rand.New(rand.NewPCG(e.seed, pcgStream))
	centers := seedCenters(points, active, rng)

	res := Result{}
	assign(points, centers)
	changed := false
	for iter := 1; ; iter++ {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("clustering interrupted at iteration %d: %w", iter, err)
		}
		res.Shift = update(points, centers)
		changed = assign(points, centers)
		res.Iterations = iter
		if !changed || res.Shift <= e.tolerance {
			res.Converged = true
			break
		}
		if iter >= e.maxIterations {
			break
		}
	}
	// The last assign may have moved labels; every center must be its members' mean
	if changed {
		update(points, centers)
	}

	res.Clusters = make([]schema.Cluster, e.k)
	for i := range res.Clusters {
		res.Clusters[i].ID = i
		if i < active {
			res.Clusters[i].Center = centers[i]
		}
	}
	for _, p := range points {
		res.Clusters[p.label].MemberCount += int(p.weight)
		res.Inertia += p.weight * sqDist(p.pos, centers[p.label])
	}

	res.Labels = make([]int, len(vectors))
	for i, idx := range index {
		res.Labels[i] = points[idx].label
	}
	return res, nil
}

// collapse merges identical vectors into weighted points sorted by position,
// so the run does not depend on input order. index maps each vector to its point.
func collapse(vectors []schema.FeatureVector) ([]point, []int) {
	counts := make(map[[2]float64]float64, len(vectors))
	for _, v := range vectors {
		counts[v.Point()]++
	}

	points := make([]point, 0, len(counts))
	for pos, w := range counts {
		points = append(points, point{pos: pos, weight: w})
	}
	slices.SortFunc(points, func(a, b point) int {
		if c := compareFloat(a.pos[0], b.pos[0]); c != 0 {
			return c
		}
		return compareFloat(a.pos[1], b.pos[1])
	})

	lookup := make(map[[2]float64]int, len(points))
	for i, p := range points {
		lookup[p.pos] = i
	}
	index := make([]int, len(vectors))
	for i, v := range vectors {
		index[i] = lookup[v.Point()]
	}
	return points, index
}

// seedCenters picks k distinct starting centers with weighted k-means++.
func seedCenters(points []point, k int, rng *rand.Rand) [][2]float64 {
	centers := make([][2]float64, 0, k)
	chosen := make([]bool, len(points))

	var total float64
	for _, p := range points {
		total += p.weight
	}
	first := sample(points, rng.Float64()*total)
	centers = append(centers, points[first].pos)
	chosen[first] = true

	dist := make([]float64, len(points))
	for i, p := range points {
		dist[i] = sqDist(p.pos, points[first].pos)
	}

	for len(centers) < k {
		var mass float64
		for i, p := range points {
			if !chosen[i] {
				mass += p.weight * dist[i]
			}
		}

		next := -1
		if mass > 0 {
			r := rng.Float64() * mass
			for i, p := range points {
				if chosen[i] {
					continue
				}
				r -= p.weight * dist[i]
				if r <= 0 {
					next = i
					break
				}
			}
		}
		if next < 0 {
			// Rounding left the draw past the last candidate; take the last unchosen point.
			for i := len(points) - 1; i >= 0; i-- {
				if !chosen[i] {
					next = i
					break
				}
			}
		}

		centers = append(centers, points[next].pos)
		chosen[next] = true
		for i, p := range points {
			dist[i] = math.Min(dist[i], sqDist(p.pos, points[next].pos))
		}
	}
	return centers
}

// sample returns the index whose cumulative weight first reaches r.
func sample(points []point, r float64) int {
	for i, p := range points {
		r -= p.weight
		if r <= 0 {
			return i
		}
	}
	return len(points) - 1
}

// assign moves every point to its nearest center, ties going to the lowest index.
// It reports whether any label changed.
func assign(points []point, centers [][2]float64) bool {
	changed := false
	for i := range points {
		best, bestDist := 0, math.Inf(1)
		for c, center := range centers {
			if d := sqDist(points[i].pos, center); d < bestDist {
				best, bestDist = c, d
			}
		}
		if points[i].label != best {
			points[i].label = best
			changed = true
		}
	}
	return changed
}

// update moves each center to the weighted mean of its members and returns the
// largest movement. Centers without members stay where they are.
func update(points []point, centers [][2]float64) float64 {
	sums := make([][2]float64, len(centers))
	weights := make([]float64, len(centers))
	for _, p := range points {
		sums[p.label][0] += p.weight * p.pos[0]
		sums[p.label][1] += p.weight * p.pos[1]
		weights[p.label] += p.weight
	}

	var shift float64
	for c := range centers {
		if weights[c] == 0 {
			continue
		}
		next := [2]float64{sums[c][0] / weights[c], sums[c][1] / weights[c]}
		shift = math.Max(shift, math.Sqrt(sqDist(centers[c], next)))
		centers[c] = next
	}
	return shift
}

func sqDist(a, b [2]float64) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return dx*dx + dy*dy
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
