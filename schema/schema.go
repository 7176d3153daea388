// Package schema has configs, models and shared constants for all parts of tzcluster.
package schema

import "time"

// PostRecord is a single raw social-media post as read from the input dataset.
// Only ID and CreatedAt are consumed by the analysis; the rest is passthrough.
type PostRecord struct {
	ID        string            `json:"id"`
	CreatedAt string            `json:"created_at"` // Absolute instant with zone info
	Text      string            `json:"text,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// FeatureVector is the cyclical encoding of a post's UTC hour-of-day.
type FeatureVector struct {
	PostID  string  `json:"post_id"`
	Hour    float64 `json:"hour"` // Fractional UTC hour in [0, 24)
	HourSin float64 `json:"hour_sin"`
	HourCos float64 `json:"hour_cos"`
}

// Point returns the vector's position in the 2-D clustering space.
func (f FeatureVector) Point() [2]float64 {
	return [2]float64{f.HourSin, f.HourCos}
}

// Cluster is one group produced by the cluster engine.
type Cluster struct {
	ID          int        `json:"id"`
	Center      [2]float64 `json:"center"` // (sin, cos)
	MemberCount int        `json:"member_count"`
}

// RegionCandidate is one entry of the reference timezone table.
// Windows with WorkStart > WorkEnd wrap past local midnight.
type RegionCandidate struct {
	Name      string  `json:"name" mapstructure:"name"`
	Offset    float64 `json:"offset" mapstructure:"offset"` // Hours from UTC, fractional allowed
	WorkStart float64 `json:"work_start" mapstructure:"work_start"`
	WorkEnd   float64 `json:"work_end" mapstructure:"work_end"`
}

// ClusterAssignment is the region decision made for one cluster.
type ClusterAssignment struct {
	ClusterID    int      `json:"cluster_id"`
	PeakHourUTC  float64  `json:"peak_hour_utc"`
	LocalHour    float64  `json:"local_hour"`
	Region       string   `json:"region"`
	Confidence   float64  `json:"confidence"`
	MemberCount  int      `json:"member_count"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// RegionalSummary is the durable per-region rollup; Region is the unique key.
type RegionalSummary struct {
	Region        string    `json:"region_name"`
	TotalPosts    int64     `json:"total_posts"`
	AvgConfidence float64   `json:"avg_confidence"`
	PeakHoursUTC  []float64 `json:"peak_hours_utc"`
	LastUpdated   time.Time `json:"last_updated"`
}

// RunRecord captures the metadata of one analysis run.
type RunRecord struct {
	RunID            string         `json:"run_id"`
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      time.Time      `json:"completed_at"`
	TotalRecords     int            `json:"total_records"`
	ValidRecords     int            `json:"valid_records"`
	DroppedRecords   int            `json:"dropped_records"`
	Clusters         int            `json:"clusters"`
	NonEmptyClusters int            `json:"non_empty_clusters"`
	Iterations       int            `json:"iterations"`
	Converged        bool           `json:"converged"`
	Seed             uint64         `json:"seed"`
	ConfigParams     map[string]any `json:"config_params,omitempty"`
}

// HourBucket is the number of valid posts seen in one whole UTC hour.
type HourBucket struct {
	Hour  int `json:"hour"`
	Posts int `json:"posts"`
}

// MaxRejectedShown caps how many rejected records a batch or result carries.
const MaxRejectedShown = 10

// RejectedRecord describes one input record excluded from the analysis.
type RejectedRecord struct {
	Record int    `json:"record,omitempty"` // 1-based row in the source, when known
	PostID string `json:"post_id"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// PostBatch is what a source loaded: the usable records plus the rows it skipped.
type PostBatch struct {
	Records  []PostRecord
	Skipped  int              // Rows that could not be read as a post
	Rejected []RejectedRecord // First MaxRejectedShown skipped rows
}

// Skip counts one unreadable row and keeps it as a sample while there is room.
func (b *PostBatch) Skip(rec RejectedRecord) {
	b.Skipped++
	if len(b.Rejected) < MaxRejectedShown {
		b.Rejected = append(b.Rejected, rec)
	}
}

// Total is the number of rows the source produced, usable or not.
func (b *PostBatch) Total() int {
	return len(b.Records) + b.Skipped
}

// RunResult is everything one analysis run produced.
type RunResult struct {
	Run         RunRecord           `json:"run"`
	Source      string              `json:"source,omitempty"`
	Assignments []ClusterAssignment `json:"assignments"`
	Summaries   []RegionalSummary   `json:"summaries"`          // This run only
	Stored      []RegionalSummary   `json:"stored,omitempty"`   // Rows after merging into the store
	Histogram   []HourBucket        `json:"histogram"`          // Valid posts per UTC hour
	Rejected    []RejectedRecord    `json:"rejected,omitempty"` // First few malformed records
	Warning     string              `json:"warning,omitempty"`
	DryRun      bool                `json:"dry_run"`
	Committed   bool                `json:"committed"`
}
