// Package feature turns raw post timestamps into cyclical hour-of-day features.
package feature

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/huangsam/tzcluster/schema"
)

// HoursPerDay is the period of the cyclical encoding.
const HoursPerDay = 24.0

// absoluteLayouts are accepted timestamp layouts. All of them carry zone info.
// Fractional seconds are accepted after the seconds field by time.Parse.
var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05Z07",
	"2006-01-02T15:04Z07:00",
	time.RFC1123Z,
}

// naiveLayouts are recognized only to produce a clearer rejection.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

var (
	errNoZone   = errors.New("timestamp has no timezone designator")
	errNoLayout = errors.New("unrecognized timestamp layout")
	errEmpty    = errors.New("empty timestamp")
)

// ParseTimestamp parses an absolute instant and returns it in UTC.
// Timestamps without a zone designator are rejected rather than assumed to be UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, errEmpty
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return time.Time{}, errNoZone
		}
	}
	return time.Time{}, errNoLayout
}

// HourOfDay returns the fractional UTC hour of t in [0, 24).
func HourOfDay(t time.Time) float64 {
	t = t.UTC()
	h := float64(t.Hour()) +
		float64(t.Minute())/60 +
		float64(t.Second())/3600 +
		float64(t.Nanosecond())/3.6e12
	if h >= HoursPerDay {
		return 0
	}
	return h
}

// Encode maps an hour onto the unit circle.
func Encode(hour float64) (sin, cos float64) {
	angle := 2 * math.Pi * hour / HoursPerDay
	return math.Sin(angle), math.Cos(angle)
}

// Decode recovers the hour in [0, 24) from a (sin, cos) pair.
// The pair need not be unit length, so cluster centers decode directly.
func Decode(sin, cos float64) float64 {
	return NormalizeHour(math.Atan2(sin, cos) * HoursPerDay / (2 * math.Pi))
}

// NormalizeHour wraps any hour value into [0, 24).
func NormalizeHour(h float64) float64 {
	h = math.Mod(h, HoursPerDay)
	if h < 0 {
		h += HoursPerDay
	}
	if h >= HoursPerDay {
		h = 0
	}
	return h
}

// CircularDistance is the shortest distance in hours between a and b on the 24h clock.
func CircularDistance(a, b float64) float64 {
	d := math.Abs(NormalizeHour(a) - NormalizeHour(b))
	return math.Min(d, HoursPerDay-d)
}

// Vector builds the feature vector for one post.
func Vector(id string, t time.Time) schema.FeatureVector {
	hour := HourOfDay(t)
	sin, cos := Encode(hour)
	return schema.FeatureVector{PostID: id, Hour: hour, HourSin: sin, HourCos: cos}
}

// Result holds the extracted features and the records that were dropped.
type Result struct {
	Total    int
	Vectors  []schema.FeatureVector
	Rejected []*schema.MalformedTimestampError
}

// Dropped is the number of records excluded for malformed timestamps.
func (r Result) Dropped() int {
	return len(r.Rejected)
}

// Extract encodes every record independently. Malformed timestamps are
// collected and excluded; a batch with no valid record is an error.
func Extract(records []schema.PostRecord) (Result, error) {
	res := Result{
		Total:   len(records),
		Vectors: make([]schema.FeatureVector, 0, len(records)),
	}
	for _, rec := range records {
		t, err := ParseTimestamp(rec.CreatedAt)
		if err != nil {
			res.Rejected = append(res.Rejected, &schema.MalformedTimestampError{
				PostID: rec.ID,
				Value:  rec.CreatedAt,
				Err:    err,
			})
			continue
		}
		res.Vectors = append(res.Vectors, Vector(rec.ID, t))
	}
	if len(res.Vectors) == 0 {
		return res, &schema.EmptyInputError{Total: res.Total, Rejected: len(res.Rejected)}
	}
	return res, nil
}

// Histogram counts vectors per whole UTC hour.
func Histogram(vectors []schema.FeatureVector) []schema.HourBucket {
	buckets := make([]schema.HourBucket, int(HoursPerDay))
	for i := range buckets {
		buckets[i].Hour = i
	}
	for _, v := range vectors {
		h := int(v.Hour)
		if h >= 0 && h < len(buckets) {
			buckets[h].Posts++
		}
	}
	return buckets
}
