package outwriter

import (
	"fmt"
	"io"
	"strings"

	"github.com/huangsam/tzcluster/schema"
)

const barGlyph = "█"

// writeHistogram draws one horizontal bar per UTC hour, scaled to the busiest hour.
func writeHistogram(w io.Writer, buckets []schema.HourBucket, barWidth int) error {
	peak := 0
	for _, b := range buckets {
		peak = max(peak, b.Posts)
	}
	for _, b := range buckets {
		n := 0
		if peak > 0 {
			n = b.Posts * barWidth / peak
			if b.Posts > 0 && n == 0 {
				n = 1
			}
		}
		if _, err := fmt.Fprintf(w, "%02d:00 │ %s %d\n", b.Hour, strings.Repeat(barGlyph, n), b.Posts); err != nil {
			return err
		}
	}
	return nil
}
