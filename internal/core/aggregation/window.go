package aggregation

import (
	"fmt"
	"time"
)

// BucketWidth is one of the fixed time-bucket widths a request may ask for.
type BucketWidth struct {
	Label string
	Size  time.Duration
}

const day = 24 * time.Hour

// bucketWidths is the closed set of supported widths, keyed by label.
var bucketWidths = map[string]BucketWidth{
	"1m":  {Label: "1m", Size: time.Minute},
	"5m":  {Label: "5m", Size: 5 * time.Minute},
	"30m": {Label: "30m", Size: 30 * time.Minute},
	"1h":  {Label: "1h", Size: time.Hour},
	"4h":  {Label: "4h", Size: 4 * time.Hour},
	"6h":  {Label: "6h", Size: 6 * time.Hour},
	"12h": {Label: "12h", Size: 12 * time.Hour},
	"1d":  {Label: "1d", Size: day},
	"7d":  {Label: "7d", Size: 7 * day},
	"15d": {Label: "15d", Size: 15 * day},
	"30d": {Label: "30d", Size: 30 * day},
	"60d": {Label: "60d", Size: 60 * day},
}

// ParseBucketWidth resolves a width label such as "5m" or "1d".
func ParseBucketWidth(s string) (BucketWidth, error) {
	if s == "" {
		return BucketWidth{}, fmt.Errorf("bucket width must not be empty")
	}
	w, ok := bucketWidths[s]
	if !ok {
		return BucketWidth{}, fmt.Errorf("unsupported bucket width %q (1m,5m,30m,1h,4h,6h,12h,1d,7d,15d,30d,60d)", s)
	}
	return w, nil
}

// BucketFor returns the start of the epoch-aligned bucket containing t.
// Alignment matches Timestream bin() and Postgres date_bin with a 1970 origin.
// Example: BucketFor(10:35:42, 1*time.Minute) → 10:35:00
func BucketFor(t time.Time, width time.Duration) time.Time {
	ns := t.UTC().UnixNano()
	w := width.Nanoseconds()
	start := ns - ns%w
	if ns < 0 && ns%w != 0 {
		start -= w
	}
	return time.Unix(0, start).UTC()
}
