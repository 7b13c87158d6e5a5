// Package watermark persists the timestamp of the last poll run that
// produced records, and converts it to the form the Meraki API accepts.
package watermark

import (
	"context"
	"strings"
	"time"
)

// Store gets and sets a single string parameter.
//
// Get returns def, not an error, when key has never been set. Every other
// failure is returned. Set overwrites unconditionally.
type Store interface {
	Get(ctx context.Context, key, def string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// DefaultKey is the parameter name the Lambda deployment has always used.
const DefaultKey = "/meraki-events/lastquerytime"

// DefaultLookback is how far back the first run reaches.
const DefaultLookback = 60 * time.Minute

// layout renders UTC as "+00:00" rather than "Z"; -07:00 never emits Z.
const layout = "2006-01-02T15:04:05.000000-07:00"

const utcOffset = "+00:00"

// Format renders t in UTC as ISO-8601 with microseconds and a +00:00 offset.
func Format(t time.Time) string {
	return t.UTC().Format(layout)
}

// DefaultStart is the watermark used when none has been stored.
func DefaultStart(now time.Time, lookback time.Duration) string {
	return Format(now.Add(-lookback))
}

// VendorTimestamp rewrites a trailing +00:00 offset to Z. The Meraki API
// rejects the numeric offset in startingAfter.
func VendorTimestamp(s string) string {
	if strings.HasSuffix(s, utcOffset) {
		return strings.TrimSuffix(s, utcOffset) + "Z"
	}
	return s
}
