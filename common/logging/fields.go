package logging

import (
	"log/slog"
	"time"
)

// Field names shared by every log line that mentions poll state.
const (
	FieldService     = "service"
	FieldRunID       = "run_id"
	FieldOrgID       = "organization_id"
	FieldNetworkID   = "network_id"
	FieldProductType = "product_type"
	FieldCursor      = "starting_after"
	FieldCount       = "count"
	FieldStream      = "stream"
	FieldWatermark   = "watermark"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldBackend     = "backend"
	FieldStatus      = "status"
	FieldPath        = "path"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// RunID returns a slog attribute for a poll run ID.
func RunID(id string) slog.Attr {
	return slog.String(FieldRunID, id)
}

// OrgID returns a slog attribute for a Meraki organization ID.
func OrgID(id string) slog.Attr {
	return slog.String(FieldOrgID, id)
}

// NetworkID returns a slog attribute for a Meraki network ID.
func NetworkID(id string) slog.Attr {
	return slog.String(FieldNetworkID, id)
}

// ProductType returns a slog attribute for a Meraki product type.
func ProductType(pt string) slog.Attr {
	return slog.String(FieldProductType, pt)
}

// Cursor returns a slog attribute for the startingAfter value of a page request.
func Cursor(c string) slog.Attr {
	return slog.String(FieldCursor, c)
}

// Count returns a slog attribute for a record count.
func Count(n int) slog.Attr {
	return slog.Int(FieldCount, n)
}

// Stream returns a slog attribute for the sink stream name.
func Stream(name string) slog.Attr {
	return slog.String(FieldStream, name)
}

// Watermark returns a slog attribute for a watermark value.
func Watermark(v string) slog.Attr {
	return slog.String(FieldWatermark, v)
}

// Duration returns a slog attribute for a duration in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// Backend returns a slog attribute naming a pluggable backend.
func Backend(name string) slog.Attr {
	return slog.String(FieldBackend, name)
}

// Status returns a slog attribute for an HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Path returns a slog attribute for an HTTP path.
func Path(p string) slog.Attr {
	return slog.String(FieldPath, p)
}
