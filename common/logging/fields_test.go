package logging

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestFieldHelpers(t *testing.T) {
	tests := []struct {
		name    string
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{"Service", Service("meraki-activity"), FieldService, "meraki-activity"},
		{"RunID", RunID("run-1"), FieldRunID, "run-1"},
		{"OrgID", OrgID("549236"), FieldOrgID, "549236"},
		{"NetworkID", NetworkID("N_1234"), FieldNetworkID, "N_1234"},
		{"ProductType", ProductType("wireless"), FieldProductType, "wireless"},
		{"Cursor", Cursor("2024-01-01T00:00:00Z"), FieldCursor, "2024-01-01T00:00:00Z"},
		{"Stream", Stream("meraki-events"), FieldStream, "meraki-events"},
		{"Watermark", Watermark("2024-01-01T00:00:00+00:00"), FieldWatermark, "2024-01-01T00:00:00+00:00"},
		{"Error", Error(errors.New("boom")), FieldError, "boom"},
		{"Error nil", Error(nil), FieldError, ""},
		{"Backend", Backend("ssm"), FieldBackend, "ssm"},
		{"Path", Path("/metrics"), FieldPath, "/metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.wantKey)
			}
			if tt.attr.Value.String() != tt.wantVal {
				t.Errorf("value = %q, want %q", tt.attr.Value.String(), tt.wantVal)
			}
		})
	}
}

func TestNumericFieldHelpers(t *testing.T) {
	if attr := Count(42); attr.Key != FieldCount || attr.Value.Int64() != 42 {
		t.Errorf("Count(42) = %v", attr)
	}
	if attr := Status(503); attr.Key != FieldStatus || attr.Value.Int64() != 503 {
		t.Errorf("Status(503) = %v", attr)
	}
	if attr := Duration(1500 * time.Millisecond); attr.Key != FieldDuration || attr.Value.Int64() != 1500 {
		t.Errorf("Duration(1.5s) = %v", attr)
	}
}
