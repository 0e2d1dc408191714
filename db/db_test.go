package db

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{
			name: "iso 8601 with z suffix",
			in:   "2024-03-01T10:30:00Z",
			want: time.Date(2024, 3, 1, 10, 30, 0, 0, time.Local),
		},
		{
			name: "space separated",
			in:   "2024-03-01 10:30:00",
			want: time.Date(2024, 3, 1, 10, 30, 0, 0, time.Local),
		},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "yesterday-ish", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimestamp(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTimestamp(%q) failed: %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if isUniqueViolation(nil) {
		t.Error("nil error is not a violation")
	}
	if isUniqueViolation(errors.New("database is locked")) {
		t.Error("unrelated error is not a violation")
	}
	if !isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: statuses.uri (2067)")) {
		t.Error("UNIQUE constraint message must be recognized")
	}
}
