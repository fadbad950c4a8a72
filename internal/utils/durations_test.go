package utils

import (
	"testing"
	"time"
)

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "seconds as number", input: "90", expected: 90 * time.Second},
		{name: "zero", input: "0", expected: 0},
		{name: "standard units", input: "1h30m", expected: 90 * time.Minute},
		{name: "milliseconds", input: "1500ms", expected: 1500 * time.Millisecond},
		{name: "days", input: "2d", expected: 48 * time.Hour},
		{name: "weeks and days", input: "1w2d", expected: 9 * Day},
		{name: "months", input: "1M", expected: Month},
		{name: "years", input: "1y", expected: Year},
		{name: "surrounding whitespace", input: " 10m ", expected: 10 * time.Minute},
		{name: "empty", input: "", wantErr: true},
		{name: "unknown unit", input: "5x", wantErr: true},
		{name: "negative", input: "-5m", wantErr: true},
		{name: "trailing garbage", input: "5m!", wantErr: true},
		{name: "unit only", input: "h", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDurationString(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDurationString(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDurationString(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseDurationString(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}
