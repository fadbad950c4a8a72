package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsStringInSlice(t *testing.T) {
	units := []string{"d", "w", "M", "y"}

	tests := []struct {
		name     string
		needle   string
		haystack []string
		expected bool
	}{
		{name: "found", needle: "w", haystack: units, expected: true},
		{name: "not found", needle: "h", haystack: units, expected: false},
		{name: "case sensitive", needle: "m", haystack: units, expected: false},
		{name: "empty needle", needle: "", haystack: units, expected: false},
		{name: "empty needle present", needle: "", haystack: []string{"d", ""}, expected: true},
		{name: "nil slice", needle: "d", haystack: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsStringInSlice(tt.needle, tt.haystack))
		})
	}
}

func TestIsStringInSliceFold(t *testing.T) {
	targets := []string{"DROP", "REJECT"}

	assert.True(t, IsStringInSliceFold("drop", targets))
	assert.True(t, IsStringInSliceFold("Reject", targets))
	assert.False(t, IsStringInSliceFold("ACCEPT", targets))
	assert.False(t, IsStringInSliceFold(" drop", targets))
	assert.False(t, IsStringInSliceFold("drop", nil))
}

func TestStringJoinOr(t *testing.T) {
	assert.Equal(t, "", StringJoinOr(nil))
	assert.Equal(t, "'file'", StringJoinOr([]string{"file"}))
	assert.Equal(t, "'input' or 'output'", StringJoinOr([]string{"input", "output"}))
	assert.Equal(t, "'file', 'redis' or 'postgres'", StringJoinOr([]string{"file", "redis", "postgres"}))
}
