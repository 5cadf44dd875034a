package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCompactCount(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"8M", 8000000},
		{"100K", 100000},
		{"1,234", 1234},
		{"57.3K", 57300},
		{"", 0},
		{"abc", 0},
		{"12", 12},
		{"3.1m", 3100000},
		{"2k", 2000},
		{"1,2M", 1200000},
		{"1.234.567", 1234567},
		{" 42 ", 42},
		{"12B", 0},  // only K and M are recognized
		{"K", 0},
		{"-5", 0},
		{"1 234", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCompactCount(tt.input))
		})
	}
}

func TestIsCompactCount(t *testing.T) {
	assert.True(t, IsCompactCount("8M"))
	assert.True(t, IsCompactCount("1,234"))
	assert.False(t, IsCompactCount("likes"))
	assert.False(t, IsCompactCount(""))
}
