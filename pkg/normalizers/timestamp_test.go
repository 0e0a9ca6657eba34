package normalizers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    models.Value
		expected string
		ok       bool
	}{
		{"iso utc", models.String("2024-01-01T00:00:00Z"), "2024-01-01T00:00:00Z", true},
		{"iso offset", models.String("2024-01-01T02:00:00+02:00"), "2024-01-01T00:00:00Z", true},
		{"iso fraction", models.String("2024-01-01T00:00:00.250Z"), "2024-01-01T00:00:00.25Z", true},
		{"space separator", models.String("2024-01-01 00:00:00Z"), "2024-01-01T00:00:00Z", true},
		{"compact offset", models.String("2024-01-01T00:00:00-0500"), "2024-01-01T05:00:00Z", true},
		{"epoch string", models.String("1704067200000"), "2024-01-01T00:00:00Z", true},
		{"epoch string with fraction", models.String("1704067200000.5"), "2024-01-01T00:00:00.0005Z", true},
		{"epoch number", models.Int(1704067200000), "2024-01-01T00:00:00Z", true},
		{"padded", models.String("  2024-01-01T00:00:00Z "), "2024-01-01T00:00:00Z", true},
		{"no zone marker", models.String("2024-01-01T00:00:00"), "", false},
		{"words", models.String("yesterday"), "", false},
		{"exponent", models.String("1e12"), "", false},
		{"infinity", models.String("Inf"), "", false},
		{"hex", models.String("0x10"), "", false},
		{"trailing dot", models.String("12."), "", false},
		{"out of range", models.Number(1e300), "", false},
		{"bool", models.Bool(true), "", false},
		{"null", models.Null(), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, FormatTimestamp(got))
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}
}

func TestParsedComparisonAcrossFormats(t *testing.T) {
	// "2024-01-01T01:00:00+02:00" sorts after "2024-01-01T00:00:00Z" as text but is earlier
	a, ok := ParseTimestamp(models.String("2024-01-01T01:00:00+02:00"))
	assert.True(t, ok)
	b, ok := ParseTimestamp(models.String("2024-01-01T00:00:00Z"))
	assert.True(t, ok)
	assert.True(t, a.Before(b))
}
