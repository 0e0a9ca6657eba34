package normalizers

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// largest millisecond offset a time.Time built from UnixMilli round-trips cleanly
const maxEpochMillis = 8.64e15

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999Z0700",
}

// ParseTimestamp accepts ISO-8601 with a zone marker ("Z" or an offset) or epoch
// milliseconds, either as a numeric string or a number. The result is in UTC.
func ParseTimestamp(v models.Value) (time.Time, bool) {
	switch v.Kind() {
	case models.KindString:
		s, _ := v.AsString()
		return ParseTimestampString(s)
	case models.KindNumber:
		n, _ := v.AsNumber()
		return fromEpochMillis(n)
	}
	return time.Time{}, false
}

func ParseTimestampString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	if !isEpochString(s) {
		return time.Time{}, false
	}
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, false
	}
	return fromEpochMillis(ms)
}

// isEpochString matches an optional sign, digits and an optional fraction. Exponents, hex
// floats and "Inf" are not epoch milliseconds.
func isEpochString(s string) bool {
	s = strings.TrimPrefix(s, "-")
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || !allDigits(whole) {
		return false
	}
	return !hasFrac || (frac != "" && allDigits(frac))
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func fromEpochMillis(ms float64) (time.Time, bool) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || math.Abs(ms) > maxEpochMillis {
		return time.Time{}, false
	}

	whole := math.Trunc(ms)
	nanos := int64(math.Round((ms - whole) * 1e6))
	return time.UnixMilli(int64(whole)).Add(time.Duration(nanos)).UTC(), true
}

// FormatTimestamp is the form parsed timestamps take in flat records.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
