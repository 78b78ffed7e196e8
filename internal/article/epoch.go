package article

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatEpoch renders t as Unix seconds. Whole seconds have no fraction;
// the zero time renders as "".
func FormatEpoch(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if t.Nanosecond() == 0 {
		return strconv.FormatInt(t.Unix(), 10)
	}
	return strconv.FormatFloat(EpochSeconds(t), 'f', -1, 64)
}

// EpochSeconds returns t as fractional Unix seconds.
func EpochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

// FromEpochSeconds converts fractional Unix seconds to a UTC time.
func FromEpochSeconds(v float64) time.Time {
	whole, frac := math.Modf(v)
	return time.Unix(int64(whole), int64(math.Round(frac*1e6))*int64(time.Microsecond)).UTC()
}

// ParseEpoch parses Unix seconds, integral or fractional.
func ParseEpoch(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("parse epoch: empty value")
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse epoch %q: %w", trimmed, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, fmt.Errorf("parse epoch %q: not finite", trimmed)
	}
	return FromEpochSeconds(v), nil
}
