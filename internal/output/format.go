package output

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/crimson-sun/machwatch/internal/model"
)

// LogLine renders the log sink record for an outcome, without the newline:
//
//	<unix_timestamp>, <temperature %.2f>, <rotational_speed>, <torque>, <prediction>
//
// The timestamp is fractional Unix seconds. Rotational speed is printed as
// an integer when integral, as an integer rpm column and the rpm minimum
// are. Torque uses the shortest round-trip form with a trailing ".0" for
// integral values.
func LogLine(o model.Outcome) string {
	var b strings.Builder
	b.WriteString(UnixSeconds(o.Timestamp))
	b.WriteString(", ")
	b.WriteString(strconv.FormatFloat(o.Row.Temperature, 'f', 2, 64))
	b.WriteString(", ")
	b.WriteString(Whole(o.Row.RotationalSpeed))
	b.WriteString(", ")
	b.WriteString(ShortFloat(o.Row.Torque))
	b.WriteString(", ")
	b.WriteString(strconv.Itoa(int(o.Label)))
	return b.String()
}

// UnixSeconds formats t as fractional seconds since the epoch, microsecond
// resolution.
func UnixSeconds(t time.Time) string {
	return ShortFloat(float64(t.UnixMicro()) / 1e6)
}

// ShortFloat prints v in the shortest form that round-trips, always with a
// decimal point or exponent so it reads back as a float.
func ShortFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	if a := math.Abs(v); a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Whole prints integral values without a fractional part and falls back
// to ShortFloat for everything else.
func Whole(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return ShortFloat(v)
}

// LogRecord is a log line read back from the sink.
type LogRecord struct {
	Timestamp       time.Time   `json:"timestamp"`
	Temperature     float64     `json:"temperature"`
	RotationalSpeed float64     `json:"rotational_speed"`
	Torque          float64     `json:"torque"`
	Label           model.Label `json:"prediction"`
}

// ParseLogLine reads a line written by LogLine.
func ParseLogLine(line string) (LogRecord, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 5 {
		return LogRecord{}, fmt.Errorf("log line: expected 5 fields, got %d", len(parts))
	}
	var nums [4]float64
	for i := range nums {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return LogRecord{}, fmt.Errorf("log line: field %d: %w", i+1, err)
		}
		nums[i] = v
	}
	raw, err := strconv.ParseInt(strings.TrimSpace(parts[4]), 10, 64)
	if err != nil {
		return LogRecord{}, fmt.Errorf("log line: prediction: %w", err)
	}
	label, err := model.ParseLabel(raw)
	if err != nil {
		return LogRecord{}, fmt.Errorf("log line: %w", err)
	}
	sec, frac := math.Modf(nums[0])
	return LogRecord{
		Timestamp:       time.Unix(int64(sec), int64(math.Round(frac*1e6))*1e3).UTC(),
		Temperature:     nums[1],
		RotationalSpeed: nums[2],
		Torque:          nums[3],
		Label:           label,
	}, nil
}
