// Package units provides human-readable size and duration values for
// configuration and status output.
//
// Sizes accept binary units (KB/MB/GB/TB, or KiB/MiB/... explicitly) and bare
// byte counts. Durations accept everything time.ParseDuration does plus day
// and week suffixes for retention-style settings ("30d", "2w").
package units

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Size is a byte count parsed from a human-readable string.
type Size int64

const (
	Byte Size = 1
	KB        = 1024 * Byte
	MB        = 1024 * KB
	GB        = 1024 * MB
	TB        = 1024 * GB
)

var sizeUnits = map[string]Size{
	"":    Byte,
	"b":   Byte,
	"k":   KB,
	"kb":  KB,
	"kib": KB,
	"m":   MB,
	"mb":  MB,
	"mib": MB,
	"g":   GB,
	"gb":  GB,
	"gib": GB,
	"t":   TB,
	"tb":  TB,
	"tib": TB,
}

// ParseSize parses strings like "500MB", "1.5 GB" or "4096". No unit means
// bytes.
func ParseSize(s string) (Size, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("units: empty size")
	}

	split := len(trimmed)
	for i, r := range trimmed {
		if (r < '0' || r > '9') && r != '.' {
			split = i
			break
		}
	}

	value, err := strconv.ParseFloat(trimmed[:split], 64)
	if err != nil {
		return 0, fmt.Errorf("units: invalid size %q", s)
	}

	unit := strings.ToLower(strings.TrimSpace(trimmed[split:]))
	mult, ok := sizeUnits[unit]
	if !ok {
		return 0, fmt.Errorf("units: unknown size unit %q", unit)
	}
	return Size(value * float64(mult)), nil
}

// MustParseSize panics on parse failure. Intended for defaults known at
// compile time.
func MustParseSize(s string) Size {
	size, err := ParseSize(s)
	if err != nil {
		panic(err)
	}
	return size
}

// Bytes returns the size as a plain int64 byte count.
func (s Size) Bytes() int64 { return int64(s) }

// String renders the size with the largest unit that keeps the value >= 1.
func (s Size) String() string {
	if s == 0 {
		return "0B"
	}
	neg := ""
	if s < 0 {
		neg, s = "-", -s
	}
	for _, step := range []struct {
		limit Size
		unit  string
	}{{TB, "TB"}, {GB, "GB"}, {MB, "MB"}, {KB, "KB"}} {
		if s >= step.limit {
			v := float64(s) / float64(step.limit)
			if v == float64(int64(v)) {
				return fmt.Sprintf("%s%d%s", neg, int64(v), step.unit)
			}
			return fmt.Sprintf("%s%s%s", neg, strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), "."), step.unit)
		}
	}
	return fmt.Sprintf("%s%dB", neg, int64(s))
}

// UnmarshalText lets Size decode straight from YAML/viper string values.
func (s *Size) UnmarshalText(text []byte) error {
	parsed, err := ParseSize(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalText renders the human-readable form.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalJSON accepts either "500MB" or a raw byte count.
func (s *Size) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		return s.UnmarshalText([]byte(str))
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("units: size must be a string or byte count")
	}
	*s = Size(n)
	return nil
}

// MarshalJSON renders the human-readable form.
func (s Size) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Duration wraps time.Duration with day/week suffix parsing and text
// (un)marshalling for configuration files.
type Duration time.Duration

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// ParseDuration parses standard Go durations plus a trailing day or week
// component ("36h", "30d", "2w", "1w12h").
func ParseDuration(s string) (Duration, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("units: empty duration")
	}

	// Expand day/week components into hours so the stdlib parser can take
	// over. "1w2d12h" -> "168h48h12h".
	var b strings.Builder
	num := ""
	for _, r := range trimmed {
		switch {
		case (r >= '0' && r <= '9') || r == '.':
			num += string(r)
		case r == 'd' || r == 'w':
			if num == "" {
				return 0, fmt.Errorf("units: invalid duration %q", s)
			}
			v, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("units: invalid duration %q", s)
			}
			hours := v * 24
			if r == 'w' {
				hours *= 7
			}
			fmt.Fprintf(&b, "%gh", hours)
			num = ""
		default:
			b.WriteString(num)
			b.WriteRune(r)
			num = ""
		}
	}
	b.WriteString(num)

	d, err := time.ParseDuration(b.String())
	if err != nil {
		return 0, fmt.Errorf("units: invalid duration %q", s)
	}
	return Duration(d), nil
}

// MustParseDuration panics on parse failure.
func MustParseDuration(s string) Duration {
	d, err := ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Std returns the embedded time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalText lets Duration decode straight from YAML/viper string values.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalText renders the standard Go duration form.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
