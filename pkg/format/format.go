// Package format renders byte counts and schedules in the human-readable
// forms used by log output.
package format

import (
	"fmt"
	"strconv"
	"strings"
)

// Bytes formats a byte count into human-readable form.
// Example: Bytes(1536) => "1.5 KB"
func Bytes(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}

	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	sizes := []string{"KB", "MB", "GB", "TB", "PB", "EB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), sizes[exp])
}

// CronDescription returns a human-readable description of a standard 5-field
// cron expression (minute hour day-of-month month day-of-week). Expressions
// it cannot describe come back unchanged.
func CronDescription(expr string) string {
	fields := strings.Fields(strings.TrimSpace(expr))
	if len(fields) != 5 {
		return expr
	}
	min, hour, dom, _, dow := fields[0], fields[1], fields[2], fields[3], fields[4]

	if interval, ok := strings.CutPrefix(min, "*/"); ok {
		if n, err := strconv.Atoi(interval); err == nil && hour == "*" && dom == "*" && dow == "*" {
			return fmt.Sprintf("Every %d minutes", n)
		}
		return expr
	}
	if min == "*" {
		if hour == "*" && dom == "*" && dow == "*" {
			return "Every minute"
		}
		return expr
	}

	m, err := strconv.Atoi(min)
	if err != nil {
		return expr
	}

	if interval, ok := strings.CutPrefix(hour, "*/"); ok {
		if n, err := strconv.Atoi(interval); err == nil && dom == "*" && dow == "*" {
			return fmt.Sprintf("Every %d hours", n)
		}
		return expr
	}
	if hour == "*" {
		if dom != "*" || dow != "*" {
			return expr
		}
		if m == 0 {
			return "Every hour"
		}
		return fmt.Sprintf("Every hour at :%02d", m)
	}

	h, err := strconv.Atoi(hour)
	if err != nil {
		return expr
	}
	at := clockTime(h, m)

	switch {
	case dom == "*" && dow == "*":
		return "Daily at " + at
	case dom == "*":
		return dayNames(dow) + " at " + at
	case dow == "*":
		if d, err := strconv.Atoi(dom); err == nil {
			return fmt.Sprintf("%s of each month at %s", ordinal(d), at)
		}
	}
	return expr
}

func clockTime(hour, minute int) string {
	switch {
	case hour == 0 && minute == 0:
		return "midnight"
	case hour == 12 && minute == 0:
		return "noon"
	}

	period := "AM"
	h := hour
	switch {
	case hour == 0:
		h = 12
	case hour == 12:
		period = "PM"
	case hour > 12:
		h, period = hour-12, "PM"
	}
	if minute == 0 {
		return fmt.Sprintf("%d%s", h, period)
	}
	return fmt.Sprintf("%d:%02d%s", h, minute, period)
}

var days = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// dayNames renders a day-of-week field: a single day, a range, or a list.
func dayNames(field string) string {
	if from, to, ok := strings.Cut(field, "-"); ok {
		return shortDay(from) + "-" + shortDay(to)
	}
	if strings.Contains(field, ",") {
		parts := strings.Split(field, ",")
		for i, p := range parts {
			parts[i] = shortDay(p)
		}
		return strings.Join(parts, ", ")
	}
	if d, err := strconv.Atoi(field); err == nil && d >= 0 && d < 7 {
		return days[d] + "s"
	}
	return field
}

func shortDay(field string) string {
	if d, err := strconv.Atoi(field); err == nil && d >= 0 && d < 7 {
		return days[d][:3]
	}
	return field
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 10 {
	case 1:
		if n%100 != 11 {
			suffix = "st"
		}
	case 2:
		if n%100 != 12 {
			suffix = "nd"
		}
	case 3:
		if n%100 != 13 {
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
