package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseRFC3339 returns a time from the provided string or an error.
func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}

// ParseHumanDuration parses duration strings with week and day units in
// addition to the standard hour/minute/second suffixes ("7d", "1w2d", "36h",
// "90m"). Word forms such as "7 days" are accepted. A bare number is
// interpreted as seconds.
func ParseHumanDuration(value string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(value))
	if s == "" {
		return 0, fmt.Errorf("empty duration value")
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}

	var total time.Duration
	num := ""
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' {
			continue
		}
		if (c >= '0' && c <= '9') || c == '.' {
			num += string(c)
			continue
		}
		if num == "" {
			return 0, fmt.Errorf("invalid duration %q", value)
		}
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", value, err)
		}
		var unit time.Duration
		switch c {
		case 'w':
			unit = 7 * 24 * time.Hour
		case 'd':
			unit = 24 * time.Hour
		case 'h':
			unit = time.Hour
		case 'm':
			unit = time.Minute
		case 's':
			unit = time.Second
		default:
			return 0, fmt.Errorf("unknown duration unit %q in %q", string(c), value)
		}
		// Swallow the rest of word units ("days", "hours", "min").
		for i+1 < len(s) && s[i+1] >= 'a' && s[i+1] <= 'z' {
			i++
		}
		total += time.Duration(n * float64(unit))
		num = ""
	}
	if num != "" {
		return 0, fmt.Errorf("trailing number without unit in %q", value)
	}
	if total <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", value)
	}
	return total, nil
}

// HumanizeDuration renders a duration as a full-word phrase, e.g.
// "2 days 3 hours 30 minutes". Sub-second remainders are dropped.
func HumanizeDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	d = d.Round(time.Second)
	if d == 0 {
		return "0 seconds"
	}

	units := []struct {
		name string
		d    time.Duration
	}{
		{"day", 24 * time.Hour},
		{"hour", time.Hour},
		{"minute", time.Minute},
		{"second", time.Second},
	}

	parts := make([]string, 0, len(units))
	for _, unit := range units {
		if n := d / unit.d; n > 0 {
			label := unit.name
			if n > 1 {
				label += "s"
			}
			parts = append(parts, fmt.Sprintf("%d %s", n, label))
			d -= n * unit.d
		}
	}
	return strings.Join(parts, " ")
}
