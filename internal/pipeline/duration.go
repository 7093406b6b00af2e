package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseSeconds normalizes the duration spellings that show up in chat
// messages and collaborator responses into whole seconds:
//
//	"00:30"    -> 30
//	"01:02:03" -> 3723
//	"29s"      -> 29
//	"32000ms"  -> 32
//	"29.6"     -> 30 (plain numbers are seconds, rounded)
func ParseSeconds(value string) (int, error) {
	v := strings.TrimSpace(strings.ToLower(value))
	if v == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if strings.Contains(v, ":") {
		parts := strings.Split(v, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return 0, fmt.Errorf("invalid clock duration %q", value)
		}
		total := 0
		for _, part := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n < 0 {
				return 0, fmt.Errorf("invalid clock duration %q", value)
			}
			total = total*60 + n
		}
		return total, nil
	}

	if strings.HasSuffix(v, "ms") {
		ms, err := strconv.ParseFloat(strings.TrimSuffix(v, "ms"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", value)
		}
		return int(math.Round(ms / 1000)), nil
	}

	v = strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(v, "seconds"), "sec"), "s")
	secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return int(math.Round(secs)), nil
}
