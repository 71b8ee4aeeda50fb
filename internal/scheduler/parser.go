package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

var (
	intervalRegex = regexp.MustCompile(`^every\s+(\d+)\s*(s|m|h|d|seconds?|minutes?|hours?|days?)$`)
	dailyRegex    = regexp.MustCompile(`^daily\s+at\s+(\d{1,2}):(\d{2})$`)
)

// ParseExpression parses a schedule expression. Standard five-field cron
// specs and descriptors such as "@daily" or "@every 1h" are accepted, as
// well as the shorthands "every 30m" and "daily at 03:00".
func ParseExpression(expr string) (cron.Schedule, error) {
	normalized, err := normalizeExpression(expr)
	if err != nil {
		return nil, err
	}
	schedule, err := cron.ParseStandard(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule expression %q: %w", expr, err)
	}
	return schedule, nil
}

// normalizeExpression rewrites the shorthands into forms cron understands.
func normalizeExpression(expr string) (string, error) {
	trimmed := strings.TrimSpace(expr)
	lower := strings.ToLower(trimmed)
	if lower == "" {
		return "", fmt.Errorf("empty schedule expression")
	}

	if m := intervalRegex.FindStringSubmatch(lower); m != nil {
		value, _ := strconv.Atoi(m[1])
		if value <= 0 {
			return "", fmt.Errorf("interval must be positive: %q", expr)
		}
		unit := m[2][:1]
		if unit == "d" {
			return fmt.Sprintf("@every %dh", value*24), nil
		}
		return fmt.Sprintf("@every %d%s", value, unit), nil
	}

	if m := dailyRegex.FindStringSubmatch(lower); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return "", fmt.Errorf("invalid time of day: %q", expr)
		}
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	}

	return trimmed, nil
}
