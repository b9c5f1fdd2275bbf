package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ToInt coerces the loosely-typed numbers that come back from the
// device's JSON into an int.
func ToInt(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case int8:
		return int(val)
	case int16:
		return int(val)
	case int32:
		return int(val)
	case int64:
		return int(val)
	case uint:
		return int(val)
	case uint8:
		return int(val)
	case uint16:
		return int(val)
	case uint32:
		return int(val)
	case uint64:
		return int(val)
	case float32:
		return int(val)
	case float64:
		return int(val)
	case string:
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
		return 0
	default:
		return 0
	}
}

// Contains reports whether any element contains substr,
// case-insensitively.
func Contains(s []string, substr string) bool {
	for _, str := range s {
		if strings.Contains(strings.ToLower(str), strings.ToLower(substr)) {
			return true
		}
	}
	return false
}

func Deduplicate(s []string) []string {
	seen := make(map[string]bool)
	result := []string{}
	for _, str := range s {
		if !seen[str] {
			seen[str] = true
			result = append(result, str)
		}
	}
	return result
}

// FormatBytes renders a byte count for transfer progress display.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}

func Ptr[T any](v T) *T {
	return &v
}
