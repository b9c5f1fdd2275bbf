package fs

import (
	"strings"
)

// MaxNameBytes is the longest filename the device's FAT layer accepts.
const MaxNameBytes = 255

// illegal byte set for FAT filenames; path separators included because
// these rules apply to a single name segment.
const illegalChars = `<>:"/\|?*`

var reservedNames = func() map[string]bool {
	m := map[string]bool{
		"CON": true, "PRN": true, "AUX": true, "NUL": true,
	}
	for i := 1; i <= 9; i++ {
		m["COM"+string(rune('0'+i))] = true
		m["LPT"+string(rune('0'+i))] = true
	}
	return m
}()

// ValidationResult carries hard errors and non-fatal warnings for one
// filename.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// ValidateName checks a single filename segment against the FAT rules.
func ValidateName(name string) ValidationResult {
	var r ValidationResult

	if strings.TrimSpace(name) == "" {
		r.Errors = append(r.Errors, "name is empty or whitespace only")
		return r
	}
	if len(name) > MaxNameBytes {
		r.Errors = append(r.Errors, "name exceeds 255 bytes")
	}
	for i := 0; i < len(name); i++ {
		b := name[i]
		if b < 0x20 {
			r.Errors = append(r.Errors, "name contains control characters")
			break
		}
	}
	if strings.ContainsAny(name, illegalChars) {
		r.Errors = append(r.Errors, `name contains reserved characters <>:"/\|?*`)
	}
	if reservedNames[strings.ToUpper(name)] {
		r.Errors = append(r.Errors, "name is a reserved device name")
	}
	if strings.HasSuffix(name, ".") || strings.HasSuffix(name, " ") {
		r.Warnings = append(r.Warnings, "trailing dot or space may be stripped by the device")
	}
	return r
}

// SanitizeName produces a valid name from an arbitrary one: each illegal
// byte becomes '_', reserved names gain a '_' prefix, empty or
// whitespace-only input collapses to "_". Idempotent.
func SanitizeName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x20 || strings.IndexByte(illegalChars, c) >= 0 {
			b.WriteByte('_')
		} else {
			b.WriteByte(c)
		}
	}
	out := b.String()
	if reservedNames[strings.ToUpper(out)] {
		out = "_" + out
	}
	if len(out) > MaxNameBytes {
		out = out[:MaxNameBytes]
	}
	return out
}
