package filter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/silicakes/deluge-extensions-sub001/pkg/fs"
)

type FilterMode int

const (
	FilterModeNone FilterMode = iota
	FilterModeExact
	FilterModeContains
	FilterModeRegex
	FilterModeFuzzy
)

type StringFilter struct {
	Pattern string
	Mode    FilterMode
	regex   *regexp.Regexp
}

func NewStringFilter(pattern string, mode FilterMode) (*StringFilter, error) {
	f := &StringFilter{
		Pattern: pattern,
		Mode:    mode,
	}

	if mode == FilterModeRegex {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern '%s': %w", pattern, err)
		}
		f.regex = re
	}

	return f, nil
}

func (f *StringFilter) Match(s string) bool {
	if f.Mode == FilterModeNone {
		return true
	}

	switch f.Mode {
	case FilterModeExact:
		return strings.EqualFold(s, f.Pattern)
	case FilterModeContains:
		return strings.Contains(strings.ToLower(s), strings.ToLower(f.Pattern))
	case FilterModeRegex:
		return f.regex != nil && f.regex.MatchString(s)
	case FilterModeFuzzy:
		return FuzzyMatch(f.Pattern, s)
	default:
		return true
	}
}

func FuzzyMatch(pattern, text string) bool {
	if pattern == "" {
		return true
	}
	if text == "" {
		return false
	}

	pattern = strings.ToLower(pattern)
	text = strings.ToLower(text)

	return fuzzyMatchRecursive(pattern, text, 0, 0)
}

func fuzzyMatchRecursive(pattern, text string, pIdx, tIdx int) bool {
	if pIdx >= len(pattern) {
		return true
	}
	if tIdx >= len(text) {
		return false
	}

	if pattern[pIdx] == text[tIdx] {
		remainingChars := len(text) - tIdx - 1
		remainingPattern := len(pattern) - pIdx - 1

		if remainingPattern == 0 {
			return true
		}

		if remainingChars >= remainingPattern {
			return fuzzyMatchRecursive(pattern, text, pIdx+1, tIdx+1)
		}
	}

	return fuzzyMatchRecursive(pattern, text, pIdx, tIdx+1)
}

func LevenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	previousRow := make([]int, len(s2)+1)
	currentRow := make([]int, len(s2)+1)

	for i := 0; i <= len(s2); i++ {
		previousRow[i] = i
	}

	for i := 0; i < len(s1); i++ {
		currentRow[0] = i + 1

		for j := 0; j < len(s2); j++ {
			cost := 1
			if unicode.ToLower(rune(s1[i])) == unicode.ToLower(rune(s2[j])) {
				cost = 0
			}

			deletion := currentRow[j] + 1
			insertion := previousRow[j+1] + 1
			substitution := previousRow[j] + cost

			currentRow[j+1] = min(min(deletion, insertion), substitution)
		}

		previousRow, currentRow = currentRow, previousRow
	}

	return previousRow[len(s2)]
}

// EntryFilter narrows a directory listing for display.
type EntryFilter struct {
	NameContains string
	NameRegex    string
	NameFuzzy    string
	Extension    string
	DirsOnly     bool
	FilesOnly    bool
}

func (f *EntryFilter) Matches(e fs.Entry) (bool, error) {
	if f.DirsOnly && !e.IsDir() {
		return false, nil
	}
	if f.FilesOnly && e.IsDir() {
		return false, nil
	}

	if f.NameContains != "" {
		if !strings.Contains(strings.ToLower(e.Name), strings.ToLower(f.NameContains)) {
			return false, nil
		}
	}

	if f.NameRegex != "" {
		re, err := regexp.Compile(f.NameRegex)
		if err != nil {
			return false, fmt.Errorf("invalid name regex: %w", err)
		}
		if !re.MatchString(e.Name) {
			return false, nil
		}
	}

	if f.NameFuzzy != "" {
		if !FuzzyMatch(f.NameFuzzy, e.Name) {
			return false, nil
		}
	}

	if f.Extension != "" {
		ext := strings.TrimPrefix(strings.ToLower(f.Extension), ".")
		name := strings.ToLower(e.Name)
		if !strings.HasSuffix(name, "."+ext) {
			return false, nil
		}
	}

	return true, nil
}

// Apply runs the filter over a listing.
func (f *EntryFilter) Apply(entries []fs.Entry) ([]fs.Entry, error) {
	out := make([]fs.Entry, 0, len(entries))
	for _, e := range entries {
		ok, err := f.Matches(e)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}
