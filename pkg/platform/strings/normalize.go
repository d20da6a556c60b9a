// Package strings normalises the free-text identifiers that cross trust
// boundaries (course codes, department names, document numbers).
package strings

import (
	"strings"
)

// NormalizeCodes trims, upper-cases and de-duplicates codes, dropping empty
// entries. Order of first occurrence is preserved.
//
//	NormalizeCodes([]string{" cs101 ", "MA201", "CS101", ""})
//	// Returns: []string{"CS101", "MA201"}
func NormalizeCodes(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		code := NormalizeCode(v)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		result = append(result, code)
	}
	return result
}

// NormalizeCode is the canonical form of a single course code.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeNames trims and de-duplicates names case-insensitively, keeping the
// spelling of the first occurrence.
func NormalizeNames(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		name := strings.TrimSpace(v)
		if name == "" {
			continue
		}
		key := Fold(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, name)
	}
	return result
}

// Fold returns the comparison key for case-insensitive matching.
func Fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ContainsFold reports whether list holds s, ignoring case and surrounding space.
func ContainsFold(list []string, s string) bool {
	key := Fold(s)
	for _, v := range list {
		if Fold(v) == key {
			return true
		}
	}
	return false
}
