package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCodes(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{name: "upper-cases and trims", input: []string{" cs101 ", "ma201"}, expected: []string{"CS101", "MA201"}},
		{name: "dedupes case-insensitively preserving order", input: []string{"CS101", "ma201", "cs101"}, expected: []string{"CS101", "MA201"}},
		{name: "drops empty entries", input: []string{"", "  ", "PH100"}, expected: []string{"PH100"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeCodes(tt.input))
		})
	}
}

func TestNormalizeNames(t *testing.T) {
	got := NormalizeNames([]string{" Computer Science", "computer science ", "Physics", ""})
	assert.Equal(t, []string{"Computer Science", "Physics"}, got)
}

func TestContainsFold(t *testing.T) {
	list := []string{"Computer Science", "Physics"}
	assert.True(t, ContainsFold(list, "computer science"))
	assert.True(t, ContainsFold(list, "  PHYSICS "))
	assert.False(t, ContainsFold(list, "Chemistry"))
	assert.False(t, ContainsFold(nil, "Physics"))
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "CS101", NormalizeCode(" cs101"))
	assert.Empty(t, NormalizeCode("   "))
}
