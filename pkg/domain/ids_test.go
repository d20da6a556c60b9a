package domain

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "meritledger/pkg/domain-errors"
)

// TestParsePrincipal_TrustBoundary validates that addresses entering from
// transports are rejected unless they are well-formed, non-zero 20-byte hex.
func TestParsePrincipal_TrustBoundary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Empty string", "", true},
		{"Whitespace only", "   ", true},
		{"Missing prefix", "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed00", true},
		{"Too short", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1bea", true},
		{"Too long", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed00", true},
		{"Non hex digit", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beazz", true},
		{"Zero address", "0x0000000000000000000000000000000000000000", true},
		{"SQL injection attempt", "'; DROP TABLE certificates;--", true},
		{"Oversized input", strings.Repeat("a", 1000), true},

		{"Checksummed address", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", false},
		{"Upper prefix", "0X5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrincipal(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestParsePrincipal_Normalizes(t *testing.T) {
	a, err := ParsePrincipal("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	require.NoError(t, err)
	b, err := ParsePrincipal("  0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed ")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", a.String())
}

func TestParseNumericIDs(t *testing.T) {
	t.Run("accepts positive integers", func(t *testing.T) {
		cid, err := ParseCertificateID("42")
		require.NoError(t, err)
		assert.Equal(t, CertificateID(42), cid)

		sid, err := ParseScholarshipID("7")
		require.NoError(t, err)
		assert.Equal(t, ScholarshipID(7), sid)
	})

	for _, input := range []string{"", "0", "-1", "abc", "1.5", "18446744073709551616"} {
		t.Run("rejects "+input, func(t *testing.T) {
			_, err := ParseCertificateID(input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

			_, err = ParseScholarshipID(input)
			require.Error(t, err)
		})
	}
}

func TestAmountCheckedArithmetic(t *testing.T) {
	sum, ok := Amount(40).CheckedAdd(60)
	assert.True(t, ok)
	assert.Equal(t, Amount(100), sum)

	_, ok = Amount(math.MaxUint64).CheckedAdd(1)
	assert.False(t, ok)

	diff, ok := Amount(100).CheckedSub(50)
	assert.True(t, ok)
	assert.Equal(t, Amount(50), diff)

	_, ok = Amount(1).CheckedSub(2)
	assert.False(t, ok)
}
