package domain

import (
	"encoding/hex"
	"strconv"
	"strings"

	dErrors "meritledger/pkg/domain-errors"
)

// principalHexLen is the number of hex digits in a 20-byte account address.
const principalHexLen = 40

// Principal is an externally verifiable account address ("0x" + 40 hex digits),
// stored lower-cased so equality is byte equality.
type Principal string

// ParsePrincipal validates an account address at a trust boundary.
func ParsePrincipal(s string) (Principal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal is required")
	}
	if len(s) != principalHexLen+2 || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal must be a 0x-prefixed 20-byte hex address")
	}
	raw := strings.ToLower(s[2:])
	if _, err := hex.DecodeString(raw); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal must be a 0x-prefixed 20-byte hex address")
	}
	p := Principal("0x" + raw)
	if p.IsZero() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal must not be the zero address")
	}
	return p, nil
}

// MustPrincipal parses s and panics on failure. Intended for tests and constants.
func MustPrincipal(s string) Principal {
	p, err := ParsePrincipal(s)
	if err != nil {
		panic(err)
	}
	return p
}

// IsZero reports whether p is empty or the all-zero address.
func (p Principal) IsZero() bool {
	return p == "" || p == "0x"+Principal(strings.Repeat("0", principalHexLen))
}

func (p Principal) String() string {
	return string(p)
}

// CertificateID is the registry-assigned, monotonically increasing certificate number.
type CertificateID uint64

// ParseCertificateID parses a positive decimal id.
func ParseCertificateID(s string) (CertificateID, error) {
	v, err := parsePositive(s, "certificate id")
	return CertificateID(v), err
}

func (id CertificateID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ScholarshipID is the escrow-assigned scholarship number.
type ScholarshipID uint64

// ParseScholarshipID parses a positive decimal id.
func ParseScholarshipID(s string) (ScholarshipID, error) {
	v, err := parsePositive(s, "scholarship id")
	return ScholarshipID(v), err
}

func (id ScholarshipID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

func parsePositive(s, field string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || v == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, field+" must be a positive integer")
	}
	return v, nil
}
