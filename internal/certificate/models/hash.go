package models

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/sha3"

	"meritledger/pkg/domain"
)

// hashBody is the canonical encoding hashed into the content hash. Field order
// is fixed by the struct, so the encoding is deterministic.
type hashBody struct {
	Owner    domain.Principal `json:"owner"`
	SerialNo string           `json:"serial_no"`
	MemoNo   string           `json:"memo_no"`
	Metadata Metadata         `json:"metadata"`
	Courses  []CourseRecord   `json:"courses"`
}

// ContentHash returns the 0x-prefixed keccak-256 of the certificate body.
// Issuance time and issuer are excluded so the same document always hashes
// the same way.
func ContentHash(owner domain.Principal, serialNo, memoNo string, meta Metadata, courses []CourseRecord) string {
	body := hashBody{
		Owner:    owner,
		SerialNo: serialNo,
		MemoNo:   memoNo,
		Metadata: meta,
		Courses:  courses,
	}
	if !body.Metadata.EnrollmentDate.IsZero() {
		body.Metadata.EnrollmentDate = body.Metadata.EnrollmentDate.UTC()
	}
	raw, _ := json.Marshal(body)
	h := sha3.NewLegacyKeccak256()
	h.Write(raw)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
