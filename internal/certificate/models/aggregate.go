package models

import (
	"math/bits"

	dErrors "meritledger/pkg/domain-errors"
)

// ComputeAggregate derives total credits and the credit-weighted SGPA:
//
//	sgpa = Σ(gradePoints × credits) / Σ(credits)
//
// using truncating integer division at GradeScale. Zero total credits is
// invalid input.
func ComputeAggregate(courses []CourseRecord) (Aggregate, error) {
	var totalCredits, weighted uint64
	for _, c := range courses {
		hi, product := bits.Mul64(c.GradePoints, c.CreditsObtained)
		if hi != 0 {
			return Aggregate{}, dErrors.New(dErrors.CodeInvalidInput, "course "+c.Code+" grade points overflow")
		}
		var carry uint64
		weighted, carry = bits.Add64(weighted, product, 0)
		if carry != 0 {
			return Aggregate{}, dErrors.New(dErrors.CodeInvalidInput, "weighted grade points overflow")
		}
		totalCredits, carry = bits.Add64(totalCredits, c.CreditsObtained, 0)
		if carry != 0 {
			return Aggregate{}, dErrors.New(dErrors.CodeInvalidInput, "total credits overflow")
		}
	}
	if totalCredits == 0 {
		return Aggregate{}, dErrors.New(dErrors.CodeInvalidInput, "total credits must be greater than zero")
	}
	return Aggregate{TotalCredits: totalCredits, SGPA: weighted / totalCredits}, nil
}
