package domain

import "math"

// Amount is a quantity of the escrowed value in its native integer unit.
type Amount uint64

// CheckedAdd returns a+b, or false if the sum overflows.
func (a Amount) CheckedAdd(b Amount) (Amount, bool) {
	if b > math.MaxUint64-a {
		return 0, false
	}
	return a + b, true
}

// CheckedSub returns a-b, or false if b exceeds a.
func (a Amount) CheckedSub(b Amount) (Amount, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}
