package fixmod

// Split writes the LimbDigits base-81 digits of limb into out, least
// significant first. A limb outside [0, M) means the store has been corrupted
// by a scaling defect; Split panics with a *RangeError in that case.
func Split(limb uint64, out *[LimbDigits]uint8) {
	x := limb
	for i := range out {
		out[i] = uint8(x % Radix)
		x /= Radix
	}
	if x != 0 {
		panic(&RangeError{What: "limb", Value: limb, Bound: M})
	}
}

// Join is the inverse of Split.
func Join(digits *[LimbDigits]uint8) uint64 {
	var v uint64
	for i := LimbDigits - 1; i >= 0; i-- {
		d := digits[i]
		if d >= Radix {
			panic(&RangeError{What: "digit", Value: uint64(d), Bound: Radix})
		}
		v = v*Radix + uint64(d)
	}
	return v
}
