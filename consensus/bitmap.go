package consensus

import "math/bits"

// ValidatorBitmap records which validators of a set signed a commit, one
// bit per validator rank. Rank is a validator's position in ascending index
// order within its set.
type ValidatorBitmap []byte

// NewValidatorBitmap returns an all-zero bitmap sized for n validators.
func NewValidatorBitmap(n int) ValidatorBitmap {
	return make(ValidatorBitmap, (n+7)/8)
}

// Size returns the number of validator slots the bitmap covers.
func (b ValidatorBitmap) Size() int { return len(b) * 8 }

// Set marks rank i as signed.
func (b ValidatorBitmap) Set(i int) error {
	if i < 0 || i >= b.Size() {
		return &Error{
			Kind:    KindBitmap,
			Code:    "MESH-CNS-001",
			Message: "bitmap index out of range",
		}
	}
	b[i/8] |= 1 << (i % 8)
	return nil
}

// IsSet reports whether rank i is marked. Out-of-range ranks read false.
func (b ValidatorBitmap) IsSet(i int) bool {
	if i < 0 || i >= b.Size() {
		return false
	}
	return b[i/8]&(1<<(i%8)) != 0
}

// CountSetBits returns the number of marked ranks.
func (b ValidatorBitmap) CountSetBits() int {
	n := 0
	for _, by := range b {
		n += bits.OnesCount8(by)
	}
	return n
}

// SetIndices returns the marked ranks in ascending order.
func (b ValidatorBitmap) SetIndices() []int {
	var out []int
	for i := 0; i < b.Size(); i++ {
		if b.IsSet(i) {
			out = append(out, i)
		}
	}
	return out
}

// Clone returns an independent copy.
func (b ValidatorBitmap) Clone() ValidatorBitmap {
	return append(ValidatorBitmap(nil), b...)
}
