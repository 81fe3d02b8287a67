package cpu

import (
	"math"
	"math/bits"
)

// add32 returns the wrapped sum, the unsigned carry out of bit 31, and
// the signed overflow.
func add32(a, b int32) (sum int32, carry bool, overflow bool) {
	carry = uint64(uint32(a))+uint64(uint32(b)) > math.MaxUint32
	exact := int64(a) + int64(b)
	sum = int32(exact)
	overflow = exact != int64(sum)
	return
}

// sub32 returns the wrapped difference, a borrow when the exact
// difference is negative, and the signed overflow.
func sub32(a, b int32) (diff int32, borrow bool, overflow bool) {
	exact := int64(a) - int64(b)
	diff = int32(exact)
	borrow = exact < 0
	overflow = exact != int64(diff)
	return
}

func mul32(a, b int32) (product int32, overflow bool) {
	exact := int64(a) * int64(b)
	product = int32(exact)
	overflow = exact != int64(product)
	return
}

// div32 is floor division. Division by zero yields zero and overflow.
func div32(a, b int32) (quotient int32, overflow bool) {
	if b == 0 {
		overflow = true
		return
	}

	q := int64(a) / int64(b)
	if int64(a)%int64(b) != 0 && (a < 0) != (b < 0) {
		q--
	}
	quotient = int32(q)
	overflow = q != int64(quotient)
	return
}

// mod32 is the truncated remainder. Division by zero yields zero and overflow.
func mod32(a, b int32) (remainder int32, overflow bool) {
	if b == 0 {
		overflow = true
		return
	}

	remainder = int32(int64(a) % int64(b))
	return
}

// pow32 raises base to exp. The result wraps to 32 bits, and overflow is
// set if the exact result does not fit. Negative exponents floor the
// fractional result.
func pow32(base, exp int32) (result int32, overflow bool) {
	if exp < 0 {
		switch {
		case base == 0:
			overflow = true
		case base == 1:
			result = 1
		case base == -1:
			result = 1
			if exp&1 != 0 {
				result = -1
			}
		case base < 0 && exp&1 != 0:
			result = -1
		}
		return
	}

	wrapped := uint32(1)
	square := uint32(base)
	for e := uint32(exp); e > 0; e >>= 1 {
		if e&1 != 0 {
			wrapped *= square
		}
		square *= square
	}
	result = int32(wrapped)

	if base >= -1 && base <= 1 {
		return
	}

	if exp >= 32 {
		overflow = true
		return
	}

	acc := int64(1)
	for range exp {
		acc *= int64(base)
		if acc > math.MaxInt32 || acc < math.MinInt32 {
			overflow = true
			return
		}
	}

	return
}

// sqrt32 is the integer square root. Negative values yield zero.
func sqrt32(a int32) (root int32, negative bool) {
	if a < 0 {
		negative = true
		return
	}

	r := int64(math.Sqrt(float64(a)))
	for r*r > int64(a) {
		r--
	}
	for (r+1)*(r+1) <= int64(a) {
		r++
	}
	root = int32(r)
	return
}

// shl32 shifts left. Carry is the last bit shifted out.
func shl32(a int32, n int32) (result int32, carry bool) {
	n &= 31
	result = int32(uint32(a) << n)
	carry = n > 0 && (uint32(a)&(1<<(32-n))) != 0
	return
}

// shr32 is an unsigned shift right. Carry is the last bit shifted out.
func shr32(a int32, n int32) (result int32, carry bool) {
	n &= 31
	result = int32(uint32(a) >> n)
	carry = n > 0 && (uint32(a)&(1<<(n-1))) != 0
	return
}

func rol32(a int32, n int32) (result int32, carry bool) {
	n &= 31
	result = int32(bits.RotateLeft32(uint32(a), int(n)))
	carry = n > 0 && (uint32(a)&(1<<(32-n))) != 0
	return
}

func ror32(a int32, n int32) (result int32, carry bool) {
	n &= 31
	result = int32(bits.RotateLeft32(uint32(a), -int(n)))
	carry = n > 0 && (uint32(a)&(1<<(n-1))) != 0
	return
}

// popcnt32 counts set bits by clearing the lowest set bit until none remain.
func popcnt32(a int32) (count int32) {
	for v := uint32(a); v != 0; v &= v - 1 {
		count++
	}
	return
}

// clz32 counts leading zeros. Zero has 32.
func clz32(a int32) int32 {
	return int32(bits.LeadingZeros32(uint32(a)))
}
