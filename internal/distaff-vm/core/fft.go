package core

import (
	"fmt"
	"math/bits"
)

// Radix-2 in-place NTT over the prime field. The transform follows the
// structure of the reference implementation: values are permuted into
// bit-reversed order and combined with iterative butterflies.

// FFT evaluates the polynomial given by coefficients `values` at all powers
// of `root` in place. The length of `values` must be a power of two and
// `root` must be a primitive root of unity of the same order.
func FFT(values []Element, root Element) error {
	n := len(values)
	if n == 0 || n&(n-1) != 0 {
		return fmt.Errorf("domain size must be a power of 2, got %d", n)
	}
	if !root.ExpUint(uint64(n)).IsOne() || (n > 1 && root.ExpUint(uint64(n/2)).IsOne()) {
		return fmt.Errorf("root is not of order %d", n)
	}

	Permute(values)

	for length := 2; length <= n; length <<= 1 {
		wLen := root.ExpUint(uint64(n / length))
		half := length / 2
		for start := 0; start < n; start += length {
			w := One
			for j := 0; j < half; j++ {
				u := values[start+j]
				v := values[start+j+half].Mul(w)
				values[start+j] = u.Add(v)
				values[start+j+half] = u.Sub(v)
				w = w.Mul(wLen)
			}
		}
	}
	return nil
}

// InvFFT interpolates evaluations over the domain generated by `root` into
// polynomial coefficients in place.
func InvFFT(values []Element, root Element) error {
	n := len(values)
	invRoot := root.ExpUint(uint64(n - 1))
	if err := FFT(values, invRoot); err != nil {
		return err
	}
	invLength := NewElement(uint64(n)).Inv()
	for i := range values {
		values[i] = values[i].Mul(invLength)
	}
	return nil
}

// Permute rearranges the values into bit-reversed index order.
func Permute(values []Element) {
	n := len(values)
	if n <= 2 {
		return
	}
	shift := 64 - uint(bits.TrailingZeros(uint(n)))
	for i := 0; i < n; i++ {
		j := int(bits.Reverse64(uint64(i)) >> shift)
		if j > i {
			values[i], values[j] = values[j], values[i]
		}
	}
}
