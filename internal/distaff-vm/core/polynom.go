package core

import "fmt"

// Polynomial kernels over the prime field. Polynomials are represented as
// coefficient slices in ascending degree order.

// EvalPoly evaluates polynomial `p` at coordinate `x` using Horner's method.
func EvalPoly(p []Element, x Element) Element {
	result := Zero
	for i := len(p) - 1; i >= 0; i-- {
		result = result.Mul(x).Add(p[i])
	}
	return result
}

// EvalPolyFFT evaluates polynomial `p` over the root-of-unity domain of size
// len(p) in place.
func EvalPolyFFT(p []Element) error {
	root, err := RootOfUnity(len(p))
	if err != nil {
		return err
	}
	return FFT(p, root)
}

// InterpolateFFT interpolates evaluations `v` over the root-of-unity domain
// of size len(v) into polynomial coefficients in place.
func InterpolateFFT(v []Element) error {
	root, err := RootOfUnity(len(v))
	if err != nil {
		return err
	}
	return InvFFT(v, root)
}

// Interpolate builds a polynomial from X and Y coordinates using Lagrange
// interpolation; inversions are batched across all basis denominators.
func Interpolate(xs, ys []Element) ([]Element, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("number of X and Y coordinates must be the same: %d vs %d", len(xs), len(ys))
	}

	roots := zeroRoots(xs)
	numerators := make([][]Element, len(xs))
	for i := range xs {
		numerators[i] = SynDiv(roots, xs[i])
	}

	denominators := make([]Element, len(xs))
	for i := range xs {
		denominators[i] = EvalPoly(numerators[i], xs[i])
	}
	denominators = InvMany(denominators)

	result := make([]Element, len(xs))
	for i := range xs {
		yScaled := ys[i].Mul(denominators[i])
		for j := range xs {
			result[j] = result[j].Add(numerators[i][j].Mul(yScaled))
		}
	}
	return result, nil
}

// AddPolys returns the sum of two polynomials.
func AddPolys(a, b []Element) []Element {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	result := make([]Element, n)
	for i := range result {
		var av, bv Element
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		result[i] = av.Add(bv)
	}
	return result
}

// SubPolys returns the difference of two polynomials.
func SubPolys(a, b []Element) []Element {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	result := make([]Element, n)
	for i := range result {
		var av, bv Element
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		result[i] = av.Sub(bv)
	}
	return result
}

// MulPolys returns the product of two polynomials.
func MulPolys(a, b []Element) []Element {
	result := make([]Element, len(a)+len(b)-1)
	for i := range a {
		for j := range b {
			result[i+j] = result[i+j].Add(a[i].Mul(b[j]))
		}
	}
	return result
}

// MulPolyScalar multiplies every coefficient of `p` by `k`.
func MulPolyScalar(p []Element, k Element) []Element {
	result := make([]Element, len(p))
	for i := range p {
		result[i] = p[i].Mul(k)
	}
	return result
}

// SynDiv divides polynomial `p` by the binomial (x - a) using synthetic
// division and returns the quotient; the remainder is discarded.
func SynDiv(p []Element, a Element) []Element {
	result := make([]Element, len(p)-1)
	carry := Zero
	for i := len(p) - 1; i > 0; i-- {
		carry = p[i].Add(carry.Mul(a))
		result[i-1] = carry
	}
	return result
}

// SynDivExpanded divides polynomial `p` by Z(x) = (x^degree - 1) / (x - exclude),
// the vanishing polynomial of all trace steps except the last one. The
// division must be exact: p is first multiplied by (x - exclude) and the
// product is then divided by (x^degree - 1).
func SynDivExpanded(p []Element, degree int, exclude Element) []Element {
	// s = p * (x - exclude)
	s := make([]Element, len(p)+1)
	for i := range p {
		s[i] = s[i].Sub(p[i].Mul(exclude))
		s[i+1] = s[i+1].Add(p[i])
	}

	// divide s by (x^degree - 1): s[i] = q[i-degree] - q[i], so working
	// from the highest coefficient down, q[i-degree] = s[i] + q[i]
	quotient := make([]Element, len(s))
	for i := len(s) - 1; i >= degree; i-- {
		quotient[i-degree] = s[i].Add(quotient[i])
	}

	result := make([]Element, len(p))
	copy(result, quotient[:len(p)])
	return result
}

// ShiftDomain transforms polynomial coefficients so that evaluating the
// result over a root-of-unity domain is equivalent to evaluating the
// original polynomial over the same domain scaled by `offset`.
func ShiftDomain(p []Element, offset Element) []Element {
	result := make([]Element, len(p))
	factor := One
	for i := range p {
		result[i] = p[i].Mul(factor)
		factor = factor.Mul(offset)
	}
	return result
}

// DegreeOf returns the degree of the polynomial, ignoring leading zeros.
func DegreeOf(p []Element) int {
	for i := len(p) - 1; i >= 0; i-- {
		if !p[i].IsZero() {
			return i
		}
	}
	return 0
}

// zeroRoots computes the polynomial with roots at all provided X coordinates.
func zeroRoots(xs []Element) []Element {
	result := []Element{One}
	for _, x := range xs {
		next := make([]Element, len(result)+1)
		for j, c := range result {
			next[j+1] = next[j+1].Add(c)
			next[j] = next[j].Sub(c.Mul(x))
		}
		result = next
	}
	return result
}
