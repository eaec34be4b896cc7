package core

import "fmt"

// Closed-form kernels for degree-3 polynomials used by radix-4 FRI layer
// construction.

// EvalQuartic evaluates degree 3 polynomial `p` at coordinate `x`.
func EvalQuartic(p [4]Element, x Element) Element {
	y := p[0].Add(p[1].Mul(x))
	x2 := x.Mul(x)
	y = y.Add(p[2].Mul(x2))
	x3 := x2.Mul(x)
	return y.Add(p[3].Mul(x3))
}

// EvaluateBatch evaluates a batch of degree 3 polynomials at the provided X
// coordinates.
func EvaluateBatch(polys [][4]Element, xs []Element) ([]Element, error) {
	if len(polys) != len(xs) {
		return nil, fmt.Errorf("number of polynomials must equal number of X coordinates: %d vs %d", len(polys), len(xs))
	}
	result := make([]Element, len(polys))
	for i := range polys {
		result[i] = EvalQuartic(polys[i], xs[i])
	}
	return result, nil
}

// InterpolateBatch interpolates a batch of X, Y coordinate quadruples into
// degree 3 polynomials. Inversions are amortized over the entire batch,
// following the closed-form construction of the reference implementation.
func InterpolateBatch(xs, ys [][4]Element) ([][4]Element, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("number of X coordinate batches must equal number of Y coordinate batches: %d vs %d", len(xs), len(ys))
	}

	n := len(xs)
	equations := make([][4]Element, n*4)
	inverses := make([]Element, n*4)

	for i := 0; i < n; i++ {
		x := xs[i]
		x01 := x[0].Mul(x[1])
		x02 := x[0].Mul(x[2])
		x03 := x[0].Mul(x[3])
		x12 := x[1].Mul(x[2])
		x13 := x[1].Mul(x[3])
		x23 := x[2].Mul(x[3])

		eq0 := [4]Element{
			x12.Mul(x[3]).Neg(),
			x12.Add(x13).Add(x23),
			x[1].Neg().Sub(x[2]).Sub(x[3]),
			One,
		}
		equations[i*4] = eq0
		inverses[i*4] = EvalQuartic(eq0, x[0])

		eq1 := [4]Element{
			x02.Mul(x[3]).Neg(),
			x02.Add(x03).Add(x23),
			x[0].Neg().Sub(x[2]).Sub(x[3]),
			One,
		}
		equations[i*4+1] = eq1
		inverses[i*4+1] = EvalQuartic(eq1, x[1])

		eq2 := [4]Element{
			x01.Mul(x[3]).Neg(),
			x01.Add(x03).Add(x13),
			x[0].Neg().Sub(x[1]).Sub(x[3]),
			One,
		}
		equations[i*4+2] = eq2
		inverses[i*4+2] = EvalQuartic(eq2, x[2])

		eq3 := [4]Element{
			x01.Mul(x[2]).Neg(),
			x01.Add(x02).Add(x12),
			x[0].Neg().Sub(x[1]).Sub(x[2]),
			One,
		}
		equations[i*4+3] = eq3
		inverses[i*4+3] = EvalQuartic(eq3, x[3])
	}

	inverses = InvMany(inverses)

	result := make([][4]Element, n)
	for i := 0; i < n; i++ {
		var poly [4]Element
		for k := 0; k < 4; k++ {
			invY := ys[i][k].Mul(inverses[i*4+k])
			eq := equations[i*4+k]
			for j := 0; j < 4; j++ {
				poly[j] = poly[j].Add(invY.Mul(eq[j]))
			}
		}
		result[i] = poly
	}
	return result, nil
}

// Transpose reshapes a flat vector of evaluations into a matrix of quartic
// rows preserving the bijection P(w^(i + t*m)) -> M[i][t], where m is the
// number of rows. The stride selects every stride-th source element, which
// maps evaluations of deeper FRI layers onto their reduced domains.
func Transpose(values []Element, stride int) ([][4]Element, error) {
	if len(values)%(4*stride) != 0 {
		return nil, fmt.Errorf("vector length must be divisible by %d, got %d", 4*stride, len(values))
	}
	m := len(values) / (4 * stride)
	result := make([][4]Element, m)
	for i := 0; i < m; i++ {
		for t := 0; t < 4; t++ {
			result[i][t] = values[(i+t*m)*stride]
		}
	}
	return result, nil
}

// ToQuarticRows packs a flat vector into consecutive rows of 4 elements.
func ToQuarticRows(values []Element) ([][4]Element, error) {
	if len(values)%4 != 0 {
		return nil, fmt.Errorf("vector length must be divisible by 4, got %d", len(values))
	}
	result := make([][4]Element, len(values)/4)
	for i := range result {
		copy(result[i][:], values[i*4:i*4+4])
	}
	return result, nil
}
