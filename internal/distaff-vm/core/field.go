package core

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"
)

// The prime field used throughout the VM: p = 2^128 - 45 * 2^40 + 1.
// All trace registers, constraint evaluations and FRI layers are vectors
// of elements of this field.
var (
	// Modulus is the field modulus.
	Modulus = mustParseBig("340282366920938463463374557953744961537")

	// G40 is a primitive 2^40-th root of unity.
	G40 = NewElementFromString("23953097886125630542083529559205016746")

	// Generator generates the multiplicative group of the field; it is used
	// as the offset which turns the LDE domain into a coset disjoint from
	// the trace domain.
	Generator = NewElement(3)

	// Zero is the additive identity.
	Zero = Element{}

	// One is the multiplicative identity.
	One = NewElement(1)

	bigZero = big.NewInt(0)
)

// MaxRootOrder is the largest power-of-two order for which a primitive root
// of unity exists in the field (2^40 divides p - 1).
const MaxRootOrder = 1 << 40

// ElementSize is the serialized size of a field element in bytes.
const ElementSize = 16

// Element represents an element of the prime field. The zero value is a
// valid representation of 0. Elements are immutable; all operations return
// new values.
type Element struct {
	v *big.Int
}

// NewElement creates a field element from a uint64.
func NewElement(value uint64) Element {
	return Element{v: new(big.Int).SetUint64(value)}
}

// NewElementFromBig creates a field element from a big.Int, reducing it
// modulo the field modulus.
func NewElementFromBig(value *big.Int) Element {
	v := new(big.Int).Mod(value, Modulus)
	return Element{v: v}
}

// NewElementFromString creates a field element from a base-10 string.
// It panics if the string is not a valid integer; it is intended for
// initializing package-level constants.
func NewElementFromString(s string) Element {
	return NewElementFromBig(mustParseBig(s))
}

// NewElementFromBytes deserializes a field element from a 16-byte
// little-endian encoding.
func NewElementFromBytes(b []byte) (Element, error) {
	if len(b) != ElementSize {
		return Zero, fmt.Errorf("field element must be %d bytes, got %d", ElementSize, len(b))
	}
	be := make([]byte, ElementSize)
	for i := range b {
		be[ElementSize-1-i] = b[i]
	}
	return NewElementFromBig(new(big.Int).SetBytes(be)), nil
}

func (e Element) big() *big.Int {
	if e.v == nil {
		return bigZero
	}
	return e.v
}

// Big returns the element value as a big.Int.
func (e Element) Big() *big.Int {
	return new(big.Int).Set(e.big())
}

// Add returns e + other mod p.
func (e Element) Add(other Element) Element {
	v := new(big.Int).Add(e.big(), other.big())
	if v.Cmp(Modulus) >= 0 {
		v.Sub(v, Modulus)
	}
	return Element{v: v}
}

// Sub returns e - other mod p.
func (e Element) Sub(other Element) Element {
	v := new(big.Int).Sub(e.big(), other.big())
	if v.Sign() < 0 {
		v.Add(v, Modulus)
	}
	return Element{v: v}
}

// Neg returns the additive inverse of the element.
func (e Element) Neg() Element {
	return Zero.Sub(e)
}

// Mul returns e * other mod p.
func (e Element) Mul(other Element) Element {
	v := new(big.Int).Mul(e.big(), other.big())
	return Element{v: v.Mod(v, Modulus)}
}

// Inv returns the multiplicative inverse of the element. Zero maps to zero,
// mirroring the behavior expected by batch inversion and the EQ operation.
func (e Element) Inv() Element {
	if e.IsZero() {
		return Zero
	}
	return Element{v: new(big.Int).ModInverse(e.big(), Modulus)}
}

// Div returns e / other mod p; division by zero yields zero.
func (e Element) Div(other Element) Element {
	return e.Mul(other.Inv())
}

// Exp returns e raised to the given power.
func (e Element) Exp(power Element) Element {
	return Element{v: new(big.Int).Exp(e.big(), power.big(), Modulus)}
}

// ExpUint returns e raised to the given uint64 power.
func (e Element) ExpUint(power uint64) Element {
	return Element{v: new(big.Int).Exp(e.big(), new(big.Int).SetUint64(power), Modulus)}
}

// Equal reports whether two elements represent the same value.
func (e Element) Equal(other Element) bool {
	return e.big().Cmp(other.big()) == 0
}

// IsZero reports whether the element is 0.
func (e Element) IsZero() bool {
	return e.big().Sign() == 0
}

// IsOne reports whether the element is 1.
func (e Element) IsOne() bool {
	return e.big().Cmp(One.big()) == 0
}

// Uint64 returns the low 64 bits of the element value.
func (e Element) Uint64() uint64 {
	return e.big().Uint64()
}

// Bytes serializes the element into a 16-byte little-endian encoding.
func (e Element) Bytes() []byte {
	out := make([]byte, ElementSize)
	be := e.big().Bytes()
	for i := range be {
		out[i] = be[len(be)-1-i]
	}
	return out
}

// String returns the base-10 representation of the element.
func (e Element) String() string {
	return e.big().String()
}

// InvMany computes multiplicative inverses of all slice elements using the
// batch inversion method; zero elements are mapped to zero.
func InvMany(values []Element) []Element {
	result := make([]Element, len(values))
	last := One
	for i, v := range values {
		result[i] = last
		if !v.IsZero() {
			last = last.Mul(v)
		}
	}
	last = last.Inv()
	for i := len(values) - 1; i >= 0; i-- {
		if values[i].IsZero() {
			result[i] = Zero
		} else {
			result[i] = last.Mul(result[i])
			last = last.Mul(values[i])
		}
	}
	return result
}

// RootOfUnity returns a primitive root of unity of the specified order.
// The order must be a power of two no greater than 2^40.
func RootOfUnity(order int) (Element, error) {
	if order == 0 {
		return Zero, fmt.Errorf("cannot get root of unity for order 0")
	}
	if order&(order-1) != 0 {
		return Zero, fmt.Errorf("order must be a power of 2, got %d", order)
	}
	if order > MaxRootOrder {
		return Zero, fmt.Errorf("order cannot exceed 2^40, got %d", order)
	}
	exp := uint64(MaxRootOrder / order)
	return G40.ExpUint(exp), nil
}

// PowerSeries returns the vector [1, b, b^2, ..., b^(length-1)].
func PowerSeries(b Element, length int) []Element {
	result := make([]Element, length)
	if length == 0 {
		return result
	}
	result[0] = One
	for i := 1; i < length; i++ {
		result[i] = result[i-1].Mul(b)
	}
	return result
}

// FromSeed derives a pseudo-random field element from a 32-byte seed. The
// derivation is deterministic: both prover and verifier use it to draw
// Fiat-Shamir challenges.
func FromSeed(seed [32]byte) Element {
	return RandomSeries(seed, 1)[0]
}

// RandomSeries derives a deterministic sequence of pseudo-random field
// elements from a 32-byte seed. Element i is obtained by hashing the seed
// together with the counter i and reducing the first 16 bytes of the digest
// modulo the field modulus.
func RandomSeries(seed [32]byte, length int) []Element {
	result := make([]Element, length)
	var block [36]byte
	copy(block[:32], seed[:])
	for i := 0; i < length; i++ {
		binary.LittleEndian.PutUint32(block[32:], uint32(i))
		digest := sha256.Sum256(block[:])
		e, _ := NewElementFromBytes(digest[:ElementSize])
		result[i] = e
	}
	return result
}

func mustParseBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("invalid integer literal: " + s)
	}
	return v
}
