package core

import "crypto/sha256"

// Modified Rescue-Prime permutation. Two instances are used throughout the
// VM: a width-4 sponge (Merkle digest, program hashing, the decoder sponge)
// and a width-6 permutation backing the HASHR operation on the user stack.
//
// A full meta-round is:
//
//	state <- state + ARK1[r]
//	state <- state^alpha
//	state <- MDS * state
//	(injection point)
//	state <- state + ARK2[r]
//	state <- state^(1/alpha)
//	state <- MDS * state
//
// The round constant schedule has period 16; the round index is always the
// cycle step mod 16. Constants are derived deterministically from
// domain-separation strings so that provers and verifiers agree without a
// shared table.

const (
	// SpongeWidth is the state width of the program-hashing sponge.
	SpongeWidth = 4

	// HashStateWidth is the state width of the HASHR permutation.
	HashStateWidth = 6

	// CycleLength is the period of the round constant schedule.
	CycleLength = 16

	// AccNumRounds is the number of meta-rounds applied by Digest and
	// HashAcc; the rounds run at schedule indices 1..14.
	AccNumRounds = 14

	// AccRoundOffset is the schedule index of the first Digest/HashAcc round.
	AccRoundOffset = 1

	// HashRNumRounds is the number of consecutive HASHR operations required
	// to fully mix two 256-bit inputs.
	HashRNumRounds = 10
)

// Alpha is the S-box exponent; InvAlpha is its inverse mod p-1.
var (
	Alpha    = NewElement(3)
	InvAlpha = NewElementFromString("226854911280625642308916371969163307691")
)

// MDS matrices are Cauchy matrices over the field; their inverses are
// precomputed so that constraint evaluators can run rounds backwards.
var (
	mds4    = parseMatrix(mds4Strings)
	invMds4 = parseMatrix(invMds4Strings)
	mds6    = parseMatrix(mds6Strings)
	invMds6 = parseMatrix(invMds6Strings)

	// ark4[r] holds the 2*SpongeWidth round constants of schedule index r.
	ark4 = deriveConstants("distaff-rescue-ark4", 2*SpongeWidth)

	// ark6[r] holds the 2*HashStateWidth round constants of schedule index r.
	ark6 = deriveConstants("distaff-rescue-ark6", 2*HashStateWidth)
)

// Ark4 returns the round constants of the width-4 schedule at the given
// cycle step.
func Ark4(step int) []Element {
	return ark4[step%CycleLength]
}

// Ark6 returns the round constants of the width-6 schedule at the given
// cycle step.
func Ark6(step int) []Element {
	return ark6[step%CycleLength]
}

// ApplySbox raises every state element to the power alpha.
func ApplySbox(state []Element) {
	for i := range state {
		state[i] = state[i].Exp(Alpha)
	}
}

// ApplyInvSbox raises every state element to the power 1/alpha.
func ApplyInvSbox(state []Element) {
	for i := range state {
		state[i] = state[i].Exp(InvAlpha)
	}
}

// ApplyMds4 multiplies a width-4 state by the MDS matrix.
func ApplyMds4(state []Element) {
	applyMatrix(state, mds4, SpongeWidth)
}

// ApplyInvMds4 multiplies a width-4 state by the inverse MDS matrix.
func ApplyInvMds4(state []Element) {
	applyMatrix(state, invMds4, SpongeWidth)
}

// ApplyMds6 multiplies a width-6 state by the MDS matrix.
func ApplyMds6(state []Element) {
	applyMatrix(state, mds6, HashStateWidth)
}

// ApplyInvMds6 multiplies a width-6 state by the inverse MDS matrix.
func ApplyInvMds6(state []Element) {
	applyMatrix(state, invMds6, HashStateWidth)
}

// AddArk4 adds the width-4 round constants at the given schedule index and
// offset (0 for the first half of the round, SpongeWidth for the second).
func AddArk4(state []Element, step, offset int) {
	ark := Ark4(step)
	for i := 0; i < SpongeWidth; i++ {
		state[i] = state[i].Add(ark[offset+i])
	}
}

// SubArk4 subtracts the width-4 round constants; used by constraint
// evaluators running the second half of a round backwards.
func SubArk4(state []Element, step, offset int) {
	ark := Ark4(step)
	for i := 0; i < SpongeWidth; i++ {
		state[i] = state[i].Sub(ark[offset+i])
	}
}

// HashOpsRound applies one sponge meta-round merging an operation into the
// state. The injection adds opCode to state[0] and opValue to state[1]
// between the two half-rounds.
func HashOpsRound(state []Element, opCode, opValue Element, step int) {
	AddArk4(state, step, 0)
	ApplySbox(state[:SpongeWidth])
	ApplyMds4(state)

	state[0] = state[0].Add(opCode)
	state[1] = state[1].Add(opValue)

	AddArk4(state, step, SpongeWidth)
	ApplyInvSbox(state[:SpongeWidth])
	ApplyMds4(state)
}

// accRound applies one sponge meta-round without injection.
func accRound(state []Element, step int) {
	HashOpsRound(state, Zero, Zero, step)
}

// Digest computes the 2-element Merkle digest of a pair of elements.
func Digest(a, b Element) [2]Element {
	state := []Element{a, b, Zero, Zero}
	for i := AccRoundOffset; i < AccRoundOffset+AccNumRounds; i++ {
		accRound(state, i)
	}
	return [2]Element{state[0], state[1]}
}

// HashAccState merges a pair of block hashes into a running program hash
// and returns the full permuted state. The state is seeded with
// [v0, v1, h, 0]; the merge runs the same 14 rounds the decoder applies
// after a TEND or FEND operation.
func HashAccState(v0, v1, h Element) []Element {
	state := []Element{v0, v1, h, Zero}
	for i := AccRoundOffset; i < AccRoundOffset+AccNumRounds; i++ {
		accRound(state, i)
	}
	return state
}

// HashAcc merges a pair of block hashes into a running program hash and
// returns the first element of the permuted state.
func HashAcc(v0, v1, h Element) Element {
	return HashAccState(v0, v1, h)[0]
}

// HashRRound applies one width-6 meta-round to the HASHR state in place.
func HashRRound(state []Element, step int) {
	ark := Ark6(step)
	for i := 0; i < HashStateWidth; i++ {
		state[i] = state[i].Add(ark[i])
	}
	ApplySbox(state[:HashStateWidth])
	ApplyMds6(state)

	for i := 0; i < HashStateWidth; i++ {
		state[i] = state[i].Add(ark[HashStateWidth+i])
	}
	ApplyInvSbox(state[:HashStateWidth])
	ApplyMds6(state)
}

// RescueHash hashes an arbitrary byte string into a 32-byte digest using the
// width-4 sponge: input bytes are parsed as 16-byte little-endian field
// elements, absorbed in pairs, and the first two state elements form the
// digest.
func RescueHash(data []byte) [32]byte {
	// pad to a whole number of element pairs
	blockSize := 2 * ElementSize
	padded := make([]byte, (len(data)+blockSize-1)/blockSize*blockSize)
	copy(padded, data)

	state := []Element{Zero, Zero, Zero, Zero}
	// absorb the message length to prevent padding collisions
	state[2] = NewElement(uint64(len(data)))

	for i := 0; i < len(padded); i += blockSize {
		a, _ := NewElementFromBytes(padded[i : i+ElementSize])
		b, _ := NewElementFromBytes(padded[i+ElementSize : i+blockSize])
		state[0] = state[0].Add(a)
		state[1] = state[1].Add(b)
		for r := AccRoundOffset; r < AccRoundOffset+AccNumRounds; r++ {
			accRound(state, r)
		}
	}

	var out [32]byte
	copy(out[:ElementSize], state[0].Bytes())
	copy(out[ElementSize:], state[1].Bytes())
	return out
}

// helper functions

func applyMatrix(state []Element, matrix []Element, width int) {
	result := make([]Element, width)
	for i := 0; i < width; i++ {
		for j := 0; j < width; j++ {
			result[i] = result[i].Add(matrix[i*width+j].Mul(state[j]))
		}
	}
	copy(state, result)
}

func parseMatrix(values []string) []Element {
	result := make([]Element, len(values))
	for i, v := range values {
		result[i] = NewElementFromString(v)
	}
	return result
}

func deriveConstants(domain string, perRound int) [][]Element {
	seed := sha256.Sum256([]byte(domain))
	flat := RandomSeries(seed, CycleLength*perRound)
	result := make([][]Element, CycleLength)
	for r := 0; r < CycleLength; r++ {
		result[r] = flat[r*perRound : (r+1)*perRound]
	}
	return result
}

var mds4Strings = []string{
	"56713727820156410577229092992290826923", "48611766702991209066196365421963565934", "297747071055821155530452738209526841345", "264664063160729916027069100630690525640",
	"48611766702991209066196365421963565934", "297747071055821155530452738209526841345", "264664063160729916027069100630690525640", "238197656844656924424362190567621473076",
	"297747071055821155530452738209526841345", "264664063160729916027069100630690525640", "238197656844656924424362190567621473076", "216543324404233567658511082334201339160",
	"264664063160729916027069100630690525640", "238197656844656924424362190567621473076", "216543324404233567658511082334201339160", "198498047370547437020301825473017894230",
}

var invMds4Strings = []string{
	"42336", "340282366920938463463374557953744780097", "249480", "340282366920938463463374557953744850657",
	"340282366920938463463374557953744780097", "793800", "340282366920938463463374557953743852737", "498960",
	"249480", "340282366920938463463374557953743852737", "1568160", "340282366920938463463374557953744248737",
	"340282366920938463463374557953744850657", "498960", "340282366920938463463374557953744248737", "326700",
}

var mds6Strings = []string{
	"297747071055821155530452738209526841345", "264664063160729916027069100630690525640", "238197656844656924424362190567621473076", "216543324404233567658511082334201339160", "198498047370547437020301825473017894230", "130877833431130178255144060751440369822",
	"264664063160729916027069100630690525640", "238197656844656924424362190567621473076", "216543324404233567658511082334201339160", "198498047370547437020301825473017894230", "130877833431130178255144060751440369822", "24305883351495604533098182710981782967",
	"238197656844656924424362190567621473076", "216543324404233567658511082334201339160", "198498047370547437020301825473017894230", "130877833431130178255144060751440369822", "24305883351495604533098182710981782967", "158798437896437949616241460378414315384",
	"216543324404233567658511082334201339160", "198498047370547437020301825473017894230", "130877833431130178255144060751440369822", "24305883351495604533098182710981782967", "158798437896437949616241460378414315384", "319014718988379809496913648081635901441",
	"198498047370547437020301825473017894230", "130877833431130178255144060751440369822", "24305883351495604533098182710981782967", "158798437896437949616241460378414315384", "319014718988379809496913648081635901441", "40033219637757466289808771523969995475",
	"130877833431130178255144060751440369822", "24305883351495604533098182710981782967", "158798437896437949616241460378414315384", "319014718988379809496913648081635901441", "40033219637757466289808771523969995475", "132332031580364958013534550315345262820",
}

var invMds6Strings = []string{
	"13250952", "340282366920938463463374557953641898577", "309188880", "340282366920938463463374557953295232257", "318558240", "340282366920938463463374557953656745409",
	"340282366920938463463374557953641898577", "811620810", "340282366920938463463374557951285504537", "3607203600", "340282366920938463463374557951171991137", "716756040",
	"309188880", "340282366920938463463374557951285504537", "7515007500", "340282366920938463463374557942645873537", "7963956000", "340282366920938463463374557951515053857",
	"340282366920938463463374557953295232257", "3607203600", "340282366920938463463374557942645873537", "16490073600", "340282366920938463463374557941852120577", "3344861520",
	"318558240", "340282366920938463463374557951171991137", "7963956000", "340282366920938463463374557941852120577", "8615552400", "340282366920938463463374557951312334977",
	"340282366920938463463374557953656745409", "716756040", "340282366920938463463374557951515053857", "3344861520", "340282366920938463463374557951312334977", "689244192",
}
