package protocols

import (
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/vm"
)

// Decoder transition constraints: opcode bit decomposition, control flow
// alignment, sponge rounds, and context/loop stack manipulation.

// numOpConstraints is the count of opcode-shape constraints preceding the
// sponge section.
const numOpConstraints = 14

var opConstraintDegrees = []int{
	2, 2, 2, 2, 2, 2, 2, 2, 2, 2, // all op bits are binary
	4, // non-HACC flow op forces a NOOP user op
	3, // high-degree user op forces the ld marker pattern
	6, // VOID can be followed only by VOID
	4, // flow operations land on allowed cycle steps
}

var spongeConstraintDegrees = []int{6, 6, 6, 6}

const stackOpConstraintDegree = 4

// Periodic masks over one 16-step cycle; a mask value of 0 marks an allowed
// step for the operation it guards.
var (
	// tendMask allows TEND and FEND only on multiples of 16.
	tendMask = cycleMask(0)

	// prefixMask allows BEGIN, LOOP, WRAP and BREAK only on steps which are
	// one less than a multiple of 16.
	prefixMask = cycleMask(vm.BaseCycleLength - 1)

	// hashrMask allows HASHR only on the first 10 steps of a cycle, so
	// that a full 10-round run stays aligned with the constant schedule.
	hashrMask = rangeMask(core.HashRNumRounds)
)

func cycleMask(allowed int) []core.Element {
	mask := make([]core.Element, vm.BaseCycleLength)
	for i := range mask {
		if i != allowed {
			mask[i] = core.One
		}
	}
	return mask
}

func rangeMask(allowedPrefix int) []core.Element {
	mask := make([]core.Element, vm.BaseCycleLength)
	for i := allowedPrefix; i < vm.BaseCycleLength; i++ {
		mask[i] = core.One
	}
	return mask
}

// decoderEvaluator evaluates decoder constraints against a pair of
// consecutive trace states.
type decoderEvaluator struct {
	layout  vm.TraceLayout
	degrees []int
}

func newDecoderEvaluator(layout vm.TraceLayout) *decoderEvaluator {
	degrees := append([]int(nil), opConstraintDegrees...)
	degrees = append(degrees, spongeConstraintDegrees...)
	for i := 0; i < layout.CtxDepth+layout.LoopDepth; i++ {
		degrees = append(degrees, stackOpConstraintDegree)
	}
	if layout.LoopDepth > 0 {
		// loop image equality and loop condition checks
		degrees = append(degrees, stackOpConstraintDegree, stackOpConstraintDegree)
	}
	return &decoderEvaluator{layout: layout, degrees: degrees}
}

func (d *decoderEvaluator) constraintCount() int {
	return len(d.degrees)
}

func (d *decoderEvaluator) constraintDegrees() []int {
	return d.degrees
}

// evaluate writes one evaluation per decoder constraint into result. The
// ark slice holds the 2*SpongeWidth round constants and masks holds the
// three alignment mask values resolved at the evaluation point.
func (d *decoderEvaluator) evaluate(current, next *vm.TraceState, ark []core.Element, masks [3]core.Element, result []core.Element) {
	i := 0

	// all op bits are binary
	for _, bits := range [][]core.Element{current.CfOpBits(), current.LdOpBits(), current.HdOpBits()} {
		for _, bit := range bits {
			result[i] = isBinary(bit)
			i++
		}
	}

	cfFlags := current.CfOpFlags()
	hdFlags := current.HdOpFlags()

	// any flow operation other than HACC forces a NOOP user op
	notHacc := core.One.Sub(cfFlags[vm.OpHacc])
	sumUser := core.Zero
	for _, bit := range current.LdOpBits() {
		sumUser = sumUser.Add(bit)
	}
	for _, bit := range current.HdOpBits() {
		sumUser = sumUser.Add(bit)
	}
	result[i] = notHacc.Mul(sumUser)
	i++

	// a high-degree user op forces all ld bits to the marker pattern
	hdActive := core.One.Sub(core.One.Sub(current.HdOpBits()[0]).Mul(core.One.Sub(current.HdOpBits()[1])))
	ldGap := core.Zero
	for _, bit := range current.LdOpBits() {
		ldGap = ldGap.Add(core.One.Sub(bit))
	}
	result[i] = hdActive.Mul(ldGap)
	i++

	// VOID can be followed only by VOID
	nextFlags := next.CfOpFlags()
	result[i] = cfFlags[vm.OpVoid].Mul(core.One.Sub(nextFlags[vm.OpVoid]))
	i++

	// flow operations land on allowed cycle steps
	align := cfFlags[vm.OpTend].Mul(masks[0])
	align = align.Add(cfFlags[vm.OpFend].Mul(masks[0]))
	align = align.Add(cfFlags[vm.OpBegin].Mul(masks[1]))
	align = align.Add(cfFlags[vm.OpLoop].Mul(masks[1]))
	align = align.Add(cfFlags[vm.OpWrap].Mul(masks[1]))
	align = align.Add(cfFlags[vm.OpBreak].Mul(masks[1]))
	align = align.Add(hdFlags[3].Mul(masks[2]))
	result[i] = align
	i++

	// sponge constraints
	d.evaluateSponge(current, next, ark, cfFlags, hdFlags, result[i:i+core.SpongeWidth])
	i += core.SpongeWidth

	// context stack constraints
	d.evaluateCtxStack(current, next, cfFlags, result[i:i+d.layout.CtxDepth])
	i += d.layout.CtxDepth

	// loop stack constraints
	if d.layout.LoopDepth > 0 {
		d.evaluateLoopStack(current, next, cfFlags, result[i:])
	}
}

// evaluateSponge aggregates the sponge transition of every flow operation.
func (d *decoderEvaluator) evaluateSponge(current, next *vm.TraceState, ark []core.Element,
	cfFlags [vm.NumCfOps]core.Element, hdFlags [vm.NumHdOps]core.Element, result []core.Element) {

	curSponge := current.Sponge()
	nextSponge := next.Sponge()

	// HACC: run the first half of a Rescue round forward from the current
	// state and the second half backward from the next state; the results
	// must meet at the injection point.
	fwd := make([]core.Element, core.SpongeWidth)
	copy(fwd, curSponge)
	for j := 0; j < core.SpongeWidth; j++ {
		fwd[j] = fwd[j].Add(ark[j])
	}
	core.ApplySbox(fwd)
	core.ApplyMds4(fwd)

	opValue := hdFlags[1].Mul(next.UserStack()[0])
	fwd[0] = fwd[0].Add(current.OpCode())
	fwd[1] = fwd[1].Add(opValue)

	bwd := make([]core.Element, core.SpongeWidth)
	copy(bwd, nextSponge)
	core.ApplyInvMds4(bwd)
	core.ApplySbox(bwd)
	for j := 0; j < core.SpongeWidth; j++ {
		bwd[j] = bwd[j].Sub(ark[core.SpongeWidth+j])
	}

	hacc := cfFlags[vm.OpHacc]
	for j := 0; j < core.SpongeWidth; j++ {
		result[j] = result[j].Add(hacc.Mul(fwd[j].Sub(bwd[j])))
	}

	// BEGIN, LOOP, WRAP: the sponge is reset to zeros
	reset := cfFlags[vm.OpBegin].Add(cfFlags[vm.OpLoop]).Add(cfFlags[vm.OpWrap])
	for j := 0; j < core.SpongeWidth; j++ {
		result[j] = result[j].Add(reset.Mul(nextSponge[j]))
	}

	// TEND: next sponge is [s0, x, popped parent, 0]; x is a witness
	ctxTop := current.CtxStack()[0]
	tend := cfFlags[vm.OpTend]
	result[0] = result[0].Add(tend.Mul(nextSponge[0].Sub(curSponge[0])))
	result[2] = result[2].Add(tend.Mul(nextSponge[2].Sub(ctxTop)))
	result[3] = result[3].Add(tend.Mul(nextSponge[3]))

	// FEND: next sponge is [x, s0, popped parent, 0]
	fend := cfFlags[vm.OpFend]
	result[1] = result[1].Add(fend.Mul(nextSponge[1].Sub(curSponge[0])))
	result[2] = result[2].Add(fend.Mul(nextSponge[2].Sub(ctxTop)))
	result[3] = result[3].Add(fend.Mul(nextSponge[3]))

	// BREAK, VOID: the sponge is frozen
	frozen := cfFlags[vm.OpBreak].Add(cfFlags[vm.OpVoid])
	for j := 0; j < core.SpongeWidth; j++ {
		result[j] = result[j].Add(frozen.Mul(nextSponge[j].Sub(curSponge[j])))
	}
}

func (d *decoderEvaluator) evaluateCtxStack(current, next *vm.TraceState,
	cfFlags [vm.NumCfOps]core.Element, result []core.Element) {

	cur := current.CtxStack()
	nxt := next.CtxStack()

	// HACC, WRAP, BREAK, VOID: stack is frozen
	frozen := cfFlags[vm.OpHacc].Add(cfFlags[vm.OpWrap]).Add(cfFlags[vm.OpBreak]).Add(cfFlags[vm.OpVoid])
	for j := range result {
		result[j] = result[j].Add(frozen.Mul(nxt[j].Sub(cur[j])))
	}

	// BEGIN, LOOP: the parent hash is pushed
	push := cfFlags[vm.OpBegin].Add(cfFlags[vm.OpLoop])
	result[0] = result[0].Add(push.Mul(nxt[0].Sub(current.Sponge()[0])))
	for j := 1; j < len(result); j++ {
		result[j] = result[j].Add(push.Mul(nxt[j].Sub(cur[j-1])))
	}

	// TEND, FEND: the parent hash is popped
	pop := cfFlags[vm.OpTend].Add(cfFlags[vm.OpFend])
	for j := 0; j < len(result)-1; j++ {
		result[j] = result[j].Add(pop.Mul(nxt[j].Sub(cur[j+1])))
	}
	result[len(result)-1] = result[len(result)-1].Add(pop.Mul(nxt[len(result)-1]))
}

func (d *decoderEvaluator) evaluateLoopStack(current, next *vm.TraceState,
	cfFlags [vm.NumCfOps]core.Element, result []core.Element) {

	depth := d.layout.LoopDepth
	cur := current.LoopStack()
	nxt := next.LoopStack()

	// HACC, BEGIN, TEND, FEND, WRAP, VOID: stack is frozen
	frozen := cfFlags[vm.OpHacc].Add(cfFlags[vm.OpBegin]).Add(cfFlags[vm.OpTend]).
		Add(cfFlags[vm.OpFend]).Add(cfFlags[vm.OpWrap]).Add(cfFlags[vm.OpVoid])
	for j := 0; j < depth; j++ {
		result[j] = result[j].Add(frozen.Mul(nxt[j].Sub(cur[j])))
	}

	// LOOP: the loop image is pushed; the top slot is a witness
	push := cfFlags[vm.OpLoop]
	for j := 1; j < depth; j++ {
		result[j] = result[j].Add(push.Mul(nxt[j].Sub(cur[j-1])))
	}

	// BREAK: the loop image is popped
	pop := cfFlags[vm.OpBreak]
	for j := 0; j < depth-1; j++ {
		result[j] = result[j].Add(pop.Mul(nxt[j].Sub(cur[j+1])))
	}
	result[depth-1] = result[depth-1].Add(pop.Mul(nxt[depth-1]))

	// WRAP, BREAK: the completed iteration hash must match the loop image
	imageCheck := cfFlags[vm.OpWrap].Add(cfFlags[vm.OpBreak])
	result[depth] = imageCheck.Mul(current.Sponge()[0].Sub(cur[0]))

	// WRAP requires a 1 on the stack top, BREAK requires a 0
	top := current.UserStack()[0]
	cond := cfFlags[vm.OpWrap].Mul(core.One.Sub(top)).Add(cfFlags[vm.OpBreak].Mul(top))
	result[depth+1] = cond
}

func isBinary(v core.Element) core.Element {
	return v.Mul(v).Sub(v)
}

func areEqual(a, b core.Element) core.Element {
	return a.Sub(b)
}
