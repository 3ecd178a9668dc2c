package regvm

import (
	"strings"

	"github.com/phasescript/regvm/internal/regvmerr"
)

// frameWindowSize is how many registers a called bytecode closure's
// window reserves. A real compiler would size this per-chunk from its
// register allocator's high-water mark; the assembler surface here
// instead reserves a fixed, generous window per call (spec.md §9 notes
// the register allocator itself is out of scope).
const frameWindowSize = 256

// execCall implements CALL (func_reg, argc, result_count) — spec.md
// §4.5. Args sit in the registers immediately following func_reg; the
// result overwrites func_reg.
func (rt *Runtime) execCall(f *Frame, ins Instruction) error {
	funcReg := ins.A()
	argc := int(ins.B())
	callee := *rt.reg(f, funcReg)

	args := make([]Value, argc)
	for i := 0; i < argc; i++ {
		args[i] = *rt.reg(f, byte(int(funcReg)+1+i))
	}

	closure, err := rt.resolveOverload(callee, args)
	if err != nil {
		return err
	}
	result, err := rt.callClosure(closure, args)
	if err != nil {
		return err
	}
	*rt.reg(f, funcReg) = result
	return nil
}

// execReturn implements RETURN (value_reg): it closes every open upvalue
// still aliasing this frame's window (copying the live value into the
// upvalue's Closed slot), frees the window, and yields the value
// (spec.md §4.5).
func (rt *Runtime) execReturn(f *Frame, ins Instruction) Value {
	v := *rt.reg(f, ins.A())
	for u := f.OpenUpvalues; u != nil; u = u.NextOpen {
		u.Close()
	}
	rt.freeWindow(f.Base)
	return v
}

// execClosure implements CLOSURE: A=dest register, Bx=constant index of
// a prototype Closure (a ClosureBytecode template with no Upvalues
// filled in yet). The new closure gets one upvalue per follow-up data
// word; the prototype's region tag is not read. Each upvalue
// descriptor is a follow-up data word: bit 16
// set means "capture the current frame's local register (low 16 bits)",
// clear means "inherit upvalue index (low 16 bits) from the enclosing
// closure" (spec.md §3, §4.5).
func (rt *Runtime) execClosure(f *Frame, ins Instruction) {
	destReg := ins.A()
	constIdx := ins.Bx()
	protoVal := f.Closure.Proto.Constants[constIdx]
	proto := protoVal.AsClosure()

	words := f.Closure.Proto.ExtraWords(f.PC)
	upvals := make([]*Upvalue, len(words))
	for i, w := range words {
		idx := int(w & 0xFFFF)
		if w&0x10000 != 0 {
			upvals[i] = rt.captureUpvalue(f, idx)
		} else {
			upvals[i] = f.Closure.Upvalues[idx]
		}
	}

	newC := &ClosureVal{
		Kind:        ClosureBytecode,
		Proto:       proto.Proto,
		Upvalues:    upvals,
		Arity:       proto.Arity,
		ParamPhases: proto.ParamPhases,
		Defaults:    proto.Defaults,
		Name:        proto.Name,
	}
	*rt.reg(f, destReg) = Closure(newC)
}

// captureUpvalue returns the open upvalue aliasing register regIdx in
// f's window, creating and linking one if none exists yet, keeping
// f.OpenUpvalues ordered by descending RegIndex.
func (rt *Runtime) captureUpvalue(f *Frame, regIdx int) *Upvalue {
	var prev *Upvalue
	u := f.OpenUpvalues
	for u != nil && u.RegIndex > regIdx {
		prev = u
		u = u.NextOpen
	}
	if u != nil && u.RegIndex == regIdx {
		return u
	}
	nu := &Upvalue{Location: &rt.Stack[f.Base+regIdx], RegIndex: regIdx, NextOpen: u}
	if prev == nil {
		f.OpenUpvalues = nu
	} else {
		prev.NextOpen = nu
	}
	return nu
}

// resolveOverload picks the ClosureVal a CALL/INVOKE should run. A plain
// Closure value calls directly; an Array of closures triggers the
// phase-constraint overload scoring (spec.md §4.5 resolution order
// step 1, §8 property 7).
func (rt *Runtime) resolveOverload(callee Value, args []Value) (*ClosureVal, error) {
	switch callee.kind {
	case KindClosure:
		return callee.AsClosure(), nil
	case KindArray:
		elems := callee.AsArray().Elems
		var best *ClosureVal
		bestScore := -1
		for _, e := range elems {
			if e.kind != KindClosure {
				continue
			}
			c := e.AsClosure()
			score, ok := scoreOverload(c, args)
			if !ok {
				continue
			}
			if score > bestScore {
				bestScore, best = score, c
			}
		}
		if best == nil {
			return nil, regvmerr.New(regvmerr.KindType, 0, "no overload matches argument phases")
		}
		return best, nil
	default:
		return nil, regvmerr.New(regvmerr.KindType, 0, "value of kind %s is not callable", callee.Kind())
	}
}

// scoreOverload implements spec.md §4.5/§8: a Crystal arg against a
// crystal-constrained parameter scores 3, an unconstrained parameter
// always scores 2, anything else scores 1 — except a Crystal arg against
// a fluid-constrained parameter (or vice versa), which is an outright
// incompatibility.
func scoreOverload(c *ClosureVal, args []Value) (int, bool) {
	total := 0
	for i := 0; i < len(args) && i < len(c.ParamPhases); i++ {
		phase := args[i].Phase()
		switch c.ParamPhases[i] {
		case ParamUnconstrained:
			total += 2
		case ParamCrystal:
			switch phase {
			case PhaseCrystal:
				total += 3
			case PhaseFluid:
				return 0, false
			default:
				total += 1
			}
		case ParamFluid:
			if phase == PhaseCrystal {
				return 0, false
			}
			total += 1
		}
	}
	return total, true
}

// checkParamPhases validates every argument against its declared
// constraint at call time (spec.md §4.5 resolution step 4), independent
// of overload scoring (a single, non-overloaded closure still enforces
// its own constraints).
func checkParamPhases(c *ClosureVal, args []Value) error {
	for i := 0; i < len(args) && i < len(c.ParamPhases); i++ {
		constraint := c.ParamPhases[i]
		phase := args[i].Phase()
		switch constraint {
		case ParamCrystal:
			if phase != PhaseCrystal {
				return regvmerr.New(regvmerr.KindPhase, 0, "parameter %d of %s requires a crystal value, got %s", i, c.Name, phase)
			}
		case ParamFluid:
			if phase == PhaseCrystal {
				return regvmerr.New(regvmerr.KindPhase, 0, "parameter %d of %s requires a fluid value, got crystal", i, c.Name)
			}
		}
	}
	return nil
}

const evalErrorPrefix = "EVAL_ERROR:"

// callClosure is the single entry every callee path funnels through:
// CALL, INVOKE, defer execution, reaction firing, bond cascades, and
// seed-contract validation (spec.md §4.5 resolution steps 2-4).
func (rt *Runtime) callClosure(c *ClosureVal, args []Value) (Value, error) {
	switch c.Kind {
	case ClosureNative:
		if len(rt.Frames) > 0 {
			rt.syncLocalsToGlobals(rt.Frames[len(rt.Frames)-1])
		}
		// Native callees report failure through their own error return
		// (NativeFn's second result), the idiomatic equivalent of the
		// original's rt->error side channel (spec.md §4.5 CALL resolution
		// step 2) — callClosure forwards it unchanged to its own caller.
		return c.Native(rt, args)

	case ClosureExtension:
		res, err := c.Extension(args)
		if err != nil {
			return Value{}, err
		}
		if res.kind == KindStr && strings.HasPrefix(string(res.AsStr().Bytes), evalErrorPrefix) {
			return Value{}, regvmerr.New(regvmerr.KindUser, 0, "%s", strings.TrimPrefix(string(res.AsStr().Bytes), evalErrorPrefix))
		}
		return res, nil

	case ClosureBytecode:
		if c.Proto.Magic != RegChunkMagic {
			return Value{}, regvmerr.New(regvmerr.KindBytecode, 0, "cannot call stack-VM closure")
		}
		if err := checkParamPhases(c, args); err != nil {
			return Value{}, err
		}
		base, err := rt.allocWindow(frameWindowSize)
		if err != nil {
			return Value{}, err
		}
		rt.Stack[base] = Unit
		for i, a := range args {
			rt.Stack[base+1+i] = Clone(a)
		}
		frame := &Frame{Closure: c, Base: base}
		rt.Frames = append(rt.Frames, frame)
		result, err := rt.dispatch(frame)
		rt.Frames = rt.Frames[:len(rt.Frames)-1]
		rt.freeWindow(base) // no-op if RETURN already freed it; restores sp on an unhandled-throw exit
		return result, err

	default:
		return Value{}, regvmerr.New(regvmerr.KindBytecode, 0, "unknown closure kind")
	}
}
