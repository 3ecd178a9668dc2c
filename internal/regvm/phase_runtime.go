package regvm

import (
	"fmt"

	"github.com/phasescript/regvm/internal/regvmerr"
)

// Variable names for REACT/BOND/SEED/tracked-history purposes are
// resolved through the chunk's local-slot→name map (spec.md §3). BOND's
// source and SEED/REACT's subject are therefore always named locals in
// this implementation (BOND's target is a name constant resolved in the
// global environment) — a deliberate narrowing of spec.md §4.5's "local,
// upvalue, or global" into the one case the reactive system actually
// needs addressed by name across calls (see DESIGN.md).
func varName(f *Frame, reg byte) string {
	if name, ok := f.Closure.Proto.Locals[int(reg)]; ok {
		return name
	}
	return fmt.Sprintf("$r%d", reg)
}

// localRegister reverses Chunk.Locals for INVOKE_LOCAL, which addresses
// a named local without the caller already holding its register index.
func localRegister(chunk *Chunk, name string) (int, bool) {
	for reg, n := range chunk.Locals {
		if n == name {
			return reg, true
		}
	}
	return 0, false
}

// syncLocalsToGlobals copies every named local's current register value
// from the calling frame into the global environment, so a native
// callee that looks up a variable by name (rt.Globals.Get) sees it as of
// the call rather than a stale or undefined binding (spec.md §4.5 CALL
// resolution step 2: "synchronize named locals into the environment").
func (rt *Runtime) syncLocalsToGlobals(f *Frame) {
	for reg, name := range f.Closure.Proto.Locals {
		rt.Globals.DefineAt(0, name, *rt.reg(f, byte(reg)))
	}
}

// execPhaseOp handles every phase and reactive opcode (spec.md §4.5
// "Phase ops" and "Reactive ops").
func (rt *Runtime) execPhaseOp(f *Frame, ins Instruction) error {
	chunk := f.Closure.Proto
	line := chunk.Line(f.PC)

	switch ins.Op() {
	case OpClone:
		*rt.reg(f, ins.A()) = Clone(*rt.reg(f, ins.B()))
		return nil

	case OpFreeze:
		v, err := Freeze(*rt.reg(f, ins.B()))
		if err != nil {
			return regvmerr.New(regvmerr.KindPhase, line, "%s", err.Error())
		}
		*rt.reg(f, ins.A()) = v
		return nil

	case OpThaw:
		*rt.reg(f, ins.A()) = Thaw(*rt.reg(f, ins.B()))
		return nil

	case OpFreezeVar:
		return rt.freezeVar(f, ins.A(), line)

	case OpThawVar:
		name := varName(f, ins.A())
		*rt.reg(f, ins.A()) = Thaw(*rt.reg(f, ins.A()))
		rt.fireReactions(name, *rt.reg(f, ins.A()))
		return nil

	case OpSublimateVar:
		name := varName(f, ins.A())
		*rt.reg(f, ins.A()) = rt.reg(f, ins.A()).WithPhase(PhaseSublimated)
		rt.fireReactions(name, *rt.reg(f, ins.A()))
		return nil

	case OpMarkFluid:
		*rt.reg(f, ins.A()) = rt.reg(f, ins.A()).WithPhase(PhaseFluid)
		return nil

	case OpIsCrystal:
		*rt.reg(f, ins.A()) = Bool(rt.reg(f, ins.B()).Phase() == PhaseCrystal)
		return nil

	case OpFreezeField, OpThawField:
		obj := *rt.reg(f, ins.A())
		words := chunk.ExtraWords(f.PC)
		if len(words) == 0 {
			return regvmerr.New(regvmerr.KindBytecode, line, "%s missing field-name word", ins.Op())
		}
		field := string(chunk.Constants[words[0]&0xFFFF].AsStr().Bytes)
		phase := PhaseCrystal
		if ins.Op() == OpThawField {
			phase = PhaseFluid
		}
		switch obj.kind {
		case KindStruct:
			st := obj.AsStruct()
			if st.FieldPhases == nil {
				st.FieldPhases = make(map[string]Phase)
			}
			st.FieldPhases[field] = phase
		case KindMap:
			obj.AsMap().SetKeyPhase(field, phase)
		default:
			return regvmerr.New(regvmerr.KindType, line, "%s field-phase override requires a Struct or Map, got %s", ins.Op(), obj.Kind())
		}
		return nil

	case OpReact:
		name := varName(f, ins.A())
		c := rt.reg(f, ins.B()).AsClosure()
		rt.reactions[name] = append(rt.reactions[name], c)
		return nil

	case OpUnreact:
		name := varName(f, ins.A())
		delete(rt.reactions, name)
		return nil

	case OpBond:
		name := varName(f, ins.A())
		target := string(chunk.Constants[ins.Bx()].AsStr().Bytes)
		strategy := "mirror"
		if words := chunk.ExtraWords(f.PC); len(words) > 0 {
			strategy = string(chunk.Constants[words[0]&0xFFFF].AsStr().Bytes)
		}
		rt.bonds[name] = append(rt.bonds[name], bondEdge{Target: target, Strategy: strategy})
		return nil

	case OpUnbond:
		name := varName(f, ins.A())
		target := string(chunk.Constants[ins.Bx()].AsStr().Bytes)
		edges := rt.bonds[name]
		out := edges[:0]
		for _, e := range edges {
			if e.Target != target {
				out = append(out, e)
			}
		}
		rt.bonds[name] = out
		return nil

	case OpSeed:
		name := varName(f, ins.A())
		c := rt.reg(f, ins.B()).AsClosure()
		rt.seeds[name] = append(rt.seeds[name], c)
		return nil

	case OpUnseed:
		name := varName(f, ins.A())
		delete(rt.seeds, name)
		return nil

	default:
		return regvmerr.New(regvmerr.KindBytecode, line, "execPhaseOp: unexpected opcode %s", ins.Op())
	}
}

// freezeVar implements FREEZE_VAR: validate every registered seed
// contract against the current value, freeze it, update the binding,
// record history, run the freeze cascade through the bond graph, and
// fire reactions (spec.md §4.5, §9 Open Question on bond strategies).
func (rt *Runtime) freezeVar(f *Frame, reg byte, line int) error {
	name := varName(f, reg)
	cur := *rt.reg(f, reg)

	for _, seed := range rt.seeds[name] {
		result, err := rt.callClosure(seed, []Value{cur})
		if err != nil {
			return err
		}
		if !result.IsTruthy() {
			return regvmerr.New(regvmerr.KindPhase, line, "seed contract rejected freeze of %q", name)
		}
	}

	frozen, err := Freeze(cur)
	if err != nil {
		return regvmerr.New(regvmerr.KindPhase, line, "%s", err.Error())
	}
	*rt.reg(f, reg) = frozen
	rt.history[name] = append(rt.history[name], frozen)

	rt.cascadeFreeze(name, frozen, make(map[string]bool))
	rt.fireReactions(name, frozen)
	return nil
}

// cascadeFreeze walks the bond graph from name, applying each edge's
// strategy to the bonded global variable (spec.md §4.5, §9: "mirror,
// propagate, invert" are named here as the three strategies this
// implementation defines — the core only stores the strategy name and
// leaves its effect to the runtime, which this function is).
// src is the frozen value of name that started this step of the cascade.
func (rt *Runtime) cascadeFreeze(name string, src Value, visited map[string]bool) {
	if visited[name] {
		return
	}
	visited[name] = true
	for _, edge := range rt.bonds[name] {
		target, ok := rt.Globals.GetRef(edge.Target)
		if !ok {
			continue
		}
		switch edge.Strategy {
		case "mirror":
			*target = Clone(src).WithPhase(PhaseCrystal)
		case "propagate":
			frozen, err := Freeze(*target)
			if err == nil {
				*target = frozen
				rt.cascadeFreeze(edge.Target, frozen, visited)
			}
		case "invert":
			*target = Thaw(*target)
		}
		rt.fireReactions(edge.Target, *target)
	}
}

func (rt *Runtime) fireReactions(name string, v Value) {
	for _, c := range rt.reactions[name] {
		_, _ = rt.callClosure(c, []Value{v})
	}
}
