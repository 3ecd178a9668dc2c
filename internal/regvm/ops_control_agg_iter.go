package regvm

import "github.com/phasescript/regvm/internal/regvmerr"

// execControlAggIter handles jumps, global/upvalue access, field/index
// access, aggregate construction, iteration, and RESET_EPHEMERAL. It
// returns the next PC (almost always f.PC+1, except for jumps).
func (rt *Runtime) execControlAggIter(f *Frame, ins Instruction) (int, error) {
	chunk := f.Closure.Proto
	line := chunk.Line(f.PC)

	switch ins.Op() {
	case OpJmp:
		return f.PC + 1 + int(ins.SBx24()), nil

	case OpJmpFalse:
		if !rt.reg(f, ins.A()).IsTruthy() {
			return f.PC + 1 + int(ins.SBx()), nil
		}
		return f.PC + 1, nil

	case OpJmpTrue:
		if rt.reg(f, ins.A()).IsTruthy() {
			return f.PC + 1 + int(ins.SBx()), nil
		}
		return f.PC + 1, nil

	case OpJmpNotNil:
		if !rt.reg(f, ins.A()).IsNil() {
			return f.PC + 1 + int(ins.SBx()), nil
		}
		return f.PC + 1, nil

	case OpGetGlobal:
		name := string(chunk.Constants[ins.Bx()].AsStr().Bytes)
		v, ok := rt.Globals.Get(name)
		if !ok {
			return f.PC, regvmerr.New(regvmerr.KindBytecode, line, "undefined global %q", name)
		}
		*rt.reg(f, ins.A()) = v
		return f.PC + 1, nil

	case OpSetGlobal:
		name := string(chunk.Constants[ins.Bx()].AsStr().Bytes)
		if ok := rt.Globals.Set(name, *rt.reg(f, ins.A())); !ok {
			return f.PC, regvmerr.New(regvmerr.KindBytecode, line, "undefined global %q", name)
		}
		return f.PC + 1, nil

	case OpDefineGlobal:
		name := string(chunk.Constants[ins.Bx()].AsStr().Bytes)
		rt.Globals.Define(name, *rt.reg(f, ins.A()))
		return f.PC + 1, nil

	case OpGetUpvalue:
		idx := int(ins.B())
		if idx >= len(f.Closure.Upvalues) {
			return f.PC, regvmerr.New(regvmerr.KindBounds, line, "upvalue index %d out of range", idx)
		}
		*rt.reg(f, ins.A()) = f.Closure.Upvalues[idx].Get()
		return f.PC + 1, nil

	case OpSetUpvalue:
		idx := int(ins.A())
		if idx >= len(f.Closure.Upvalues) {
			return f.PC, regvmerr.New(regvmerr.KindBounds, line, "upvalue index %d out of range", idx)
		}
		f.Closure.Upvalues[idx].Set(*rt.reg(f, ins.B()))
		return f.PC + 1, nil

	case OpCloseUpvalue:
		threshold := int(ins.A())
		for f.OpenUpvalues != nil && f.OpenUpvalues.RegIndex >= threshold {
			f.OpenUpvalues.Close()
			f.OpenUpvalues = f.OpenUpvalues.NextOpen
		}
		return f.PC + 1, nil

	case OpGetField:
		obj := *rt.reg(f, ins.B())
		field := string(chunk.Constants[ins.C()].AsStr().Bytes)
		v, err := getField(obj, field)
		if err != nil {
			return f.PC, regvmerr.New(regvmerr.KindType, line, "%s", err.Error())
		}
		*rt.reg(f, ins.A()) = v
		return f.PC + 1, nil

	case OpSetField:
		obj := *rt.reg(f, ins.A())
		field := string(chunk.Constants[ins.B()].AsStr().Bytes)
		if err := setField(obj, field, *rt.reg(f, ins.C())); err != nil {
			return f.PC, regvmerr.New(regvmerr.KindPhase, line, "%s", err.Error())
		}
		return f.PC + 1, nil

	case OpGetIndex:
		obj, idx := *rt.reg(f, ins.B()), *rt.reg(f, ins.C())
		v, err := getIndex(obj, idx)
		if err != nil {
			return f.PC, regvmerr.New(regvmerr.KindBounds, line, "%s", err.Error())
		}
		*rt.reg(f, ins.A()) = v
		return f.PC + 1, nil

	case OpSetIndex:
		obj, idx := *rt.reg(f, ins.A()), *rt.reg(f, ins.B())
		if err := setIndex(obj, idx, *rt.reg(f, ins.C())); err != nil {
			return f.PC, regvmerr.New(regvmerr.KindPhase, line, "%s", err.Error())
		}
		return f.PC + 1, nil

	case OpNewArray:
		base, count := int(ins.B()), int(ins.C())
		elems := make([]Value, count)
		for i := 0; i < count; i++ {
			elems[i] = *rt.reg(f, byte(base+i))
		}
		*rt.reg(f, ins.A()) = Array(elems)
		return f.PC + 1, nil

	case OpNewTuple:
		base, count := int(ins.B()), int(ins.C())
		elems := make([]Value, count)
		for i := 0; i < count; i++ {
			elems[i] = *rt.reg(f, byte(base+i))
		}
		*rt.reg(f, ins.A()) = Tuple(elems)
		return f.PC + 1, nil

	case OpNewStruct:
		name := string(chunk.Constants[ins.Bx()].AsStr().Bytes)
		words := chunk.ExtraWords(f.PC)
		s := &StructVal{Name: name, Fields: make(map[string]Value, len(words))}
		wordOrder := make([]string, 0, len(words))
		for _, w := range words {
			fieldName := string(chunk.Constants[w&0xFFFF].AsStr().Bytes)
			srcReg := byte((w >> 16) & 0xFF)
			wordOrder = append(wordOrder, fieldName)
			s.Fields[fieldName] = *rt.reg(f, srcReg)
		}
		s.FieldOrder = rt.structFieldOrder(name, wordOrder)
		rt.applyStructPhaseTags(s, name)
		*rt.reg(f, ins.A()) = Struct(s)
		return f.PC + 1, nil

	case OpNewEnum:
		enumName := string(chunk.Constants[ins.Bx()].AsStr().Bytes)
		words := chunk.ExtraWords(f.PC)
		e := &EnumVal{EnumName: enumName}
		if len(words) > 0 {
			w := words[0]
			e.Tag = string(chunk.Constants[w&0xFFFF].AsStr().Bytes)
			count := int((w >> 16) & 0xFF)
			base := byte((w >> 24) & 0xFF)
			e.Payload = make([]Value, count)
			for i := 0; i < count; i++ {
				e.Payload[i] = *rt.reg(f, base+byte(i))
			}
		}
		*rt.reg(f, ins.A()) = Enum(e)
		return f.PC + 1, nil

	case OpBuildRange:
		startReg, stopReg := ins.B(), ins.C()
		start := rt.reg(f, startReg).AsInt()
		stop := rt.reg(f, stopReg).AsInt()
		step := int64(1)
		inclusive := false
		if words := chunk.ExtraWords(f.PC); len(words) > 0 {
			w := words[0]
			stepReg := byte(w & 0xFF)
			inclusive = (w>>8)&0xFF != 0
			if stepReg != 0 || w&0xFF != 0 {
				step = rt.reg(f, stepReg).AsInt()
			}
		}
		*rt.reg(f, ins.A()) = Range(RangeVal{Start: start, Stop: stop, Step: step, Inclusive: inclusive})
		return f.PC + 1, nil

	case OpIterInit:
		items, err := iterableItems(*rt.reg(f, ins.B()))
		if err != nil {
			return f.PC, regvmerr.New(regvmerr.KindType, line, "%s", err.Error())
		}
		*rt.reg(f, ins.A()) = Iterator(items)
		return f.PC + 1, nil

	case OpIterNext:
		it := rt.reg(f, ins.B()).AsIterator()
		if v, ok := it.Next(); ok {
			*rt.reg(f, ins.A()) = v
		} else {
			*rt.reg(f, ins.A()) = Nil
		}
		return f.PC + 1, nil

	case OpResetEphemeral:
		rt.Arena.Reset()
		return f.PC + 1, nil

	default:
		return f.PC, regvmerr.New(regvmerr.KindBytecode, line, "execControlAggIter: unexpected opcode %s", ins.Op())
	}
}

// structFieldOrder implements the struct metadata convention (spec.md
// §6): if `__struct_<name>` is bound to an Array of field-name Strs,
// that order is canonical; otherwise the instruction's own field word
// order is used, so a NEWSTRUCT without a registered metadata binding
// still behaves exactly as before.
func (rt *Runtime) structFieldOrder(name string, fallback []string) []string {
	meta, ok := rt.Globals.Get("__struct_" + name)
	if !ok || meta.kind != KindArray {
		return fallback
	}
	elems := meta.AsArray().Elems
	order := make([]string, 0, len(elems))
	for _, v := range elems {
		if v.kind == KindStr {
			order = append(order, string(v.AsStr().Bytes))
		}
	}
	if len(order) == 0 {
		return fallback
	}
	return order
}

// applyStructPhaseTags implements the alloy-phase-tag half of the struct
// metadata convention (spec.md §6): `__struct_phases_<name>` is a
// per-field phase-code Array, position-matched against s.FieldOrder
// (0=Fluid, 1=Crystal, anything else leaves that field unspecified).
// Matching fields are phase-tagged in place and recorded in
// s.FieldPhases so the partial-freeze machinery (value_ops.go) honors
// them the same way an explicit FREEZE_FIELD would.
func (rt *Runtime) applyStructPhaseTags(s *StructVal, name string) {
	phases, ok := rt.Globals.Get("__struct_phases_" + name)
	if !ok || phases.kind != KindArray {
		return
	}
	codes := phases.AsArray().Elems
	for i, fieldName := range s.FieldOrder {
		if i >= len(codes) {
			break
		}
		var phase Phase
		switch codes[i].AsInt() {
		case 0:
			phase = PhaseFluid
		case 1:
			phase = PhaseCrystal
		default:
			continue
		}
		v, ok := s.Fields[fieldName]
		if !ok {
			continue
		}
		s.Fields[fieldName] = v.WithPhase(phase)
		if s.FieldPhases == nil {
			s.FieldPhases = make(map[string]Phase, len(codes))
		}
		s.FieldPhases[fieldName] = phase
	}
}

func iterableItems(v Value) ([]Value, error) {
	switch v.kind {
	case KindArray:
		elems := v.AsArray().Elems
		out := make([]Value, len(elems))
		copy(out, elems)
		return out, nil
	case KindTuple:
		elems := v.AsTuple().Elems
		out := make([]Value, len(elems))
		copy(out, elems)
		return out, nil
	case KindRange:
		r := v.AsRange()
		n := r.Len()
		out := make([]Value, 0, n)
		for i := int64(0); i < n; i++ {
			out = append(out, Int(r.At(i)))
		}
		return out, nil
	case KindMap:
		m := v.AsMap()
		out := make([]Value, 0, len(m.Order))
		for _, k := range m.Order {
			out = append(out, Tuple([]Value{Str(k), m.Items[k]}))
		}
		return out, nil
	case KindSet:
		s := v.AsSet()
		out := make([]Value, 0, len(s.Order))
		for _, k := range s.Order {
			out = append(out, s.Items[k])
		}
		return out, nil
	default:
		return nil, errorUnsupportedIteration(v)
	}
}
