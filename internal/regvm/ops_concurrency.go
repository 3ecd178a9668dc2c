package regvm

import "github.com/phasescript/regvm/internal/regvmerr"

// execConcurrencyOp implements SCOPE and SELECT (spec.md §4.5, §5).
// SCOPE runs its spawns through rt.Scheduler rather than launching
// goroutines inline, so a parallel scheduler can be swapped in without
// touching this file (internal/scheduler); SELECT does not use the
// scheduler.
//
// SCOPE: A=destReg, Bx=constant index of the sync sub-chunk (a zero-arg
// Closure). ExtraWords(pc)[0] holds the spawn count; subsequent words
// pack three one-byte spawn-closure constant indices per word (spec.md
// §4.4: "for SCOPE the data words pack spawn-chunk constant indices
// three per word"). destReg receives an Array: the sync result
// followed by each spawn's result, in left-to-right order.
//
// SELECT: A=destReg (the result of the arm body or default body that
// ran, Unit if no arm was ready and there is no default), B=arm count, C=default-body constant index (0xFF = no
// default). Each arm occupies one follow-up word: chanReg(8) |
// bindReg(8, 0xFF = discard) | bodyConstIdx(8) | timeoutFlag(8, present
// but unobserved per spec.md's Open Question). Arms are tried in order
// with a non-blocking receive; the first ready arm runs its body, else
// the default arm runs.
func (rt *Runtime) execConcurrencyOp(f *Frame, ins Instruction) error {
	chunk := f.Closure.Proto
	line := chunk.Line(f.PC)

	switch ins.Op() {
	case OpScope:
		destReg := ins.A()
		syncConstIdx := ins.Bx()
		words := chunk.ExtraWords(f.PC)
		if len(words) == 0 {
			return regvmerr.New(regvmerr.KindBytecode, line, "SCOPE missing follow-up words")
		}
		spawnCount := int(words[0])
		spawnIdx := make([]int, 0, spawnCount)
		for _, w := range words[1:] {
			for shift := 0; shift < 24 && len(spawnIdx) < spawnCount; shift += 8 {
				spawnIdx = append(spawnIdx, int((w>>uint(shift))&0xFF))
			}
		}

		syncClosure := chunk.Constants[syncConstIdx].AsClosure()
		syncResult, err := rt.callClosure(syncClosure, nil)
		if err != nil {
			return err
		}

		results := make([]Value, 1+spawnCount)
		results[0] = syncResult
		tasks := make([]func() error, spawnCount)
		for i, idx := range spawnIdx {
			i := i
			spawnClosure := chunk.Constants[idx].AsClosure()
			tasks[i] = func() error {
				v, err := rt.callClosure(spawnClosure, nil)
				if err != nil {
					return err
				}
				results[1+i] = v
				return nil
			}
		}
		if err := rt.Scheduler.RunSpawns(tasks); err != nil {
			return err
		}
		*rt.reg(f, destReg) = Array(results)
		return nil

	case OpSelect:
		destReg := ins.A()
		armCount := int(ins.B())
		defaultConstIdx := ins.C()
		words := chunk.ExtraWords(f.PC)
		if len(words) < armCount {
			return regvmerr.New(regvmerr.KindBytecode, line, "SELECT missing follow-up words for %d arms", armCount)
		}

		for i := 0; i < armCount; i++ {
			w := words[i]
			chanReg := byte(w & 0xFF)
			bindReg := byte((w >> 8) & 0xFF)
			bodyConstIdx := byte((w >> 16) & 0xFF)

			chVal := *rt.reg(f, chanReg)
			if chVal.kind != KindChannel {
				return regvmerr.New(regvmerr.KindType, line, "SELECT arm %d channel expression is not a Channel", i)
			}
			v, ok := chVal.AsChannel().TryRecv()
			if !ok {
				continue
			}
			if bindReg != 0xFF {
				*rt.reg(f, bindReg) = v
			}
			body := chunk.Constants[bodyConstIdx].AsClosure()
			result, err := rt.callClosure(body, nil)
			if err != nil {
				return err
			}
			*rt.reg(f, destReg) = result
			return nil
		}

		if defaultConstIdx != 0xFF {
			body := chunk.Constants[defaultConstIdx].AsClosure()
			result, err := rt.callClosure(body, nil)
			if err != nil {
				return err
			}
			*rt.reg(f, destReg) = result
			return nil
		}
		*rt.reg(f, destReg) = Unit
		return nil

	default:
		return regvmerr.New(regvmerr.KindBytecode, line, "unexpected concurrency opcode %s", ins.Op())
	}
}
