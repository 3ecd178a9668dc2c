package regvm

import "fmt"

// Assembler is the hand-assembly surface a compiler would target (the
// AST→chunk compiler itself is out of scope, per spec.md §1). It mirrors
// the teacher's emitOpCode/emitByte/emitUint16 helpers (pkg/compiler/
// emit.go) and its cmd/vm/main.go manual-chunk-construction demo,
// generalized into a reusable builder instead of being private to one
// compiler.
type Assembler struct {
	chunk *Chunk
	line  int
}

func NewAssembler(name string) *Assembler {
	return &Assembler{chunk: NewChunk(name)}
}

func (a *Assembler) Chunk() *Chunk { return a.chunk }

func (a *Assembler) SetLine(line int) *Assembler {
	a.line = line
	return a
}

func (a *Assembler) Const(v Value) uint16 {
	return a.chunk.AddConstant(v)
}

func (a *Assembler) Local(reg int, name string) *Assembler {
	a.chunk.Locals[reg] = name
	return a
}

func (a *Assembler) emit(ins Instruction) int {
	a.chunk.Code = append(a.chunk.Code, ins)
	a.chunk.Lines = append(a.chunk.Lines, a.line)
	return len(a.chunk.Code) - 1
}

func (a *Assembler) ABC(op OpCode, x, y, z int) int {
	return a.emit(EncodeABC(op, byte(x), byte(y), byte(z)))
}

func (a *Assembler) ABx(op OpCode, x int, bx int) int {
	return a.emit(EncodeABx(op, byte(x), uint16(bx)))
}

func (a *Assembler) AsBx(op OpCode, x int, sbx int) int {
	return a.emit(EncodeAsBx(op, byte(x), int16(sbx)))
}

func (a *Assembler) SBx24(op OpCode, sbx int) int {
	return a.emit(EncodeSBx24(op, int32(sbx)))
}

// DataWord appends a raw follow-up word for the most recently emitted
// instruction (spec.md §4.4's multi-word opcodes: NEWSTRUCT, NEWENUM,
// BUILDRANGE, INVOKE, INVOKE_LOCAL, INVOKE_GLOBAL, FREEZE_FIELD,
// THAW_FIELD, BOND, SCOPE, SELECT, and CLOSURE's upvalue-capture
// descriptors).
func (a *Assembler) DataWord(w uint32) *Assembler {
	if a.chunk.Extra == nil {
		a.chunk.Extra = make(map[int][]uint32)
	}
	pc := len(a.chunk.Code) - 1
	a.chunk.Extra[pc] = append(a.chunk.Extra[pc], w)
	return a
}

// PatchJump rewrites the branch offset of the instruction at pc to land
// at the assembler's current position, for the common "emit jump, emit
// body, patch jump" forward-reference pattern. OpJmp is sBx24-encoded
// (no A register); the conditional jumps and PUSH_HANDLER are AsBx-encoded
// and carry a live A register that must survive the patch.
func (a *Assembler) PatchJump(pc int) {
	here := len(a.chunk.Code)
	ins := a.chunk.Code[pc]
	op := ins.Op()
	offset := here - pc - 1 // jumps resolve to pc+1+offset
	if op == OpJmp {
		a.chunk.Code[pc] = EncodeSBx24(op, int32(offset))
		return
	}
	a.chunk.Code[pc] = EncodeAsBx(op, ins.A(), int16(offset))
}

func (a *Assembler) Here() int { return len(a.chunk.Code) }

// Disassemble renders the chunk in a human-readable form, grounded on
// the teacher's DisassembleChunk (pkg/vm/bytecode.go).
func (c *Chunk) Disassemble() string {
	out := fmt.Sprintf("== %s ==\n", c.Name)
	for pc, ins := range c.Code {
		out += fmt.Sprintf("%04d %-14s A=%d B=%d C=%d (line %d)\n",
			pc, ins.Op(), ins.A(), ins.B(), ins.C(), c.Line(pc))
	}
	return out
}
