package regvm

import (
	"fmt"

	"github.com/phasescript/regvm/internal/modules"
	"github.com/phasescript/regvm/internal/regvmerr"
	"github.com/phasescript/regvm/internal/scheduler"
)

// defaultStackSize bounds the register stack. It is allocated once and
// never reallocated, so Upvalue.Location pointers (which alias live
// slots in this array) stay valid for the VM's whole lifetime — growing
// it with append would invalidate every open upvalue (spec.md §3, §9).
const defaultStackSize = 1 << 16

// debugDispatch turns on opcode-level tracing, mirroring the teacher's
// debugRegAlloc package-level toggle (pkg/compiler/regalloc.go) rather
// than wiring a logging library into the hot dispatch loop.
var debugDispatch = false

// Config configures a Runtime, grounded on the teacher's LoaderConfig /
// DefaultLoaderConfig pattern (pkg/driver/config.go).
type Config struct {
	// StackSize overrides the register stack capacity; 0 means
	// defaultStackSize.
	StackSize int
	// Resolver looks up IMPORT/REQUIRE specifiers; nil means a
	// FileResolver rooted at the process's working directory.
	Resolver modules.Resolver
	// Scheduler runs SCOPE's spawned tasks; nil means Sequential.
	Scheduler scheduler.Scheduler
	// Builtins are injected into the global scope before the entry
	// chunk runs, keyed by name (spec.md §4.7's builtin module table is
	// layered on top of this via module_loader.go).
	Builtins map[string]*ClosureVal
	// Compile turns a resolved module's source bytes into a runnable
	// Chunk. The compiler itself is out of scope (spec.md §1 explicit
	// non-goal: "the core consumes ready chunks"); a host embeds one here.
	// IMPORT/REQUIRE fail with a KindModule error if left nil.
	Compile func(path string, source []byte) (*Chunk, error)
	// BuiltinModules are consulted by IMPORT/REQUIRE before Resolver/
	// Compile, keyed by specifier (spec.md §4.7's fixed built-in module
	// table, e.g. "math", "channels").
	BuiltinModules map[string]func() Value
}

func DefaultConfig() Config {
	return Config{
		Resolver:  &modules.FileResolver{},
		Scheduler: &scheduler.Sequential{},
	}
}

// Runtime is the register VM: register stack, call-frame stack, global
// environment, bump arena, and the cross-cutting phase/reactive services
// (spec.md §2 "Data flow", §4.3, §9).
type Runtime struct {
	cfg Config

	Stack  []Value
	Frames []*Frame

	Globals *Environment
	Arena   *Arena

	Resolver  modules.Resolver
	Modules   *modules.Registry[*ModuleResult]
	Scheduler scheduler.Scheduler

	// reactive services (phase_runtime.go)
	reactions map[string][]*ClosureVal
	bonds     map[string][]bondEdge
	seeds     map[string][]*ClosureVal
	history   map[string][]Value

	sp int // next free register slot, across the whole Stack (frames carve out disjoint windows)
}

func New(cfg Config) *Runtime {
	size := cfg.StackSize
	if size == 0 {
		size = defaultStackSize
	}
	if cfg.Resolver == nil {
		cfg.Resolver = &modules.FileResolver{}
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = &scheduler.Sequential{}
	}
	rt := &Runtime{
		cfg:       cfg,
		Stack:     make([]Value, size),
		Globals:   NewEnvironment(),
		Arena:     NewArena(),
		Resolver:  cfg.Resolver,
		Modules:   modules.NewRegistry[*ModuleResult](),
		Scheduler: cfg.Scheduler,
		reactions: make(map[string][]*ClosureVal),
		bonds:     make(map[string][]bondEdge),
		seeds:     make(map[string][]*ClosureVal),
		history:   make(map[string][]Value),
	}
	for name, c := range cfg.Builtins {
		rt.Globals.Define(name, Closure(c))
	}
	return rt
}

// Run executes chunk as the entry point, with args bound to its first
// registers, and returns the operand register of the top-level RETURN,
// or register 0 if HALT is reached first (spec.md §2: "On exit the VM returns a
// single value").
func (rt *Runtime) Run(chunk *Chunk, args []Value) (Value, error) {
	if chunk.Magic != RegChunkMagic {
		return Value{}, regvmerr.New(regvmerr.KindBytecode, 0, "chunk magic mismatch: not a register-VM chunk")
	}
	closure := &ClosureVal{Kind: ClosureBytecode, Proto: chunk, Arity: len(args), Name: chunk.Name}
	base, err := rt.allocWindow(256)
	if err != nil {
		return Value{}, err
	}
	for i, a := range args {
		rt.Stack[base+i] = a
	}
	frame := &Frame{Closure: closure, Base: base}
	rt.Frames = append(rt.Frames, frame)
	defer func() {
		rt.Frames = rt.Frames[:len(rt.Frames)-1]
		rt.freeWindow(base)
	}()

	result, err := rt.dispatch(frame)
	if ts, ok := err.(*thrownSignal); ok {
		return Value{}, regvmerr.NewThrown(0, Display(ts.V))
	}
	return result, err
}

// allocWindow reserves n contiguous register slots, failing with a
// Resource error on overflow instead of growing (and invalidating open
// upvalues).
func (rt *Runtime) allocWindow(n int) (int, error) {
	if rt.sp+n > len(rt.Stack) {
		return 0, regvmerr.New(regvmerr.KindResource, 0, "register stack overflow")
	}
	base := rt.sp
	rt.sp += n
	return base, nil
}

func (rt *Runtime) freeWindow(base int) {
	rt.sp = base
}

func (rt *Runtime) frame() *Frame { return rt.Frames[len(rt.Frames)-1] }

func (rt *Runtime) reg(f *Frame, i byte) *Value { return &rt.Stack[f.Base+int(i)] }

// dispatch runs f's chunk from f.PC until it returns, throws past the
// entry frame, or HALTs. Each opcode category is handled by a helper in
// a sibling file to keep this loop a plain switch.
func (rt *Runtime) dispatch(f *Frame) (Value, error) {
	chunk := f.Closure.Proto
	for {
		if f.PC >= len(chunk.Code) {
			return rt.Stack[f.Base], nil
		}
		ins := chunk.Code[f.PC]
		op := ins.Op()
		if debugDispatch {
			fmt.Printf("%04d %s\n", f.PC, op)
		}

		switch op {
		case OpHalt:
			return rt.Stack[f.Base], nil

		case OpMove, OpLoadK, OpLoadI, OpLoadNil, OpLoadTrue, OpLoadFalse, OpLoadUnit,
			OpAdd, OpSub, OpMul, OpDiv, OpMod, OpNeg, OpAddI, OpNot,
			OpBitAnd, OpBitOr, OpBitXor, OpBitNot, OpLShift, OpRShift,
			OpEq, OpNeq, OpLt, OpLtEq, OpGt, OpGtEq, OpConcat:
			if err := rt.execDataArith(f, ins); err != nil {
				if thrown := rt.handleThrow(f, err); thrown != nil {
					return Value{}, thrown
				}
				continue
			}
			f.PC++

		case OpJmp, OpJmpFalse, OpJmpTrue, OpJmpNotNil,
			OpGetGlobal, OpSetGlobal, OpDefineGlobal, OpGetUpvalue, OpSetUpvalue, OpCloseUpvalue,
			OpGetField, OpSetField, OpGetIndex, OpSetIndex,
			OpNewArray, OpNewTuple, OpNewStruct, OpNewEnum, OpBuildRange,
			OpIterInit, OpIterNext, OpResetEphemeral:
			next, err := rt.execControlAggIter(f, ins)
			if err != nil {
				if thrown := rt.handleThrow(f, err); thrown != nil {
					return Value{}, thrown
				}
				continue
			}
			f.PC = next

		case OpClosure:
			rt.execClosure(f, ins)
			f.PC++

		case OpCall:
			if err := rt.execCall(f, ins); err != nil {
				if thrown := rt.handleThrow(f, err); thrown != nil {
					return Value{}, thrown
				}
				continue
			}
			f.PC++

		case OpReturn:
			return rt.execReturn(f, ins), nil

		case OpPushHandler, OpPopHandler, OpThrow:
			next, err := rt.execExceptionOp(f, ins)
			if err != nil {
				if thrown := rt.handleThrow(f, err); thrown != nil {
					return Value{}, thrown
				}
				continue
			}
			f.PC = next

		case OpDeferPush, OpDeferRun:
			if err := rt.execDeferOp(f, ins); err != nil {
				if thrown := rt.handleThrow(f, err); thrown != nil {
					return Value{}, thrown
				}
				continue
			}
			f.PC++

		case OpTryUnwrap:
			result, returned, err := rt.execTryUnwrap(f, ins)
			if err != nil {
				if thrown := rt.handleThrow(f, err); thrown != nil {
					return Value{}, thrown
				}
				continue
			}
			if returned {
				return result, nil
			}
			f.PC++

		case OpFreeze, OpThaw, OpClone, OpFreezeVar, OpThawVar, OpSublimateVar,
			OpFreezeField, OpThawField, OpIsCrystal, OpMarkFluid,
			OpReact, OpUnreact, OpBond, OpUnbond, OpSeed, OpUnseed:
			if err := rt.execPhaseOp(f, ins); err != nil {
				if thrown := rt.handleThrow(f, err); thrown != nil {
					return Value{}, thrown
				}
				continue
			}
			f.PC++

		case OpInvoke, OpInvokeLocal, OpInvokeGlobal:
			if err := rt.execInvoke(f, ins); err != nil {
				if thrown := rt.handleThrow(f, err); thrown != nil {
					return Value{}, thrown
				}
				continue
			}
			f.PC++

		case OpScope, OpSelect:
			if err := rt.execConcurrencyOp(f, ins); err != nil {
				if thrown := rt.handleThrow(f, err); thrown != nil {
					return Value{}, thrown
				}
				continue
			}
			f.PC++

		case OpImport, OpRequire:
			if err := rt.execModuleOp(f, ins); err != nil {
				if thrown := rt.handleThrow(f, err); thrown != nil {
					return Value{}, thrown
				}
				continue
			}
			f.PC++

		default:
			if thrown := rt.handleThrow(f, regvmerr.New(regvmerr.KindBytecode, chunk.Line(f.PC), "unknown opcode %s", op)); thrown != nil {
				return Value{}, thrown
			}
		}
	}
}

// ModuleResult is what module_loader.go caches per resolved path: the
// module's filtered export namespace plus whatever it returned.
type ModuleResult struct {
	Exports map[string]Value
	Result  Value
}

type bondEdge struct {
	Target   string
	Strategy string
}
