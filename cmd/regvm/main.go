// Command regvm hand-assembles a small chunk, disassembles it, runs it,
// and prints the result — the register-VM analogue of the teacher's
// cmd/vm/main.go manual-chunk-construction demo.
package main

import (
	"fmt"
	"os"

	"github.com/phasescript/regvm/internal/regvm"
)

func main() {
	fmt.Println("--- regvm [register VM] ---")

	a := regvm.NewAssembler("demo")
	fortyTwo := a.Const(regvm.Int(42))
	three := a.Const(regvm.Int(3))

	a.ABx(regvm.OpLoadK, 0, int(fortyTwo))
	a.ABx(regvm.OpLoadK, 1, int(three))
	a.ABC(regvm.OpAdd, 0, 0, 1)
	a.ABC(regvm.OpReturn, 0, 0, 0)

	chunk := a.Chunk()
	fmt.Print(chunk.Disassemble())

	rt := regvm.New(regvm.DefaultConfig())
	result, err := rt.Run(chunk, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Println("result:", regvm.Display(result))
}
