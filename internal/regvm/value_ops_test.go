package regvm

import (
	"math"
	"testing"
)

func TestCloneArrayIsIndependent(t *testing.T) {
	a := Array([]Value{Int(1), Int(2)})
	b := Clone(a)
	b.AsArray().Elems[0] = Int(99)
	if a.AsArray().Elems[0].AsInt() != 1 {
		t.Errorf("expected original array untouched, got %v", a.AsArray().Elems[0].AsInt())
	}
}

func TestDeepCloneNested(t *testing.T) {
	inner := Array([]Value{Int(1)})
	outer := Array([]Value{inner})
	clone := DeepClone(outer)
	clone.AsArray().Elems[0].AsArray().Elems[0] = Int(42)
	if outer.AsArray().Elems[0].AsArray().Elems[0].AsInt() != 1 {
		t.Errorf("deep clone should not alias nested containers")
	}
}

func TestFreezeFailsOnChannel(t *testing.T) {
	ch := Channel(NewChannel(1))
	if _, err := Freeze(ch); err == nil {
		t.Errorf("expected freeze on a channel to fail")
	}
}

func TestFreezeRecursesExceptPartialOverride(t *testing.T) {
	s := &StructVal{Name: "Point", Fields: map[string]Value{"x": Int(1), "y": Int(2)}, FieldOrder: []string{"x", "y"}}
	s.FieldPhases = map[string]Phase{"y": PhaseFluid}
	obj := Struct(s).WithPhase(PhaseFluid)

	frozen, err := Freeze(obj)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frozen.Phase() != PhaseCrystal {
		t.Errorf("expected frozen struct to be crystal")
	}
	fx := frozen.AsStruct()
	if fx.Fields["x"].Phase() != PhaseCrystal {
		t.Errorf("expected field x to be crystallized")
	}
}

func TestThawClearsOverrides(t *testing.T) {
	m := NewMap()
	m.Set("a", Int(1))
	m.SetKeyPhase("a", PhaseCrystal)
	obj := Map(m).WithPhase(PhaseCrystal)

	thawed := Thaw(obj)
	if thawed.Phase() != PhaseFluid {
		t.Errorf("expected thawed map to be fluid")
	}
	if thawed.AsMap().KeyPhases != nil {
		if _, ok := thawed.AsMap().KeyPhases["a"]; ok {
			t.Errorf("expected per-key override cleared on thaw")
		}
	}
}

func TestEqNumericCrossKind(t *testing.T) {
	if !Eq(Int(3), Float(3.0)) {
		t.Errorf("expected Int(3) == Float(3.0)")
	}
	if Eq(Int(3), Str("3")) {
		t.Errorf("expected Int(3) != Str(\"3\")")
	}
}

func TestArithDivisionByZero(t *testing.T) {
	if _, err := Div(Int(1), Int(0)); err == nil {
		t.Errorf("expected integer division by zero to fail")
	}
	v, err := Div(Float(1), Float(0))
	if err != nil {
		t.Fatalf("unexpected error for float division by zero: %v", err)
	}
	if !math.IsInf(v.AsFloat64(), 1) {
		t.Errorf("expected float division by zero to yield +Inf, got %v", v.AsFloat64())
	}
}

func TestSortValuesNumeric(t *testing.T) {
	elems := []Value{Int(3), Int(1), Int(2)}
	err := SortValues(elems, func(a, b Value) (bool, error) {
		c, err := Compare(a, b)
		return c < 0, err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, want := range []int64{1, 2, 3} {
		if elems[i].AsInt() != want {
			t.Errorf("index %d: want %d, got %d", i, want, elems[i].AsInt())
		}
	}
}
