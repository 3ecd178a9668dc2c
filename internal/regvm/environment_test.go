package regvm

import "testing"

func TestEnvironmentDefineAndGet(t *testing.T) {
	e := NewEnvironment()
	e.Define("x", Int(1))
	v, ok := e.Get("x")
	if !ok || v.AsInt() != 1 {
		t.Fatalf("expected x=1, got %v ok=%v", v, ok)
	}
}

func TestEnvironmentSetFailsOnUndefined(t *testing.T) {
	e := NewEnvironment()
	if ok := e.Set("missing", Int(1)); ok {
		t.Errorf("expected Set on an undefined name to fail (no implicit global creation)")
	}
}

func TestEnvironmentGetRefAliasesLiveCell(t *testing.T) {
	e := NewEnvironment()
	e.Define("x", Int(1))
	ref, ok := e.GetRef("x")
	if !ok {
		t.Fatalf("expected GetRef to find x")
	}
	*ref = Int(2)
	v, _ := e.Get("x")
	if v.AsInt() != 2 {
		t.Errorf("expected write through GetRef to be visible via Get, got %v", v.AsInt())
	}
}

func TestEnvironmentScopeShadowing(t *testing.T) {
	e := NewEnvironment()
	e.Define("x", Int(1))
	e.PushScope()
	e.Define("x", Int(2))
	if v, _ := e.Get("x"); v.AsInt() != 2 {
		t.Errorf("expected innermost binding to shadow, got %v", v.AsInt())
	}
	e.PopScope()
	if v, _ := e.Get("x"); v.AsInt() != 1 {
		t.Errorf("expected outer binding restored after pop, got %v", v.AsInt())
	}
}

func TestEnvironmentNamesAtScopeIsolated(t *testing.T) {
	e := NewEnvironment()
	e.Define("outer", Int(1))
	e.PushScope()
	e.Define("inner", Int(2))
	names := e.namesAt(e.Depth() - 1)
	if len(names) != 1 || names[0] != "inner" {
		t.Errorf("expected namesAt to report only the current scope's own bindings, got %v", names)
	}
}
