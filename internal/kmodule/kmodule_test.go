package kmodule

import (
	"errors"
	"testing"
)

type recordingModule struct {
	name       string
	initErr    error
	exitErr    error
	initCalled bool
	exitCalled bool
	exitOrder  *[]string
}

func (m *recordingModule) Name() string { return m.name }
func (m *recordingModule) Init() error  { m.initCalled = true; return m.initErr }
func (m *recordingModule) Exit() error {
	m.exitCalled = true
	if m.exitOrder != nil {
		*m.exitOrder = append(*m.exitOrder, m.name)
	}
	return m.exitErr
}

func TestInitAllRunsEveryModuleInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	a := &recordingModule{name: "a"}
	b := &recordingModule{name: "b"}
	r.Register(a)
	r.Register(b)

	if err := r.InitAll(); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	if !a.initCalled || !b.initCalled {
		t.Fatal("expected both modules to be initialized")
	}
}

func TestInitAllStopsAtFirstFailure(t *testing.T) {
	r := NewRegistry()
	a := &recordingModule{name: "a", initErr: errors.New("boom")}
	b := &recordingModule{name: "b"}
	r.Register(a)
	r.Register(b)

	if err := r.InitAll(); err == nil {
		t.Fatal("expected InitAll to report the first module's failure")
	}
	if b.initCalled {
		t.Fatal("InitAll must not initialize modules after the first failure")
	}
}

func TestExitAllRunsInReverseOrder(t *testing.T) {
	r := NewRegistry()
	var order []string
	a := &recordingModule{name: "a", exitOrder: &order}
	b := &recordingModule{name: "b", exitOrder: &order}
	r.Register(a)
	r.Register(b)

	if err := r.ExitAll(); err != nil {
		t.Fatalf("ExitAll: %v", err)
	}
	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Fatalf("exit order = %v, want [b a]", order)
	}
}

func TestLenReflectsRegisteredCount(t *testing.T) {
	r := NewRegistry()
	if r.Len() != 0 {
		t.Fatalf("Len() on empty registry = %d, want 0", r.Len())
	}
	r.Register(&recordingModule{name: "a"})
	r.Register(&recordingModule{name: "b"})
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
}
