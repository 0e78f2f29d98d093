// Package kmodule implements the kernel's module subsystem: a small
// plugin mechanism letting optional kernel-side services be registered
// during early boot and be brought up and torn down as one ordered
// sequence, without boot needing to know any concrete module type.
// boot.Run builds one Registry from the modules it is handed. A
// Registry is a spin-lock-guarded table,
// exactly as narrow in scope as the allocator or scheduler lock — it
// never nests under another kernel lock.
package kmodule

import (
	"github.com/OsirisRTOS/osiris-sub000/internal/kernerr"
	"github.com/OsirisRTOS/osiris-sub000/internal/ksync"
)

// Module is the contract every kernel module satisfies.
type Module interface {
	Name() string
	Init() error
	Exit() error
}

// Registry holds the registered modules in registration order.
type Registry struct {
	table *ksync.SpinLocked[[]Module]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{table: ksync.NewSpinLocked[[]Module](nil)}
}

// Register appends m to the table. Meant to be called during early
// boot, before InitAll runs.
func (r *Registry) Register(m Module) {
	r.table.With(func(v *[]Module) {
		*v = append(*v, m)
	})
}

// InitAll calls Init on every registered module in registration order,
// stopping at the first failure. A module that returns an error leaves
// every module after it un-initialized, matching the original
// subsystem's short-circuit behavior.
func (r *Registry) InitAll() error {
	var failed error
	r.table.With(func(v *[]Module) {
		for _, m := range *v {
			if err := m.Init(); err != nil {
				failed = kernerr.New(kernerr.Generic, m.Name()+": "+err.Error())
				return
			}
		}
	})
	return failed
}

// ExitAll calls Exit on every registered module in reverse registration
// order, stopping at the first failure.
func (r *Registry) ExitAll() error {
	var failed error
	r.table.With(func(v *[]Module) {
		for i := len(*v) - 1; i >= 0; i-- {
			m := (*v)[i]
			if err := m.Exit(); err != nil {
				failed = kernerr.New(kernerr.Generic, m.Name()+": "+err.Error())
				return
			}
		}
	})
	return failed
}

// Len reports how many modules are currently registered, for tests.
func (r *Registry) Len() int {
	n := 0
	r.table.With(func(v *[]Module) { n = len(*v) })
	return n
}
