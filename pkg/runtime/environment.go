package runtime

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// ErrReleased is returned when storage is touched after its scope returned.
var ErrReleased = errors.New("storage released")

// Cell is one storage location. Bindings own a cell; aliases share it.
type Cell struct {
	value    Value
	released bool
}

// NewCell allocates storage holding value.
func NewCell(value Value) *Cell {
	return &Cell{value: value}
}

// Get reads the stored value.
func (c *Cell) Get() (Value, error) {
	if c == nil {
		return nil, fmt.Errorf("nil cell")
	}
	if c.released {
		return nil, ErrReleased
	}
	return c.value, nil
}

// Set overwrites the stored value.
func (c *Cell) Set(value Value) error {
	if c == nil {
		return fmt.Errorf("nil cell")
	}
	if c.released {
		return ErrReleased
	}
	c.value = value
	return nil
}

// Released reports whether the owning scope has been released.
func (c *Cell) Released() bool {
	return c != nil && c.released
}

// Binding ties a name to storage within one scope.
type Binding struct {
	Name    string
	Cell    *Cell
	Mutable bool
	// Alias is set when the cell belongs to another scope.
	Alias bool
}

// Environment is one scope of bindings, chained to its lexical parent.
type Environment struct {
	bindings map[string]*Binding
	parent   *Environment
	owned    []*Cell
	released bool
}

// NewEnvironment creates a new environment, optionally nested under a parent.
func NewEnvironment(parent *Environment) *Environment {
	return &Environment{
		bindings: make(map[string]*Binding),
		parent:   parent,
	}
}

// Extend creates a child scope.
func (e *Environment) Extend() *Environment {
	return NewEnvironment(e)
}

// Define creates a binding owned by this scope.
func (e *Environment) Define(name string, value Value, mutable bool) error {
	if _, exists := e.bindings[name]; exists {
		return &DuplicateBindingError{Name: name}
	}
	cell := NewCell(value)
	e.owned = append(e.owned, cell)
	e.bindings[name] = &Binding{Name: name, Cell: cell, Mutable: mutable}
	return nil
}

// DefineAlias binds name to storage owned elsewhere. The cell survives
// Release of this scope.
func (e *Environment) DefineAlias(name string, cell *Cell, mutable bool) error {
	if _, exists := e.bindings[name]; exists {
		return &DuplicateBindingError{Name: name}
	}
	if cell == nil {
		return fmt.Errorf("alias %q: nil storage", name)
	}
	e.bindings[name] = &Binding{Name: name, Cell: cell, Mutable: mutable, Alias: true}
	return nil
}

// Adopt transfers ownership of cell to this scope, so Release frees it.
func (e *Environment) Adopt(cell *Cell) {
	if cell != nil {
		e.owned = append(e.owned, cell)
	}
}

// Resolve finds the binding for name, searching outward through the scope chain.
func (e *Environment) Resolve(name string) (*Binding, error) {
	for scope := e; scope != nil; scope = scope.parent {
		if binding, ok := scope.bindings[name]; ok {
			return binding, nil
		}
	}
	return nil, &UnboundNameError{Name: name}
}

// Lookup reads the value bound to name.
func (e *Environment) Lookup(name string) (Value, error) {
	binding, err := e.Resolve(name)
	if err != nil {
		return nil, err
	}
	val, err := binding.Cell.Get()
	if err != nil {
		return nil, &DanglingReferenceError{Name: name}
	}
	return val, nil
}

// Assign updates an existing binding in the first scope where it appears.
func (e *Environment) Assign(name string, value Value) error {
	binding, err := e.Resolve(name)
	if err != nil {
		return err
	}
	if !binding.Mutable {
		return &ImmutableBindingError{Name: name}
	}
	if err := binding.Cell.Set(value); err != nil {
		return &DanglingReferenceError{Name: name}
	}
	return nil
}

// Has reports whether the binding exists anywhere in the scope chain.
func (e *Environment) Has(name string) bool {
	_, err := e.Resolve(name)
	return err == nil
}

// HasInCurrentScope reports whether the binding exists in the current scope.
func (e *Environment) HasInCurrentScope(name string) bool {
	_, ok := e.bindings[name]
	return ok
}

// Keys returns the bindings in sorted order (useful for determinism in tests).
func (e *Environment) Keys() []string {
	keys := lo.Keys(e.bindings)
	sort.Strings(keys)
	return keys
}

// Release ends the scope: every cell it owns is invalidated. Aliased cells
// belong to the caller and are left alone.
func (e *Environment) Release() {
	if e == nil || e.released {
		return
	}
	for _, cell := range e.owned {
		cell.released = true
	}
	e.owned = nil
	e.released = true
}

// Released reports whether Release has run.
func (e *Environment) Released() bool {
	return e != nil && e.released
}
