package roles

import (
	"fmt"
	"slices"

	"github.com/samber/lo"

	"mira/interpreter-go/pkg/logger"
)

// Role is a reserved capability tag. The runtime finds the declaration that
// provides a capability by its role, never by its symbol name.
type Role string

const (
	Allocator Role = "allocator"
	Duplicate Role = "duplicate"
	Clone     Role = "clone"
	Print     Role = "print"
)

var reserved = []Role{Allocator, Duplicate, Clone, Print}

// Reserved lists the known roles in a stable order.
func Reserved() []Role {
	return slices.Clone(reserved)
}

// Parse validates a textual role tag.
func Parse(text string) (Role, error) {
	role := Role(text)
	if !lo.Contains(reserved, role) {
		return "", &UnknownRoleError{Role: text}
	}
	return role, nil
}

// UnknownRoleError reports a tag that is not one of the reserved roles.
type UnknownRoleError struct {
	Role string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown role '%s'", e.Role)
}

// Holder is the declaration currently tagged with a role.
type Holder struct {
	Role  Role
	Name  string
	Value any
}

// Registry maps each role to its single current holder. Tagging a role that
// already has a holder replaces it until the next retag.
type Registry struct {
	lggr    logger.Logger
	holders map[Role]Holder
}

func NewRegistry(lggr logger.Logger) *Registry {
	if lggr == nil {
		lggr = logger.Nop()
	}
	return &Registry{
		lggr:    lggr.Named("roles"),
		holders: make(map[Role]Holder),
	}
}

// Tag makes name the holder of role, returning the previous holder if any.
func (r *Registry) Tag(role Role, name string, value any) (Holder, bool) {
	prev, had := r.holders[role]
	r.holders[role] = Holder{Role: role, Name: name, Value: value}
	if had {
		r.lggr.Infow("Role retagged", "role", role, "from", prev.Name, "to", name)
	} else {
		r.lggr.Infow("Role tagged", "role", role, "holder", name)
	}
	return prev, had
}

// Resolve returns the current holder of role.
func (r *Registry) Resolve(role Role) (Holder, bool) {
	h, ok := r.holders[role]
	return h, ok
}

// Clear removes the holder of role.
func (r *Registry) Clear(role Role) {
	delete(r.holders, role)
}

// ResolveAs returns the holder's value when it has type T.
func ResolveAs[T any](r *Registry, role Role) (T, bool) {
	var zero T
	h, ok := r.Resolve(role)
	if !ok {
		return zero, false
	}
	v, ok := h.Value.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
