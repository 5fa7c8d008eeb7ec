package interpreter

import (
	"fmt"

	"mira/interpreter-go/pkg/ast"
	"mira/interpreter-go/pkg/roles"
	"mira/interpreter-go/pkg/runtime"
	"mira/interpreter-go/pkg/typechecker"
)

// tagRole makes the declaration or binding named by target the holder of
// role. Tagging replaces the previous holder for every later lookup.
func (i *Interpreter) tagRole(tag string, target *ast.Identifier, env *runtime.Environment) error {
	role, err := roles.Parse(tag)
	if err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("interpreter: role '%s' has no target", tag)
	}
	binding, err := env.Resolve(target.Name)
	if err != nil {
		return err
	}
	value, err := binding.Cell.Get()
	if err != nil {
		return &runtime.DanglingReferenceError{Name: target.Name}
	}

	if role == roles.Allocator {
		return i.tagAllocator(target.Name, binding, value)
	}
	if !runtime.IsCallable(value) {
		return fmt.Errorf("interpreter: role '%s' must tag a function, '%s' is %s", tag, target.Name, value.Kind())
	}
	i.roles.Tag(role, target.Name, value)
	return nil
}

// tagAllocator installs a script struct as the active allocator. A struct
// declaration is instantiated with void fields; a binding holding an
// instance is used in place so the allocator can keep state in it.
func (i *Interpreter) tagAllocator(name string, binding *runtime.Binding, value runtime.Value) error {
	var receiver argument
	var typeName string
	switch v := value.(type) {
	case *runtime.StructDefinitionValue:
		inst := &runtime.StructInstanceValue{Definition: v, Fields: make(map[string]*runtime.Cell)}
		for _, field := range inst.FieldNames() {
			inst.Fields[field] = runtime.NewCell(runtime.VoidValue{})
		}
		receiver = argument{value: inst, cell: runtime.NewCell(inst), mutable: true, name: name}
		typeName = v.Node.ID.Name
	case *runtime.StructInstanceValue:
		receiver = argument{value: v, cell: binding.Cell, mutable: binding.Mutable, name: name}
		typeName = v.TypeName()
	default:
		return fmt.Errorf("interpreter: role '%s' must tag a struct, '%s' is %s", roles.Allocator, name, value.Kind())
	}
	if err := i.checker.RequireTrait(typeName, typechecker.AllocatorTrait); err != nil {
		return err
	}
	i.allocs.Install(name, &scriptAllocator{interp: i, name: name, receiver: receiver})
	return nil
}

// roleHolder returns the callable tagged with role.
func (i *Interpreter) roleHolder(role roles.Role) (runtime.Value, string, error) {
	holder, ok := i.roles.Resolve(role)
	if !ok {
		return nil, "", fmt.Errorf("interpreter: no declaration holds the '%s' role", role)
	}
	value, ok := holder.Value.(runtime.Value)
	if !ok || !runtime.IsCallable(value) {
		return nil, "", fmt.Errorf("interpreter: '%s' role holder %s is not callable", role, holder.Name)
	}
	return value, holder.Name, nil
}

// duplicateValue produces the copy bound to a copy-marked parameter, via
// whatever holds the duplicate role.
func (i *Interpreter) duplicateValue(val runtime.Value) (runtime.Value, error) {
	fn, _, err := i.roleHolder(roles.Duplicate)
	if err != nil {
		return nil, err
	}
	return i.callValue(fn, nil, []argument{{value: val}}, "")
}
