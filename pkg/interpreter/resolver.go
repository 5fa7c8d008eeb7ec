package interpreter

import (
	"fmt"

	"mira/interpreter-go/pkg/ast"
	"mira/interpreter-go/pkg/runtime"
	"mira/interpreter-go/pkg/typechecker"
)

// argument is one evaluated call argument. When the argument expression
// denotes storage (a binding, a field, a sequence item or a dereference),
// cell is that storage and the callee may alias it.
type argument struct {
	value   runtime.Value
	cell    *runtime.Cell
	mutable bool
	name    string
}

// location is a storage cell named by an expression.
type location struct {
	cell    *runtime.Cell
	mutable bool
	name    string
}

// resolveLocation finds the storage an expression denotes. ok is false for
// expressions that only produce values.
func (i *Interpreter) resolveLocation(expr ast.Expression, env *runtime.Environment) (location, bool, error) {
	switch e := expr.(type) {
	case *ast.Identifier:
		binding, err := env.Resolve(e.Name)
		if err != nil {
			return location{}, false, err
		}
		return location{cell: binding.Cell, mutable: binding.Mutable, name: e.Name}, true, nil
	case *ast.MemberAccessExpression:
		inst, parent, err := i.structTarget(e.Object, env)
		if err != nil {
			return location{}, false, err
		}
		cell, ok := inst.Fields[e.Member.Name]
		if !ok {
			return location{}, false, fmt.Errorf("struct %s has no field '%s'", inst.TypeName(), e.Member.Name)
		}
		return location{cell: cell, mutable: parent.mutable, name: parent.name + "." + e.Member.Name}, true, nil
	case *ast.IndexExpression:
		seq, parent, err := i.sequenceTarget(e.Object, env)
		if err != nil {
			return location{}, false, err
		}
		idxVal, err := i.evaluateExpression(e.Index, env)
		if err != nil {
			return location{}, false, err
		}
		idx, err := sequenceIndex(idxVal, len(seq.Items))
		if err != nil {
			return location{}, false, err
		}
		return location{cell: seq.Items[idx], mutable: parent.mutable && seq.ItemMutable(idx), name: fmt.Sprintf("%s[%d]", parent.name, idx)}, true, nil
	case *ast.DereferenceExpression:
		val, err := i.evaluateExpression(e.Reference, env)
		if err != nil {
			return location{}, false, err
		}
		ref, ok := val.(*runtime.ReferenceValue)
		if !ok {
			return location{}, false, fmt.Errorf("cannot dereference %s", val.Kind())
		}
		return location{cell: ref.Cell, mutable: ref.Mutable, name: ref.Name}, true, nil
	default:
		return location{}, false, nil
	}
}

// structTarget evaluates the object of a field access, following one
// reference if needed. Instances produced by expressions are mutable
// temporaries.
func (i *Interpreter) structTarget(expr ast.Expression, env *runtime.Environment) (*runtime.StructInstanceValue, location, error) {
	val, loc, err := i.valueWithLocation(expr, env)
	if err != nil {
		return nil, location{}, err
	}
	inst, ok := val.(*runtime.StructInstanceValue)
	if !ok {
		return nil, location{}, fmt.Errorf("cannot access field of %s", val.Kind())
	}
	return inst, loc, nil
}

func (i *Interpreter) sequenceTarget(expr ast.Expression, env *runtime.Environment) (*runtime.SequenceValue, location, error) {
	val, loc, err := i.valueWithLocation(expr, env)
	if err != nil {
		return nil, location{}, err
	}
	seq, ok := val.(*runtime.SequenceValue)
	if !ok {
		return nil, location{}, fmt.Errorf("cannot index %s", val.Kind())
	}
	return seq, loc, nil
}

// valueWithLocation evaluates expr and, when it is storage, reports where it
// lives. A reference value is followed to its target.
func (i *Interpreter) valueWithLocation(expr ast.Expression, env *runtime.Environment) (runtime.Value, location, error) {
	loc, ok, err := i.resolveLocation(expr, env)
	if err != nil {
		return nil, location{}, err
	}
	var val runtime.Value
	if ok {
		val, err = loc.cell.Get()
		if err != nil {
			return nil, location{}, &runtime.DanglingReferenceError{Name: loc.name}
		}
	} else {
		val, err = i.evaluateExpression(expr, env)
		if err != nil {
			return nil, location{}, err
		}
		loc = location{mutable: true, name: "<temporary>"}
	}
	if ref, isRef := val.(*runtime.ReferenceValue); isRef {
		target, err := ref.Cell.Get()
		if err != nil {
			return nil, location{}, &runtime.DanglingReferenceError{Name: ref.Name}
		}
		return target, location{cell: ref.Cell, mutable: ref.Mutable, name: ref.Name}, nil
	}
	return val, loc, nil
}

func sequenceIndex(val runtime.Value, length int) (int, error) {
	num, ok := val.(runtime.NumberValue)
	if !ok {
		return 0, fmt.Errorf("index must be a number, got %s", val.Kind())
	}
	idx := int(num.Val)
	if float64(idx) != num.Val || idx < 0 || idx >= length {
		return 0, fmt.Errorf("index %s out of range for sequence of length %d", runtime.Describe(num), length)
	}
	return idx, nil
}

// evaluateArgument evaluates a call argument, keeping its storage when it
// has one so an alias parameter can share it.
func (i *Interpreter) evaluateArgument(expr ast.Expression, env *runtime.Environment) (argument, error) {
	loc, ok, err := i.resolveLocation(expr, env)
	if err != nil {
		return argument{}, err
	}
	if ok {
		val, err := loc.cell.Get()
		if err != nil {
			return argument{}, &runtime.DanglingReferenceError{Name: loc.name}
		}
		return argument{value: val, cell: loc.cell, mutable: loc.mutable, name: loc.name}, nil
	}
	val, err := i.evaluateExpression(expr, env)
	if err != nil {
		return argument{}, err
	}
	return argument{value: val}, nil
}

// bindParameters builds the callee scope. Copy-marked parameters receive
// an independent duplicate. Every other parameter aliases the caller's
// storage, so assignments in the callee are visible to the caller after
// return. A trailing variadic collector gathers the remaining arguments,
// by alias, in call order.
func (i *Interpreter) bindParameters(fnName string, params []*ast.FunctionParameter, args []argument, env *runtime.Environment) error {
	fixed := len(params)
	variadic := fixed > 0 && params[fixed-1].Mode == ast.ParamVariadic
	if variadic {
		fixed--
	}
	if len(args) < fixed || (!variadic && len(args) > fixed) {
		return &ArityError{Function: fnName, Expected: fixed, Got: len(args), Variadic: variadic}
	}

	for idx := 0; idx < fixed; idx++ {
		param, arg := params[idx], args[idx]
		name := param.Name.Name
		if err := i.checkParamType(fnName, param, arg.value); err != nil {
			return err
		}
		switch {
		case param.Mode == ast.ParamCopy:
			dup, err := i.duplicateValue(arg.value)
			if err != nil {
				return fmt.Errorf("copy of argument '%s' to %s: %w", name, fnName, err)
			}
			if err := env.Define(name, dup, true); err != nil {
				return err
			}
		case arg.cell != nil:
			if err := env.DefineAlias(name, arg.cell, arg.mutable); err != nil {
				return err
			}
		default:
			if err := env.Define(name, arg.value, true); err != nil {
				return err
			}
		}
	}

	if variadic {
		collector := params[len(params)-1]
		seq := &runtime.SequenceValue{
			Items:    make([]*runtime.Cell, 0, len(args)-fixed),
			ReadOnly: make([]bool, 0, len(args)-fixed),
		}
		for _, arg := range args[fixed:] {
			if err := i.checkParamType(fnName, collector, arg.value); err != nil {
				return err
			}
			if arg.cell != nil {
				seq.Items = append(seq.Items, arg.cell)
				seq.ReadOnly = append(seq.ReadOnly, !arg.mutable)
				continue
			}
			cell := runtime.NewCell(arg.value)
			env.Adopt(cell)
			seq.Items = append(seq.Items, cell)
			seq.ReadOnly = append(seq.ReadOnly, false)
		}
		if err := env.Define(collector.Name.Name, seq, true); err != nil {
			return err
		}
	}
	return nil
}

// bindReceiver binds self as an alias of the receiver's storage.
func (i *Interpreter) bindReceiver(receiver *argument, env *runtime.Environment) error {
	if receiver.cell != nil {
		return env.DefineAlias("self", receiver.cell, receiver.mutable)
	}
	return env.Define("self", receiver.value, true)
}

// checkParamType enforces a parameter annotation at the call boundary. A
// trait annotation requires a declared impl; matching methods alone do
// not satisfy it.
func (i *Interpreter) checkParamType(fnName string, param *ast.FunctionParameter, val runtime.Value) error {
	if param.TypeName == nil {
		return nil
	}
	context := fmt.Sprintf("argument '%s' to %s", param.Name.Name, fnName)
	return i.checkValueType(context, param.TypeName.Name, val)
}

func (i *Interpreter) checkValueType(context, want string, val runtime.Value) error {
	mismatch := func() error {
		return &TypeMismatchError{Context: context, Expected: want, Actual: describeType(val)}
	}
	switch want {
	case "any":
		return nil
	case "number":
		if _, ok := val.(runtime.NumberValue); !ok {
			return mismatch()
		}
		return nil
	case "text":
		if _, ok := val.(runtime.TextValue); !ok {
			return mismatch()
		}
		return nil
	case "handle":
		if _, ok := val.(runtime.HandleValue); !ok {
			return mismatch()
		}
		return nil
	case "ref":
		if _, ok := val.(*runtime.ReferenceValue); !ok {
			return mismatch()
		}
		return nil
	}
	if _, isTrait := i.checker.Trait(want); isTrait {
		inst, ok := val.(*runtime.StructInstanceValue)
		if !ok {
			return &typechecker.ConformanceError{Trait: want, Type: describeType(val), Required: true, Reason: context + ": only struct instances implement traits"}
		}
		if err := i.checker.RequireTrait(inst.TypeName(), want); err != nil {
			return fmt.Errorf("%s: %w", context, err)
		}
		return nil
	}
	if _, isStruct := i.checker.Struct(want); isStruct {
		inst, ok := val.(*runtime.StructInstanceValue)
		if !ok || inst.TypeName() != want {
			return mismatch()
		}
		return nil
	}
	return fmt.Errorf("%s: unknown type '%s'", context, want)
}

func describeType(val runtime.Value) string {
	if inst, ok := val.(*runtime.StructInstanceValue); ok {
		return inst.TypeName()
	}
	if val == nil {
		return "<nil>"
	}
	return val.Kind().String()
}
