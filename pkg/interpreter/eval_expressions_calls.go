package interpreter

import (
	"errors"
	"fmt"

	"mira/interpreter-go/pkg/ast"
	"mira/interpreter-go/pkg/runtime"
)

func (i *Interpreter) evaluateFunctionCall(call *ast.FunctionCall, env *runtime.Environment) (runtime.Value, error) {
	if member, ok := call.Callee.(*ast.MemberAccessExpression); ok {
		return i.evaluateMethodCall(call, member, env)
	}
	calleeVal, err := i.evaluateExpression(call.Callee, env)
	if err != nil {
		return nil, err
	}
	args, err := i.evaluateArguments(call.Arguments, env)
	if err != nil {
		return nil, err
	}
	name := ""
	if id, ok := call.Callee.(*ast.Identifier); ok {
		name = id.Name
	}
	return i.callValue(calleeVal, nil, args, name)
}

func (i *Interpreter) evaluateArguments(exprs []ast.Expression, env *runtime.Environment) ([]argument, error) {
	args := make([]argument, 0, len(exprs))
	for _, expr := range exprs {
		arg, err := i.evaluateArgument(expr, env)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

// evaluateMethodCall handles `recv.name(args)`. A field holding a callable
// wins over a method of the same name. Calling through a struct declaration
// (`Type.name(args)`) reaches methods without a receiver.
func (i *Interpreter) evaluateMethodCall(call *ast.FunctionCall, member *ast.MemberAccessExpression, env *runtime.Environment) (runtime.Value, error) {
	objVal, loc, err := i.valueWithLocation(member.Object, env)
	if err != nil {
		return nil, err
	}
	name := member.Member.Name
	args, err := i.evaluateArguments(call.Arguments, env)
	if err != nil {
		return nil, err
	}

	switch obj := objVal.(type) {
	case *runtime.StructDefinitionValue:
		fn, err := i.findMethod(obj.Node.ID.Name, name)
		if err != nil {
			return nil, err
		}
		if fn.Declaration.HasReceiver {
			return nil, fmt.Errorf("method %s requires a receiver", fn.Name())
		}
		return i.callValue(fn, nil, args, "")
	case *runtime.StructInstanceValue:
		if cell, ok := obj.Fields[name]; ok {
			fieldVal, err := cell.Get()
			if err != nil {
				return nil, &runtime.DanglingReferenceError{Name: loc.name + "." + name}
			}
			return i.callValue(fieldVal, nil, args, name)
		}
		fn, err := i.findMethod(obj.TypeName(), name)
		if err != nil {
			return nil, err
		}
		if !fn.Declaration.HasReceiver {
			return i.callValue(fn, nil, args, "")
		}
		cell := loc.cell
		if cell == nil {
			cell = runtime.NewCell(obj)
		}
		receiver := &argument{value: obj, cell: cell, mutable: loc.mutable, name: loc.name}
		return i.callValue(fn, receiver, args, "")
	default:
		return nil, fmt.Errorf("cannot call method '%s' on %s", name, objVal.Kind())
	}
}

// callMethod invokes a method on receiver with fresh argument values. The
// receiver keeps its storage so the method can update it.
func (i *Interpreter) callMethod(receiver argument, name string, args ...runtime.Value) (runtime.Value, error) {
	inst, ok := receiver.value.(*runtime.StructInstanceValue)
	if !ok {
		return nil, fmt.Errorf("cannot call method '%s' on %s", name, receiver.value.Kind())
	}
	fn, err := i.findMethod(inst.TypeName(), name)
	if err != nil {
		return nil, err
	}
	bound := make([]argument, len(args))
	for idx, arg := range args {
		bound[idx] = argument{value: arg}
	}
	if !fn.Declaration.HasReceiver {
		return i.callValue(fn, nil, bound, "")
	}
	return i.callValue(fn, &receiver, bound, "")
}

// findMethod resolves name on typeName: inherent methods first, then the
// methods of every trait the type implements, then trait defaults. The
// same name reachable through two traits is ambiguous.
func (i *Interpreter) findMethod(typeName, name string) (*runtime.FunctionValue, error) {
	if def, ok := i.structs[typeName]; ok {
		if fn, ok := def.Methods[name]; ok {
			return fn, nil
		}
	}
	var found *runtime.FunctionValue
	var foundTrait string
	for _, impl := range i.checker.ImplsFor(typeName) {
		key := implKey{typeName: typeName, trait: impl.Trait.Name}
		fn, ok := i.implMethods[key][name]
		if !ok {
			fn, ok = i.defaults[key][name]
		}
		if !ok {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("method '%s' on %s is ambiguous between traits %s and %s", name, typeName, foundTrait, impl.Trait.Name)
		}
		found, foundTrait = fn, impl.Trait.Name
	}
	if found == nil {
		return nil, fmt.Errorf("%s has no method '%s'", typeName, name)
	}
	return found, nil
}

// callValue dispatches a call. receiver is non-nil for method calls.
func (i *Interpreter) callValue(callee runtime.Value, receiver *argument, args []argument, name string) (runtime.Value, error) {
	switch fn := callee.(type) {
	case *runtime.FunctionValue:
		return i.invokeFunction(fn, receiver, args)
	case runtime.BoundMethodValue:
		val, err := fn.Receiver.Get()
		if err != nil {
			return nil, &runtime.DanglingReferenceError{Name: "self"}
		}
		return i.invokeFunction(fn.Method, &argument{value: val, cell: fn.Receiver, mutable: fn.Mutable, name: "self"}, args)
	case runtime.NativeFunctionValue:
		if fn.Arity >= 0 && len(args) != fn.Arity {
			return nil, &ArityError{Function: fn.Name, Expected: fn.Arity, Got: len(args)}
		}
		values := make([]runtime.Value, len(args))
		for idx, arg := range args {
			values[idx] = arg.value
		}
		out, err := fn.Impl(&runtime.NativeCallContext{Env: i.global, State: i}, values)
		if err != nil {
			return nil, i.fatal(err)
		}
		if out == nil {
			out = runtime.VoidValue{}
		}
		return out, nil
	default:
		if name == "" {
			name = runtime.Describe(callee)
		}
		return nil, fmt.Errorf("'%s' is not callable (%s)", name, callee.Kind())
	}
}

// invokeFunction runs a script function in a fresh scope chained to its
// closure. Storage owned by the scope is released on exit, which is what
// makes a reference escaping the call dangle.
func (i *Interpreter) invokeFunction(fn *runtime.FunctionValue, receiver *argument, args []argument) (runtime.Value, error) {
	decl := fn.Declaration
	if decl == nil || decl.Body == nil {
		return nil, fmt.Errorf("function %s has no body", fn.Name())
	}
	if decl.HasReceiver && receiver == nil {
		return nil, fmt.Errorf("method %s requires a receiver", fn.Name())
	}
	if i.frames.Size() >= i.maxDepth {
		return nil, &HaltError{Message: fmt.Sprintf("call depth exceeded %d", i.maxDepth), Trace: i.trace()}
	}
	i.frames.Push(frame{name: fn.Name()})
	defer i.frames.Pop()

	env := runtime.NewEnvironment(fn.Closure)
	defer env.Release()
	if decl.HasReceiver {
		if err := i.bindReceiver(receiver, env); err != nil {
			return nil, err
		}
	}
	if err := i.bindParameters(fn.Name(), decl.Params, args, env); err != nil {
		return nil, err
	}

	result, err := i.evaluateStatements(decl.Body.Body, env)
	if err != nil {
		var ret returnSignal
		if errors.As(err, &ret) {
			return ret.value, nil
		}
		return nil, err
	}
	return result, nil
}
