package interpreter

import (
	"errors"
	"fmt"

	"mira/interpreter-go/pkg/ast"
	"mira/interpreter-go/pkg/native"
	"mira/interpreter-go/pkg/runtime"
	"mira/interpreter-go/pkg/typechecker"
)

// defineGlobal binds a top-level declaration, reporting a second
// declaration of the same name.
func (i *Interpreter) defineGlobal(kind, name string, value runtime.Value) error {
	if err := i.global.Define(name, value, false); err != nil {
		var dup *runtime.DuplicateBindingError
		if errors.As(err, &dup) {
			return &typechecker.DuplicateDeclarationError{Kind: kind, Name: name}
		}
		return err
	}
	return nil
}

func (i *Interpreter) evaluateStructDefinition(def *ast.StructDefinition) error {
	if def == nil || def.ID == nil {
		return fmt.Errorf("interpreter: struct definition missing identifier")
	}
	if i.global.HasInCurrentScope(def.ID.Name) {
		return &typechecker.DuplicateDeclarationError{Kind: "struct", Name: def.ID.Name}
	}
	if _, err := i.checker.DeclareStruct(def); err != nil {
		return err
	}
	structVal := &runtime.StructDefinitionValue{Node: def, Methods: make(map[string]*runtime.FunctionValue, len(def.Methods))}
	for _, method := range def.Methods {
		structVal.Methods[method.ID.Name] = &runtime.FunctionValue{Declaration: method, Closure: i.global, Owner: def.ID.Name}
	}
	i.structs[def.ID.Name] = structVal
	return i.defineGlobal("struct", def.ID.Name, structVal)
}

func (i *Interpreter) evaluateTraitDefinition(def *ast.TraitDefinition) error {
	if def == nil || def.ID == nil {
		return fmt.Errorf("interpreter: trait definition missing identifier")
	}
	if i.global.HasInCurrentScope(def.ID.Name) {
		return &typechecker.DuplicateDeclarationError{Kind: "trait", Name: def.ID.Name}
	}
	if _, err := i.checker.DeclareTrait(def); err != nil {
		return err
	}
	traitVal := &runtime.TraitDefinitionValue{Node: def, Env: i.global}
	i.traits[def.ID.Name] = traitVal
	return i.defineGlobal("trait", def.ID.Name, traitVal)
}

func (i *Interpreter) evaluateFunctionDefinition(def *ast.FunctionDefinition) error {
	if def == nil || def.ID == nil {
		return fmt.Errorf("interpreter: function definition missing identifier")
	}
	if err := validateParams(def.ID.Name, def.Params); err != nil {
		return err
	}
	return i.defineGlobal("function", def.ID.Name, &runtime.FunctionValue{Declaration: def, Closure: i.global})
}

func validateParams(name string, params []*ast.FunctionParameter) error {
	for idx, p := range params {
		if p == nil || p.Name == nil {
			return fmt.Errorf("interpreter: function %s parameter %d is missing a name", name, idx)
		}
		if p.Mode == ast.ParamVariadic && idx != len(params)-1 {
			return fmt.Errorf("interpreter: function %s: variadic parameter '%s' must be last", name, p.Name.Name)
		}
	}
	return nil
}

// evaluateExternDefinition binds the declaration to its host symbol. The
// signature is checked here, so a mismatched extern never becomes callable.
func (i *Interpreter) evaluateExternDefinition(def *ast.ExternFunctionDefinition) error {
	if def == nil || def.ID == nil {
		return fmt.Errorf("interpreter: extern definition missing identifier")
	}
	sig, err := native.ParseSignature(def.ID.Name, def.Params, def.ReturnKind)
	if err != nil {
		return err
	}
	fn, err := i.binder.Bind(sig)
	if err != nil {
		return err
	}
	value := runtime.NativeFunctionValue{
		Name:  def.ID.Name,
		Arity: len(sig.Params),
		Impl: func(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
			return fn.Invoke(args)
		},
	}
	return i.defineGlobal("extern", def.ID.Name, value)
}

func implOwner(def *ast.ImplementationDefinition) string {
	if def.TargetType == nil {
		return "<impl>"
	}
	return def.TargetType.Name
}

// evaluateImplementationDefinition checks the impl against its trait before
// any of its methods become reachable.
func (i *Interpreter) evaluateImplementationDefinition(def *ast.ImplementationDefinition) error {
	for _, m := range def.Methods {
		if m == nil || m.ID == nil {
			continue
		}
		if err := validateParams(implOwner(def)+"."+m.ID.Name, m.Params); err != nil {
			return err
		}
	}
	impl, err := i.checker.DeclareImpl(def)
	if err != nil {
		return err
	}
	typeName, traitName := impl.Target.Name, impl.Trait.Name
	key := implKey{typeName: typeName, trait: traitName}

	methods := make(map[string]*runtime.FunctionValue, len(impl.Methods))
	for name, decl := range impl.Methods {
		methods[name] = &runtime.FunctionValue{Declaration: decl, Closure: i.global, Owner: typeName}
	}
	i.implMethods[key] = methods

	defaults := make(map[string]*runtime.FunctionValue)
	for _, m := range i.traits[traitName].Node.Methods {
		if m.Default == nil {
			continue
		}
		if _, overridden := methods[m.ID.Name]; overridden {
			continue
		}
		decl := ast.NewFunctionDefinition(m.ID, m.Params, m.Default, m.HasReceiver, nil)
		defaults[m.ID.Name] = &runtime.FunctionValue{Declaration: decl, Closure: i.global, Owner: typeName}
	}
	i.defaults[key] = defaults
	i.lggr.Debugw("Impl registered", "trait", traitName, "type", typeName, "methods", len(methods), "defaults", len(defaults))
	return nil
}

// applyDeclaredRoles processes role tags attached directly to declarations.
func (i *Interpreter) applyDeclaredRoles(module *ast.Module) error {
	for _, stmt := range module.Body {
		var tags []string
		var name *ast.Identifier
		switch s := stmt.(type) {
		case *ast.StructDefinition:
			tags, name = s.Roles, s.ID
		case *ast.FunctionDefinition:
			tags, name = s.Roles, s.ID
		case *ast.ExternFunctionDefinition:
			tags, name = s.Roles, s.ID
		default:
			continue
		}
		for _, tag := range tags {
			if err := i.tagRole(tag, name, i.global); err != nil {
				return err
			}
		}
	}
	return nil
}
