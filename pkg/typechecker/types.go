package typechecker

import (
	"mira/interpreter-go/pkg/ast"
)

// Builtin type names accepted in parameter, field and binding annotations.
var builtinTypeNames = map[string]struct{}{
	"number": {},
	"text":   {},
	"handle": {},
	"ref":    {},
	"any":    {},
}

// IsBuiltinType reports whether name is one of the builtin type names.
func IsBuiltinType(name string) bool {
	_, ok := builtinTypeNames[name]
	return ok
}

// MethodSignature is the part of a method conformance compares.
type MethodSignature struct {
	Name        string
	Params      int
	HasReceiver bool
	HasDefault  bool
}

func signatureOf(def *ast.FunctionDefinition) MethodSignature {
	return MethodSignature{Name: def.ID.Name, Params: len(def.Params), HasReceiver: def.HasReceiver}
}

// StructType is a declared struct with its inherent methods.
type StructType struct {
	Name     string
	Fields   []string
	Inherent map[string]MethodSignature
	Node     *ast.StructDefinition
}

// TraitDecl is a declared trait and its required methods in declaration order.
type TraitDecl struct {
	Name    string
	Methods []MethodSignature
	Node    *ast.TraitDefinition
}

// Method looks up a required method by name.
func (t *TraitDecl) Method(name string) (MethodSignature, bool) {
	for _, m := range t.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return MethodSignature{}, false
}

// Impl records that Target conforms to Trait. It only exists once the
// method table has been checked.
type Impl struct {
	Trait   *TraitDecl
	Target  *StructType
	Methods map[string]*ast.FunctionDefinition
	Node    *ast.ImplementationDefinition
}

type implKey struct {
	target string
	trait  string
}
