package typechecker

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"mira/interpreter-go/pkg/ast"
	"mira/interpreter-go/pkg/logger"
	"mira/interpreter-go/pkg/native"
	"mira/interpreter-go/pkg/roles"
)

// DiagnosticSeverity conveys the diagnostic level.
type DiagnosticSeverity string

const (
	SeverityError   DiagnosticSeverity = "error"
	SeverityWarning DiagnosticSeverity = "warning"
)

// Diagnostic represents a static error or warning.
type Diagnostic struct {
	Severity DiagnosticSeverity
	Message  string
	Node     ast.Node
	Err      error
}

// DescribeDiagnostic formats a diagnostic for human-readable output.
func DescribeDiagnostic(diag Diagnostic, path string) string {
	message := diag.Message
	var line, column int
	if diag.Node != nil {
		span := diag.Node.Span()
		line, column = span.Start.Line, span.Start.Column
	}
	if path != "" {
		switch {
		case line > 0 && column > 0:
			message = fmt.Sprintf("%s (%s:%d:%d)", message, path, line, column)
		case line > 0:
			message = fmt.Sprintf("%s (%s:%d)", message, path, line)
		default:
			message = fmt.Sprintf("%s (%s)", message, path)
		}
	}
	if diag.Severity == SeverityWarning {
		return "warning: " + message
	}
	return message
}

// HasErrors reports whether any diagnostic is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity != SeverityWarning {
			return true
		}
	}
	return false
}

// CheckResult is the outcome of a whole-program check.
type CheckResult struct {
	Diagnostics []Diagnostic
	Checker     *Checker
}

// ProgramChecker runs the static checks over a set of modules: duplicate
// declarations, impl conformance, native signatures, role tags, type
// annotations and trait requirements at call sites whose argument type is
// statically known.
type ProgramChecker struct {
	lggr    logger.Logger
	binder  *native.Binder
	checker *Checker

	diags     []Diagnostic
	declared  map[string]string
	functions map[string]*ast.FunctionDefinition
}

// NewProgramChecker returns a checker. binder may be nil, in which case
// extern declarations are only checked for well-formed kinds.
func NewProgramChecker(lggr logger.Logger, binder *native.Binder) *ProgramChecker {
	if lggr == nil {
		lggr = logger.Nop()
	}
	return &ProgramChecker{
		lggr:      lggr,
		binder:    binder,
		checker:   New(lggr),
		declared:  make(map[string]string),
		functions: make(map[string]*ast.FunctionDefinition),
	}
}

// Check validates the modules in order; later modules may refer to names
// declared by earlier ones.
func (pc *ProgramChecker) Check(modules ...*ast.Module) (CheckResult, error) {
	var body []ast.Statement
	for _, mod := range modules {
		if mod == nil {
			return CheckResult{}, fmt.Errorf("typechecker: module is nil")
		}
		body = append(body, mod.Body...)
	}

	pc.collectDeclarations(body)
	pc.declareImpls(body)
	pc.checkExterns(body)
	pc.checkRoles(body)
	pc.checkAnnotations(body)
	pc.checkBodies(body)

	pc.lggr.Debugw("Program checked", "diagnostics", len(pc.diags))
	return CheckResult{Diagnostics: pc.diags, Checker: pc.checker}, nil
}

// DeclareBuiltins records host-provided callables so role tags and calls
// may target them.
func (pc *ProgramChecker) DeclareBuiltins(names ...string) {
	for _, name := range names {
		pc.declared[name] = "builtin"
	}
}

func (pc *ProgramChecker) report(node ast.Node, err error) {
	pc.diags = append(pc.diags, Diagnostic{Severity: SeverityError, Message: err.Error(), Node: node, Err: err})
}

func (pc *ProgramChecker) reportf(node ast.Node, format string, args ...any) {
	pc.report(node, fmt.Errorf("typechecker: "+format, args...))
}

func (pc *ProgramChecker) declare(node ast.Node, kind, name string) bool {
	if _, exists := pc.declared[name]; exists {
		pc.report(node, &DuplicateDeclarationError{Kind: kind, Name: name})
		return false
	}
	pc.declared[name] = kind
	return true
}

func (pc *ProgramChecker) collectDeclarations(body []ast.Statement) {
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ast.StructDefinition:
			if s.ID == nil || !pc.declare(s, "struct", s.ID.Name) {
				continue
			}
			if _, err := pc.checker.DeclareStruct(s); err != nil {
				pc.report(s, err)
			}
		case *ast.TraitDefinition:
			if s.ID == nil || !pc.declare(s, "trait", s.ID.Name) {
				continue
			}
			if _, err := pc.checker.DeclareTrait(s); err != nil {
				pc.report(s, err)
			}
		case *ast.FunctionDefinition:
			if s.ID == nil || !pc.declare(s, "function", s.ID.Name) {
				continue
			}
			pc.functions[s.ID.Name] = s
		case *ast.ExternFunctionDefinition:
			if s.ID != nil {
				pc.declare(s, "extern", s.ID.Name)
			}
		}
	}
}

func (pc *ProgramChecker) declareImpls(body []ast.Statement) {
	for _, stmt := range body {
		if impl, ok := stmt.(*ast.ImplementationDefinition); ok {
			if _, err := pc.checker.DeclareImpl(impl); err != nil {
				pc.report(impl, err)
			}
		}
	}
}

func (pc *ProgramChecker) checkExterns(body []ast.Statement) {
	for _, stmt := range body {
		ext, ok := stmt.(*ast.ExternFunctionDefinition)
		if !ok || ext.ID == nil {
			continue
		}
		sig, err := native.ParseSignature(ext.ID.Name, ext.Params, ext.ReturnKind)
		if err != nil {
			pc.report(ext, err)
			continue
		}
		if pc.binder != nil {
			if _, err := pc.binder.Bind(sig); err != nil {
				pc.report(ext, err)
			}
		}
	}
}

func (pc *ProgramChecker) checkRoles(body []ast.Statement) {
	check := func(node ast.Node, tag, target string) {
		role, err := roles.Parse(tag)
		if err != nil {
			pc.report(node, err)
			return
		}
		kind, ok := pc.declared[target]
		if !ok {
			pc.reportf(node, "role '%s' tags unknown declaration '%s'", tag, target)
			return
		}
		switch role {
		case roles.Allocator:
			if kind != "struct" {
				pc.reportf(node, "role '%s' must tag a struct, '%s' is a %s", tag, target, kind)
				return
			}
			if _, ok := pc.checker.Trait(AllocatorTrait); ok {
				if err := pc.checker.RequireTrait(target, AllocatorTrait); err != nil {
					pc.report(node, err)
				}
			}
		default:
			if kind != "function" && kind != "extern" && kind != "builtin" {
				pc.reportf(node, "role '%s' must tag a function, '%s' is a %s", tag, target, kind)
			}
		}
	}
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ast.StructDefinition:
			for _, tag := range s.Roles {
				check(s, tag, s.ID.Name)
			}
		case *ast.FunctionDefinition:
			for _, tag := range s.Roles {
				check(s, tag, s.ID.Name)
			}
		case *ast.ExternFunctionDefinition:
			for _, tag := range s.Roles {
				check(s, tag, s.ID.Name)
			}
		case *ast.RoleStatement:
			if s.Target != nil {
				check(s, s.Role, s.Target.Name)
			}
		}
	}
}

// AllocatorTrait is the trait an allocator-tagged struct must implement.
const AllocatorTrait = "Allocator"

func (pc *ProgramChecker) knownType(name string) bool {
	if IsBuiltinType(name) {
		return true
	}
	kind := pc.declared[name]
	return kind == "struct" || kind == "trait"
}

func (pc *ProgramChecker) checkTypeName(node ast.Node, id *ast.Identifier) {
	if id != nil && !pc.knownType(id.Name) {
		pc.reportf(node, "unknown type '%s'", id.Name)
	}
}

func (pc *ProgramChecker) checkParams(params []*ast.FunctionParameter) {
	for idx, p := range params {
		if p == nil {
			continue
		}
		pc.checkTypeName(p, p.TypeName)
		if p.Mode == ast.ParamVariadic && idx != len(params)-1 {
			pc.reportf(p, "variadic parameter '%s' must be last", p.Name.Name)
		}
	}
}

func (pc *ProgramChecker) checkAnnotations(body []ast.Statement) {
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ast.StructDefinition:
			for _, f := range s.Fields {
				pc.checkTypeName(f, f.TypeName)
			}
			for _, m := range s.Methods {
				pc.checkParams(m.Params)
			}
		case *ast.TraitDefinition:
			for _, m := range s.Methods {
				pc.checkParams(m.Params)
			}
		case *ast.FunctionDefinition:
			pc.checkParams(s.Params)
		case *ast.ImplementationDefinition:
			for _, m := range s.Methods {
				pc.checkParams(m.Params)
			}
		}
	}
}

// staticScope maps local names to their statically known type ("" when
// unknown).
type staticScope struct {
	types  map[string]string
	parent *staticScope
}

func newStaticScope(parent *staticScope) *staticScope {
	return &staticScope{types: make(map[string]string), parent: parent}
}

func (s *staticScope) lookup(name string) (string, bool) {
	for scope := s; scope != nil; scope = scope.parent {
		if t, ok := scope.types[name]; ok {
			return t, true
		}
	}
	return "", false
}

func (pc *ProgramChecker) checkBodies(body []ast.Statement) {
	checkFn := func(params []*ast.FunctionParameter, hasReceiver bool, self string, block *ast.BlockExpression) {
		scope := newStaticScope(nil)
		if hasReceiver {
			scope.types["self"] = self
		}
		for _, p := range params {
			if p == nil || p.Name == nil {
				continue
			}
			if p.TypeName != nil {
				scope.types[p.Name.Name] = p.TypeName.Name
			} else {
				scope.types[p.Name.Name] = ""
			}
		}
		pc.checkBlock(block, scope)
	}
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *ast.FunctionDefinition:
			checkFn(s.Params, false, "", s.Body)
		case *ast.StructDefinition:
			for _, m := range s.Methods {
				checkFn(m.Params, m.HasReceiver, s.ID.Name, m.Body)
			}
		case *ast.ImplementationDefinition:
			for _, m := range s.Methods {
				checkFn(m.Params, m.HasReceiver, s.TargetType.Name, m.Body)
			}
		case *ast.TraitDefinition:
			for _, m := range s.Methods {
				if m.Default != nil {
					checkFn(m.Params, m.HasReceiver, "", m.Default)
				}
			}
		}
	}
}

func (pc *ProgramChecker) checkBlock(block *ast.BlockExpression, parent *staticScope) {
	if block == nil {
		return
	}
	scope := newStaticScope(parent)
	for _, stmt := range block.Body {
		pc.checkStatement(stmt, scope)
	}
}

func (pc *ProgramChecker) checkStatement(stmt ast.Statement, scope *staticScope) {
	switch s := stmt.(type) {
	case *ast.VariableDeclaration:
		pc.checkExpression(s.Value, scope)
		actual := pc.staticType(s.Value, scope)
		if s.TypeName != nil {
			pc.checkTypeName(s, s.TypeName)
			pc.checkAssignable(s, s.TypeName.Name, actual, fmt.Sprintf("binding '%s'", s.Name.Name))
			actual = s.TypeName.Name
		}
		scope.types[s.Name.Name] = actual
	case *ast.ReturnStatement:
		if s.Argument != nil {
			pc.checkExpression(s.Argument, scope)
		}
	case *ast.HaltStatement:
		for _, arg := range s.Arguments {
			pc.checkExpression(arg, scope)
		}
	case *ast.RoleStatement:
		if _, err := roles.Parse(s.Role); err != nil {
			pc.report(s, err)
		}
	case ast.Expression:
		pc.checkExpression(s, scope)
	}
}

func (pc *ProgramChecker) checkExpression(expr ast.Expression, scope *staticScope) {
	switch e := expr.(type) {
	case nil:
		return
	case *ast.StructLiteral:
		st, ok := pc.checker.Struct(e.StructType.Name)
		if !ok {
			pc.reportf(e, "unknown struct '%s'", e.StructType.Name)
		}
		for _, f := range e.Fields {
			if ok && f.Name != nil && !lo.Contains(st.Fields, f.Name.Name) {
				pc.reportf(f, "struct %s has no field '%s'", st.Name, f.Name.Name)
			}
			pc.checkExpression(f.Value, scope)
		}
	case *ast.MemberAccessExpression:
		pc.checkExpression(e.Object, scope)
	case *ast.IndexExpression:
		pc.checkExpression(e.Object, scope)
		pc.checkExpression(e.Index, scope)
	case *ast.BinaryExpression:
		pc.checkExpression(e.Left, scope)
		pc.checkExpression(e.Right, scope)
	case *ast.ReferenceExpression:
		pc.checkExpression(e.Target, scope)
	case *ast.DereferenceExpression:
		pc.checkExpression(e.Reference, scope)
	case *ast.AssignmentExpression:
		pc.checkExpression(e.Left, scope)
		pc.checkExpression(e.Right, scope)
	case *ast.BlockExpression:
		pc.checkBlock(e, scope)
	case *ast.IfExpression:
		pc.checkExpression(e.Condition, scope)
		pc.checkBlock(e.Then, scope)
		pc.checkBlock(e.Else, scope)
	case *ast.FunctionCall:
		pc.checkExpression(e.Callee, scope)
		for _, arg := range e.Arguments {
			pc.checkExpression(arg, scope)
		}
		pc.checkCall(e, scope)
	}
}

func (pc *ProgramChecker) checkCall(call *ast.FunctionCall, scope *staticScope) {
	callee, ok := call.Callee.(*ast.Identifier)
	if !ok {
		return
	}
	if _, local := scope.lookup(callee.Name); local {
		return
	}
	fn, ok := pc.functions[callee.Name]
	if !ok {
		return
	}
	params := fn.Params
	variadic := len(params) > 0 && params[len(params)-1].Mode == ast.ParamVariadic
	fixed := len(params)
	if variadic {
		fixed--
	}
	if len(call.Arguments) < fixed || (!variadic && len(call.Arguments) > fixed) {
		pc.reportf(call, "function %s expects %d arguments, got %d", callee.Name, fixed, len(call.Arguments))
		return
	}
	for idx, arg := range call.Arguments {
		param := params[min(idx, len(params)-1)]
		if param.TypeName == nil {
			continue
		}
		label := fmt.Sprintf("argument %d to %s", idx+1, callee.Name)
		pc.checkAssignable(arg, param.TypeName.Name, pc.staticType(arg, scope), label)
	}
}

// checkAssignable reports when a value of static type actual cannot be used
// where want is required. Unknown types are left to the runtime check.
func (pc *ProgramChecker) checkAssignable(node ast.Node, want, actual, label string) {
	if want == "" || actual == "" || want == "any" || want == actual {
		return
	}
	if _, isTrait := pc.checker.Trait(want); isTrait {
		if err := pc.checker.RequireTrait(actual, want); err != nil {
			var conformance *ConformanceError
			if errors.As(err, &conformance) {
				conformance.Reason = fmt.Sprintf("%s: %s", label, conformance.Reason)
			}
			pc.report(node, err)
		}
		return
	}
	if _, isTrait := pc.checker.Trait(actual); isTrait {
		// a trait-typed binding may hold any conforming struct
		return
	}
	pc.reportf(node, "%s: expected %s, got %s", label, want, actual)
}

func (pc *ProgramChecker) staticType(expr ast.Expression, scope *staticScope) string {
	switch e := expr.(type) {
	case *ast.NumberLiteral:
		return "number"
	case *ast.StringLiteral:
		return "text"
	case *ast.StructLiteral:
		return e.StructType.Name
	case *ast.ReferenceExpression:
		return "ref"
	case *ast.Identifier:
		t, _ := scope.lookup(e.Name)
		return t
	default:
		return ""
	}
}
