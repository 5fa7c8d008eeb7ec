package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"mira/interpreter-go/pkg/ast"
)

// Program is a decoded program document.
type Program struct {
	Path   string
	Name   string
	Module *ast.Module
	// Origins maps every decoded node to Path.
	Origins ast.Origins
}

// LoadProgram reads and decodes the program document at path.
func LoadProgram(path string) (*Program, error) {
	if path == "" {
		return nil, fmt.Errorf("loader: empty entry path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("loader: resolve entry path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", absPath, err)
	}
	return ParseProgram(absPath, data)
}

// ParseProgram decodes a program document. path is only used for
// diagnostics and the default module name.
func ParseProgram(path string, data []byte) (*Program, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("loader: %s is empty", path)
		}
		return nil, fmt.Errorf("loader: parse %s: %w", path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("loader: %s is empty", path)
	}
	d := &programDecoder{path: path}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	module, declared, err := d.decodeProgram(doc.Content[0])
	if err != nil {
		return nil, err
	}
	if declared != "" {
		name = declared
	}
	module.Name = name
	origins := ast.Origins{}
	origins.Annotate(module, path)
	return &Program{Path: path, Name: name, Module: module, Origins: origins}, nil
}

var binaryOperators = map[string]struct{}{
	"+": {}, "-": {}, "*": {}, "/": {}, "%": {},
	"==": {}, "!=": {}, "<": {}, "<=": {}, ">": {}, ">=": {},
}

var assignmentOperators = map[string]ast.AssignmentOperator{
	"=":  ast.AssignmentAssign,
	"+=": ast.AssignmentAdd,
	"-=": ast.AssignmentSub,
	"*=": ast.AssignmentMul,
	"/=": ast.AssignmentDiv,
}

type programDecoder struct {
	path string
}

type pair struct {
	key   string
	keyAt *yaml.Node
	value *yaml.Node
}

func (d *programDecoder) errorf(n *yaml.Node, format string, args ...any) error {
	loc := DiagnosticLocation{Path: d.path}
	if n != nil {
		loc.Line, loc.Column = n.Line, n.Column
	}
	return &LoadDiagnosticError{Diagnostic: LoadDiagnostic{
		Severity: SeverityError,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	}}
}

func spanOf(n *yaml.Node) ast.Span {
	pos := ast.Position{Line: n.Line, Column: n.Column}
	return ast.Span{Start: pos, End: pos}
}

func at[T ast.Node](node T, n *yaml.Node) T {
	ast.SetSpan(node, spanOf(n))
	return node
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func (d *programDecoder) pairs(n *yaml.Node, allowed ...string) ([]pair, error) {
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, "expected a mapping")
	}
	out := make([]pair, 0, len(n.Content)/2)
	seen := make(map[string]bool, len(n.Content)/2)
	for idx := 0; idx+1 < len(n.Content); idx += 2 {
		key := n.Content[idx]
		if key.Kind != yaml.ScalarNode {
			return nil, d.errorf(key, "mapping keys must be scalars")
		}
		if seen[key.Value] {
			return nil, d.errorf(key, "duplicate key %q", key.Value)
		}
		seen[key.Value] = true
		if len(allowed) > 0 && !lo.Contains(allowed, key.Value) {
			return nil, d.errorf(key, "unknown key %q (expected one of %s)", key.Value, strings.Join(allowed, ", "))
		}
		out = append(out, pair{key: key.Value, keyAt: key, value: resolve(n.Content[idx+1])})
	}
	return out, nil
}

func (d *programDecoder) sequence(n *yaml.Node) ([]*yaml.Node, error) {
	n = resolve(n)
	if n == nil {
		return nil, nil
	}
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, d.errorf(n, "expected a sequence")
	}
	out := make([]*yaml.Node, len(n.Content))
	for idx, item := range n.Content {
		out[idx] = resolve(item)
	}
	return out, nil
}

func (d *programDecoder) scalar(n *yaml.Node, what string) (string, error) {
	n = resolve(n)
	if n == nil || n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return "", d.errorf(n, "%s must be a scalar", what)
	}
	value := strings.TrimSpace(n.Value)
	if value == "" {
		return "", d.errorf(n, "%s must not be empty", what)
	}
	return value, nil
}

func (d *programDecoder) boolean(n *yaml.Node, what string) (bool, error) {
	var out bool
	if err := n.Decode(&out); err != nil {
		return false, d.errorf(n, "%s must be a boolean", what)
	}
	return out, nil
}

func (d *programDecoder) names(n *yaml.Node, what string) ([]string, error) {
	items, err := d.sequence(n)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := d.scalar(item, what)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// decodeProgram turns the top-level mapping into a module body. Declarations
// come first, then main, then the roles mapping as role statements.
func (d *programDecoder) decodeProgram(root *yaml.Node) (*ast.Module, string, error) {
	entries, err := d.pairs(root, "name", "structs", "traits", "impls", "functions", "externs", "roles", "main")
	if err != nil {
		return nil, "", err
	}
	var (
		name        string
		decls, tail []ast.Statement
		mainBody    []ast.Statement
		mainAt      *yaml.Node
	)
	for _, entry := range entries {
		switch entry.key {
		case "name":
			if name, err = d.scalar(entry.value, "name"); err != nil {
				return nil, "", err
			}
		case "structs":
			err = d.eachItem(entry.value, func(n *yaml.Node) error {
				def, err := d.decodeStruct(n)
				decls = append(decls, def)
				return err
			})
		case "traits":
			err = d.eachItem(entry.value, func(n *yaml.Node) error {
				def, err := d.decodeTrait(n)
				decls = append(decls, def)
				return err
			})
		case "impls":
			err = d.eachItem(entry.value, func(n *yaml.Node) error {
				def, err := d.decodeImpl(n)
				decls = append(decls, def)
				return err
			})
		case "functions":
			err = d.eachItem(entry.value, func(n *yaml.Node) error {
				def, err := d.decodeFunction(n, false)
				decls = append(decls, def)
				return err
			})
		case "externs":
			err = d.eachItem(entry.value, func(n *yaml.Node) error {
				def, err := d.decodeExtern(n)
				decls = append(decls, def)
				return err
			})
		case "roles":
			tail, err = d.decodeRoleMapping(entry.value)
		case "main":
			mainAt = entry.keyAt
			mainBody, err = d.decodeStatements(entry.value)
		}
		if err != nil {
			return nil, "", err
		}
	}
	body := decls
	if mainAt != nil {
		main := ast.NewFunctionDefinition(at(ast.ID("main"), mainAt), nil, at(ast.Block(mainBody...), mainAt), false, nil)
		body = append(body, at(main, mainAt))
	}
	body = append(body, tail...)
	return at(ast.NewModule(name, body), root), name, nil
}

func (d *programDecoder) eachItem(n *yaml.Node, fn func(*yaml.Node) error) error {
	items, err := d.sequence(n)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

func (d *programDecoder) decodeRoleMapping(n *yaml.Node) ([]ast.Statement, error) {
	entries, err := d.pairs(n)
	if err != nil {
		return nil, err
	}
	out := make([]ast.Statement, 0, len(entries))
	for _, entry := range entries {
		target, err := d.scalar(entry.value, "role target")
		if err != nil {
			return nil, err
		}
		out = append(out, at(ast.NewRoleStatement(entry.key, at(ast.ID(target), entry.value)), entry.keyAt))
	}
	return out, nil
}

func (d *programDecoder) decodeStruct(n *yaml.Node) (*ast.StructDefinition, error) {
	entries, err := d.pairs(n, "name", "fields", "methods", "roles")
	if err != nil {
		return nil, err
	}
	var (
		name    *ast.Identifier
		fields  []*ast.StructFieldDefinition
		methods []*ast.FunctionDefinition
		roles   []string
	)
	for _, entry := range entries {
		switch entry.key {
		case "name":
			s, err := d.scalar(entry.value, "struct name")
			if err != nil {
				return nil, err
			}
			name = at(ast.ID(s), entry.value)
		case "fields":
			err = d.eachItem(entry.value, func(item *yaml.Node) error {
				field, err := d.decodeField(item)
				fields = append(fields, field)
				return err
			})
		case "methods":
			err = d.eachItem(entry.value, func(item *yaml.Node) error {
				fn, err := d.decodeFunction(item, true)
				methods = append(methods, fn)
				return err
			})
		case "roles":
			roles, err = d.names(entry.value, "role")
		}
		if err != nil {
			return nil, err
		}
	}
	if name == nil {
		return nil, d.errorf(n, "struct is missing a name")
	}
	return at(ast.NewStructDefinition(name, fields, methods, roles), n), nil
}

func (d *programDecoder) decodeField(n *yaml.Node) (*ast.StructFieldDefinition, error) {
	if n.Kind == yaml.ScalarNode {
		s, err := d.scalar(n, "field name")
		if err != nil {
			return nil, err
		}
		return at(ast.NewStructFieldDefinition(at(ast.ID(s), n), nil), n), nil
	}
	entries, err := d.pairs(n, "name", "type")
	if err != nil {
		return nil, err
	}
	var name, typeName *ast.Identifier
	for _, entry := range entries {
		s, err := d.scalar(entry.value, "field "+entry.key)
		if err != nil {
			return nil, err
		}
		if entry.key == "name" {
			name = at(ast.ID(s), entry.value)
		} else {
			typeName = at(ast.ID(s), entry.value)
		}
	}
	if name == nil {
		return nil, d.errorf(n, "field is missing a name")
	}
	return at(ast.NewStructFieldDefinition(name, typeName), n), nil
}

func (d *programDecoder) decodeTrait(n *yaml.Node) (*ast.TraitDefinition, error) {
	entries, err := d.pairs(n, "name", "methods")
	if err != nil {
		return nil, err
	}
	var name *ast.Identifier
	var methods []*ast.TraitMethod
	for _, entry := range entries {
		switch entry.key {
		case "name":
			s, err := d.scalar(entry.value, "trait name")
			if err != nil {
				return nil, err
			}
			name = at(ast.ID(s), entry.value)
		case "methods":
			err = d.eachItem(entry.value, func(item *yaml.Node) error {
				m, err := d.decodeTraitMethod(item)
				methods = append(methods, m)
				return err
			})
		}
		if err != nil {
			return nil, err
		}
	}
	if name == nil {
		return nil, d.errorf(n, "trait is missing a name")
	}
	return at(ast.NewTraitDefinition(name, methods), n), nil
}

func (d *programDecoder) decodeTraitMethod(n *yaml.Node) (*ast.TraitMethod, error) {
	entries, err := d.pairs(n, "name", "receiver", "params", "default")
	if err != nil {
		return nil, err
	}
	var (
		name     *ast.Identifier
		params   []*ast.FunctionParameter
		receiver = true
		body     *ast.BlockExpression
	)
	for _, entry := range entries {
		switch entry.key {
		case "name":
			s, err := d.scalar(entry.value, "method name")
			if err != nil {
				return nil, err
			}
			name = at(ast.ID(s), entry.value)
		case "receiver":
			receiver, err = d.boolean(entry.value, "receiver")
		case "params":
			params, err = d.decodeParams(entry.value)
		case "default":
			var stmts []ast.Statement
			stmts, err = d.decodeStatements(entry.value)
			body = at(ast.Block(stmts...), entry.value)
		}
		if err != nil {
			return nil, err
		}
	}
	if name == nil {
		return nil, d.errorf(n, "trait method is missing a name")
	}
	return at(ast.NewTraitMethod(name, params, receiver, body), n), nil
}

func (d *programDecoder) decodeImpl(n *yaml.Node) (*ast.ImplementationDefinition, error) {
	entries, err := d.pairs(n, "trait", "for", "methods")
	if err != nil {
		return nil, err
	}
	var trait, target *ast.Identifier
	var methods []*ast.FunctionDefinition
	for _, entry := range entries {
		switch entry.key {
		case "trait", "for":
			s, err := d.scalar(entry.value, "impl "+entry.key)
			if err != nil {
				return nil, err
			}
			if entry.key == "trait" {
				trait = at(ast.ID(s), entry.value)
			} else {
				target = at(ast.ID(s), entry.value)
			}
		case "methods":
			err = d.eachItem(entry.value, func(item *yaml.Node) error {
				fn, err := d.decodeFunction(item, true)
				methods = append(methods, fn)
				return err
			})
		}
		if err != nil {
			return nil, err
		}
	}
	if trait == nil || target == nil {
		return nil, d.errorf(n, "impl requires both 'trait' and 'for'")
	}
	return at(ast.NewImplementationDefinition(trait, target, methods), n), nil
}

// decodeFunction decodes a function or, when method is set, a method whose
// receiver defaults to present.
func (d *programDecoder) decodeFunction(n *yaml.Node, method bool) (*ast.FunctionDefinition, error) {
	allowed := []string{"name", "params", "body", "roles"}
	if method {
		allowed = []string{"name", "params", "body", "receiver"}
	}
	entries, err := d.pairs(n, allowed...)
	if err != nil {
		return nil, err
	}
	var (
		name     *ast.Identifier
		params   []*ast.FunctionParameter
		body     = at(ast.Block(), n)
		receiver = method
		roles    []string
	)
	for _, entry := range entries {
		switch entry.key {
		case "name":
			s, err := d.scalar(entry.value, "function name")
			if err != nil {
				return nil, err
			}
			name = at(ast.ID(s), entry.value)
		case "params":
			params, err = d.decodeParams(entry.value)
		case "body":
			var stmts []ast.Statement
			stmts, err = d.decodeStatements(entry.value)
			body = at(ast.Block(stmts...), entry.value)
		case "receiver":
			receiver, err = d.boolean(entry.value, "receiver")
		case "roles":
			roles, err = d.names(entry.value, "role")
		}
		if err != nil {
			return nil, err
		}
	}
	if name == nil {
		return nil, d.errorf(n, "function is missing a name")
	}
	return at(ast.NewFunctionDefinition(name, params, body, receiver, roles), n), nil
}

func (d *programDecoder) decodeExtern(n *yaml.Node) (*ast.ExternFunctionDefinition, error) {
	entries, err := d.pairs(n, "name", "params", "returns", "roles")
	if err != nil {
		return nil, err
	}
	var (
		name    *ast.Identifier
		params  []string
		returns = "void"
		roles   []string
	)
	for _, entry := range entries {
		switch entry.key {
		case "name":
			s, err := d.scalar(entry.value, "extern name")
			if err != nil {
				return nil, err
			}
			name = at(ast.ID(s), entry.value)
		case "params":
			params, err = d.names(entry.value, "extern parameter kind")
		case "returns":
			returns, err = d.scalar(entry.value, "extern return kind")
		case "roles":
			roles, err = d.names(entry.value, "role")
		}
		if err != nil {
			return nil, err
		}
	}
	if name == nil {
		return nil, d.errorf(n, "extern is missing a name")
	}
	if params == nil {
		params = []string{}
	}
	return at(ast.NewExternFunctionDefinition(name, params, returns, roles), n), nil
}

// decodeParams accepts "name", "copy name", "name..." or a mapping with
// name, mode and type.
func (d *programDecoder) decodeParams(n *yaml.Node) ([]*ast.FunctionParameter, error) {
	items, err := d.sequence(n)
	if err != nil {
		return nil, err
	}
	out := make([]*ast.FunctionParameter, 0, len(items))
	for _, item := range items {
		param, err := d.decodeParam(item)
		if err != nil {
			return nil, err
		}
		out = append(out, param)
	}
	return out, nil
}

func (d *programDecoder) decodeParam(n *yaml.Node) (*ast.FunctionParameter, error) {
	if n.Kind == yaml.ScalarNode {
		text, err := d.scalar(n, "parameter")
		if err != nil {
			return nil, err
		}
		mode := ast.ParamAlias
		switch {
		case strings.HasPrefix(text, "copy "):
			mode, text = ast.ParamCopy, strings.TrimSpace(strings.TrimPrefix(text, "copy "))
		case strings.HasSuffix(text, "..."):
			mode, text = ast.ParamVariadic, strings.TrimSuffix(text, "...")
		}
		if text == "" || strings.ContainsAny(text, " \t") {
			return nil, d.errorf(n, "invalid parameter %q", n.Value)
		}
		return at(ast.NewFunctionParameter(at(ast.ID(text), n), mode, nil), n), nil
	}
	entries, err := d.pairs(n, "name", "mode", "type")
	if err != nil {
		return nil, err
	}
	var name, typeName *ast.Identifier
	mode := ast.ParamAlias
	for _, entry := range entries {
		s, err := d.scalar(entry.value, "parameter "+entry.key)
		if err != nil {
			return nil, err
		}
		switch entry.key {
		case "name":
			name = at(ast.ID(s), entry.value)
		case "type":
			typeName = at(ast.ID(s), entry.value)
		case "mode":
			switch m := ast.ParameterMode(s); m {
			case ast.ParamAlias, ast.ParamCopy, ast.ParamVariadic:
				mode = m
			default:
				return nil, d.errorf(entry.value, "unknown parameter mode %q", s)
			}
		}
	}
	if name == nil {
		return nil, d.errorf(n, "parameter is missing a name")
	}
	return at(ast.NewFunctionParameter(name, mode, typeName), n), nil
}

func (d *programDecoder) decodeStatements(n *yaml.Node) ([]ast.Statement, error) {
	items, err := d.sequence(n)
	if err != nil {
		return nil, err
	}
	out := make([]ast.Statement, 0, len(items))
	for _, item := range items {
		stmt, err := d.decodeStatement(item)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}

func (d *programDecoder) singleKey(n *yaml.Node) (pair, bool) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return pair{}, false
	}
	key := n.Content[0]
	if key.Kind != yaml.ScalarNode {
		return pair{}, false
	}
	return pair{key: key.Value, keyAt: key, value: resolve(n.Content[1])}, true
}

func (d *programDecoder) decodeStatement(n *yaml.Node) (ast.Statement, error) {
	entry, ok := d.singleKey(n)
	if !ok {
		return d.decodeExpression(n)
	}
	switch entry.key {
	case "let", "var":
		return d.decodeVariable(entry, entry.key == "var")
	case "return":
		if entry.value.Kind == yaml.ScalarNode && entry.value.Tag == "!!null" {
			return at(ast.NewReturnStatement(nil), n), nil
		}
		value, err := d.decodeExpression(entry.value)
		if err != nil {
			return nil, err
		}
		return at(ast.NewReturnStatement(value), n), nil
	case "halt":
		return d.decodeHalt(entry, n)
	case "role":
		entries, err := d.pairs(entry.value, "role", "target")
		if err != nil {
			return nil, err
		}
		var role, target string
		for _, e := range entries {
			s, err := d.scalar(e.value, "role "+e.key)
			if err != nil {
				return nil, err
			}
			if e.key == "role" {
				role = s
			} else {
				target = s
			}
		}
		if role == "" || target == "" {
			return nil, d.errorf(n, "role statement requires 'role' and 'target'")
		}
		return at(ast.NewRoleStatement(role, at(ast.ID(target), n)), n), nil
	default:
		return d.decodeExpression(n)
	}
}

func (d *programDecoder) decodeVariable(entry pair, mutable bool) (ast.Statement, error) {
	entries, err := d.pairs(entry.value, "name", "type", "value")
	if err != nil {
		return nil, err
	}
	var name, typeName *ast.Identifier
	var value ast.Expression
	for _, e := range entries {
		switch e.key {
		case "name", "type":
			s, err := d.scalar(e.value, entry.key+" "+e.key)
			if err != nil {
				return nil, err
			}
			if e.key == "name" {
				name = at(ast.ID(s), e.value)
			} else {
				typeName = at(ast.ID(s), e.value)
			}
		case "value":
			if value, err = d.decodeExpression(e.value); err != nil {
				return nil, err
			}
		}
	}
	if name == nil || value == nil {
		return nil, d.errorf(entry.keyAt, "%s requires 'name' and 'value'", entry.key)
	}
	return at(ast.NewVariableDeclaration(name, mutable, typeName, value), entry.keyAt), nil
}

func (d *programDecoder) decodeHalt(entry pair, n *yaml.Node) (ast.Statement, error) {
	if entry.value.Kind == yaml.ScalarNode {
		return at(ast.NewHaltStatement(entry.value.Value, nil), n), nil
	}
	entries, err := d.pairs(entry.value, "format", "args")
	if err != nil {
		return nil, err
	}
	var format string
	var args []ast.Expression
	for _, e := range entries {
		switch e.key {
		case "format":
			if e.value.Kind != yaml.ScalarNode {
				return nil, d.errorf(e.value, "halt format must be text")
			}
			format = e.value.Value
		case "args":
			if args, err = d.decodeExpressions(e.value); err != nil {
				return nil, err
			}
		}
	}
	return at(ast.NewHaltStatement(format, args), n), nil
}

func (d *programDecoder) decodeExpressions(n *yaml.Node) ([]ast.Expression, error) {
	items, err := d.sequence(n)
	if err != nil {
		return nil, err
	}
	out := make([]ast.Expression, 0, len(items))
	for _, item := range items {
		expr, err := d.decodeExpression(item)
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
	return out, nil
}

// decodeExpression maps YAML onto expressions. Plain scalars are
// identifiers, quoted scalars are text and numeric scalars are numbers.
// Mappings carry a single key naming the expression form.
func (d *programDecoder) decodeExpression(n *yaml.Node) (ast.Expression, error) {
	n = resolve(n)
	if n == nil {
		return nil, d.errorf(nil, "missing expression")
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return d.decodeScalarExpression(n)
	case yaml.MappingNode:
	default:
		return nil, d.errorf(n, "expected an expression")
	}
	entry, ok := d.singleKey(n)
	if !ok {
		return nil, d.errorf(n, "expression mappings must have exactly one key")
	}
	if _, ok := binaryOperators[entry.key]; ok {
		operands, err := d.operands(entry, 2)
		if err != nil {
			return nil, err
		}
		return at(ast.NewBinaryExpression(entry.key, operands[0], operands[1]), n), nil
	}
	if op, ok := assignmentOperators[entry.key]; ok {
		return d.decodeAssignment(entry, op, n)
	}
	switch entry.key {
	case "text":
		if entry.value.Kind != yaml.ScalarNode {
			return nil, d.errorf(entry.value, "text must be a scalar")
		}
		return at(ast.NewStringLiteral(entry.value.Value), n), nil
	case "assign":
		return d.decodeAssignment(entry, ast.AssignmentAssign, n)
	case "call":
		items, err := d.decodeExpressions(entry.value)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, d.errorf(entry.value, "call requires a callee")
		}
		return at(ast.NewFunctionCall(items[0], items[1:]), n), nil
	case "method":
		items, err := d.sequence(entry.value)
		if err != nil {
			return nil, err
		}
		if len(items) < 2 {
			return nil, d.errorf(entry.value, "method requires an object and a method name")
		}
		object, err := d.decodeExpression(items[0])
		if err != nil {
			return nil, err
		}
		name, err := d.scalar(items[1], "method name")
		if err != nil {
			return nil, err
		}
		args := make([]ast.Expression, 0, len(items)-2)
		for _, item := range items[2:] {
			arg, err := d.decodeExpression(item)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		member := at(ast.NewMemberAccessExpression(object, at(ast.ID(name), items[1])), n)
		return at(ast.NewFunctionCall(member, args), n), nil
	case "member":
		items, err := d.sequence(entry.value)
		if err != nil {
			return nil, err
		}
		if len(items) != 2 {
			return nil, d.errorf(entry.value, "member requires an object and a field name")
		}
		object, err := d.decodeExpression(items[0])
		if err != nil {
			return nil, err
		}
		name, err := d.scalar(items[1], "field name")
		if err != nil {
			return nil, err
		}
		return at(ast.NewMemberAccessExpression(object, at(ast.ID(name), items[1])), n), nil
	case "index":
		operands, err := d.operands(entry, 2)
		if err != nil {
			return nil, err
		}
		return at(ast.NewIndexExpression(operands[0], operands[1]), n), nil
	case "ref":
		target, err := d.decodeTarget(entry.value)
		if err != nil {
			return nil, err
		}
		return at(ast.NewReferenceExpression(target), n), nil
	case "deref":
		inner, err := d.decodeExpression(entry.value)
		if err != nil {
			return nil, err
		}
		return at(ast.NewDereferenceExpression(inner), n), nil
	case "struct":
		return d.decodeStructLiteral(entry.value, n)
	case "block":
		stmts, err := d.decodeStatements(entry.value)
		if err != nil {
			return nil, err
		}
		return at(ast.Block(stmts...), n), nil
	case "if":
		return d.decodeIf(entry.value, n)
	default:
		return nil, d.errorf(entry.keyAt, "unknown expression %q", entry.key)
	}
}

func (d *programDecoder) decodeScalarExpression(n *yaml.Node) (ast.Expression, error) {
	switch n.Style {
	case yaml.DoubleQuotedStyle, yaml.SingleQuotedStyle, yaml.LiteralStyle, yaml.FoldedStyle:
		return at(ast.NewStringLiteral(n.Value), n), nil
	}
	switch n.Tag {
	case "!!int":
		v, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, d.errorf(n, "invalid integer %q", n.Value)
		}
		return at(ast.NewNumberLiteral(float64(v)), n), nil
	case "!!float":
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, d.errorf(n, "invalid number %q", n.Value)
		}
		return at(ast.NewNumberLiteral(v), n), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, d.errorf(n, "invalid boolean %q", n.Value)
		}
		if b {
			return at(ast.NewNumberLiteral(1), n), nil
		}
		return at(ast.NewNumberLiteral(0), n), nil
	case "!!null":
		return nil, d.errorf(n, "missing expression")
	}
	name := strings.TrimSpace(n.Value)
	if name == "" || strings.ContainsAny(name, " \t") {
		return nil, d.errorf(n, "invalid identifier %q (quote text literals)", n.Value)
	}
	return at(ast.ID(name), n), nil
}

func (d *programDecoder) operands(entry pair, want int) ([]ast.Expression, error) {
	items, err := d.decodeExpressions(entry.value)
	if err != nil {
		return nil, err
	}
	if len(items) != want {
		return nil, d.errorf(entry.keyAt, "%s takes %d operands, got %d", entry.key, want, len(items))
	}
	return items, nil
}

func (d *programDecoder) decodeTarget(n *yaml.Node) (ast.AssignmentTarget, error) {
	expr, err := d.decodeExpression(n)
	if err != nil {
		return nil, err
	}
	target, ok := expr.(ast.AssignmentTarget)
	if !ok {
		return nil, d.errorf(n, "%s is not a storage location", expr.NodeType())
	}
	return target, nil
}

func (d *programDecoder) decodeAssignment(entry pair, op ast.AssignmentOperator, n *yaml.Node) (ast.Expression, error) {
	items, err := d.sequence(entry.value)
	if err != nil {
		return nil, err
	}
	if len(items) != 2 {
		return nil, d.errorf(entry.keyAt, "%s takes a target and a value", entry.key)
	}
	target, err := d.decodeTarget(items[0])
	if err != nil {
		return nil, err
	}
	value, err := d.decodeExpression(items[1])
	if err != nil {
		return nil, err
	}
	return at(ast.NewAssignmentExpression(op, target, value), n), nil
}

func (d *programDecoder) decodeStructLiteral(value *yaml.Node, n *yaml.Node) (ast.Expression, error) {
	entries, err := d.pairs(value, "type", "fields")
	if err != nil {
		return nil, err
	}
	var typeName *ast.Identifier
	var fields []*ast.StructFieldInitializer
	for _, entry := range entries {
		switch entry.key {
		case "type":
			s, err := d.scalar(entry.value, "struct type")
			if err != nil {
				return nil, err
			}
			typeName = at(ast.ID(s), entry.value)
		case "fields":
			if entry.value.Kind == yaml.ScalarNode && entry.value.Tag == "!!null" {
				continue
			}
			inits, err := d.pairs(entry.value)
			if err != nil {
				return nil, err
			}
			for _, init := range inits {
				expr, err := d.decodeExpression(init.value)
				if err != nil {
					return nil, err
				}
				fields = append(fields, at(ast.NewStructFieldInitializer(at(ast.ID(init.key), init.keyAt), expr), init.keyAt))
			}
		}
	}
	if typeName == nil {
		return nil, d.errorf(n, "struct literal is missing a type")
	}
	return at(ast.NewStructLiteral(typeName, fields), n), nil
}

func (d *programDecoder) decodeIf(value *yaml.Node, n *yaml.Node) (ast.Expression, error) {
	entries, err := d.pairs(value, "cond", "then", "else")
	if err != nil {
		return nil, err
	}
	var cond ast.Expression
	var then, otherwise *ast.BlockExpression
	for _, entry := range entries {
		switch entry.key {
		case "cond":
			cond, err = d.decodeExpression(entry.value)
		case "then", "else":
			var stmts []ast.Statement
			stmts, err = d.decodeStatements(entry.value)
			block := at(ast.Block(stmts...), entry.value)
			if entry.key == "then" {
				then = block
			} else {
				otherwise = block
			}
		}
		if err != nil {
			return nil, err
		}
	}
	if cond == nil || then == nil {
		return nil, d.errorf(n, "if requires 'cond' and 'then'")
	}
	return at(ast.NewIfExpression(cond, then, otherwise), n), nil
}
