package typechecker

import (
	"fmt"
	"slices"

	"github.com/samber/lo"

	"mira/interpreter-go/pkg/ast"
	"mira/interpreter-go/pkg/logger"
)

// Checker holds the declared structs, traits and impls and enforces that
// every impl matches its trait exactly at the moment it is declared.
type Checker struct {
	lggr    logger.Logger
	structs map[string]*StructType
	traits  map[string]*TraitDecl
	impls   map[implKey]*Impl
	// implOrder keeps impls in declaration order per target.
	implOrder map[string][]*Impl
}

// New returns a checker instance.
func New(lggr logger.Logger) *Checker {
	if lggr == nil {
		lggr = logger.Nop()
	}
	return &Checker{
		lggr:      lggr.Named("typechecker"),
		structs:   make(map[string]*StructType),
		traits:    make(map[string]*TraitDecl),
		impls:     make(map[implKey]*Impl),
		implOrder: make(map[string][]*Impl),
	}
}

// DeclareStruct records a struct type and its inherent methods.
func (c *Checker) DeclareStruct(def *ast.StructDefinition) (*StructType, error) {
	if def == nil || def.ID == nil {
		return nil, fmt.Errorf("typechecker: struct definition missing identifier")
	}
	name := def.ID.Name
	if _, exists := c.structs[name]; exists {
		return nil, &DuplicateDeclarationError{Kind: "struct", Name: name}
	}
	st := &StructType{Name: name, Node: def, Inherent: make(map[string]MethodSignature)}
	for _, field := range def.Fields {
		if field == nil || field.Name == nil {
			continue
		}
		if lo.Contains(st.Fields, field.Name.Name) {
			return nil, fmt.Errorf("typechecker: struct %s declares field '%s' twice", name, field.Name.Name)
		}
		st.Fields = append(st.Fields, field.Name.Name)
	}
	for _, method := range def.Methods {
		if method == nil || method.ID == nil {
			continue
		}
		if _, dup := st.Inherent[method.ID.Name]; dup {
			return nil, fmt.Errorf("typechecker: struct %s declares method '%s' twice", name, method.ID.Name)
		}
		st.Inherent[method.ID.Name] = signatureOf(method)
	}
	c.structs[name] = st
	return st, nil
}

// DeclareTrait records a trait and its required methods.
func (c *Checker) DeclareTrait(def *ast.TraitDefinition) (*TraitDecl, error) {
	if def == nil || def.ID == nil {
		return nil, fmt.Errorf("typechecker: trait definition missing identifier")
	}
	name := def.ID.Name
	if _, exists := c.traits[name]; exists {
		return nil, &DuplicateDeclarationError{Kind: "trait", Name: name}
	}
	decl := &TraitDecl{Name: name, Node: def}
	for _, m := range def.Methods {
		if m == nil || m.ID == nil {
			continue
		}
		if _, dup := decl.Method(m.ID.Name); dup {
			return nil, fmt.Errorf("typechecker: trait %s declares method '%s' twice", name, m.ID.Name)
		}
		decl.Methods = append(decl.Methods, MethodSignature{
			Name:        m.ID.Name,
			Params:      len(m.Params),
			HasReceiver: m.HasReceiver,
			HasDefault:  m.Default != nil,
		})
	}
	c.traits[name] = decl
	return decl, nil
}

// DeclareImpl validates an impl block against its trait. The impl is
// recorded only when its method set equals the trait's required set: no
// method missing (unless the trait supplies a default), none extra, and
// each with the trait's receiver presence and parameter count.
func (c *Checker) DeclareImpl(def *ast.ImplementationDefinition) (*Impl, error) {
	if def == nil || def.TraitName == nil || def.TargetType == nil {
		return nil, fmt.Errorf("typechecker: impl definition missing trait or target")
	}
	traitName, typeName := def.TraitName.Name, def.TargetType.Name
	fail := func(reason string) error {
		return &ConformanceError{Trait: traitName, Type: typeName, Reason: reason}
	}
	trait, ok := c.traits[traitName]
	if !ok {
		return nil, fail(fmt.Sprintf("unknown trait '%s'", traitName))
	}
	target, ok := c.structs[typeName]
	if !ok {
		return nil, fail(fmt.Sprintf("unknown struct '%s'", typeName))
	}
	key := implKey{target: typeName, trait: traitName}
	if _, exists := c.impls[key]; exists {
		return nil, fail("duplicate impl")
	}

	methods := make(map[string]*ast.FunctionDefinition, len(def.Methods))
	var repeated []string
	for _, m := range def.Methods {
		if m == nil || m.ID == nil {
			continue
		}
		if _, dup := methods[m.ID.Name]; dup {
			repeated = append(repeated, m.ID.Name)
			continue
		}
		methods[m.ID.Name] = m
	}

	required := lo.Map(trait.Methods, func(m MethodSignature, _ int) string { return m.Name })
	provided := lo.Keys(methods)
	slices.Sort(provided)
	missing, extra := lo.Difference(required, provided)
	missing = lo.Filter(missing, func(name string, _ int) bool {
		m, _ := trait.Method(name)
		return !m.HasDefault
	})

	var mismatched []string
	for _, want := range trait.Methods {
		fn, ok := methods[want.Name]
		if !ok {
			continue
		}
		got := signatureOf(fn)
		if got.HasReceiver != want.HasReceiver {
			if want.HasReceiver {
				mismatched = append(mismatched, fmt.Sprintf("method '%s' must take a receiver", want.Name))
			} else {
				mismatched = append(mismatched, fmt.Sprintf("method '%s' must not take a receiver", want.Name))
			}
		}
		if got.Params != want.Params {
			mismatched = append(mismatched, fmt.Sprintf("method '%s' takes %d parameters, trait requires %d", want.Name, got.Params, want.Params))
		}
	}
	for _, name := range repeated {
		mismatched = append(mismatched, fmt.Sprintf("method '%s' is defined more than once", name))
	}

	if len(missing) > 0 || len(extra) > 0 || len(mismatched) > 0 {
		return nil, &ConformanceError{Trait: traitName, Type: typeName, Missing: missing, Extra: extra, Mismatched: mismatched}
	}

	impl := &Impl{Trait: trait, Target: target, Methods: methods, Node: def}
	c.impls[key] = impl
	c.implOrder[typeName] = append(c.implOrder[typeName], impl)
	c.lggr.Debugw("Impl declared", "trait", traitName, "type", typeName)
	return impl, nil
}

// Struct looks up a declared struct.
func (c *Checker) Struct(name string) (*StructType, bool) {
	st, ok := c.structs[name]
	return st, ok
}

// Trait looks up a declared trait.
func (c *Checker) Trait(name string) (*TraitDecl, bool) {
	t, ok := c.traits[name]
	return t, ok
}

// Impl returns the declared impl of trait for typeName.
func (c *Checker) Impl(typeName, trait string) (*Impl, bool) {
	impl, ok := c.impls[implKey{target: typeName, trait: trait}]
	return impl, ok
}

// ImplsFor lists the impls declared for typeName in declaration order.
func (c *Checker) ImplsFor(typeName string) []*Impl {
	return slices.Clone(c.implOrder[typeName])
}

// Conforms reports whether typeName has a declared impl of trait. Methods
// that merely match the trait's shape do not count.
func (c *Checker) Conforms(typeName, trait string) bool {
	_, ok := c.impls[implKey{target: typeName, trait: trait}]
	return ok
}

// RequireTrait is the check applied wherever a value must satisfy trait.
func (c *Checker) RequireTrait(typeName, trait string) error {
	if _, ok := c.traits[trait]; !ok {
		return &ConformanceError{Trait: trait, Type: typeName, Required: true, Reason: fmt.Sprintf("unknown trait '%s'", trait)}
	}
	if c.Conforms(typeName, trait) {
		return nil
	}
	reason := "no impl is declared"
	if st, ok := c.structs[typeName]; ok && c.shapeMatches(st, c.traits[trait]) {
		reason = "no impl is declared (its methods match the trait, but conformance must be declared)"
	}
	return &ConformanceError{Trait: trait, Type: typeName, Required: true, Reason: reason}
}

func (c *Checker) shapeMatches(st *StructType, trait *TraitDecl) bool {
	for _, want := range trait.Methods {
		got, ok := st.Inherent[want.Name]
		if !ok {
			if want.HasDefault {
				continue
			}
			return false
		}
		if got.Params != want.Params || got.HasReceiver != want.HasReceiver {
			return false
		}
	}
	return true
}
