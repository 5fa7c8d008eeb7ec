package interpreter

import (
	"fmt"
	"io"
	"os"

	"github.com/emirpasic/gods/stacks/arraystack"

	"mira/interpreter-go/pkg/alloc"
	"mira/interpreter-go/pkg/ast"
	"mira/interpreter-go/pkg/logger"
	"mira/interpreter-go/pkg/native"
	"mira/interpreter-go/pkg/roles"
	"mira/interpreter-go/pkg/runtime"
	"mira/interpreter-go/pkg/stdlib"
	"mira/interpreter-go/pkg/typechecker"
)

// AllocatorMode selects what holds the allocator role when the
// interpreter starts.
type AllocatorMode string

const (
	// AllocatorPrelude tags the prelude's SystemAllocator struct, whose
	// impl calls the malloc/realloc/free externs.
	AllocatorPrelude AllocatorMode = "prelude"
	// AllocatorHost installs the Go-side native allocator directly.
	AllocatorHost AllocatorMode = "host"
	// AllocatorNone leaves the role empty; any allocation halts the program.
	AllocatorNone AllocatorMode = "none"
)

// ParseAllocatorMode validates a textual mode; empty means prelude.
func ParseAllocatorMode(text string) (AllocatorMode, error) {
	switch mode := AllocatorMode(text); mode {
	case "":
		return AllocatorPrelude, nil
	case AllocatorPrelude, AllocatorHost, AllocatorNone:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown allocator mode %q", text)
	}
}

const defaultMaxCallDepth = 2048

// Options configures a new Interpreter. Zero values pick sensible defaults.
type Options struct {
	Logger    logger.Logger
	Roles     *roles.Registry
	Target    native.Target
	HeapLimit uint64
	Allocator AllocatorMode
	// Library replaces the host symbol table; nil uses native.HostLibrary.
	Library      *native.Library
	Stdout       io.Writer
	MaxCallDepth int
}

// Interpreter evaluates modules.
type Interpreter struct {
	lggr    logger.Logger
	global  *runtime.Environment
	roles   *roles.Registry
	heap    *native.Heap
	binder  *native.Binder
	allocs  *alloc.Registry
	memory  *stdlib.Memory
	checker *typechecker.Checker
	stdout  io.Writer

	frames   *arraystack.Stack
	maxDepth int

	structs     map[string]*runtime.StructDefinitionValue
	traits      map[string]*runtime.TraitDefinitionValue
	implMethods map[implKey]map[string]*runtime.FunctionValue
	defaults    map[implKey]map[string]*runtime.FunctionValue
}

type implKey struct {
	typeName string
	trait    string
}

type frame struct {
	name string
}

// New returns an interpreter with builtins installed and the prelude
// evaluated.
func New(opts Options) (*Interpreter, error) {
	lggr := opts.Logger
	if lggr == nil {
		lggr = logger.Nop()
	}
	reg := opts.Roles
	if reg == nil {
		reg = roles.NewRegistry(lggr)
	}
	target := opts.Target
	if target.Arch == "" {
		target = native.HostTarget()
	}
	mode := opts.Allocator
	if mode == "" {
		mode = AllocatorPrelude
	}
	heap := native.NewHeap(opts.HeapLimit)
	lib := opts.Library
	if lib == nil {
		lib = native.HostLibrary(heap)
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	maxDepth := opts.MaxCallDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxCallDepth
	}

	i := &Interpreter{
		lggr:        lggr.Named("interpreter"),
		global:      runtime.NewEnvironment(nil),
		roles:       reg,
		heap:        heap,
		binder:      native.NewBinder(lib, target, lggr),
		checker:     typechecker.New(lggr),
		stdout:      stdout,
		frames:      arraystack.New(),
		maxDepth:    maxDepth,
		structs:     make(map[string]*runtime.StructDefinitionValue),
		traits:      make(map[string]*runtime.TraitDefinitionValue),
		implMethods: make(map[implKey]map[string]*runtime.FunctionValue),
		defaults:    make(map[implKey]map[string]*runtime.FunctionValue),
	}
	i.allocs = alloc.NewRegistry(reg, lggr)

	if err := i.installBuiltins(); err != nil {
		return nil, err
	}
	if err := i.EvaluateModule(Prelude(mode == AllocatorPrelude)); err != nil {
		return nil, fmt.Errorf("prelude: %w", err)
	}
	switch mode {
	case AllocatorHost:
		na, err := alloc.NewNativeAllocator(i.binder)
		if err != nil {
			return nil, err
		}
		i.allocs.Install("HostAllocator", na)
	case AllocatorNone:
		reg.Clear(roles.Allocator)
	}
	memory, err := stdlib.NewMemory(i.binder)
	if err != nil {
		return nil, err
	}
	i.memory = memory
	return i, nil
}

// GlobalEnvironment returns the interpreter's global environment.
func (i *Interpreter) GlobalEnvironment() *runtime.Environment {
	return i.global
}

// Roles exposes the role registry.
func (i *Interpreter) Roles() *roles.Registry { return i.roles }

// Allocators exposes the allocator registry that containers route through.
func (i *Interpreter) Allocators() *alloc.Registry { return i.allocs }

// Heap exposes the host heap behind the native symbols.
func (i *Interpreter) Heap() *native.Heap { return i.heap }

// Checker exposes the conformance records of every evaluated declaration.
func (i *Interpreter) Checker() *typechecker.Checker { return i.checker }

// Binder exposes the native binder.
func (i *Interpreter) Binder() *native.Binder { return i.binder }

// EvaluateModule evaluates declarations in dependency order: types and
// functions first, then impls, then role tags and any remaining statements.
func (i *Interpreter) EvaluateModule(module *ast.Module) error {
	if module == nil {
		return fmt.Errorf("interpreter: module is nil")
	}
	var impls, rest []ast.Statement
	for _, stmt := range module.Body {
		switch s := stmt.(type) {
		case *ast.StructDefinition:
			if err := i.evaluateStructDefinition(s); err != nil {
				return err
			}
		case *ast.TraitDefinition:
			if err := i.evaluateTraitDefinition(s); err != nil {
				return err
			}
		case *ast.FunctionDefinition:
			if err := i.evaluateFunctionDefinition(s); err != nil {
				return err
			}
		case *ast.ExternFunctionDefinition:
			if err := i.evaluateExternDefinition(s); err != nil {
				return err
			}
		case *ast.ImplementationDefinition:
			impls = append(impls, s)
		default:
			rest = append(rest, s)
		}
	}
	for _, stmt := range impls {
		if err := i.evaluateImplementationDefinition(stmt.(*ast.ImplementationDefinition)); err != nil {
			return err
		}
	}
	if err := i.applyDeclaredRoles(module); err != nil {
		return err
	}
	for _, stmt := range rest {
		if _, err := i.evaluateStatement(stmt, i.global); err != nil {
			if _, ok := err.(returnSignal); ok {
				return ErrReturnOutsideFunction
			}
			return err
		}
	}
	return nil
}

// Run evaluates module and calls its main function.
func (i *Interpreter) Run(module *ast.Module) (runtime.Value, error) {
	if err := i.EvaluateModule(module); err != nil {
		return nil, err
	}
	main, err := i.global.Lookup("main")
	if err != nil {
		return nil, fmt.Errorf("interpreter: program has no main function: %w", err)
	}
	return i.CallFunction(main)
}

// CallFunction invokes a callable value with the provided arguments. Every
// argument is passed as a fresh value; nothing in the caller is aliased.
func (i *Interpreter) CallFunction(value runtime.Value, args ...runtime.Value) (runtime.Value, error) {
	if value == nil {
		return nil, fmt.Errorf("interpreter: cannot call <nil> value")
	}
	bound := make([]argument, len(args))
	for idx, arg := range args {
		bound[idx] = argument{value: arg}
	}
	return i.callValue(value, nil, bound, "")
}
