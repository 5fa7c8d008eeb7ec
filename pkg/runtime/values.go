package runtime

import (
	"fmt"
	"strconv"

	"mira/interpreter-go/pkg/ast"
)

// Kind identifies the runtime value category.
type Kind int

const (
	KindNumber Kind = iota
	KindText
	KindStructInstance
	KindHandle
	KindReference
	KindSequence
	KindVoid
	KindFunction
	KindNativeFunction
	KindBoundMethod
	KindStructDefinition
	KindTraitDefinition
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindStructInstance:
		return "struct_instance"
	case KindHandle:
		return "handle"
	case KindReference:
		return "reference"
	case KindSequence:
		return "sequence"
	case KindVoid:
		return "void"
	case KindFunction:
		return "function"
	case KindNativeFunction:
		return "native_function"
	case KindBoundMethod:
		return "bound_method"
	case KindStructDefinition:
		return "struct_def"
	case KindTraitDefinition:
		return "trait_def"
	default:
		return fmt.Sprintf("unknown_kind_%d", int(k))
	}
}

// Value is the shared behaviour for all runtime values.
type Value interface {
	Kind() Kind
}

//-----------------------------------------------------------------------------
// Data values
//-----------------------------------------------------------------------------

type NumberValue struct {
	Val float64
}

func (v NumberValue) Kind() Kind { return KindNumber }

type TextValue struct {
	Val string
}

func (v TextValue) Kind() Kind { return KindText }

type VoidValue struct{}

func (VoidValue) Kind() Kind { return KindVoid }

// StructInstanceValue stores every field in its own cell so a field can be
// aliased by a callee exactly like a named binding.
type StructInstanceValue struct {
	Definition *StructDefinitionValue
	Fields     map[string]*Cell
}

func (v *StructInstanceValue) Kind() Kind { return KindStructInstance }

// TypeName returns the declared struct name, or "" for anonymous instances.
func (v *StructInstanceValue) TypeName() string {
	if v == nil || v.Definition == nil || v.Definition.Node == nil || v.Definition.Node.ID == nil {
		return ""
	}
	return v.Definition.Node.ID.Name
}

// FieldNames returns the fields in declaration order.
func (v *StructInstanceValue) FieldNames() []string {
	if v == nil {
		return nil
	}
	if v.Definition != nil && v.Definition.Node != nil {
		names := make([]string, 0, len(v.Definition.Node.Fields))
		for _, field := range v.Definition.Node.Fields {
			if field != nil && field.Name != nil {
				names = append(names, field.Name.Name)
			}
		}
		return names
	}
	names := make([]string, 0, len(v.Fields))
	for name := range v.Fields {
		names = append(names, name)
	}
	return names
}

// HandleValue is an opaque token for a native resource. Addr is the token
// the host understands; Resource optionally carries a Go-side owner.
type HandleValue struct {
	Addr     uintptr
	Label    string
	Resource any
}

func (v HandleValue) Kind() Kind { return KindHandle }

// IsNull reports whether the handle is the native failure sentinel.
func (v HandleValue) IsNull() bool { return v.Addr == 0 && v.Resource == nil }

// ReferenceValue points at another binding's storage. Mutable mirrors the
// binding it was taken from.
type ReferenceValue struct {
	Name    string
	Cell    *Cell
	Mutable bool
}

func (v *ReferenceValue) Kind() Kind { return KindReference }

// SequenceValue is produced by a variadic collector; every item aliases the
// caller storage it was collected from.
type SequenceValue struct {
	Items []*Cell
	// ReadOnly marks items collected from immutable storage.
	ReadOnly []bool
}

func (v *SequenceValue) Kind() Kind { return KindSequence }

// ItemMutable reports whether item idx may be written through.
func (v *SequenceValue) ItemMutable(idx int) bool {
	return idx >= len(v.ReadOnly) || !v.ReadOnly[idx]
}

//-----------------------------------------------------------------------------
// Callables and declarations
//-----------------------------------------------------------------------------

type FunctionValue struct {
	Declaration *ast.FunctionDefinition
	Closure     *Environment
	// Owner names the struct the method belongs to, empty for free functions.
	Owner string
}

func (v *FunctionValue) Kind() Kind { return KindFunction }

// Name returns the declared function name.
func (v *FunctionValue) Name() string {
	if v == nil || v.Declaration == nil || v.Declaration.ID == nil {
		return "(function)"
	}
	if v.Owner != "" {
		return v.Owner + "." + v.Declaration.ID.Name
	}
	return v.Declaration.ID.Name
}

// NativeCallContext provides hooks for native functions.
type NativeCallContext struct {
	Env   *Environment
	State any
}

type NativeFunc func(*NativeCallContext, []Value) (Value, error)

// NativeFunctionValue is a function implemented by the host. Arity -1 accepts
// any number of arguments.
type NativeFunctionValue struct {
	Name  string
	Arity int
	Impl  NativeFunc
}

func (v NativeFunctionValue) Kind() Kind { return KindNativeFunction }

// BoundMethodValue captures the receiver storage and a callable.
type BoundMethodValue struct {
	Receiver *Cell
	Mutable  bool
	Method   *FunctionValue
}

func (v BoundMethodValue) Kind() Kind { return KindBoundMethod }

type StructDefinitionValue struct {
	Node    *ast.StructDefinition
	Methods map[string]*FunctionValue
}

func (v *StructDefinitionValue) Kind() Kind { return KindStructDefinition }

type TraitDefinitionValue struct {
	Node *ast.TraitDefinition
	Env  *Environment
}

func (v *TraitDefinitionValue) Kind() Kind { return KindTraitDefinition }

// IsCallable reports whether the value can appear in call position.
func IsCallable(v Value) bool {
	switch v.(type) {
	case *FunctionValue, NativeFunctionValue, BoundMethodValue:
		return true
	default:
		return false
	}
}

// Describe renders a value for messages and formatted output.
func Describe(val Value) string {
	switch v := val.(type) {
	case nil:
		return "<nil>"
	case NumberValue:
		return strconv.FormatFloat(v.Val, 'f', -1, 64)
	case TextValue:
		return v.Val
	case VoidValue:
		return "void"
	case HandleValue:
		if v.Label != "" {
			return fmt.Sprintf("<%s 0x%x>", v.Label, v.Addr)
		}
		return fmt.Sprintf("<handle 0x%x>", v.Addr)
	case *ReferenceValue:
		return "&" + v.Name
	case *StructInstanceValue:
		out := v.TypeName() + " {"
		for idx, name := range v.FieldNames() {
			if idx > 0 {
				out += ","
			}
			cell := v.Fields[name]
			field := "<released>"
			if cell != nil && !cell.Released() {
				field = Describe(cell.value)
			}
			out += " " + name + ": " + field
		}
		return out + " }"
	case *SequenceValue:
		out := "["
		for idx, item := range v.Items {
			if idx > 0 {
				out += ", "
			}
			if item == nil || item.Released() {
				out += "<released>"
				continue
			}
			out += Describe(item.value)
		}
		return out + "]"
	case *FunctionValue:
		return "<fn " + v.Name() + ">"
	case NativeFunctionValue:
		return "<native fn " + v.Name + ">"
	case BoundMethodValue:
		return "<bound " + v.Method.Name() + ">"
	case *StructDefinitionValue:
		return "<struct " + v.Node.ID.Name + ">"
	case *TraitDefinitionValue:
		return "<trait " + v.Node.ID.Name + ">"
	default:
		return fmt.Sprintf("[%s]", val.Kind())
	}
}
