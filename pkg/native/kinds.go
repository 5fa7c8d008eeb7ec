package native

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind is the machine-level type of a native parameter or return value.
type Kind string

const (
	// Word is an unsigned machine word.
	Word Kind = "word"
	// Ptr is a raw opaque pointer.
	Ptr Kind = "ptr"
	// Bytes is a byte sequence.
	Bytes Kind = "bytes"
	// Void is only valid as a return kind.
	Void Kind = "void"
)

var (
	wordType  = reflect.TypeOf(uint64(0))
	ptrType   = reflect.TypeOf(uintptr(0))
	bytesType = reflect.TypeOf([]byte(nil))
)

// ParseKind validates a textual kind. Void is accepted only for returns.
func ParseKind(text string, allowVoid bool) (Kind, error) {
	switch k := Kind(strings.TrimSpace(text)); k {
	case Word, Ptr, Bytes:
		return k, nil
	case Void:
		if allowVoid {
			return k, nil
		}
		return "", fmt.Errorf("void is not a parameter kind")
	default:
		return "", fmt.Errorf("unknown native kind %q", text)
	}
}

// hostType is the Go type a host symbol must use for the kind.
func (k Kind) hostType() reflect.Type {
	switch k {
	case Word:
		return wordType
	case Ptr:
		return ptrType
	case Bytes:
		return bytesType
	default:
		return nil
	}
}

// Signature is the fixed native call contract of an external declaration.
type Signature struct {
	Name   string
	Params []Kind
	Return Kind
}

func (s Signature) String() string {
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = string(p)
	}
	ret := s.Return
	if ret == "" {
		ret = Void
	}
	return fmt.Sprintf("%s(%s) -> %s", s.Name, strings.Join(parts, ", "), ret)
}

// ParseSignature builds a Signature from textual kinds.
func ParseSignature(name string, params []string, ret string) (Signature, error) {
	sig := Signature{Name: name, Params: make([]Kind, 0, len(params))}
	for idx, p := range params {
		k, err := ParseKind(p, false)
		if err != nil {
			return Signature{}, &NativeBindingError{Name: name, Reason: fmt.Sprintf("parameter %d: %v", idx, err)}
		}
		sig.Params = append(sig.Params, k)
	}
	if ret == "" {
		ret = string(Void)
	}
	k, err := ParseKind(ret, true)
	if err != nil {
		return Signature{}, &NativeBindingError{Name: name, Reason: fmt.Sprintf("return: %v", err)}
	}
	sig.Return = k
	return sig, nil
}
