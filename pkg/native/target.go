package native

import (
	"fmt"
	goruntime "runtime"
)

// Arch is a supported target architecture.
type Arch string

const (
	ArchX86_64  Arch = "x86_64"
	ArchX86     Arch = "x86"
	ArchAArch64 Arch = "aarch64"
)

// Target fixes the width of the native word.
type Target struct {
	Arch Arch
	OS   string
}

// ParseArch accepts the manifest spellings plus the Go GOARCH names.
func ParseArch(text string) (Arch, error) {
	switch text {
	case "x86_64", "amd64":
		return ArchX86_64, nil
	case "x86", "386", "i386":
		return ArchX86, nil
	case "aarch64", "arm64":
		return ArchAArch64, nil
	default:
		return "", fmt.Errorf("unsupported target arch %q", text)
	}
}

// HostTarget describes the machine the interpreter runs on, falling back to
// x86_64 for architectures without a mapping.
func HostTarget() Target {
	arch, err := ParseArch(goruntime.GOARCH)
	if err != nil {
		arch = ArchX86_64
	}
	return Target{Arch: arch, OS: goruntime.GOOS}
}

// WordBits returns the width of a machine word in bits.
func (t Target) WordBits() int {
	if t.Arch == ArchX86 {
		return 32
	}
	return 64
}

// MaxWord is the largest value a word can hold.
func (t Target) MaxWord() uint64 {
	if t.WordBits() == 32 {
		return 1<<32 - 1
	}
	return ^uint64(0)
}
