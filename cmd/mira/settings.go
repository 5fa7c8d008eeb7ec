package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mira/interpreter-go/pkg/driver"
	"mira/interpreter-go/pkg/interpreter"
	"mira/interpreter-go/pkg/logger"
	"mira/interpreter-go/pkg/native"
	"mira/interpreter-go/pkg/roles"
)

const defaultLogLevel = "warn"

type globalFlags struct {
	logLevel  string
	heapLimit uint64
	arch      string
	allocator string
}

// settings is the merged view of the manifest and the command line. Flags
// win over manifest values.
type settings struct {
	entry     string
	manifest  *driver.Manifest
	logLevel  string
	heapLimit uint64
	target    native.Target
	allocator interpreter.AllocatorMode
	maxDepth  int
}

// resolveSettings locates the entry document. With no argument the entry
// comes from the nearest manifest; with one, the manifest next to the
// entry (if any) still supplies configuration.
func resolveSettings(cmd *cobra.Command, flags *globalFlags, args []string) (*settings, error) {
	var (
		manifest *driver.Manifest
		entry    string
	)
	start := "."
	if len(args) == 1 {
		entry = args[0]
		start = filepath.Dir(entry)
	}
	manifestPath, err := driver.FindManifest(start)
	switch {
	case err == nil:
		if manifest, err = driver.LoadManifest(manifestPath); err != nil {
			return nil, err
		}
	case errors.Is(err, driver.ErrManifestNotFound):
		if entry == "" {
			return nil, fmt.Errorf("%s requires an entry document (%v)", cmd.Name(), err)
		}
	default:
		return nil, err
	}
	if entry == "" {
		entry = manifest.EntryPath()
		if entry == "" {
			return nil, fmt.Errorf("manifest %s has no entry", manifest.Path)
		}
	}

	s := &settings{entry: entry, manifest: manifest, logLevel: defaultLogLevel}
	if manifest != nil {
		if manifest.Log.Level != "" {
			s.logLevel = manifest.Log.Level
		}
		s.heapLimit = manifest.Heap.Limit
		s.maxDepth = manifest.Run.MaxCallDepth
	}
	if s.target, err = manifest.NativeTarget(); err != nil {
		return nil, err
	}
	allocator := ""
	if manifest != nil {
		allocator = manifest.Run.Allocator
	}

	changed := cmd.Flags().Changed
	if changed("log-level") {
		s.logLevel = flags.logLevel
	}
	if changed("heap-limit") {
		s.heapLimit = flags.heapLimit
	}
	if changed("arch") {
		arch, err := native.ParseArch(flags.arch)
		if err != nil {
			return nil, err
		}
		s.target.Arch = arch
	}
	if changed("allocator") {
		allocator = flags.allocator
	}
	if s.allocator, err = interpreter.ParseAllocatorMode(allocator); err != nil {
		return nil, err
	}
	return s, nil
}

// newLogger writes JSON logs to stderr tagged with a per-invocation run id.
func (s *settings) newLogger(stderr io.Writer) (logger.Logger, error) {
	level, err := logger.ParseLevel(s.logLevel)
	if err != nil {
		return nil, err
	}
	return logger.NewWriter(stderr, level).Named("mira").With("run", uuid.NewString(), "entry", s.entry), nil
}

func (s *settings) newInterpreter(lggr logger.Logger, stdout io.Writer) (*interpreter.Interpreter, error) {
	return interpreter.New(interpreter.Options{
		Logger:       lggr,
		Roles:        roles.NewRegistry(lggr),
		Target:       s.target,
		HeapLimit:    s.heapLimit,
		Allocator:    s.allocator,
		Stdout:       stdout,
		MaxCallDepth: s.maxDepth,
	})
}
