package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"mira/interpreter-go/pkg/logger"
	"mira/interpreter-go/pkg/native"
)

// Manifest file names, in lookup order.
const (
	ManifestYAML = "mira.yml"
	ManifestTOML = "mira.toml"
)

// ErrManifestNotFound is returned when no manifest exists above the start
// directory.
var ErrManifestNotFound = errors.New("manifest: not found")

// Manifest represents the parsed contents of mira.yml or mira.toml.
type Manifest struct {
	Path   string       `yaml:"-" toml:"-"`
	Name   string       `yaml:"name" toml:"name"`
	Entry  string       `yaml:"entry" toml:"entry"`
	Heap   HeapConfig   `yaml:"heap" toml:"heap"`
	Log    LogConfig    `yaml:"log" toml:"log"`
	Target TargetConfig `yaml:"target" toml:"target"`
	Run    RunConfig    `yaml:"run" toml:"run"`
}

// HeapConfig bounds the host heap. Limit 0 means unlimited.
type HeapConfig struct {
	Limit uint64 `yaml:"limit" toml:"limit"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// TargetConfig selects the native target; it fixes the word width.
type TargetConfig struct {
	Arch string `yaml:"arch" toml:"arch"`
	OS   string `yaml:"os" toml:"os"`
}

// RunConfig holds interpreter settings.
type RunConfig struct {
	Allocator    string `yaml:"allocator" toml:"allocator"`
	MaxCallDepth int    `yaml:"max_call_depth" toml:"max_call_depth"`
}

// ValidationError aggregates manifest validation failures.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "manifest: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("manifest validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// LoadManifest parses a manifest from disk, returning a validated manifest.
// The format follows the file extension.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", absPath, err)
	}
	defer file.Close()

	var manifest Manifest
	switch ext := strings.ToLower(filepath.Ext(absPath)); ext {
	case ".toml":
		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&manifest); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, fmt.Errorf("manifest: parse %s: %s", absPath, strict.String())
			}
			return nil, fmt.Errorf("manifest: parse %s: %w", absPath, err)
		}
	case ".yml", ".yaml":
		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(&manifest); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("manifest: %s is empty", absPath)
			}
			return nil, fmt.Errorf("manifest: parse %s: %w", absPath, err)
		}
	default:
		return nil, fmt.Errorf("manifest: unsupported format %q", ext)
	}

	manifest.Path = absPath
	manifest.normalize()
	if err := manifest.validate(); err != nil {
		return nil, err
	}
	return &manifest, nil
}

func (m *Manifest) normalize() {
	m.Name = strings.TrimSpace(m.Name)
	m.Entry = strings.TrimSpace(m.Entry)
	m.Log.Level = strings.ToLower(strings.TrimSpace(m.Log.Level))
	m.Target.Arch = strings.TrimSpace(m.Target.Arch)
	m.Target.OS = strings.TrimSpace(m.Target.OS)
	m.Run.Allocator = strings.TrimSpace(m.Run.Allocator)
}

func (m *Manifest) validate() error {
	var errs ValidationError
	if m.Name == "" {
		errs.Issues = append(errs.Issues, "name must be provided")
	}
	if m.Entry != "" {
		if ext := filepath.Ext(m.Entry); ext != ".yml" && ext != ".yaml" {
			errs.Issues = append(errs.Issues, fmt.Sprintf("entry %q must be a .yml program document", m.Entry))
		}
	}
	if m.Log.Level != "" {
		if _, err := logger.ParseLevel(m.Log.Level); err != nil {
			errs.Issues = append(errs.Issues, fmt.Sprintf("log.level: %v", err))
		}
	}
	if m.Target.Arch != "" {
		if _, err := native.ParseArch(m.Target.Arch); err != nil {
			errs.Issues = append(errs.Issues, fmt.Sprintf("target.arch: %v", err))
		}
	}
	switch m.Run.Allocator {
	case "", "prelude", "host", "none":
	default:
		errs.Issues = append(errs.Issues, fmt.Sprintf("run.allocator %q must be one of prelude, host, none", m.Run.Allocator))
	}
	if m.Run.MaxCallDepth < 0 {
		errs.Issues = append(errs.Issues, "run.max_call_depth must not be negative")
	}
	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

// EntryPath resolves the entry document relative to the manifest.
func (m *Manifest) EntryPath() string {
	if m == nil || m.Entry == "" {
		return ""
	}
	if filepath.IsAbs(m.Entry) {
		return filepath.Clean(m.Entry)
	}
	return filepath.Join(filepath.Dir(m.Path), filepath.FromSlash(m.Entry))
}

// NativeTarget returns the configured target, defaulting to the host.
func (m *Manifest) NativeTarget() (native.Target, error) {
	target := native.HostTarget()
	if m == nil {
		return target, nil
	}
	if m.Target.Arch != "" {
		arch, err := native.ParseArch(m.Target.Arch)
		if err != nil {
			return native.Target{}, err
		}
		target.Arch = arch
	}
	if m.Target.OS != "" {
		target.OS = m.Target.OS
	}
	return target, nil
}

// FindManifest walks up from start looking for mira.yml, then mira.toml,
// in each directory.
func FindManifest(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve start directory %q: %w", start, err)
	}
	if info, statErr := os.Stat(dir); statErr == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	origin := dir
	for {
		for _, name := range []string{ManifestYAML, ManifestTOML} {
			candidate := filepath.Join(dir, name)
			info, err := os.Stat(candidate)
			if err == nil && !info.IsDir() {
				return candidate, nil
			}
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return "", err
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s or %s found from %s upwards: %w", ManifestYAML, ManifestTOML, origin, ErrManifestNotFound)
		}
		dir = parent
	}
}
