package driver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mira/interpreter-go/pkg/native"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

func TestLoadManifestYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestYAML)
	writeFile(t, path, `
name: demo
entry: src/main.yml
heap:
  limit: 4096
log:
  level: DEBUG
target:
  arch: x86
  os: linux
run:
  allocator: host
  max_call_depth: 64
`)

	manifest, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", manifest.Name)
	assert.Equal(t, uint64(4096), manifest.Heap.Limit)
	assert.Equal(t, "debug", manifest.Log.Level)
	assert.Equal(t, "host", manifest.Run.Allocator)
	assert.Equal(t, 64, manifest.Run.MaxCallDepth)
	assert.Equal(t, filepath.Join(dir, "src", "main.yml"), manifest.EntryPath())

	target, err := manifest.NativeTarget()
	require.NoError(t, err)
	assert.Equal(t, native.ArchX86, target.Arch)
	assert.Equal(t, 32, target.WordBits())
}

func TestLoadManifestTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestTOML)
	writeFile(t, path, `
name = "demo"
entry = "main.yml"

[heap]
limit = 128

[target]
arch = "arm64"
`)

	manifest, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(128), manifest.Heap.Limit)
	target, err := manifest.NativeTarget()
	require.NoError(t, err)
	assert.Equal(t, native.ArchAArch64, target.Arch)
}

func TestLoadManifestRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, ManifestYAML)
	writeFile(t, yamlPath, "name: demo\nversion: 1.0.0\n")
	_, err := LoadManifest(yamlPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")

	tomlPath := filepath.Join(dir, ManifestTOML)
	writeFile(t, tomlPath, "name = \"demo\"\nversion = \"1.0.0\"\n")
	_, err = LoadManifest(tomlPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestLoadManifestValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestYAML)
	writeFile(t, path, `
entry: main.txt
log:
  level: loud
target:
  arch: sparc
run:
  allocator: arena
  max_call_depth: -1
`)

	_, err := LoadManifest(path)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Len(t, validation.Issues, 6)
	assert.Contains(t, err.Error(), "name must be provided")
	assert.Contains(t, err.Error(), "run.allocator")
}

func TestLoadManifestEmptyAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, ManifestYAML)
	writeFile(t, empty, "")
	_, err := LoadManifest(empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")

	json := filepath.Join(dir, "mira.json")
	writeFile(t, json, "{}")
	_, err = LoadManifest(json)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestFindManifestWalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ManifestTOML), "name = \"outer\"\n")
	writeFile(t, filepath.Join(root, "app", ManifestYAML), "name: inner\n")
	nested := filepath.Join(root, "app", "src", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindManifest(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "app", ManifestYAML), found)

	found, err = FindManifest(filepath.Join(root, "app", ManifestYAML))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "app", ManifestYAML), found)
}

func TestFindManifestNotFound(t *testing.T) {
	_, err := FindManifest(t.TempDir())
	if err == nil {
		// a manifest above the temp dir would be found first
		t.Skip("manifest present above temp dir")
	}
	assert.True(t, errors.Is(err, ErrManifestNotFound))
}

func TestNilManifestDefaults(t *testing.T) {
	var manifest *Manifest
	assert.Equal(t, "", manifest.EntryPath())
	target, err := manifest.NativeTarget()
	require.NoError(t, err)
	assert.Equal(t, native.HostTarget(), target)
}
