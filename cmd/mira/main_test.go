package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes the working directory for the duration of the test
// (equivalent to testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimLeft(contents, "\n")), 0o600))
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func findCmd(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func TestRootCommandStructure(t *testing.T) {
	root := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	assert.Equal(t, "mira", root.Use)
	for _, name := range []string{"run", "check", "roles", "version"} {
		assert.NotNilf(t, findCmd(root, name), "subcommand %q not present", name)
	}
	for _, flag := range []string{"log-level", "heap-limit", "arch", "allocator"} {
		assert.NotNilf(t, root.PersistentFlags().Lookup(flag), "flag %q not present", flag)
	}
}

func TestVersion(t *testing.T) {
	code, stdout, _ := runCLI(t, "version")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, cliToolVersion+"\n", stdout)
}

func TestRunDirectFileNoManifest(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "main.yml")
	writeFile(t, entry, `
main:
  - call: [print, "hello", 1]
`)

	code, stdout, stderr := runCLI(t, "run", entry)
	require.Equalf(t, exitOK, code, "stderr: %s", stderr)
	assert.Equal(t, "hello 1\n", stdout)
}

func TestRunEntryFromManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mira.toml"), `
name = "demo"
entry = "src/app.yml"

[run]
allocator = "host"
`)
	writeFile(t, filepath.Join(dir, "src", "app.yml"), `
main:
  - let: {name: h, value: {call: [allocate, 8]}}
  - call: [print, h]
  - call: [release, h]
`)
	chdir(t, dir)

	code, stdout, stderr := runCLI(t, "run")
	require.Equalf(t, exitOK, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "<HostAllocator 0x")
}

func TestRunWithoutEntryOrManifest(t *testing.T) {
	chdir(t, t.TempDir())
	code, _, stderr := runCLI(t, "run")
	if code == exitOK {
		t.Skip("manifest present above temp dir")
	}
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "requires an entry document")
}

func TestRunHaltExitCode(t *testing.T) {
	entry := filepath.Join(t.TempDir(), "halt.yml")
	writeFile(t, entry, `
main:
  - halt: "boom"
`)

	code, _, stderr := runCLI(t, "run", entry)
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "halt: boom")
}

func TestRunAllocatorFlagOverridesManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mira.yml"), `
name: demo
run:
  allocator: host
`)
	entry := filepath.Join(dir, "alloc.yml")
	writeFile(t, entry, `
main:
  - call: [allocate, 8]
`)

	code, _, stderr := runCLI(t, "run", "--allocator", "none", entry)
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "no active allocator")
}

func TestRunABIViolationExitCode(t *testing.T) {
	entry := filepath.Join(t.TempDir(), "abi.yml")
	writeFile(t, entry, `
externs:
  - name: mem_size
    params: [ptr]
    returns: word
main:
  - call: [mem_size, "not a pointer"]
`)

	code, _, stderr := runCLI(t, "run", entry)
	assert.Equal(t, exitABIViolation, code)
	assert.Contains(t, stderr, "ABI violation in mem_size")
}

func TestRunLoadDiagnostic(t *testing.T) {
	entry := filepath.Join(t.TempDir(), "bad.yml")
	writeFile(t, entry, `
main:
  - frob: [1]
`)

	code, _, stderr := runCLI(t, "run", entry)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "bad.yml:2:5 unknown expression")
}

func TestRunRejectsBadFlags(t *testing.T) {
	entry := filepath.Join(t.TempDir(), "main.yml")
	writeFile(t, entry, "main: []\n")

	code, _, stderr := runCLI(t, "run", "--arch", "sparc", entry)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "unsupported target arch")

	code, _, stderr = runCLI(t, "run", "--log-level", "loud", entry)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "loud")
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yml")
	writeFile(t, good, `
structs:
  - name: Point
    fields: [x]
main:
  - let: {name: p, value: {struct: {type: Point, fields: {x: 1}}}}
  - call: [print, {member: [p, x]}]
`)
	code, stdout, stderr := runCLI(t, "check", good)
	require.Equalf(t, exitOK, code, "stderr: %s", stderr)
	assert.Equal(t, "check: ok\n", stdout)

	bad := filepath.Join(dir, "bad.yml")
	writeFile(t, bad, `
main:
  - let: {name: p, value: {struct: {type: Nope, fields: {}}}}
`)
	code, _, stderr = runCLI(t, "check", bad)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "unknown struct 'Nope'")
}

func TestRolesListsHolders(t *testing.T) {
	entry := filepath.Join(t.TempDir(), "roles.yml")
	writeFile(t, entry, `
functions:
  - name: shout
    params: [msg]
    body:
      - call: [host_print, "!", msg]
roles:
  print: shout
`)

	code, stdout, stderr := runCLI(t, "roles", entry)
	require.Equalf(t, exitOK, code, "stderr: %s", stderr)
	assert.Equal(t, "allocator\tSystemAllocator\nduplicate\thost_duplicate\nclone\thost_clone\nprint\tshout\n", stdout)

	code, stdout, stderr = runCLI(t, "roles", "--allocator", "none", entry)
	require.Equalf(t, exitOK, code, "stderr: %s", stderr)
	assert.True(t, strings.HasPrefix(stdout, "allocator\t-\n"), stdout)
}
