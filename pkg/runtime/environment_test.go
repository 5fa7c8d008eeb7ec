package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentDefineLookupAssign(t *testing.T) {
	env := NewEnvironment(nil)
	require.NoError(t, env.Define("a", NumberValue{Val: 0}, true))

	val, err := env.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, NumberValue{Val: 0}, val)

	require.NoError(t, env.Assign("a", NumberValue{Val: 12}))
	val, err = env.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, NumberValue{Val: 12}, val)
}

func TestEnvironmentUnboundName(t *testing.T) {
	env := NewEnvironment(nil)

	_, err := env.Lookup("missing")
	var unbound *UnboundNameError
	require.ErrorAs(t, err, &unbound)
	assert.Equal(t, "missing", unbound.Name)

	err = env.Assign("missing", NumberValue{Val: 1})
	require.ErrorAs(t, err, &unbound)
}

func TestEnvironmentDuplicateInSameScope(t *testing.T) {
	env := NewEnvironment(nil)
	require.NoError(t, env.Define("x", NumberValue{Val: 1}, false))

	var dup *DuplicateBindingError
	require.ErrorAs(t, env.Define("x", NumberValue{Val: 2}, false), &dup)

	child := env.Extend()
	require.NoError(t, child.Define("x", NumberValue{Val: 3}, false), "shadowing in a nested scope is allowed")
	val, err := child.Lookup("x")
	require.NoError(t, err)
	assert.Equal(t, NumberValue{Val: 3}, val)
}

func TestEnvironmentImmutableBinding(t *testing.T) {
	env := NewEnvironment(nil)
	require.NoError(t, env.Define("k", TextValue{Val: "fixed"}, false))

	var immutable *ImmutableBindingError
	require.ErrorAs(t, env.Assign("k", TextValue{Val: "changed"}), &immutable)
	assert.Equal(t, "k", immutable.Name)
}

func TestEnvironmentAssignWalksParents(t *testing.T) {
	global := NewEnvironment(nil)
	require.NoError(t, global.Define("count", NumberValue{Val: 1}, true))
	inner := global.Extend().Extend()

	require.NoError(t, inner.Assign("count", NumberValue{Val: 5}))
	val, err := global.Lookup("count")
	require.NoError(t, err)
	assert.Equal(t, NumberValue{Val: 5}, val)
	assert.True(t, inner.Has("count"))
	assert.False(t, inner.HasInCurrentScope("count"))
}

func TestEnvironmentAliasSurvivesRelease(t *testing.T) {
	caller := NewEnvironment(nil)
	require.NoError(t, caller.Define("a", NumberValue{Val: 0}, true))
	binding, err := caller.Resolve("a")
	require.NoError(t, err)

	callee := caller.Extend()
	require.NoError(t, callee.DefineAlias("p", binding.Cell, binding.Mutable))
	require.NoError(t, callee.Define("local", NumberValue{Val: 7}, false))
	require.NoError(t, callee.Assign("p", NumberValue{Val: 12}))
	local, err := callee.Resolve("local")
	require.NoError(t, err)
	callee.Release()

	val, err := caller.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, NumberValue{Val: 12}, val)
	assert.True(t, local.Cell.Released())
	assert.False(t, binding.Cell.Released())
}

func TestEnvironmentReleasedCellIsDangling(t *testing.T) {
	frame := NewEnvironment(nil)
	require.NoError(t, frame.Define("tmp", NumberValue{Val: 1}, true))
	binding, err := frame.Resolve("tmp")
	require.NoError(t, err)
	ref := &ReferenceValue{Name: "tmp", Cell: binding.Cell}
	frame.Release()

	_, err = ref.Cell.Get()
	assert.True(t, errors.Is(err, ErrReleased))

	_, err = frame.Lookup("tmp")
	var dangling *DanglingReferenceError
	require.ErrorAs(t, err, &dangling)
	assert.ErrorIs(t, err, ErrReleased)
}

func TestEnvironmentKeysSorted(t *testing.T) {
	env := NewEnvironment(nil)
	require.NoError(t, env.Define("b", VoidValue{}, false))
	require.NoError(t, env.Define("a", VoidValue{}, false))
	assert.Equal(t, []string{"a", "b"}, env.Keys())
}
