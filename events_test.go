package evnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventEmitterSnapshotUnderSelfRemoval(t *testing.T) {
	e := NewEventEmitter()
	var calls []int

	var l1, l2, l3 Listener
	l1 = func(args ...interface{}) {
		calls = append(calls, 1)
		e.RemoveListener("tick", l1)
	}
	l2 = func(args ...interface{}) { calls = append(calls, 2) }
	l3 = func(args ...interface{}) { calls = append(calls, 3) }

	e.On("tick", l1)
	e.On("tick", l2)
	e.On("tick", l3)

	ok := e.Emit("tick")
	require.True(t, ok)
	require.Equal(t, []int{1, 2, 3}, calls)

	calls = nil
	e.Emit("tick")
	require.Equal(t, []int{2, 3}, calls, "l1 removed itself, must not run again")
}

func TestEventEmitterOnce(t *testing.T) {
	e := NewEventEmitter()
	n := 0
	e.Once("x", func(args ...interface{}) { n++ })
	e.Emit("x")
	e.Emit("x")
	require.Equal(t, 1, n)
	require.Empty(t, e.Listeners("x"))
}

func TestEventEmitterRemoveAllThenEmitReturnsFalse(t *testing.T) {
	e := NewEventEmitter()
	e.On("x", func(args ...interface{}) {})
	e.RemoveAllListeners("")
	require.False(t, e.Emit("x"))
}

func TestEventEmitterUnknownEventNoop(t *testing.T) {
	e := NewEventEmitter()
	require.False(t, e.Emit("nope"))
	require.Empty(t, e.Listeners("nope"))
}

func TestEventEmitterMutationDuringEmitDoesNotAffectCurrentPass(t *testing.T) {
	e := NewEventEmitter()
	var ran []string
	e.On("ev", func(args ...interface{}) {
		ran = append(ran, "first")
		e.On("ev", func(args ...interface{}) { ran = append(ran, "added-during-emit") })
	})
	e.Emit("ev")
	require.Equal(t, []string{"first"}, ran)

	ran = nil
	e.Emit("ev")
	require.ElementsMatch(t, []string{"first", "added-during-emit"}, ran)
}
