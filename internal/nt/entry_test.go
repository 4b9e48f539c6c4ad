package nt

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ntcore/internal/value"
)

func TestEntry_TypedGettersWithDefaults(t *testing.T) {
	inst, _ := newTestInstance(t)
	e := inst.GetEntry("/v")

	assert.False(t, e.Exists())
	assert.Equal(t, 7.0, e.GetDouble(7))

	require.NoError(t, e.SetDouble(1.5))
	assert.True(t, e.Exists())
	assert.Equal(t, value.KindDouble, e.Type())
	assert.Equal(t, 1.5, e.GetDouble(0))
	assert.Equal(t, "fallback", e.GetString("fallback"), "wrong kind yields the default")
	assert.Equal(t, []bool{true}, e.GetBooleanArray([]bool{true}))
}

func TestEntry_SetValueOfOtherKindIsTypeMismatch(t *testing.T) {
	inst, _ := newTestInstance(t)
	e := inst.GetEntry("/typed")
	require.NoError(t, e.SetBoolean(true))

	err := e.SetString("nope")
	tm, ok := value.IsTypeMismatch(err)
	require.True(t, ok)
	assert.Equal(t, value.KindBoolean, tm.Expected)
	assert.Equal(t, value.KindString, tm.Actual)
	assert.True(t, e.GetBoolean(false), "value unchanged")

	require.NoError(t, e.ForceSetValue(value.MakeString("forced")))
	assert.Equal(t, "forced", e.GetString(""))
}

func TestEntry_SetUnassignedIsInvalidArgument(t *testing.T) {
	inst, _ := newTestInstance(t)
	err := inst.GetEntry("/u").SetValue(value.MakeEmpty())
	assert.True(t, IsInvalidArgument(err))
}

func TestEntry_SetDefault(t *testing.T) {
	inst, _ := newTestInstance(t)
	e := inst.GetEntry("/d")

	assert.True(t, e.SetDefaultDouble(3))
	assert.True(t, e.SetDefaultDouble(4))
	assert.False(t, e.SetDefaultString("x"))
	assert.Equal(t, 3.0, e.GetDouble(0))
}

func TestEntry_ArraysAreCopied(t *testing.T) {
	inst, _ := newTestInstance(t)
	e := inst.GetEntry("/arr")

	in := []string{"a", "b"}
	require.NoError(t, e.SetStringArray(in...))
	in[0] = "mutated"

	out := e.GetStringArray(nil)
	assert.Equal(t, []string{"a", "b"}, out)
	out[1] = "mutated"
	assert.Equal(t, []string{"a", "b"}, e.GetStringArray(nil))

	raw := []byte{1, 2}
	require.NoError(t, inst.GetEntry("/raw").SetRaw(raw))
	raw[0] = 9
	assert.Equal(t, []byte{1, 2}, inst.GetEntry("/raw").GetRaw(nil))
}

func TestEntry_ConcurrentFlagChangesKeepEveryBit(t *testing.T) {
	inst, _ := newTestInstance(t)
	e := inst.GetEntry("/bits")
	require.NoError(t, e.SetBoolean(true))

	const bits = 8
	var wg sync.WaitGroup
	for b := 0; b < bits; b++ {
		flag := EntryFlags(1) << b
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				e.SetFlags(flag)
				e.ClearFlags(flag)
			}
			e.SetFlags(flag)
		}()
	}
	wg.Wait()

	assert.Equal(t, EntryFlags(1<<bits-1), e.Flags())
}

func TestEntry_FlagsAndDelete(t *testing.T) {
	inst, _ := newTestInstance(t)
	e := inst.GetEntry("/f")
	require.NoError(t, e.SetDoubleArray(1, 2))

	e.SetPersistent()
	assert.True(t, e.IsPersistent())
	assert.Equal(t, Persistent, e.Info().Flags)
	e.ClearPersistent()
	assert.False(t, e.IsPersistent())

	before := e.LastChange()
	require.NoError(t, e.SetDoubleArray(3))
	assert.Greater(t, e.LastChange(), before)

	e.Delete()
	assert.False(t, e.Exists())
	assert.True(t, e.Value().IsUnassigned())
}

func TestEntry_ZeroValueIsInvalid(t *testing.T) {
	var e Entry
	assert.False(t, e.IsValid())
	assert.Equal(t, "", e.Name())
	assert.Equal(t, 2.0, e.GetDouble(2))
	assert.True(t, IsInvalidState(e.SetDouble(1)))
	assert.False(t, e.SetDefaultDouble(1))
	_, err := e.AddListener(NotifyNew, func(EntryEvent) {})
	assert.True(t, IsInvalidState(err))
}

func TestEntry_AddListener(t *testing.T) {
	inst, _ := newTestInstance(t)
	watched := inst.GetEntry("/watched")
	require.NoError(t, watched.SetDouble(1))

	events := make(chan EntryEvent, 10)
	_, err := watched.AddListener(NotifyImmediate|NotifyNew|NotifyUpdate|NotifyDelete|NotifyLocal, func(ev EntryEvent) {
		events <- ev
	})
	require.NoError(t, err)

	ev := recv(t, events)
	assert.Equal(t, NotifyImmediate|NotifyNew, ev.Flags)

	require.NoError(t, inst.GetEntry("/other").SetDouble(1))
	require.NoError(t, watched.SetDouble(2))
	ev = recv(t, events)
	assert.Equal(t, "/watched", ev.Name)
	assert.Equal(t, NotifyLocal|NotifyUpdate, ev.Flags)

	watched.Delete()
	ev = recv(t, events)
	assert.Equal(t, NotifyLocal|NotifyDelete, ev.Flags)
}

func TestGetEntries(t *testing.T) {
	inst, _ := newTestInstance(t)
	require.NoError(t, inst.GetEntry("/a/1").SetDouble(1))
	require.NoError(t, inst.GetEntry("/a/2").SetString("2"))
	require.NoError(t, inst.GetEntry("/b/3").SetDouble(3))

	entries := inst.GetEntries("/a/", value.AllKinds)
	require.Len(t, entries, 2)
	assert.Equal(t, "/a/1", entries[0].Name())

	infos := inst.GetEntryInfo("", value.Mask(value.KindDouble))
	require.Len(t, infos, 2)
	assert.Equal(t, "/b/3", infos[1].Name)
}
