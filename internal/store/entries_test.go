package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ntcore/internal/value"
)

func TestWriteReadEntries(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	records := []Record{
		createTestRecord("/b", value.MakeStringArray("x", "y"), 1),
		createTestRecord("/a", value.MakeDouble(1.5), 0),
		createTestRecord("/c", value.MakeRaw([]byte{1, 2}), 1),
	}
	require.NoError(t, s.WriteEntries(ctx, records))

	got, warnings, err := s.ReadEntries(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, got, 3)

	assert.Equal(t, "/a", got[0].Name)
	assert.True(t, got[0].Value.Equal(value.MakeDouble(1.5)))
	assert.Equal(t, "/b", got[1].Name)
	assert.Equal(t, uint32(1), got[1].Flags)
	assert.True(t, got[2].Value.Equal(value.MakeRaw([]byte{1, 2})))
}

func TestWriteEntriesReplacesSnapshot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteEntries(ctx, []Record{createTestRecord("/old", value.MakeBoolean(true), 0)}))
	require.NoError(t, s.WriteEntries(ctx, []Record{createTestRecord("/new", value.MakeBoolean(false), 0)}))

	got, _, err := s.ReadEntries(ctx, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/new", got[0].Name)
}

func TestWriteEntriesSkipsUnassigned(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteEntries(ctx, []Record{{Name: "/gone", Value: value.MakeEmpty()}}))

	got, _, err := s.ReadEntries(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadEntriesPrefix(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteEntries(ctx, []Record{
		createTestRecord("/drive/speed", value.MakeDouble(1), 0),
		createTestRecord("/drive/mode", value.MakeString("tank"), 0),
		createTestRecord("/arm/angle", value.MakeDouble(2), 0),
		createTestRecord("/drive_x", value.MakeDouble(3), 0),
	}))

	got, _, err := s.ReadEntries(ctx, "/drive/")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/drive/mode", got[0].Name)
	assert.Equal(t, "/drive/speed", got[1].Name)
}

func TestReadEntriesCorruptRowsBecomeWarnings(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteEntries(ctx, []Record{createTestRecord("/ok", value.MakeDouble(1), 0)}))
	_, err := s.DB().Exec(`INSERT INTO entries (name, kind, value, flags) VALUES ('/bad', 'double', '{"type":"string","value":"x"}', 0)`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`INSERT INTO entries (name, kind, value, flags) VALUES ('/worse', 'float', '{}', 0)`)
	require.NoError(t, err)

	got, warnings, err := s.ReadEntries(ctx, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/ok", got[0].Name)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], `entry "/bad"`)
	assert.Contains(t, warnings[1], `entry "/worse"`)
}

func TestMetaRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	got, err := s.ReadMeta(ctx, MetaIdentity)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.WriteMeta(ctx, MetaIdentity, "robot"))
	require.NoError(t, s.WriteMeta(ctx, MetaIdentity, "server"))

	got, err = s.ReadMeta(ctx, MetaIdentity)
	require.NoError(t, err)
	assert.Equal(t, "server", got)
}
