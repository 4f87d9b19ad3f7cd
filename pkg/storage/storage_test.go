package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/arenabuf/pkg/buffer"
	"github.com/ssargent/arenabuf/pkg/factory"
)

const userSchema = `{"type": "table", "columns": [
	["name", {"type": "string"}],
	["tags", {"type": "list", "of": {"type": "string"}}]
]}`

const rankSchema = `{"type": "tuple", "sorted": true, "values": [
	{"type": "int32"},
	{"type": "string", "size": 8}
]}`

func openStore(t *testing.T, desc string) *DocumentStore {
	t.Helper()
	f, err := factory.NewFromJSON([]byte(desc))
	require.NoError(t, err)
	s, err := Open(Config{Path: t.TempDir(), CompactConcurrency: 4}, f, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func build(t *testing.T, s *DocumentStore, work func(*buffer.Buffer) error) []byte {
	t.Helper()
	out, err := s.Factory().Open(factory.Empty(), work)
	require.NoError(t, err)
	return out
}

func TestCRUD(t *testing.T) {
	s := openStore(t, userSchema)
	data := build(t, s, func(b *buffer.Buffer) error { return b.Set("name", "Alice") })

	id, err := s.Create(data)
	require.NoError(t, err)

	got, err := s.Read(id)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, s.Mutate(id, func(b *buffer.Buffer) error {
		_, err := b.Push("tags", "admin")
		return err
	}))
	b, err := s.Open(id)
	require.NoError(t, err)
	tag, ok, err := b.Get("tags.0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "admin", tag)

	replacement := build(t, s, func(b *buffer.Buffer) error { return b.Set("name", "Bob") })
	require.NoError(t, s.Update(id, replacement))
	got, err = s.Read(id)
	require.NoError(t, err)
	assert.Equal(t, replacement, got)

	require.NoError(t, s.Delete(id))
	_, err = s.Read(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(id), ErrNotFound)
	assert.ErrorIs(t, s.Update(id, replacement), ErrNotFound)
}

func TestCreateRejectsInvalidBuffer(t *testing.T) {
	s := openStore(t, userSchema)
	_, err := s.Create([]byte{0, 0})
	var be *buffer.BufferBoundsError
	assert.ErrorAs(t, err, &be)

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.Documents)
}

func TestMutateFailureStoresNothing(t *testing.T) {
	s := openStore(t, userSchema)
	data := build(t, s, func(b *buffer.Buffer) error { return b.Set("name", "Alice") })
	id, err := s.Create(data)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Mutate(id, func(b *buffer.Buffer) error {
		if err := b.Set("name", "changed"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Read(id)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestScanSortOrder(t *testing.T) {
	s := openStore(t, rankSchema)
	rows := [][]any{{3, "c"}, {-1, "z"}, {3, "a"}, {0, ""}, {-100, "m"}}
	for _, row := range rows {
		data := build(t, s, func(b *buffer.Buffer) error { return b.Set("", row) })
		_, err := s.Create(data)
		require.NoError(t, err)
	}

	var got [][]any
	err := s.Scan(context.Background(), func(_ ksuid.KSUID, data []byte) error {
		b, err := s.Factory().OpenBuffer(data)
		if err != nil {
			return err
		}
		v, _, err := b.Get("")
		if err != nil {
			return err
		}
		got = append(got, v.([]any))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{int32(-100), "m"},
		{int32(-1), "z"},
		{int32(0), ""},
		{int32(3), "a"},
		{int32(3), "c"},
	}, got)
}

func TestScanFollowsUpdates(t *testing.T) {
	s := openStore(t, rankSchema)
	first, err := s.Create(build(t, s, func(b *buffer.Buffer) error { return b.Set("", []any{1, "x"}) }))
	require.NoError(t, err)
	second, err := s.Create(build(t, s, func(b *buffer.Buffer) error { return b.Set("", []any{2, "x"}) }))
	require.NoError(t, err)

	require.NoError(t, s.Mutate(first, func(b *buffer.Buffer) error { return b.Set("0", 5) }))

	var order []ksuid.KSUID
	require.NoError(t, s.Scan(context.Background(), func(id ksuid.KSUID, _ []byte) error {
		order = append(order, id)
		return nil
	}))
	assert.Equal(t, []ksuid.KSUID{second, first}, order, "the old index entry is removed")

	require.NoError(t, s.Delete(second))
	order = nil
	require.NoError(t, s.Scan(context.Background(), func(id ksuid.KSUID, _ []byte) error {
		order = append(order, id)
		return nil
	}))
	assert.Equal(t, []ksuid.KSUID{first}, order)
}

func TestScanStopsOnError(t *testing.T) {
	s := openStore(t, userSchema)
	for i := 0; i < 3; i++ {
		_, err := s.Create(build(t, s, func(b *buffer.Buffer) error { return b.Set("name", "n") }))
		require.NoError(t, err)
	}

	stop := errors.New("stop")
	calls := 0
	err := s.Scan(context.Background(), func(ksuid.KSUID, []byte) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Scan(ctx, func(ksuid.KSUID, []byte) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompactAll(t *testing.T) {
	s := openStore(t, userSchema)
	var ids []ksuid.KSUID
	for i := 0; i < 10; i++ {
		data := build(t, s, func(b *buffer.Buffer) error {
			for _, name := range []string{"a", "bb", "ccc"} {
				if err := b.Set("name", name); err != nil {
					return err
				}
			}
			return nil
		})
		id, err := s.Create(data)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	clean, err := s.Create(build(t, s, func(b *buffer.Buffer) error { return b.Set("name", "x") }))
	require.NoError(t, err)

	stats, err := s.CompactAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 11, stats.Documents)
	assert.Equal(t, 10, stats.Rewritten)
	assert.Less(t, stats.After, stats.Before)

	for _, id := range append(ids, clean) {
		b, err := s.Open(id)
		require.NoError(t, err)
		sizes, err := b.CalcBytes()
		require.NoError(t, err)
		assert.Zero(t, sizes.Reclaimable())
	}

	again, err := s.CompactAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Rewritten)
	assert.Equal(t, again.Before, again.After)
}

func TestReopenChecksFingerprint(t *testing.T) {
	dir := t.TempDir()
	f1, err := factory.NewFromJSON([]byte(userSchema))
	require.NoError(t, err)
	s1, err := Open(Config{Path: dir}, f1, nil)
	require.NoError(t, err)
	id, err := s1.Create(build(t, s1, func(b *buffer.Buffer) error { return b.Set("name", "a") }))
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	f2, err := factory.NewFromJSON([]byte(`{"type": "table", "columns": [["name", {"type": "bytes"}]]}`))
	require.NoError(t, err)
	s2, err := Open(Config{Path: dir}, f2, nil)
	require.NoError(t, err)
	defer s2.Close()

	_, err = s2.Read(id)
	assert.Error(t, err)
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("d0"), prefixEnd([]byte("d/")))
	assert.Equal(t, []byte{0x02}, prefixEnd([]byte{0x01, 0xFF}))
	assert.Nil(t, prefixEnd([]byte{0xFF, 0xFF}))
}

func TestSortIndexKey(t *testing.T) {
	id := ksuid.New()
	for _, sortKey := range [][]byte{{}, {0x00}, {0x01, 0x00, 0x02}, []byte("alice")} {
		gotKey, gotID, err := splitIndexKey(sortIndexKey(sortKey, id))
		require.NoError(t, err)
		assert.Equal(t, sortKey, gotKey)
		assert.Equal(t, id, gotID)
	}

	// Shorter sort keys order first even when a longer key's next byte is
	// smaller than the id that follows.
	ordered := [][]byte{{0x61}, {0x61, 0x00}, {0x61, 0x00, 0x00}, {0x61, 0x01}, {0x62}}
	for i := 1; i < len(ordered); i++ {
		lo := sortIndexKey(ordered[i-1], ksuid.Max)
		hi := sortIndexKey(ordered[i], ksuid.Nil)
		assert.Negative(t, bytes.Compare(lo, hi), "%x < %x", ordered[i-1], ordered[i])
	}

	for _, bad := range [][]byte{[]byte("s"), []byte("s/abc"), append(sortIndexKey([]byte("a"), id), 0x01)} {
		_, _, err := splitIndexKey(bad)
		assert.Error(t, err, "%x", bad)
	}
}
