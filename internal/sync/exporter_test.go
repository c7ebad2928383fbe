package sync

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c5t/c5t/internal/jsonl"
	"github.com/c5t/c5t/internal/store"
	"github.com/c5t/c5t/internal/types"
)

func TestExport_Golden(t *testing.T) {
	entities, links := fixture()
	for _, e := range entities {
		if n, ok := e.(*types.Note); ok && n.ID == "00000010" {
			n.Title = "Cafe\u0301" // decomposed; written unchanged
		}
	}
	st := store.NewMemory()
	seed(t, st, entities, links)

	dir := t.TempDir()
	snap, err := NewExporter(st, nil).Export(context.Background(), dir)
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	for _, name := range []string{"project", "task_list", "task", "note", "project_repo"} {
		data, err := os.ReadFile(filepath.Join(dir, name+".jsonl"))
		require.NoError(t, err)
		g.Assert(t, "export_"+name, data)
	}

	assert.Equal(t, 8, snap.Records())
	assert.Equal(t, 2, snap.Counts[types.KindTask])
	assert.Equal(t, 1, snap.LinkCounts[types.RelProjectRepo])
	assert.Equal(t, 0, snap.LinkCounts[types.RelNoteRepo])
}

func TestExport_WritesEveryFile(t *testing.T) {
	dir := t.TempDir()
	snap, err := NewExporter(store.NewMemory(), nil).Export(context.Background(), dir)
	require.NoError(t, err)

	want := []string{ManifestFile}
	for _, k := range types.Kinds {
		want = append(want, k.FileName())
	}
	for _, r := range types.Relations {
		want = append(want, r.FileName())
	}
	assert.ElementsMatch(t, want, snap.Paths())

	for _, name := range want {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	m, found, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, FormatVersion, m.FormatVersion)
	assert.Len(t, m.Kinds, len(types.Kinds))
}

func TestExport_Idempotent(t *testing.T) {
	st := seededStore(t)
	x := NewExporter(st, nil)
	ctx := context.Background()

	first := t.TempDir()
	_, err := x.Export(ctx, first)
	require.NoError(t, err)
	_, err = x.Export(ctx, first)
	require.NoError(t, err)

	second := t.TempDir()
	_, err = x.Export(ctx, second)
	require.NoError(t, err)

	entries, err := os.ReadDir(first)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), jsonl.TempFilePrefix), "leftover %s", e.Name())

		a, err := os.ReadFile(filepath.Join(first, e.Name()))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(second, e.Name()))
		require.NoError(t, err)
		assert.Equal(t, a, b, e.Name())
	}
}

func TestExport_DoesNotPersistDerivedFields(t *testing.T) {
	st := seededStore(t)
	_, err := NewExporter(st, nil).Export(context.Background(), t.TempDir())
	require.NoError(t, err)

	parent := getTask(t, st, "0000000c")
	assert.Empty(t, parent.LastActivityAt)
}

func TestExport_CollisionAborts(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, []types.Entity{
		&types.Project{
			ID: "0000000a", Title: "p", Tags: []string{}, ExternalRefs: []string{},
			CreatedAt: "2025-03-01 10:00:00", UpdatedAt: "2025-03-01 10:00:00",
		},
		&types.Skill{
			ID: "0000000a", Name: "s", Description: "d", Content: "c", Tags: []string{},
			CreatedAt: "2025-03-01 10:00:00", UpdatedAt: "2025-03-01 10:00:00",
		},
	}, nil)

	dir := t.TempDir()
	_, err := NewExporter(st, nil).Export(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStructuralViolation)
	assert.Equal(t, "0000000a", err.(*Error).ID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing may be written on failure")
}

func TestExport_InvalidTextAborts(t *testing.T) {
	ctx := context.Background()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "c5t.db"))
	require.NoError(t, err)
	defer st.Close()

	entities, links := fixture()
	seed(t, st, entities, links)

	dir := t.TempDir()
	snap, err := NewExporter(st, nil).Export(ctx, dir)
	require.NoError(t, err)
	before := make(map[string][]byte)
	for _, name := range snap.Paths() {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		before[name] = data
	}

	require.NoError(t, st.Upsert(ctx, &types.Project{
		ID: "000000aa", Title: "bad \xff\xfe title", Tags: []string{}, ExternalRefs: []string{},
		CreatedAt: "2025-03-01 10:00:00", UpdatedAt: "2025-03-02 10:00:00",
	}))

	_, err = NewExporter(st, nil).Export(ctx, dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncodingFailure)
	assert.ErrorIs(t, err, jsonl.ErrInvalidText)
	assert.Equal(t, "000000aa", err.(*Error).ID)

	for name, want := range before {
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, want, got, "%s changed after a failed export", name)
	}
}

func TestExport_CycleAborts(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, []types.Entity{
		&types.Note{
			ID: "00000001", Title: "a", Content: "", Tags: []string{}, ParentID: strPtr("00000002"),
			CreatedAt: "2025-03-01 10:00:00", UpdatedAt: "2025-03-01 10:00:00",
		},
		&types.Note{
			ID: "00000002", Title: "b", Content: "", Tags: []string{}, ParentID: strPtr("00000001"),
			CreatedAt: "2025-03-01 10:00:00", UpdatedAt: "2025-03-01 10:00:00",
		},
	}, nil)

	_, err := NewExporter(st, nil).Snapshot(context.Background())
	require.Error(t, err)
	assert.Equal(t, StructuralViolation, CodeOf(err))
	assert.Equal(t, types.KindNote, err.(*Error).Kind)
}
