package jsonl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/c5t/c5t/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_Canonical(t *testing.T) {
	desc := "a <b> & c"
	p := &types.Project{
		ID:           "0000000a",
		Title:        "Cafe\u0301",
		Description:  &desc,
		Tags:         []string{"x"},
		ExternalRefs: []string{},
		CreatedAt:    "2025-03-01 10:00:00",
		UpdatedAt:    "2025-03-01 10:00:00",
	}

	line, err := Marshal(p)
	require.NoError(t, err)

	want := `{"id":"0000000a","title":"Cafe` + "\u0301" + `","description":"a <b> & c","tags":["x"],"external_refs":[],"created_at":"2025-03-01 10:00:00","updated_at":"2025-03-01 10:00:00"}` + "\n"
	assert.Equal(t, want, string(line))

	again, err := Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, line, again)
}

func TestMarshal_InvalidUTF8(t *testing.T) {
	p := &types.Project{
		ID:           "0000000a",
		Title:        "bad \xff\xfe title",
		Tags:         []string{},
		ExternalRefs: []string{},
		CreatedAt:    "2025-03-01 10:00:00",
		UpdatedAt:    "2025-03-01 10:00:00",
	}

	_, err := Marshal(p)
	require.ErrorIs(t, err, ErrInvalidText)
	assert.Contains(t, err.Error(), "title")

	p.Title = "ok"
	p.Tags = []string{"fine", "\xc3"}
	_, err = Marshal(p)
	require.ErrorIs(t, err, ErrInvalidText)
	assert.Contains(t, err.Error(), "tags[1]")
}

func TestCheckText_ReportsUnnormalized(t *testing.T) {
	desc := "Cafe\u0301"
	p := &types.Project{
		ID:          "0000000a",
		Title:       "Caf\u00e9",
		Description: &desc,
	}

	fields, err := CheckText(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"description"}, fields)
}

func TestDecodeEntity_KeepsText(t *testing.T) {
	title := "Cafe\u0301 <b> & \u00e9"
	p := &types.Project{
		ID:           "0000000a",
		Title:        title,
		Tags:         []string{},
		ExternalRefs: []string{},
		CreatedAt:    "2025-03-01 10:00:00",
		UpdatedAt:    "2025-03-01 10:00:00",
	}
	line, err := Marshal(p)
	require.NoError(t, err)

	e, err := DecodeEntity(types.KindProject, line)
	require.NoError(t, err)
	assert.Equal(t, p, e)
}

func TestEncode(t *testing.T) {
	links := []types.Link{
		{Relation: types.RelNoteRepo, A: "0000000a", B: "0000000b"},
		{Relation: types.RelNoteRepo, A: "0000000c", B: "0000000d"},
	}
	data, err := Encode(links)
	require.NoError(t, err)
	assert.Equal(t,
		`{"note_id":"0000000a","repo_id":"0000000b"}`+"\n"+`{"note_id":"0000000c","repo_id":"0000000d"}`+"\n",
		string(data))

	empty, err := Encode([]types.Link{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUnmarshal_TrailingData(t *testing.T) {
	var v map[string]any
	require.NoError(t, Unmarshal([]byte(`{"a":1}  `), &v))
	assert.Error(t, Unmarshal([]byte(`{"a":1} {"b":2}`), &v))
	assert.Error(t, Unmarshal([]byte(`{"a":`), &v))
}

func TestDecodeEntity(t *testing.T) {
	line := []byte(`{"id":"0000000c","list_id":"0000000b","title":"Ship","status":"todo","created_at":"2025-03-01 10:00:00","updated_at":"2025-03-01 10:00:00","last_activity_at":"2025-03-02 10:00:00"}`)

	e, err := DecodeEntity(types.KindTask, line)
	require.NoError(t, err)

	task, ok := e.(*types.Task)
	require.True(t, ok)
	assert.Equal(t, "Ship", task.Title)
	assert.Empty(t, task.LastActivityAt, "derived field must be cleared")
	assert.NotNil(t, task.Tags)
	assert.NotNil(t, task.ExternalRefs)
}

func TestDecodeEntity_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":       `{"id":`,
		"wrong type":     `{"id":12}`,
		"missing title":  `{"id":"0000000c","list_id":"0000000b","status":"todo","created_at":"x","updated_at":"y"}`,
		"array":          `[1,2,3]`,
		"trailing value": `{"id":"0000000c"} 1`,
		"invalid utf-8":  "{\"id\":\"0000000c\",\"title\":\"\xff\"}",
	}
	for name, line := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEntity(types.KindTask, []byte(line))
			assert.Error(t, err)
		})
	}
}

func TestPeek(t *testing.T) {
	id, ts := Peek([]byte(`{"id":"0000000a","updated_at":"2025-01-01 00:00:00","status":42}`))
	assert.Equal(t, "0000000a", id)
	assert.Equal(t, "2025-01-01 00:00:00", ts)

	id, ts = Peek([]byte(`garbage`))
	assert.Empty(t, id)
	assert.Empty(t, ts)
}

func TestReadLines(t *testing.T) {
	input := "first\n\n  \nsecond\r\nthird"
	lines, err := ReadLines(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, 1, lines[0].Number)
	assert.Equal(t, "first", string(lines[0].Data))
	assert.Equal(t, 4, lines[1].Number)
	assert.Equal(t, "second", string(lines[1].Data))
	assert.Equal(t, 5, lines[2].Number)
	assert.Equal(t, "third", string(lines[2].Data))
}

func TestReadLines_LongLine(t *testing.T) {
	long := strings.Repeat("x", 1<<20)
	lines, err := ReadLines(strings.NewReader(long + "\n"))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Len(t, lines[0].Data, 1<<20)
}

func TestReadFile_Missing(t *testing.T) {
	lines, err := ReadFile(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestWriteAll_Replaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "task.jsonl")

	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0644))
	require.NoError(t, WriteAll(dir, map[string][]byte{"task.jsonl": []byte("new\n")}, 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(data))
	assertNoTempFiles(t, dir)
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sync")
	files := map[string][]byte{
		"a.jsonl": []byte("a\n"),
		"b.jsonl": []byte(""),
	}

	require.NoError(t, WriteAll(dir, files, 0644))

	for name, want := range files {
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got))
	}
	assertNoTempFiles(t, dir)
}

func TestWriteAll_FailureLeavesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.jsonl")
	require.NoError(t, os.WriteFile(existing, []byte("keep\n"), 0644))

	files := map[string][]byte{
		"a.jsonl":           []byte("replaced\n"),
		"missing/sub.jsonl": []byte("x\n"),
	}
	require.Error(t, WriteAll(dir, files, 0644))

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep\n", string(data))
	assertNoTempFiles(t, dir)
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, TempFilePrefix+"*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
