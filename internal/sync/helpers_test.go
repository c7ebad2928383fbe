package sync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/c5t/c5t/internal/jsonl"
	"github.com/c5t/c5t/internal/store"
	"github.com/c5t/c5t/internal/types"
	"github.com/c5t/c5t/internal/vcs"
	_ "github.com/c5t/c5t/internal/vcs/git"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// fixture returns one record of every kind, wired together, plus the join
// records between them.
func fixture() ([]types.Entity, []types.Link) {
	entities := []types.Entity{
		&types.Project{
			ID: "0000000a", Title: "c5t", Description: strPtr("sync engine"),
			Tags: []string{"go"}, ExternalRefs: []string{"GH-1"},
			CreatedAt: "2025-03-01 10:00:00", UpdatedAt: "2025-03-01 10:00:00",
		},
		&types.Repo{
			ID: "0000000f", Remote: "git@example.com:c5t.git", Path: strPtr("/src/c5t"),
			Tags: []string{}, CreatedAt: "2025-03-01 10:00:00", UpdatedAt: "2025-03-01 10:00:00",
		},
		&types.TaskList{
			ID: "0000000b", ProjectID: "0000000a", Title: "MVP", Notes: strPtr("ship it"),
			Tags: []string{}, ExternalRefs: []string{}, Status: types.TaskListActive,
			CreatedAt: "2025-03-01 10:00:00", UpdatedAt: "2025-03-01 10:00:00",
		},
		&types.Task{
			ID: "0000000c", ListID: "0000000b", Title: "Parent", Status: types.TaskInProgress,
			Priority: intPtr(2), Tags: []string{"a", "b"}, ExternalRefs: []string{},
			CreatedAt: "2025-03-01 10:00:00", StartedAt: strPtr("2025-03-01 10:05:00"),
			UpdatedAt: "2025-03-01 10:05:00",
		},
		&types.Task{
			ID: "0000000d", ListID: "0000000b", ParentID: strPtr("0000000c"), Title: "Child",
			Status: types.TaskDone, Tags: []string{}, ExternalRefs: []string{},
			CreatedAt: "2025-03-01 10:00:00", CompletedAt: strPtr("2025-03-01 11:00:00"),
			UpdatedAt: "2025-03-01 11:00:00",
		},
		&types.Note{
			ID: "00000010", Title: "Design", Content: "# Design\n<b>bold</b> & more", Tags: []string{},
			CreatedAt: "2025-03-01 10:00:00", UpdatedAt: "2025-03-01 10:00:00",
		},
		&types.Note{
			ID: "00000011", Title: "Details", Content: "", Tags: []string{}, ParentID: strPtr("00000010"),
			Idx: intPtr(0), CreatedAt: "2025-03-01 10:00:00", UpdatedAt: "2025-03-01 12:00:00",
		},
		&types.Skill{
			ID: "00000020", Name: "deploy", Description: "How to deploy", Content: "---\nname: deploy\n---\n",
			Tags: []string{"ops"}, CreatedAt: "2025-03-01 10:00:00", UpdatedAt: "2025-03-01 10:00:00",
		},
	}
	links := []types.Link{
		{Relation: types.RelProjectRepo, A: "0000000a", B: "0000000f"},
		{Relation: types.RelProjectNote, A: "0000000a", B: "00000010"},
		{Relation: types.RelTaskListRepo, A: "0000000b", B: "0000000f"},
		{Relation: types.RelProjectSkill, A: "0000000a", B: "00000020"},
	}
	return entities, links
}

// seededStore returns a memory store holding the fixture.
func seededStore(t *testing.T) *store.Memory {
	t.Helper()
	st := store.NewMemory()
	entities, links := fixture()
	seed(t, st, entities, links)
	return st
}

func seed(t *testing.T, st store.Store, entities []types.Entity, links []types.Link) {
	t.Helper()
	ctx := context.Background()
	for _, e := range entities {
		require.NoError(t, st.Upsert(ctx, e), "upsert %s %s", e.EntityKind(), e.EntityID())
	}
	for _, l := range links {
		_, err := st.AddLink(ctx, l)
		require.NoError(t, err, "add link %s", l)
	}
}

// task builds a task in list 0000000b.
func task(id, title, updated string) *types.Task {
	return &types.Task{
		ID: id, ListID: "0000000b", Title: title, Status: types.TaskTodo,
		Tags: []string{}, ExternalRefs: []string{},
		CreatedAt: "2025-03-01 09:00:00", UpdatedAt: updated,
	}
}

// writeLines writes raw lines to name in dir.
func writeLines(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	data := strings.Join(lines, "\n")
	if len(lines) > 0 {
		data += "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644))
}

// writeRecords writes records as a canonical interchange file.
func writeRecords(t *testing.T, dir string, kind types.Kind, records ...types.Entity) {
	t.Helper()
	data, err := jsonl.Encode(records)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, kind.FileName()), data, 0o644))
}

func mustLine(t *testing.T, v any) string {
	t.Helper()
	line, err := jsonl.Marshal(v)
	require.NoError(t, err)
	return strings.TrimSuffix(string(line), "\n")
}

func getTask(t *testing.T, st store.Store, id string) *types.Task {
	t.Helper()
	e, err := st.Get(context.Background(), types.KindTask, id)
	require.NoError(t, err)
	return e.(*types.Task)
}

// fixedClock always returns the same instant.
func fixedClock(ts string) Clock {
	at, err := time.Parse(types.TimestampLayout, ts)
	if err != nil {
		panic(err)
	}
	return ClockFunc(func() time.Time { return at })
}

// setupGitEnv isolates git from the user's configuration and gives commits
// a fixed identity.
func setupGitEnv(t *testing.T) {
	t.Helper()
	if !vcs.IsGitAvailable() {
		t.Skip("git not installed")
	}
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_AUTHOR_NAME", "Test User")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "Test User")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@example.com")
}

// setupBareRemote creates an empty bare repository to push to.
func setupBareRemote(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "remote.git")
	out, err := exec.Command("git", "init", "--bare", "--quiet", dir).CombinedOutput()
	require.NoError(t, err, "git init --bare: %s", out)
	return dir
}

// newCoordinator returns a git-backed coordinator over st in a fresh
// directory.
func newCoordinator(t *testing.T, st store.Store) *Coordinator {
	t.Helper()
	setupGitEnv(t)
	c, err := New(st, Options{
		Dir:            filepath.Join(t.TempDir(), "sync"),
		NetworkTimeout: 30 * time.Second,
		Clock:          fixedClock("2025-03-01 12:00:00"),
	})
	require.NoError(t, err)
	return c
}

// git runs a git command in dir and returns its trimmed output.
func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

func commitCount(t *testing.T, dir string) string {
	t.Helper()
	return git(t, dir, "rev-list", "--count", "HEAD")
}
