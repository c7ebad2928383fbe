package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/c5t/c5t/internal/vcs"
)

// setupTestEnv isolates git from the user's configuration and gives
// commits a fixed identity.
func setupTestEnv(t *testing.T) {
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

// setupTestRepo creates a temporary git repository for testing
func setupTestRepo(t *testing.T) *Git {
	t.Helper()
	setupTestEnv(t)

	g, err := Init(context.Background(), t.TempDir(), "main")
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	return g
}

// setupBareRemote creates an empty bare repository to push to
func setupBareRemote(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "remote.git")
	if out, err := exec.Command("git", "init", "--bare", "--quiet", dir).CombinedOutput(); err != nil {
		t.Fatalf("failed to init bare repo: %v\n%s", err, out)
	}
	return dir
}

func writeFile(t *testing.T, g *Git, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(g.RepoRoot(), name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func readFile(t *testing.T, g *Git, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(g.RepoRoot(), name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

func commitFile(t *testing.T, g *Git, name, content string) string {
	t.Helper()
	ctx := context.Background()
	writeFile(t, g, name, content)
	if err := g.Add(ctx, []string{name}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	id, err := g.Commit(ctx, vcs.CommitOptions{Message: "update " + name})
	if err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	return id
}

// setupPair returns two repositories sharing one bare remote. The first has
// pushed a commit containing base.
func setupPair(t *testing.T, name, base string) (*Git, *Git) {
	t.Helper()
	ctx := context.Background()
	remote := setupBareRemote(t)

	a := setupTestRepo(t)
	b := setupTestRepo(t)
	for _, g := range []*Git{a, b} {
		if err := g.SetRemote(ctx, "origin", remote); err != nil {
			t.Fatalf("SetRemote() failed: %v", err)
		}
	}

	commitFile(t, a, name, base)
	if err := a.Push(ctx, vcs.PushOptions{}); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}
	if err := b.Pull(ctx, vcs.PullOptions{PreferRemote: true}); err != nil {
		t.Fatalf("Pull() failed: %v", err)
	}
	return a, b
}

func TestInit(t *testing.T) {
	g := setupTestRepo(t)
	ctx := context.Background()

	if g.Name() != vcs.TypeGit {
		t.Errorf("Name() = %v, want %v", g.Name(), vcs.TypeGit)
	}

	out, err := g.Exec(ctx, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		t.Fatalf("Exec() failed: %v", err)
	}
	if branch := vcs.TrimOutput(out); branch != "main" {
		t.Errorf("initial branch = %q, want main", branch)
	}

	head, err := g.HeadCommit(ctx)
	if err != nil {
		t.Fatalf("HeadCommit() failed: %v", err)
	}
	if head != "" {
		t.Errorf("HeadCommit() on unborn branch = %q, want empty", head)
	}
}

func TestNew_NotARepoRoot(t *testing.T) {
	g := setupTestRepo(t)

	if _, err := New(t.TempDir()); !errors.Is(err, vcs.ErrNotInVCS) {
		t.Errorf("New(empty dir) error = %v, want ErrNotInVCS", err)
	}

	nested := filepath.Join(g.RepoRoot(), "nested")
	if err := os.Mkdir(nested, 0755); err != nil {
		t.Fatalf("failed to create nested dir: %v", err)
	}
	if _, err := New(nested); !errors.Is(err, vcs.ErrNotInVCS) {
		t.Errorf("New(nested dir) error = %v, want ErrNotInVCS", err)
	}
}

func TestOpenViaRegistry(t *testing.T) {
	g := setupTestRepo(t)

	v, err := vcs.Open(vcs.TypeGit, g.RepoRoot())
	if err != nil {
		t.Fatalf("vcs.Open() failed: %v", err)
	}
	if v.RepoRoot() != g.RepoRoot() {
		t.Errorf("RepoRoot() = %v, want %v", v.RepoRoot(), g.RepoRoot())
	}
}

func TestVersion(t *testing.T) {
	g := setupTestRepo(t)

	version, err := g.Version()
	if err != nil {
		t.Fatalf("Version() failed: %v", err)
	}
	if version == "" || strings.HasPrefix(version, "git version") {
		t.Errorf("Version() = %q", version)
	}
}

func TestHasChangesAndStatus(t *testing.T) {
	g := setupTestRepo(t)
	ctx := context.Background()

	changed, err := g.HasChanges(ctx)
	if err != nil {
		t.Fatalf("HasChanges() failed: %v", err)
	}
	if changed {
		t.Error("HasChanges() = true on empty repo")
	}

	writeFile(t, g, "task.jsonl", "{}\n")
	writeFile(t, g, "other.txt", "x")

	changed, err = g.HasChanges(ctx, "task.jsonl")
	if err != nil {
		t.Fatalf("HasChanges() failed: %v", err)
	}
	if !changed {
		t.Error("HasChanges(task.jsonl) = false, want true")
	}

	statuses, err := g.Status(ctx, "task.jsonl")
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("Status() returned %d entries, want 1", len(statuses))
	}
	if statuses[0].Path != "task.jsonl" || statuses[0].Status != vcs.StatusUntracked {
		t.Errorf("Status()[0] = %+v", statuses[0])
	}

	if err := g.Add(ctx, []string{"task.jsonl"}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	statuses, err = g.Status(ctx, "task.jsonl")
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	if len(statuses) != 1 || statuses[0].StagedCode != vcs.StatusAdded {
		t.Errorf("Status() after Add = %+v", statuses)
	}
}

func TestCommit(t *testing.T) {
	g := setupTestRepo(t)
	ctx := context.Background()

	id := commitFile(t, g, "note.jsonl", "{}\n")
	if id == "" {
		t.Fatal("Commit() returned empty id")
	}

	head, err := g.HeadCommit(ctx)
	if err != nil {
		t.Fatalf("HeadCommit() failed: %v", err)
	}
	if head != id {
		t.Errorf("HeadCommit() = %s, want %s", head, id)
	}

	_, err = g.Commit(ctx, vcs.CommitOptions{Message: "again"})
	if !errors.Is(err, vcs.ErrNothingToCommit) {
		t.Errorf("Commit() with nothing staged error = %v, want ErrNothingToCommit", err)
	}

	if _, err := g.Commit(ctx, vcs.CommitOptions{}); err == nil {
		t.Error("Commit() without message should fail")
	}
}

func TestAdd_StagesDeletion(t *testing.T) {
	g := setupTestRepo(t)
	ctx := context.Background()

	commitFile(t, g, "skill.jsonl", "{}\n")
	if err := os.Remove(filepath.Join(g.RepoRoot(), "skill.jsonl")); err != nil {
		t.Fatalf("failed to remove file: %v", err)
	}
	if err := g.Add(ctx, []string{"skill.jsonl"}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if _, err := g.Commit(ctx, vcs.CommitOptions{Message: "remove"}); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	if changed, _ := g.HasChanges(ctx); changed {
		t.Error("HasChanges() = true after committing deletion")
	}
}

func TestRemotes(t *testing.T) {
	g := setupTestRepo(t)
	ctx := context.Background()

	if _, err := g.RemoteURL(ctx, "origin"); !errors.Is(err, vcs.ErrNoRemote) {
		t.Errorf("RemoteURL() error = %v, want ErrNoRemote", err)
	}

	if err := g.SetRemote(ctx, "origin", "https://example.com/a.git"); err != nil {
		t.Fatalf("SetRemote() failed: %v", err)
	}
	if err := g.SetRemote(ctx, "", "https://example.com/b.git"); err != nil {
		t.Fatalf("SetRemote() again failed: %v", err)
	}

	url, err := g.RemoteURL(ctx, "")
	if err != nil {
		t.Fatalf("RemoteURL() failed: %v", err)
	}
	if url != "https://example.com/b.git" {
		t.Errorf("RemoteURL() = %q, want b.git", url)
	}
}

func TestPushPull(t *testing.T) {
	a, b := setupPair(t, "project.jsonl", "{\"id\":\"0000000a\"}\n")
	ctx := context.Background()

	if got := readFile(t, b, "project.jsonl"); got != "{\"id\":\"0000000a\"}\n" {
		t.Errorf("pulled content = %q", got)
	}

	headA, _ := a.HeadCommit(ctx)
	headB, _ := b.HeadCommit(ctx)
	if headA != headB {
		t.Errorf("HeadCommit() differs after pull: %s vs %s", headA, headB)
	}
}

func TestPull_NoRemote(t *testing.T) {
	g := setupTestRepo(t)
	err := g.Pull(context.Background(), vcs.PullOptions{})
	if !errors.Is(err, vcs.ErrNoRemote) {
		t.Errorf("Pull() error = %v, want ErrNoRemote", err)
	}
}

func TestPull_MissingRemoteBranch(t *testing.T) {
	g := setupTestRepo(t)
	ctx := context.Background()
	if err := g.SetRemote(ctx, "origin", setupBareRemote(t)); err != nil {
		t.Fatalf("SetRemote() failed: %v", err)
	}

	err := g.Pull(ctx, vcs.PullOptions{})
	if !errors.Is(err, vcs.ErrRemoteRefNotFound) {
		t.Errorf("Pull() error = %v, want ErrRemoteRefNotFound", err)
	}
}

func TestPull_Unreachable(t *testing.T) {
	g := setupTestRepo(t)
	ctx := context.Background()
	missing := filepath.Join(t.TempDir(), "gone.git")
	if err := g.SetRemote(ctx, "origin", missing); err != nil {
		t.Fatalf("SetRemote() failed: %v", err)
	}

	err := g.Pull(ctx, vcs.PullOptions{})
	if !errors.Is(err, vcs.ErrNetwork) {
		t.Errorf("Pull() error = %v, want ErrNetwork", err)
	}
}

func TestPush_Rejected(t *testing.T) {
	a, b := setupPair(t, "task.jsonl", "base\n")
	ctx := context.Background()

	commitFile(t, a, "task.jsonl", "from a\n")
	if err := a.Push(ctx, vcs.PushOptions{}); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}

	commitFile(t, b, "note.jsonl", "from b\n")
	err := b.Push(ctx, vcs.PushOptions{})
	if !errors.Is(err, vcs.ErrPushRejected) {
		t.Fatalf("Push() error = %v, want ErrPushRejected", err)
	}

	// Pull then push succeeds
	if err := b.Pull(ctx, vcs.PullOptions{PreferRemote: true}); err != nil {
		t.Fatalf("Pull() failed: %v", err)
	}
	if err := b.Push(ctx, vcs.PushOptions{}); err != nil {
		t.Errorf("Push() after pull failed: %v", err)
	}
}

func TestPull_PreferRemoteResolvesConflict(t *testing.T) {
	a, b := setupPair(t, "task.jsonl", "line\n")
	ctx := context.Background()

	commitFile(t, a, "task.jsonl", "remote edit\n")
	if err := a.Push(ctx, vcs.PushOptions{}); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}
	commitFile(t, b, "task.jsonl", "local edit\n")

	if err := b.Pull(ctx, vcs.PullOptions{PreferRemote: true}); err != nil {
		t.Fatalf("Pull() failed: %v", err)
	}
	if got := readFile(t, b, "task.jsonl"); got != "remote edit\n" {
		t.Errorf("content after pull = %q, want remote edit", got)
	}
	if b.isMerging() {
		t.Error("merge still in progress after Pull()")
	}
}

func TestPull_ConflictAborted(t *testing.T) {
	a, b := setupPair(t, "task.jsonl", "line\n")
	ctx := context.Background()

	commitFile(t, a, "task.jsonl", "remote edit\n")
	if err := a.Push(ctx, vcs.PushOptions{}); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}
	commitFile(t, b, "task.jsonl", "local edit\n")

	err := b.Pull(ctx, vcs.PullOptions{})
	if !errors.Is(err, vcs.ErrConflicts) {
		t.Fatalf("Pull() error = %v, want ErrConflicts", err)
	}
	if b.isMerging() {
		t.Error("merge not aborted")
	}
	if got := readFile(t, b, "task.jsonl"); got != "local edit\n" {
		t.Errorf("content after aborted pull = %q, want local edit", got)
	}
}

func TestPull_RemoteDeletionWins(t *testing.T) {
	a, b := setupPair(t, "note.jsonl", "line\n")
	ctx := context.Background()

	if err := os.Remove(filepath.Join(a.RepoRoot(), "note.jsonl")); err != nil {
		t.Fatalf("failed to remove file: %v", err)
	}
	if err := a.Add(ctx, []string{"note.jsonl"}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if _, err := a.Commit(ctx, vcs.CommitOptions{Message: "drop"}); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	if err := a.Push(ctx, vcs.PushOptions{}); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}

	commitFile(t, b, "note.jsonl", "local edit\n")
	if err := b.Pull(ctx, vcs.PullOptions{PreferRemote: true}); err != nil {
		t.Fatalf("Pull() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(b.RepoRoot(), "note.jsonl")); !os.IsNotExist(err) {
		t.Errorf("note.jsonl should be deleted, stat error = %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	output := " M task.jsonl\n?? note.jsonl\nR  old.jsonl -> new.jsonl\nUU project.jsonl\n"
	statuses := parseStatus(output)
	if len(statuses) != 4 {
		t.Fatalf("parseStatus() returned %d entries, want 4", len(statuses))
	}

	want := []vcs.FileStatus{
		{Path: "task.jsonl", Status: vcs.StatusModified, StagedCode: vcs.StatusUnmodified},
		{Path: "note.jsonl", Status: vcs.StatusUntracked, StagedCode: vcs.StatusUntracked},
		{Path: "new.jsonl", Status: vcs.StatusUnmodified, StagedCode: vcs.StatusRenamed},
		{Path: "project.jsonl", Status: vcs.StatusConflict, StagedCode: vcs.StatusConflict},
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("parseStatus()[%d] = %+v, want %+v", i, statuses[i], want[i])
		}
	}
}
