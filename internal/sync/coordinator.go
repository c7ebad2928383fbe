package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/c5t/c5t/internal/reconcile"
	"github.com/c5t/c5t/internal/store"
	"github.com/c5t/c5t/internal/types"
	"github.com/c5t/c5t/internal/vcs"
)

// DefaultNetworkTimeout bounds a single push or pull.
const DefaultNetworkTimeout = 2 * time.Minute

// Clock supplies the time used for default commit messages.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Options configures a Coordinator.
type Options struct {
	// Dir is the working area holding the interchange files (required)
	Dir string

	// VCS selects the repository backend. Empty means git.
	VCS vcs.Type

	// Remote is the remote name. Empty means "origin".
	Remote string

	// Branch is the branch sync commits go to. Empty means "main".
	Branch string

	// NetworkTimeout bounds each push or pull on top of the caller's
	// context. Zero means DefaultNetworkTimeout.
	NetworkTimeout time.Duration

	// Comparator orders mutation timestamps. Nil means
	// reconcile.TimestampComparator.
	Comparator reconcile.Comparator

	// Clock is used for default commit messages. Nil means SystemClock.
	Clock Clock

	// Logger receives progress and per-record problems. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// Coordinator runs the user-visible sync operations against one working
// area and one entity store.
//
// A Coordinator is not safe for concurrent use, and two coordinators must
// not share a working area at the same time. Callers serialize invocations
// themselves, for example with a lock file.
type Coordinator struct {
	store    store.Store
	opts     Options
	exporter *Exporter
	importer *Importer
	logger   *slog.Logger
}

// New creates a Coordinator. The VCS backend must be registered, usually by
// importing internal/vcs/git or internal/vcs/jj.
func New(st store.Store, opts Options) (*Coordinator, error) {
	if st == nil {
		return nil, errors.New("sync: store is required")
	}
	if opts.Dir == "" {
		return nil, errors.New("sync: working directory is required")
	}
	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("sync: invalid working directory: %w", err)
	}
	opts.Dir = dir

	if opts.VCS == "" {
		opts.VCS = vcs.TypeGit
	}
	if !vcs.IsRegistered(opts.VCS) {
		return nil, fmt.Errorf("sync: %w: %s", vcs.ErrUnknownType, opts.VCS)
	}
	opts.Remote = vcs.RemoteOrDefault(opts.Remote)
	opts.Branch = vcs.BranchOrDefault(opts.Branch)
	if opts.NetworkTimeout <= 0 {
		opts.NetworkTimeout = DefaultNetworkTimeout
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Coordinator{
		store:    st,
		opts:     opts,
		exporter: NewExporter(st, opts.Logger),
		importer: NewImporter(st, reconcile.New(opts.Comparator), opts.Logger),
		logger:   opts.Logger,
	}, nil
}

// Dir returns the absolute working area path.
func (c *Coordinator) Dir() string {
	return c.opts.Dir
}

// InitState tells whether Init created the working area.
type InitState int

const (
	// Created means the working area was bound to a new history
	Created InitState = iota

	// AlreadyInitialized means nothing had to be created
	AlreadyInitialized
)

func (s InitState) String() string {
	if s == AlreadyInitialized {
		return "already_initialized"
	}
	return "created"
}

// MarshalText renders the state by name.
func (s InitState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// InitResult is the outcome of Init.
type InitResult struct {
	State     InitState `json:"state" yaml:"state"`
	Dir       string    `json:"dir" yaml:"dir"`
	VCS       vcs.Type  `json:"vcs" yaml:"vcs"`
	Remote    string    `json:"remote" yaml:"remote"`
	RemoteURL string    `json:"remote_url,omitempty" yaml:"remote_url,omitempty"`

	// Warning explains why a requested remote URL was not applied
	Warning string `json:"warning,omitempty" yaml:"warning,omitempty"`

	// Export is the initial export, when the store already held data
	Export *ExportResult `json:"export,omitempty" yaml:"export,omitempty"`
}

// Init binds the working area to a history and, if remoteURL is not empty,
// to a remote. When the store already holds records they are exported and
// committed. Calling Init on an initialized area succeeds with
// AlreadyInitialized; an existing remote is never repointed.
func (c *Coordinator) Init(ctx context.Context, remoteURL string) (*InitResult, error) {
	log := c.runLogger("init")

	res := &InitResult{
		State:  AlreadyInitialized,
		Dir:    c.opts.Dir,
		VCS:    c.opts.VCS,
		Remote: c.opts.Remote,
	}

	if vcs.IsInitialized(c.opts.Dir, c.opts.VCS) {
		repo, err := vcs.Open(c.opts.VCS, c.opts.Dir)
		if err != nil {
			return nil, vcsError("init", err)
		}
		if err := c.bindRemote(ctx, log, repo, remoteURL, res); err != nil {
			return nil, err
		}
		log.Info("working area already initialized", "dir", c.opts.Dir)
		return res, nil
	}

	if err := vcs.CheckAvailable(c.opts.VCS); err != nil {
		return nil, &Error{Code: IOFailure, Op: "init", Err: fmt.Errorf("%s: %w", c.opts.VCS, err)}
	}

	repo, err := vcs.Init(context.WithoutCancel(ctx), c.opts.VCS, c.opts.Dir, c.opts.Branch)
	if err != nil {
		return nil, vcsError("init", err)
	}
	res.State = Created
	log.Info("initialized working area", "dir", c.opts.Dir, "vcs", c.opts.VCS)

	if err := c.bindRemote(ctx, log, repo, remoteURL, res); err != nil {
		return nil, err
	}

	records := 0
	for _, kind := range types.Kinds {
		n, err := store.Count(ctx, c.store, kind)
		if err != nil {
			return nil, &Error{Code: IOFailure, Op: "init", Kind: kind, Err: err}
		}
		records += n
	}
	if records > 0 {
		exp, err := c.export(ctx, log, repo, "sync: initial export")
		if err != nil {
			return nil, err
		}
		res.Export = exp
	}

	return res, nil
}

// bindRemote points the remote at url unless a remote of that name exists.
func (c *Coordinator) bindRemote(ctx context.Context, log *slog.Logger, repo vcs.VCS, url string, res *InitResult) error {
	existing, err := repo.RemoteURL(ctx, c.opts.Remote)
	switch {
	case errors.Is(err, vcs.ErrNoRemote):
		if url == "" {
			return nil
		}
		if err := repo.SetRemote(ctx, c.opts.Remote, url); err != nil {
			return vcsError("init", err)
		}
		res.RemoteURL = url
		log.Info("remote configured", "remote", c.opts.Remote, "url", url)
		return nil
	case err != nil:
		return vcsError("init", err)
	}

	res.RemoteURL = existing
	if url != "" && url != existing {
		res.Warning = fmt.Sprintf("remote %s already points at %s; keeping it instead of %s", c.opts.Remote, existing, url)
		log.Warn("remote url differs, keeping existing", "remote", c.opts.Remote, "existing", existing, "requested", url)
	}
	return nil
}

// PushState describes the network half of an export.
type PushState int

const (
	// PushNotRequested means the export was local only
	PushNotRequested PushState = iota

	// Pushed means the remote branch now matches the local one
	Pushed

	// PushSkipped means there was nothing to push to or nothing to push
	PushSkipped

	// PushFailed means the push did not complete; the local commit stays
	PushFailed
)

var pushStateNames = [...]string{"not_requested", "pushed", "skipped", "failed"}

func (s PushState) String() string {
	if int(s) < len(pushStateNames) {
		return pushStateNames[s]
	}
	return "unknown"
}

// MarshalText renders the state by name.
func (s PushState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ExportOptions configures Export.
type ExportOptions struct {
	// Message is the commit message. Empty means a timestamped default.
	Message string

	// Push transmits the branch to the remote after committing
	Push bool
}

// ExportResult is the outcome of Export.
type ExportResult struct {
	// Committed is false when the files already matched the last commit
	Committed bool   `json:"committed" yaml:"committed"`
	Commit    string `json:"commit,omitempty" yaml:"commit,omitempty"`

	Files      []string               `json:"files" yaml:"files"`
	Counts     map[types.Kind]int     `json:"counts" yaml:"counts"`
	LinkCounts map[types.Relation]int `json:"link_counts" yaml:"link_counts"`
	Push       PushState              `json:"push" yaml:"push"`
	PushReason string                 `json:"push_reason,omitempty" yaml:"push_reason,omitempty"`

	// Integrated is true when the remote had moved on and its changes were
	// imported and re-exported before pushing
	Integrated bool `json:"integrated,omitempty" yaml:"integrated,omitempty"`

	// RemoteRejected counts remote records the integrating import refused.
	// Export writes the store, so they are absent from the pushed files.
	RemoteRejected int `json:"remote_rejected,omitempty" yaml:"remote_rejected,omitempty"`
}

// NoOp returns true if the export recorded nothing new.
func (r *ExportResult) NoOp() bool {
	return !r.Committed
}

// Export writes the store to the working area and commits if any file
// changed. Re-running it without store changes is a successful no-op.
//
// With Push set the branch is then pushed. When the remote has diverged,
// its changes are pulled, imported and re-exported once before pushing
// again. A push failure returns the result together with a NetworkFailure;
// the local commit is kept so the export can simply be repeated.
func (c *Coordinator) Export(ctx context.Context, opts ExportOptions) (*ExportResult, error) {
	repo, err := c.open("export")
	if err != nil {
		return nil, err
	}
	log := c.runLogger("export")
	start := time.Now()

	res, err := c.export(ctx, log, repo, opts.Message)
	if err != nil {
		return nil, err
	}

	if opts.Push {
		if err := c.push(ctx, log, repo, res); err != nil {
			return res, err
		}
	}

	log.Info("export complete",
		"committed", res.Committed,
		"commit", res.Commit,
		"push", res.Push.String(),
		"duration", time.Since(start),
	)
	return res, nil
}

// export writes the snapshot and commits it if anything changed.
func (c *Coordinator) export(ctx context.Context, log *slog.Logger, repo vcs.VCS, message string) (*ExportResult, error) {
	snap, err := c.exporter.Export(ctx, c.opts.Dir)
	if err != nil {
		return nil, err
	}

	res := &ExportResult{
		Files:      snap.Paths(),
		Counts:     snap.Counts,
		LinkCounts: snap.LinkCounts,
	}

	changed, err := repo.HasChanges(ctx, res.Files...)
	if err != nil {
		return nil, vcsError("export", err)
	}
	if !changed {
		log.Info("interchange files unchanged, nothing to commit")
		return res, nil
	}

	// Staging and committing run to completion even if ctx is cancelled
	// meanwhile, so history is never left half written.
	dctx := context.WithoutCancel(ctx)
	if err := repo.Add(dctx, res.Files); err != nil {
		return nil, vcsError("export", err)
	}

	if message == "" {
		message = c.defaultMessage()
	}
	id, err := repo.Commit(dctx, vcs.CommitOptions{
		Message:   message,
		Branch:    c.opts.Branch,
		NoGPGSign: true,
	})
	if errors.Is(err, vcs.ErrNothingToCommit) {
		log.Info("no content change to commit")
		return res, nil
	}
	if err != nil {
		return nil, vcsError("export", err)
	}

	res.Committed = true
	res.Commit = id
	log.Info("committed export", "commit", id, "records", snap.Records())
	return res, nil
}

// push sends the branch to the remote, integrating remote changes once if
// the push is rejected.
func (c *Coordinator) push(ctx context.Context, log *slog.Logger, repo vcs.VCS, res *ExportResult) error {
	if _, err := repo.RemoteURL(ctx, c.opts.Remote); err != nil {
		if errors.Is(err, vcs.ErrNoRemote) {
			res.Push = PushSkipped
			res.PushReason = "no remote configured"
			log.Info("push skipped", "reason", res.PushReason)
			return nil
		}
		return vcsError("export", err)
	}

	head, err := repo.HeadCommit(ctx)
	if err != nil {
		return vcsError("export", err)
	}
	if head == "" {
		res.Push = PushSkipped
		res.PushReason = "nothing committed yet"
		log.Info("push skipped", "reason", res.PushReason)
		return nil
	}

	err = c.pushOnce(ctx, repo)
	if errors.Is(err, vcs.ErrPushRejected) {
		log.Info("push rejected, integrating remote changes")
		if err := c.integrate(ctx, log, repo, res); err != nil {
			res.Push = PushFailed
			return err
		}
		err = c.pushOnce(ctx, repo)
	}
	if err != nil {
		res.Push = PushFailed
		log.Warn("push failed, local commit kept", "error", err)
		return &Error{Code: NetworkFailure, Op: "export", Err: err}
	}

	res.Push = Pushed
	return nil
}

// integrate pulls, imports and re-exports so the next push fast-forwards.
//
// The re-export is a full snapshot of the store. Remote lines the import
// rejected (malformed, orphaned, cyclic) are therefore not carried into
// the pushed files; they are counted in RemoteRejected and logged.
func (c *Coordinator) integrate(ctx context.Context, log *slog.Logger, repo vcs.VCS, res *ExportResult) error {
	if _, _, err := c.pull(ctx, repo); err != nil {
		return pullError("export", err)
	}
	summary, err := c.importer.Import(ctx, c.opts.Dir)
	if err != nil {
		return err
	}
	if n := summary.Rejected(); n > 0 {
		res.RemoteRejected = n
		log.Warn("remote records rejected by import are not carried into the re-export",
			"count", n, "problems", summary.Messages())
	}
	again, err := c.export(ctx, log, repo, "")
	if err != nil {
		return err
	}

	res.Integrated = true
	res.Counts = again.Counts
	res.LinkCounts = again.LinkCounts
	if again.Committed {
		res.Committed = true
		res.Commit = again.Commit
	} else if head, err := repo.HeadCommit(ctx); err == nil {
		res.Commit = head
	}
	return nil
}

func (c *Coordinator) pushOnce(ctx context.Context, repo vcs.VCS) error {
	nctx, cancel := context.WithTimeout(ctx, c.opts.NetworkTimeout)
	defer cancel()
	return repo.Push(nctx, vcs.PushOptions{
		Remote:      c.opts.Remote,
		Ref:         c.opts.Branch,
		SetUpstream: true,
	})
}

// PullState describes the network half of an import.
type PullState int

const (
	// PullNotRequested means the import read the local files only
	PullNotRequested PullState = iota

	// Pulled means the remote branch was integrated first
	Pulled

	// PullSkipped means there was no remote, or the remote branch does
	// not exist yet
	PullSkipped
)

var pullStateNames = [...]string{"not_requested", "pulled", "skipped"}

func (s PullState) String() string {
	if int(s) < len(pullStateNames) {
		return pullStateNames[s]
	}
	return "unknown"
}

// MarshalText renders the state by name.
func (s PullState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ImportOptions configures Import.
type ImportOptions struct {
	// Pull integrates the remote branch before importing
	Pull bool
}

// ImportResult is the outcome of Import.
type ImportResult struct {
	Pull       PullState      `json:"pull" yaml:"pull"`
	PullReason string         `json:"pull_reason,omitempty" yaml:"pull_reason,omitempty"`
	Head       string         `json:"head,omitempty" yaml:"head,omitempty"`
	Summary    *ImportSummary `json:"summary" yaml:"summary"`
}

// Import applies the interchange files to the store, after pulling when
// requested. File-level conflicts during the pull are settled in favour of
// the remote; record-level last-write-wins then decides what the store
// keeps. If the pull fails nothing is imported and local state is left as
// it was.
func (c *Coordinator) Import(ctx context.Context, opts ImportOptions) (*ImportResult, error) {
	repo, err := c.open("import")
	if err != nil {
		return nil, err
	}
	log := c.runLogger("import")
	start := time.Now()

	res := &ImportResult{}
	if opts.Pull {
		state, reason, err := c.pull(ctx, repo)
		if err != nil {
			log.Warn("pull failed, nothing imported", "error", err)
			return nil, pullError("import", err)
		}
		res.Pull, res.PullReason = state, reason
		if state == PullSkipped {
			log.Info("pull skipped", "reason", reason)
		}
	}

	if head, err := repo.HeadCommit(ctx); err == nil {
		res.Head = head
	}

	summary, err := c.importer.Import(ctx, c.opts.Dir)
	res.Summary = summary
	if err != nil {
		return res, err
	}

	log.Info("import finished", "pull", res.Pull.String(), "problems", len(summary.Problems), "duration", time.Since(start))
	return res, nil
}

// pull integrates the remote branch. A missing remote or remote branch is
// not an error.
func (c *Coordinator) pull(ctx context.Context, repo vcs.VCS) (PullState, string, error) {
	if _, err := repo.RemoteURL(ctx, c.opts.Remote); err != nil {
		if errors.Is(err, vcs.ErrNoRemote) {
			return PullSkipped, "no remote configured", nil
		}
		return PullNotRequested, "", err
	}

	nctx, cancel := context.WithTimeout(ctx, c.opts.NetworkTimeout)
	defer cancel()

	err := repo.Pull(nctx, vcs.PullOptions{
		Remote:       c.opts.Remote,
		Ref:          c.opts.Branch,
		PreferRemote: true,
	})
	if errors.Is(err, vcs.ErrRemoteRefNotFound) {
		return PullSkipped, "remote branch does not exist yet", nil
	}
	if err != nil {
		return PullNotRequested, "", err
	}
	return Pulled, "", nil
}

// pullError classifies a pull failure. Problems with the local working
// area need the user; everything else is worth retrying.
func pullError(op string, err error) *Error {
	if vcs.IsUserActionRequired(err) || vcs.IsFatal(err) {
		return &Error{Code: IOFailure, Op: op, Err: err}
	}
	return &Error{Code: NetworkFailure, Op: op, Err: err}
}

// open returns the repository backing the working area.
func (c *Coordinator) open(op string) (vcs.VCS, error) {
	if !vcs.IsInitialized(c.opts.Dir, c.opts.VCS) {
		return nil, &Error{
			Code: NotInitialized,
			Op:   op,
			Err:  fmt.Errorf("%s is not a %s working area, run sync init first", c.opts.Dir, c.opts.VCS),
		}
	}
	repo, err := vcs.Open(c.opts.VCS, c.opts.Dir)
	if err != nil {
		return nil, vcsError(op, err)
	}
	return repo, nil
}

// runLogger tags one operation's log lines with a fresh run id.
func (c *Coordinator) runLogger(op string) *slog.Logger {
	return c.logger.With("op", op, "run", uuid.NewString())
}

func (c *Coordinator) defaultMessage() string {
	return "sync: export at " + types.FormatTimestamp(c.opts.Clock.Now()) + " UTC"
}
