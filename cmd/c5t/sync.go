package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/c5t/c5t/internal/store"
	"github.com/c5t/c5t/internal/sync"
	"github.com/c5t/c5t/internal/types"
	"github.com/c5t/c5t/internal/ui"
	"github.com/c5t/c5t/internal/vcs"
	_ "github.com/c5t/c5t/internal/vcs/git"
	_ "github.com/c5t/c5t/internal/vcs/jj"
)

var (
	outputFormat string
	initVCS      string
	exportRemote bool
	exportMsg    string
	importRemote bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the store through a git or jj repository",
	Long: `Synchronize the local store with other machines.

The store is exported to one JSONL file per entity kind inside a version
controlled working area (default <data_dir>/sync). Commits carry the
history; pushing and pulling carry it between machines. Conflicting edits
to the same record are settled by last-write-wins on updated_at.`,
}

var syncInitCmd = &cobra.Command{
	Use:   "init [remote-url]",
	Short: "Create the sync repository and bind a remote",
	Long: `Create the sync working area as a git (or colocated jj) repository.

With a remote URL the repository is bound to it as the configured remote
(default "origin"). Without one, an interactive terminal is asked for a URL;
leaving it empty keeps history local. Running init again is harmless.

If the store already holds records an initial export is committed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := ""
		if len(args) == 1 {
			url = args[0]
		} else if outputFormat == "text" {
			var err error
			if url, err = ui.PromptRemote(); err != nil {
				return err
			}
		}

		c, done, err := openCoordinator(cmd)
		if err != nil {
			return err
		}
		defer done()

		res, err := c.Init(cmd.Context(), url)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), res, func(w io.Writer) { printInit(w, res) })
	},
}

var syncExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the store to the sync repository and commit",
	Long: `Export every record to the sync working area and commit the result.

Nothing is committed when the files already match the last commit. With
--remote the branch is pushed afterwards; if the remote has moved on, its
changes are imported first and the export is repeated before pushing.
A failed push keeps the local commit, so the command can simply be re-run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, done, err := openCoordinator(cmd)
		if err != nil {
			return err
		}
		defer done()

		res, err := c.Export(cmd.Context(), sync.ExportOptions{Message: exportMsg, Push: exportRemote})
		if res == nil {
			return err
		}
		if rerr := render(cmd.OutOrStdout(), res, func(w io.Writer) { printExport(w, res) }); rerr != nil {
			return rerr
		}
		return err
	},
}

var syncImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Apply the sync repository to the store",
	Long: `Read the JSONL files in the sync working area into the store.

With --remote the branch is pulled first; if the pull fails nothing is
imported. Records are applied parents first. A record replaces the local
copy only when its updated_at is newer. Malformed lines, orphans and
records that would form a cycle are reported and skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, done, err := openCoordinator(cmd)
		if err != nil {
			return err
		}
		defer done()

		res, err := c.Import(cmd.Context(), sync.ImportOptions{Pull: importRemote})
		return reportImport(cmd.OutOrStdout(), res, err)
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sync repository state and record counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, done, err := openCoordinator(cmd)
		if err != nil {
			return err
		}
		defer done()

		st, err := c.Status(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), st, func(w io.Writer) { printStatus(w, st) })
	},
}

// openCoordinator takes the sync lock, opens the store and builds a
// Coordinator from the loaded configuration. done releases all three.
func openCoordinator(cmd *cobra.Command) (*sync.Coordinator, func(), error) {
	t := cfg.Sync.VCS
	if cmd.Flags().Changed("vcs") {
		parsed, err := parseVCS(initVCS)
		if err != nil {
			return nil, nil, err
		}
		t = parsed
	} else if found, err := vcs.Detect(cfg.Sync.Dir); err == nil {
		// An existing working area decides.
		t = found.Type
	}
	if err := vcs.CheckAvailable(t); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", t, err)
	}

	lock, err := acquireLock(lockPath(cfg.DataDir))
	if err != nil {
		return nil, nil, err
	}

	st, err := store.OpenSQLiteContext(cmd.Context(), cfg.Database)
	if err != nil {
		_ = lock.Release()
		return nil, nil, err
	}

	c, err := sync.New(st, sync.Options{
		Dir:            cfg.Sync.Dir,
		VCS:            t,
		Remote:         cfg.Sync.RemoteName,
		Branch:         cfg.Sync.Branch,
		NetworkTimeout: cfg.Sync.NetworkTimeout,
		Logger:         slog.Default(),
	})
	if err != nil {
		_ = st.Close()
		_ = lock.Release()
		return nil, nil, err
	}

	done := func() {
		if err := st.Close(); err != nil {
			slog.Warn("failed to close store", "error", err)
		}
		if err := lock.Release(); err != nil {
			slog.Warn("failed to release lock", "error", err)
		}
	}
	return c, done, nil
}

// parseVCS accepts the name of any registered backend.
func parseVCS(name string) (vcs.Type, error) {
	t, ok := vcs.ParseType(name)
	if !ok || !vcs.IsRegistered(t) {
		return "", fmt.Errorf("unknown vcs %q (want %s)", name, vcsNames())
	}
	return t, nil
}

func vcsNames() string {
	var names []string
	for _, t := range vcs.RegisteredTypes() {
		names = append(names, string(t))
	}
	return strings.Join(names, " or ")
}

// importReport is ImportResult with its problems rendered for output.
type importReport struct {
	Pull       sync.PullState      `json:"pull" yaml:"pull"`
	PullReason string              `json:"pull_reason,omitempty" yaml:"pull_reason,omitempty"`
	Head       string              `json:"head,omitempty" yaml:"head,omitempty"`
	Summary    *sync.ImportSummary `json:"summary" yaml:"summary"`
	Problems   []string            `json:"problems,omitempty" yaml:"problems,omitempty"`
}

// reportImport renders whatever part of an import completed, then returns
// the import error. Records applied before a store failure stay applied.
func reportImport(w io.Writer, res *sync.ImportResult, err error) error {
	if res == nil || res.Summary == nil {
		return err
	}
	report := newImportReport(res)
	if rerr := render(w, report, func(w io.Writer) { printImport(w, report) }); rerr != nil {
		return rerr
	}
	return err
}

func newImportReport(res *sync.ImportResult) *importReport {
	return &importReport{
		Pull:       res.Pull,
		PullReason: res.PullReason,
		Head:       res.Head,
		Summary:    res.Summary,
		Problems:   res.Summary.Messages(),
	}
}

func printInit(w io.Writer, res *sync.InitResult) {
	if res.State == sync.Created {
		fmt.Fprintf(w, "%s Initialized %s sync repository at %s\n", ui.RenderPass("✓"), res.VCS, res.Dir)
	} else {
		fmt.Fprintf(w, "%s Sync repository already initialized at %s\n", ui.RenderAccent("ℹ"), res.Dir)
	}
	if res.RemoteURL != "" {
		fmt.Fprintf(w, "   Remote: %s → %s\n", res.Remote, res.RemoteURL)
	} else {
		fmt.Fprintf(w, "   Remote: %s\n", ui.RenderMuted("none (local history only)"))
	}
	if res.Warning != "" {
		fmt.Fprintf(w, "%s %s\n", ui.RenderWarn("⚠"), res.Warning)
	}
	if res.Export != nil && res.Export.Committed {
		fmt.Fprintf(w, "   Exported %d records (commit %s)\n", sum(res.Export.Counts), shortHash(res.Export.Commit))
	}
}

func printExport(w io.Writer, res *sync.ExportResult) {
	if res.NoOp() {
		fmt.Fprintf(w, "%s Nothing to export; files match the last commit\n", ui.RenderPass("✓"))
	} else {
		fmt.Fprintf(w, "%s Exported %d records and %d links (commit %s)\n",
			ui.RenderPass("✓"), sum(res.Counts), sum(res.LinkCounts), shortHash(res.Commit))
		for _, k := range types.Kinds {
			if n := res.Counts[k]; n > 0 {
				fmt.Fprintf(w, "   %-10s %d\n", k, n)
			}
		}
	}
	if res.Integrated {
		fmt.Fprintf(w, "%s Remote changes were imported before pushing\n", ui.RenderAccent("🔄"))
	}
	if res.RemoteRejected > 0 {
		fmt.Fprintf(w, "%s %d remote records were rejected on import and are not in the pushed files\n",
			ui.RenderWarn("⚠"), res.RemoteRejected)
	}
	switch res.Push {
	case sync.Pushed:
		fmt.Fprintf(w, "%s Pushed\n", ui.RenderPass("✓"))
	case sync.PushSkipped:
		fmt.Fprintf(w, "   Push skipped: %s\n", res.PushReason)
	case sync.PushFailed:
		fmt.Fprintf(w, "%s Push failed; the commit is kept locally. Run export --remote again.\n", ui.RenderFail("✗"))
	}
}

func printImport(w io.Writer, r *importReport) {
	switch r.Pull {
	case sync.Pulled:
		fmt.Fprintf(w, "%s Pulled %s\n", ui.RenderPass("✓"), shortHash(r.Head))
	case sync.PullSkipped:
		fmt.Fprintf(w, "   Pull skipped: %s\n", r.PullReason)
	}

	t := r.Summary.Totals()
	lt := r.Summary.LinkTotals()
	fmt.Fprintf(w, "%s Imported %d records (%d new, %d updated, %d unchanged)\n",
		ui.RenderPass("✓"), t.Applied(), t.Inserted, t.Replaced, t.Skipped)
	if lt.Added > 0 {
		fmt.Fprintf(w, "   Links added: %d\n", lt.Added)
	}

	if rejected := r.Summary.Rejected(); rejected > 0 {
		fmt.Fprintf(w, "%s %d records skipped:\n", ui.RenderWarn("⚠"), rejected)
	}
	for _, p := range r.Problems {
		fmt.Fprintf(w, "   %s\n", ui.RenderMuted(p))
	}
}

func printStatus(w io.Writer, st *sync.Status) {
	remote := ui.RenderMuted("none")
	if st.RemoteURL != "" {
		remote = st.Remote + " → " + st.RemoteURL
	}
	tree := ui.RenderPass("clean")
	if !st.Clean {
		tree = ui.RenderWarn(strconv.Itoa(len(st.Changes)) + " changed")
	}
	format := st.FormatVersion
	if format == "" {
		format = ui.RenderMuted("no export yet")
	}

	fmt.Fprintln(w, ui.KeyValue("Directory", st.Dir))
	tool := string(st.VCS)
	if st.ToolVersion != "" {
		tool += " " + ui.RenderMuted(st.ToolVersion)
	}
	fmt.Fprintln(w, ui.KeyValue("VCS", tool))
	fmt.Fprintln(w, ui.KeyValue("Remote", remote))
	fmt.Fprintln(w, ui.KeyValue("Head", shortHash(st.Head)))
	fmt.Fprintln(w, ui.KeyValue("Working tree", tree))
	fmt.Fprintln(w, ui.KeyValue("Format", format))
	fmt.Fprintln(w)

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("KIND", "STORE", "FILE", "")
	for _, k := range types.Kinds {
		tbl.Row(countRow(string(k), st.Kinds[k])...)
	}
	for _, rel := range types.Relations {
		tbl.Row(countRow(string(rel), st.Links[rel])...)
	}
	fmt.Fprintln(w, tbl.String())

	if st.Drift {
		fmt.Fprintf(w, "%s Store and files differ; run export or import\n", ui.RenderWarn("⚠"))
	}
	if len(st.Stray) > 0 {
		fmt.Fprintf(w, "%s Unrecognized files: %s\n", ui.RenderWarn("⚠"), strings.Join(st.Stray, ", "))
	}
}

func countRow(name string, c sync.Count) []string {
	mark := ""
	if c.Malformed > 0 {
		mark = ui.RenderFail(strconv.Itoa(c.Malformed) + " malformed")
	} else if c.Drift() {
		mark = ui.RenderWarn("drift")
	}
	return []string{name, strconv.Itoa(c.Store), strconv.Itoa(c.File), mark}
}

func sum[K comparable](counts map[K]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

func init() {
	syncCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "output format: text, json or yaml")
	syncInitCmd.Flags().StringVar(&initVCS, "vcs", "", "repository type: "+vcsNames()+" (default from config)")
	syncExportCmd.Flags().BoolVar(&exportRemote, "remote", false, "push to the remote after committing")
	syncExportCmd.Flags().StringVarP(&exportMsg, "message", "m", "", "commit message")
	syncImportCmd.Flags().BoolVar(&importRemote, "remote", false, "pull from the remote before importing")

	syncCmd.AddCommand(syncInitCmd)
	syncCmd.AddCommand(syncExportCmd)
	syncCmd.AddCommand(syncImportCmd)
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
