package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c5t/c5t/internal/vcs"
)

// isolate points every config source at empty temp directories.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	return home
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)
	require.NoError(t, Initialize(""))

	cfg, err := Load()
	require.NoError(t, err)

	dataDir := filepath.Join(home, "data", "c5t")
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dataDir, "c5t.db"), cfg.Database)
	assert.Equal(t, filepath.Join(dataDir, "sync"), cfg.Sync.Dir)
	assert.Equal(t, vcs.TypeGit, cfg.Sync.VCS)
	assert.Equal(t, "origin", cfg.Sync.RemoteName)
	assert.Equal(t, "main", cfg.Sync.Branch)
	assert.Equal(t, 2*time.Minute, cfg.Sync.NetworkTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.Log.Level)
	assert.Empty(t, cfg.File)
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
data_dir = "/srv/c5t"

[sync]
vcs = "jj"
branch = "trunk"
network_timeout = "30s"

[log]
level = "debug"
file = "/var/log/c5t.log"
`)
	require.NoError(t, Initialize(path))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "/srv/c5t", cfg.DataDir)
	assert.Equal(t, filepath.Join("/srv/c5t", "sync"), cfg.Sync.Dir)
	assert.Equal(t, vcs.TypeJJ, cfg.Sync.VCS)
	assert.Equal(t, "trunk", cfg.Sync.Branch)
	assert.Equal(t, 30*time.Second, cfg.Sync.NetworkTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
	assert.Equal(t, "/var/log/c5t.log", cfg.Log.File)
}

func TestLoad_DefaultFileLocation(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("config dir does not follow XDG_CONFIG_HOME on " + runtime.GOOS)
	}
	home := isolate(t)
	dir := filepath.Join(home, "config", "c5t")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[sync]\nremote_name = \"backup\"\n"), 0o644))

	require.NoError(t, Initialize(""))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "backup", cfg.Sync.RemoteName)
}

func TestLoad_Precedence(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "[sync]\nbranch = \"from-file\"\nremote_name = \"from-file\"\nvcs = \"git\"\n")
	t.Setenv("C5T_SYNC_BRANCH", "from-env")
	t.Setenv("C5T_SYNC_VCS", "jj")

	require.NoError(t, Initialize(path))
	Set(KeySyncVCS, "git")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Sync.Branch, "env beats file")
	assert.Equal(t, "from-file", cfg.Sync.RemoteName)
	assert.Equal(t, vcs.TypeGit, cfg.Sync.VCS, "flag beats env")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		key     string
	}{
		{"vcs", "[sync]\nvcs = \"svn\"\n", KeySyncVCS},
		{"timeout", "[sync]\nnetwork_timeout = \"soon\"\n", KeySyncTimeout},
		{"level", "[log]\nlevel = \"loud\"\n", KeyLogLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			require.NoError(t, Initialize(writeConfig(t, tt.content)))

			_, err := Load()
			var cerr *Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.key, cerr.Key)
		})
	}
}

func TestInitialize_MissingExplicitFile(t *testing.T) {
	isolate(t)
	err := Initialize(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
