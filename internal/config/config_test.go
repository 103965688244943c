package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func testFlags() *pflag.FlagSet {
	d := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("root", d.Root, "")
	fs.Int("max-errors", d.MaxErrors, "")
	fs.Int("retention", d.Retention, "")
	fs.StringSlice("exclude", nil, "")
	fs.Duration("progress-interval", d.ProgressInterval, "")
	fs.String("index-mode", d.IndexMode, "")
	return fs
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(testFlags(), "")
	require.NoError(t, err)
	require.Equal(t, ".", cfg.Root)
	require.True(t, cfg.Xdev)
	require.Equal(t, 5, cfg.Retention)
	require.Equal(t, 30*time.Second, cfg.ProgressInterval)
	require.Empty(t, cfg.File)
}

func TestLoadPrecedence(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
root: /from/file
retention: 9
max-errors: 3
progress-interval: 5s
exclude:
  - "\\.cache$"
`), 0o644))

	t.Setenv("DIRSCAN_RETENTION", "7")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--max-errors=10"}))

	cfg, err := Load(fs, path)
	require.NoError(t, err)
	require.Equal(t, "/from/file", cfg.Root, "file beats default")
	require.Equal(t, 7, cfg.Retention, "env beats file")
	require.Equal(t, 10, cfg.MaxErrors, "flag beats file")
	require.Equal(t, 5*time.Second, cfg.ProgressInterval)
	require.Equal(t, []string{`\.cache$`}, cfg.Exclude)
	require.Equal(t, path, cfg.File)

	opts, err := cfg.ScanOptions(nil)
	require.NoError(t, err)
	require.True(t, opts.ShouldExclude("/home/u/.cache"))
	require.True(t, opts.ShouldExclude("/mnt/.snapshot/x"))
	require.Equal(t, 10, opts.MaxErrors)
}

func TestLoadSearchesWorkingDirectory(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("dirscan.toml", []byte(`index-mode = "disk"`), 0o644))

	cfg, err := Load(testFlags(), "")
	require.NoError(t, err)
	require.Equal(t, "disk", cfg.IndexMode)
	require.Equal(t, "dirscan.toml", filepath.Base(cfg.File))
}

func TestLoadErrors(t *testing.T) {
	isolate(t)

	_, err := Load(testFlags(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	t.Setenv("DIRSCAN_INDEX_MODE", "ssd")
	_, err = Load(testFlags(), "")
	require.ErrorContains(t, err, "invalid index mode")
}

func TestLoggingVerbose(t *testing.T) {
	cfg := Default()
	cfg.Verbose = true
	require.Equal(t, "debug", cfg.Logging().Level)
}
