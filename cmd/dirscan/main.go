package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/michaelscutari/dirscan/internal/config"
	"github.com/michaelscutari/dirscan/internal/logging"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// exitError carries a process exit status through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	err := rootCmd.Execute()
	closeLog()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dirscan",
	Short: "A recursive filesystem tree scanner",
	Long: `dirscan walks a directory tree, measures every entry and streams the
result to a sink: a SQLite snapshot for later queries or a du-style tree.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

var (
	configFile string
	cfg        *config.Config
	logger     = logging.Discard()
	logCloser  io.Closer
)

func init() {
	rootCmd.Version = version
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default: dirscan.{yaml,toml,json} in . or $XDG_CONFIG_HOME/dirscan)")
	pf.BoolP("verbose", "v", false, "Enable verbose scan logging")
	pf.String("log-level", "warn", "Log level: debug|info|warn|error")
	pf.String("log-format", "text", "Log format: text|logfmt|json")
	pf.String("log-file", "", "Also write logs to this file, rotated by size")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(duCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(queryCmd)
}

// setup loads configuration for the command being run and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cmd.Flags(), configFile)
	if err != nil {
		return err
	}
	cfg = loaded

	l, closer, err := logging.New(cfg.Logging())
	if err != nil {
		return err
	}
	logger, logCloser = l, closer
	if cfg.File != "" {
		logger.Debug("loaded config", "file", cfg.File)
	}
	return nil
}

func closeLog() {
	if logCloser != nil {
		logCloser.Close()
	}
}

func commandLogger(name string) *log.Logger {
	return logger.WithPrefix(name)
}
