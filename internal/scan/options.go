package scan

import (
	"io"
	"regexp"

	"github.com/charmbracelet/log"
)

// ScanOptions configures the scanning behavior.
type ScanOptions struct {
	// Xdev prevents crossing filesystem boundaries.
	Xdev bool

	// MaxErrors is the maximum number of errors before aborting.
	// Zero means unlimited.
	MaxErrors int

	// ExcludePatterns are regular expressions for paths to skip.
	ExcludePatterns []*regexp.Regexp

	// Exclude is consulted in addition to ExcludePatterns.
	Exclude Matcher

	// Reporter receives every soft failure.
	Reporter Reporter

	// FS is the filesystem to scan. Defaults to OSFS.
	FS FS

	// Logger receives scan diagnostics. Defaults to a discarding logger.
	Logger *log.Logger
}

// DefaultOptions returns sensible defaults for scanning.
func DefaultOptions() *ScanOptions {
	opts := &ScanOptions{
		Xdev:      true,
		MaxErrors: 0,
	}
	// Exclude NFS snapshot directories by default
	opts.AddExcludePattern(`/\.snapshot(/|$)`)
	return opts
}

// WithXdev sets cross-device behavior.
func (o *ScanOptions) WithXdev(xdev bool) *ScanOptions {
	o.Xdev = xdev
	return o
}

// WithMaxErrors sets the maximum error count.
func (o *ScanOptions) WithMaxErrors(n int) *ScanOptions {
	o.MaxErrors = n
	return o
}

// WithExclude adds a matcher consulted alongside the patterns.
func (o *ScanOptions) WithExclude(m Matcher) *ScanOptions {
	o.Exclude = m
	return o
}

// WithReporter sets the soft failure reporter.
func (o *ScanOptions) WithReporter(r Reporter) *ScanOptions {
	o.Reporter = r
	return o
}

// WithFS replaces the filesystem implementation.
func (o *ScanOptions) WithFS(fs FS) *ScanOptions {
	o.FS = fs
	return o
}

// WithLogger sets the diagnostics logger.
func (o *ScanOptions) WithLogger(l *log.Logger) *ScanOptions {
	o.Logger = l
	return o
}

// AddExcludePattern adds a pattern to exclude.
func (o *ScanOptions) AddExcludePattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	o.ExcludePatterns = append(o.ExcludePatterns, re)
	return nil
}

// ShouldExclude checks if a path matches any exclude pattern.
func (o *ScanOptions) ShouldExclude(path string) bool {
	if PatternMatcher(o.ExcludePatterns).Match(path) {
		return true
	}
	return o.Exclude != nil && o.Exclude.Match(path)
}

func (o *ScanOptions) fs() FS {
	if o.FS == nil {
		return OSFS{}
	}
	return o.FS
}

func (o *ScanOptions) logger() *log.Logger {
	if o.Logger == nil {
		return log.New(io.Discard)
	}
	return o.Logger
}
