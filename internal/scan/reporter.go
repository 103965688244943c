package scan

import "sync"

// Reporter records soft failures so they can be displayed later.
type Reporter interface {
	Report(path string, err error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(path string, err error)

// Report calls f(path, err).
func (f ReporterFunc) Report(path string, err error) { f(path, err) }

// Reporters fans a report out to every non-nil reporter.
func Reporters(rs ...Reporter) Reporter {
	out := make(multiReporter, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multiReporter []Reporter

func (m multiReporter) Report(path string, err error) {
	for _, r := range m {
		r.Report(path, err)
	}
}

// LastError keeps the most recent failure and a running count.
// It is safe to read while a scan is running.
type LastError struct {
	mu    sync.Mutex
	path  string
	err   error
	count int64
}

// Report implements Reporter.
func (l *LastError) Report(path string, err error) {
	l.mu.Lock()
	l.path, l.err = path, err
	l.count++
	l.mu.Unlock()
}

// Last returns the path and error of the latest report.
func (l *LastError) Last() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path, l.err
}

// Count returns the number of reports seen.
func (l *LastError) Count() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
