// Package loader resolves a suite of named sockperf tests to report files,
// skips the ones that are missing and extracts the rest.
package loader

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/saveenergy/sockreport/internal/config"
	"github.com/saveenergy/sockreport/internal/logging"
	rerrors "github.com/saveenergy/sockreport/pkg/errors"
	"github.com/saveenergy/sockreport/pkg/sockperf"
)

// Result is one extracted report.
type Result struct {
	Test    config.Test      `json:"test"`
	Path    string           `json:"path"`
	Metrics sockperf.Metrics `json:"metrics"`
}

// Empty reports whether the file was present but nothing in it was recognized.
func (r Result) Empty() bool {
	return r.Metrics.IsEmpty()
}

// Missing describes a test whose report file did not exist.
type Missing struct {
	Test config.Test `json:"test"`
	Path string      `json:"path"`
}

// Run is the outcome of loading one suite. Results keep suite order.
type Run struct {
	Label   string    `json:"label"`
	Results []Result  `json:"results"`
	Missing []Missing `json:"missing,omitempty"`
}

// Get returns the record for a test name; ok is false when the test was
// skipped.
func (r *Run) Get(name string) (sockperf.Metrics, bool) {
	if r == nil {
		return sockperf.Metrics{}, false
	}
	for _, res := range r.Results {
		if res.Test.Name == name {
			return res.Metrics, true
		}
	}
	return sockperf.Metrics{}, false
}

// Has reports whether a record was loaded for name.
func (r *Run) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// OfKind returns the loaded results of one test kind, in suite order.
func (r *Run) OfKind(kind string) []Result {
	if r == nil {
		return nil
	}
	var out []Result
	for _, res := range r.Results {
		if res.Test.Kind == kind {
			out = append(out, res)
		}
	}
	return out
}

// Event is reported once per test, in suite order, after every present
// report has been extracted. A failed load reports nothing.
type Event struct {
	Suite   string
	Test    config.Test
	Path    string
	Missing bool
	Empty   bool
}

// Notifier receives loader events. It is called from the loading goroutine,
// never concurrently.
type Notifier func(Event)

type Options struct {
	Concurrency int
	Notify      Notifier
}

var log = logging.NewLogger("loader")

// Load resolves every test of suite. Missing files are skipped and listed in
// Run.Missing; they are never an error. A file that exists but cannot be read
// fails the whole load.
func Load(ctx context.Context, suite config.Suite, opts Options) (*Run, error) {
	if len(suite.Tests) == 0 {
		return nil, rerrors.ErrInvalidSuite("suite has no tests", nil)
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 1
	}

	run := &Run{Label: suite.Label}
	type pending struct {
		test config.Test
		path string
	}
	present := make([]pending, 0, len(suite.Tests))
	events := make([]Event, 0, len(suite.Tests))
	for _, test := range suite.Tests {
		path := resolve(suite.Dir, test.File)
		exists, err := fileExists(path)
		if err != nil {
			return nil, rerrors.ErrReportUnreadable(path, err)
		}
		if !exists {
			run.Missing = append(run.Missing, Missing{Test: test, Path: path})
			log.Debug("report missing, skipping", logging.F("suite", suite.Label), logging.F("test", test.Name), logging.F("path", path))
		} else {
			present = append(present, pending{test: test, path: path})
		}
		events = append(events, Event{Suite: suite.Label, Test: test, Path: path, Missing: !exists})
	}

	results := make([]Result, len(present))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range present {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return rerrors.ErrCancelled(err)
			}
			m, err := extractFile(p.path)
			if err != nil {
				return err
			}
			if m.IsEmpty() {
				log.Warn("report has no recognizable metrics", logging.F("test", p.test.Name), logging.F("path", p.path))
			}
			results[i] = Result{Test: p.test, Path: p.path, Metrics: m}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	run.Results = results

	if opts.Notify != nil {
		empty := make(map[string]bool, len(results))
		for _, r := range results {
			empty[r.Test.Name] = r.Empty()
		}
		for _, e := range events {
			e.Empty = empty[e.Test.Name]
			opts.Notify(e)
		}
	}

	log.Info("suite loaded",
		logging.F("suite", suite.Label),
		logging.F("parsed", len(run.Results)),
		logging.F("missing", len(run.Missing)))
	return run, nil
}

// LoadFile extracts a single report outside any suite.
func LoadFile(path string) (sockperf.Metrics, error) {
	return extractFile(path)
}

func extractFile(path string) (sockperf.Metrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sockperf.Metrics{}, rerrors.ErrReportUnreadable(path, err)
	}
	return sockperf.Extract(string(data)), nil
}

func resolve(dir, file string) string {
	if dir == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(dir, file)
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return false, nil
		}
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
