package harness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/modeltree/internal/engine"
)

// ScenarioNotFoundError is returned when a referenced scenario path doesn't
// exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// Discover expands paths into scenario files. Directories contribute
// their *.yaml and *.yml files, sorted; files are taken as given.
func Discover(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ScenarioNotFoundError{Path: p}
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
				found = append(found, filepath.Join(p, e.Name()))
			}
		}
		slices.Sort(found)
		out = append(out, found...)
	}
	return out, nil
}

// Summary aggregates the outcome of RunAll.
type Summary struct {
	Total    int       `json:"total"`
	Passed   int       `json:"passed"`
	Failed   int       `json:"failed"`
	Failures []Failure `json:"failures,omitempty"`
}

// Failure is one scenario that did not pass.
type Failure struct {
	Scenario string   `json:"scenario,omitempty"`
	Path     string   `json:"path"`
	Errors   []string `json:"errors"`
}

// OK reports whether every scenario passed.
func (s *Summary) OK() bool { return s.Failed == 0 }

// RunAll loads and runs every scenario file in paths. Load and execution
// errors count as failures; only discovery errors are returned.
func RunAll(ctx context.Context, paths []string, opts ...engine.Option) (*Summary, error) {
	files, err := Discover(paths)
	if err != nil {
		return nil, err
	}

	sum := &Summary{}
	for _, path := range files {
		sum.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			sum.fail(Failure{Path: path, Errors: []string{err.Error()}})
			continue
		}

		result, err := Run(ctx, scenario, opts...)
		if err != nil {
			sum.fail(Failure{Scenario: scenario.Name, Path: path, Errors: []string{fmt.Sprintf("scenario execution failed: %v", err)}})
			continue
		}
		if !result.Pass {
			sum.fail(Failure{Scenario: scenario.Name, Path: path, Errors: result.Errors})
			continue
		}
		sum.Passed++
	}
	return sum, nil
}

func (s *Summary) fail(f Failure) {
	s.Failed++
	s.Failures = append(s.Failures, f)
}
