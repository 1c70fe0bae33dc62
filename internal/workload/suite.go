// Package workload holds the built-in benchmark suites. Each suite builds
// a fully bound matrix from a seed, so two builds with the same seed
// measure identical data.
package workload

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"microbench/internal/matrix"
)

// ErrUnknownSuite is returned by Lookup for unregistered names.
var ErrUnknownSuite = errors.New("unknown suite")

// Suite is a named matrix builder.
type Suite struct {
	Name        string
	Description string
	Build       func(seed uint64) (*matrix.Matrix, error)
}

var (
	mu     sync.RWMutex
	suites = map[string]Suite{}
)

// Register adds s to the registry. Names must be unique.
func Register(s Suite) error {
	if s.Name == "" || s.Build == nil {
		return fmt.Errorf("suite must have a name and a builder")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := suites[s.Name]; dup {
		return fmt.Errorf("suite %q already registered", s.Name)
	}
	suites[s.Name] = s
	return nil
}

func mustRegister(s Suite) {
	if err := Register(s); err != nil {
		panic(err)
	}
}

// Lookup returns the suite registered under name.
func Lookup(name string) (Suite, error) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := suites[name]
	if !ok {
		return Suite{}, fmt.Errorf("%w %q (available: %v)", ErrUnknownSuite, name, namesLocked())
	}
	return s, nil
}

// Names lists registered suites alphabetically.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return namesLocked()
}

// All returns every registered suite ordered by name.
func All() []Suite {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Suite, 0, len(suites))
	for _, name := range namesLocked() {
		out = append(out, suites[name])
	}
	return out
}

func namesLocked() []string {
	names := make([]string, 0, len(suites))
	for name := range suites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build looks up name and builds its matrix.
func Build(name string, seed uint64) (*matrix.Matrix, error) {
	s, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	m, err := s.Build(seed)
	if err != nil {
		return nil, fmt.Errorf("build suite %s: %w", name, err)
	}
	return m, nil
}

// axis is shorthand for declaring an axis.
func axis(name string, values ...string) matrix.Axis {
	return matrix.Axis{Name: name, Values: slices.Clone(values)}
}
