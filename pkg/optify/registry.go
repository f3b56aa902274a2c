package optify

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FeatureRecord is one loaded feature file: its identity, declared
// shape, and the pre-resolved source computed by folding its
// transitive imports in at build time.
type FeatureRecord struct {
	CanonicalName string
	Path          string
	Aliases       []string
	Owners        string
	Details       any
	Imports       []string
	Conditions    *Condition
	Options       any

	// Dependents is the sorted list of canonical names that import this
	// feature, computed once the whole graph is known.
	Dependents []string

	// ResolvedSource is this feature's own Options with every
	// transitive import folded in underneath (imports first, in
	// declaration order, then this feature's own Options last).
	ResolvedSource any
}

// Registry is the immutable result of a successful Builder.Build. It
// is safe for concurrent reads from multiple goroutines; nothing about
// it ever changes after construction.
type Registry struct {
	aliases   map[string]string
	features  map[string]*FeatureRecord
	sources   map[string]any
	fileTable FileTable
	builtAt   time.Time
}

// BuiltAt returns the wall-clock time this Registry was produced,
// which Watcher.LastModified surfaces to detect hot-swaps.
func (r *Registry) BuiltAt() time.Time {
	return r.builtAt
}

// Features returns the sorted list of canonical feature names.
func (r *Registry) Features() []string {
	names := make([]string, 0, len(r.features))
	for name := range r.features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Aliases returns the sorted list of every registered name (aliases
// and canonical names alike).
func (r *Registry) Aliases() []string {
	names := make([]string, 0, len(r.aliases))
	for name := range r.aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CanonicalName resolves name (alias or canonical, case-insensitively)
// to its canonical form.
func (r *Registry) CanonicalName(name string) (string, error) {
	canonical, ok := r.aliases[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("%w: The given feature \"%s\" was not found.", ErrNotFound, name)
	}
	return canonical, nil
}

// Feature returns the FeatureRecord for a canonical name.
func (r *Registry) Feature(canonicalName string) (*FeatureRecord, bool) {
	record, ok := r.features[canonicalName]
	return record, ok
}

// Source returns the resolved source for a canonical name.
func (r *Registry) Source(canonicalName string) (any, bool) {
	source, ok := r.sources[canonicalName]
	return source, ok
}
