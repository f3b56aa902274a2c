// Package optify loads a directory of declarative "feature" files and
// composes, on demand, the deep-merged options that result from
// layering a caller-chosen ordered list of features on top of each
// other.
//
// # Overview
//
// A feature is one file under a root directory: its canonical name is
// the file's path relative to the root with the extension removed. A
// feature contributes a JSON-shaped options fragment, may declare
// aliases, may statically import other features (folded in beneath its
// own options at build time), and may declare a condition that gates
// whether the feature applies to a given request.
//
// # Components
//
// Builder walks one or more root directories and produces an immutable
// Registry: canonical names, aliases, per-feature resolved sources
// (options with all transitive imports already folded in), and a
// dependents map.
//
// Provider is the read API over a Registry: name resolution, condition
// evaluation, ordered merge, overrides, optional configurable-string
// rendering, and JSON-Pointer-style sub-tree projection.
//
// Watcher wraps a Builder with an fsnotify-driven hot-reload loop,
// atomically swapping the served Registry when the watched directories
// change.
//
// # Usage
//
//	registry, err := optify.NewBuilder().
//		AddDirectory("./features").
//		Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	provider := optify.NewProvider(registry)
//	opts, err := provider.GetOptions("myConfig", []string{"base", "staging"})
//	if err != nil {
//		log.Fatal(err)
//	}
package optify
