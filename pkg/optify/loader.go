package optify

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/juharris/optify-go/internal/otel"
)

var featureExtensions = map[string]bool{
	".json":  true,
	".yaml":  true,
	".yml":   true,
	".toml":  true,
	".json5": true,
}

// reservedDirectoryName is the top-level subdirectory reserved for
// tooling artifacts (schemas); its contents, and any nested
// directories beneath it, are never scanned for features.
const reservedDirectoryName = ".optify"

// Builder accumulates root directories and an optional schema, then
// produces an immutable Registry.
type Builder struct {
	roots      []string
	schemaPath string
	logger     *otel.Logger
	tracer     *otel.Tracer
	metrics    *otel.Metrics
}

// NewBuilder returns an empty Builder. Logging defaults to a quiet
// stderr logger and tracing to a non-exporting tracer; WithLogger,
// WithTracer, and WithMetrics override them.
func NewBuilder() *Builder {
	return &Builder{
		logger: otel.DefaultLogger().Component("optify.builder"),
		tracer: otel.NoopTracer(),
	}
}

// AddDirectory registers a root directory to be walked at Build time.
func (b *Builder) AddDirectory(path string) *Builder {
	b.roots = append(b.roots, path)
	return b
}

// WithSchema configures a JSON Schema file that every feature file's
// raw document is validated against before deserialization.
func (b *Builder) WithSchema(path string) *Builder {
	b.schemaPath = path
	return b
}

// WithLogger overrides the Builder's default logger.
func (b *Builder) WithLogger(logger *otel.Logger) *Builder {
	b.logger = logger.Component("optify.builder")
	return b
}

// WithTracer overrides the Builder's default (non-exporting) tracer.
func (b *Builder) WithTracer(tracer *otel.Tracer) *Builder {
	b.tracer = tracer
	return b
}

// WithMetrics attaches a Prometheus metrics recorder; nil (the
// default) disables metrics recording.
func (b *Builder) WithMetrics(metrics *otel.Metrics) *Builder {
	b.metrics = metrics
	return b
}

// Build walks every registered root directory, parses and validates
// each feature file, resolves the import graph, computes dependents,
// and returns the resulting immutable Registry.
func (b *Builder) Build() (*Registry, error) {
	_, span := b.tracer.Start(context.Background(), "optify.build")
	defer span.End()

	started := time.Now()
	registry, err := b.build()
	duration := time.Since(started)

	b.metrics.RecordBuild(duration, err)
	if err != nil {
		b.logger.Error().Err(err).Dur("duration", duration).Msg("feature directory build failed")
		return nil, err
	}
	b.logger.Info().
		Int("features", len(registry.features)).
		Dur("duration", duration).
		Msg("feature directory build succeeded")
	return registry, nil
}

func (b *Builder) build() (*Registry, error) {
	var schema *gojsonschema.Schema
	if b.schemaPath != "" {
		loaded, err := loadSchema(b.schemaPath)
		if err != nil {
			return nil, err
		}
		schema = loaded
	}

	aliases := make(map[string]string)
	features := make(map[string]*FeatureRecord)
	fileTable := make(FileTable)

	for _, root := range b.roots {
		if err := b.walkDirectory(root, schema, aliases, features, fileTable); err != nil {
			return nil, err
		}
	}

	if err := resolveImports(features); err != nil {
		return nil, err
	}

	computeDependents(features)

	sources := make(map[string]any, len(features))
	for name, record := range features {
		sources[name] = record.ResolvedSource
	}

	return &Registry{
		aliases:   aliases,
		features:  features,
		sources:   sources,
		fileTable: fileTable,
		builtAt:   time.Now(),
	}, nil
}

func (b *Builder) walkDirectory(
	root string,
	schema *gojsonschema.Schema,
	aliases map[string]string,
	features map[string]*FeatureRecord,
	fileTable FileTable,
) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("error walking directory '%s': %w", root, err)
		}
		if entry.IsDir() {
			if entry.Name() == reservedDirectoryName {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("error resolving relative path for '%s': %w", path, err)
		}
		ext := strings.ToLower(filepath.Ext(path))

		if ext == ".md" {
			return nil
		}
		if !featureExtensions[ext] {
			contents, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("error reading file '%s': %w", path, err)
			}
			fileTable[filepath.ToSlash(relPath)] = string(contents)
			return nil
		}

		contents, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("error reading file '%s': %w", path, err)
		}

		raw, err := decodeFeatureFile(path, contents, schema)
		if err != nil {
			return err
		}

		canonicalName := filepath.ToSlash(strings.TrimSuffix(relPath, filepath.Ext(relPath)))
		if err := insertAlias(aliases, canonicalName, canonicalName); err != nil {
			return err
		}

		absPath, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("error resolving absolute path for '%s': %w", path, err)
		}
		record := &FeatureRecord{
			CanonicalName: canonicalName,
			Path:          absPath,
			Imports:       raw.Imports,
			Options:       raw.Options,
		}
		if raw.Metadata != nil {
			record.Aliases = raw.Metadata.Aliases
			record.Owners = raw.Metadata.Owners
			record.Details = raw.Metadata.Details
		}
		for _, alias := range record.Aliases {
			if err := insertAlias(aliases, alias, canonicalName); err != nil {
				return err
			}
		}
		if raw.Conditions != nil {
			condition, err := parseCondition(raw.Conditions)
			if err != nil {
				return fmt.Errorf("error parsing conditions for file '%s': %w", path, err)
			}
			record.Conditions = condition
		}

		if _, exists := features[canonicalName]; exists {
			return fmt.Errorf("%w: duplicate canonical feature name \"%s\" for file '%s'", ErrDuplicateCanonicalName, canonicalName, path)
		}
		features[canonicalName] = record

		return nil
	})
}

// insertAlias inserts name → canonicalName into aliases, case-folded,
// failing when the case-folded name is already mapped to something
// else.
func insertAlias(aliases map[string]string, name, canonicalName string) error {
	key := strings.ToLower(name)
	if existing, ok := aliases[key]; ok {
		if existing == canonicalName {
			return nil
		}
		return fmt.Errorf("%w: The alias '%s' for canonical feature name '%s' is already mapped to '%s'.", ErrDuplicateAlias, name, canonicalName, existing)
	}
	aliases[key] = canonicalName
	return nil
}

// resolveImports runs a DFS from every feature, folding each feature's
// transitive imports into its ResolvedSource. A global `resolved` set
// memoizes features whose ResolvedSource is already computed; a
// per-DFS `path` set detects cycles.
func resolveImports(features map[string]*FeatureRecord) error {
	resolved := make(map[string]bool)
	var visit func(name string, path []string) error

	visit = func(name string, path []string) error {
		if resolved[name] {
			return nil
		}
		for _, inPath := range path {
			if inPath == name {
				return fmt.Errorf(
					"%w: Error when resolving imports for '%s': Cycle detected with import '%s'. The features in the path (not in order): %s",
					ErrCycle, path[0], name, formatCycleMembers(append(path, name)),
				)
			}
		}

		record, ok := features[name]
		if !ok {
			return fmt.Errorf("%w: The given feature \"%s\" was not found.", ErrNotFound, name)
		}

		nextPath := append(path, name)
		result := any(map[string]any{})
		for _, importName := range record.Imports {
			imported, ok := features[importName]
			if !ok {
				if canonical, isAlias := findCanonicalForAlias(features, importName); isAlias {
					return fmt.Errorf(
						"%w: Error when resolving imports for '%s': the import '%s' must use the canonical feature name '%s'.",
						ErrImportByAlias, name, importName, canonical,
					)
				}
				return fmt.Errorf("%w: Error when resolving imports for '%s': The given feature \"%s\" was not found.", ErrNotFound, name, importName)
			}
			if imported.Conditions != nil {
				return fmt.Errorf(
					"%w: Error when resolving imports for '%s': The import '%s' has conditions. Conditions cannot be used in imported features.",
					ErrConditionsOnImport, name, importName,
				)
			}
			if err := visit(importName, nextPath); err != nil {
				return err
			}
			result = Merge(result, imported.ResolvedSource)
		}
		if record.Options != nil {
			result = Merge(result, record.Options)
		}

		record.ResolvedSource = result
		resolved[name] = true
		return nil
	}

	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

// findCanonicalForAlias reports whether name is a known alias (not a
// canonical name) of some feature, used to produce the
// import-by-alias error's canonical-form hint.
func findCanonicalForAlias(features map[string]*FeatureRecord, name string) (string, bool) {
	folded := strings.ToLower(name)
	for canonical, record := range features {
		if strings.ToLower(canonical) == folded {
			return "", false
		}
		for _, alias := range record.Aliases {
			if strings.ToLower(alias) == folded {
				return canonical, true
			}
		}
	}
	return "", false
}

func formatCycleMembers(path []string) string {
	seen := make(map[string]bool, len(path))
	members := make([]string, 0, len(path))
	for _, name := range path {
		if !seen[name] {
			seen[name] = true
			members = append(members, name)
		}
	}
	sort.Strings(members)
	return "{" + strings.Join(members, ", ") + "}"
}

// computeDependents populates each feature's sorted Dependents list:
// for every feature X that imports Y, X is added to Y's Dependents.
func computeDependents(features map[string]*FeatureRecord) {
	dependents := make(map[string][]string)
	for name, record := range features {
		for _, importName := range record.Imports {
			dependents[importName] = append(dependents[importName], name)
		}
	}
	for name, record := range features {
		list := dependents[name]
		sort.Strings(list)
		record.Dependents = list
	}
}
