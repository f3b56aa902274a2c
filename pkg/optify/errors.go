package optify

import "errors"

// Sentinel errors so callers can use errors.Is for programmatic
// dispatch. The wrapped message text still matches the literal shapes
// documented for each operation; these sentinels are an addition, not a
// replacement.
var (
	// ErrNotFound is returned when a feature name cannot be resolved to
	// a canonical name.
	ErrNotFound = errors.New("feature not found")

	// ErrKeyNotFound is returned when a requested configuration key is
	// absent from the composed result.
	ErrKeyNotFound = errors.New("configuration key not found")

	// ErrDuplicateCanonicalName is returned at build time when two
	// files resolve to the same canonical feature name.
	ErrDuplicateCanonicalName = errors.New("duplicate canonical feature name")

	// ErrDuplicateAlias is returned at build time when an alias
	// collides (case-insensitively) with an existing canonical name or
	// alias.
	ErrDuplicateAlias = errors.New("duplicate feature alias")

	// ErrCycle is returned at build time when the import graph contains
	// a cycle.
	ErrCycle = errors.New("cycle detected in feature imports")

	// ErrImportByAlias is returned at build time when an import list
	// names a feature by alias rather than canonical name.
	ErrImportByAlias = errors.New("import must use canonical feature name")

	// ErrConditionsOnImport is returned at build time when an imported
	// feature itself declares conditions.
	ErrConditionsOnImport = errors.New("imported feature must not declare conditions")

	// ErrInvalidConditionPattern is returned at build time when a
	// condition's regex pattern fails to compile.
	ErrInvalidConditionPattern = errors.New("invalid condition regex pattern")

	// ErrSchemaValidation is returned at build time when a feature file
	// fails JSON Schema validation.
	ErrSchemaValidation = errors.New("schema validation failed")

	// ErrCacheOverrides is returned when a request supplies overrides
	// and also asks to be cached; the two are mutually exclusive.
	ErrCacheOverrides = errors.New("caching when overrides are given is not supported")

	// ErrTemplateRender is returned when a configurable string fails to
	// render (missing file, cyclic component reference, parse error).
	ErrTemplateRender = errors.New("configurable string render failed")
)
