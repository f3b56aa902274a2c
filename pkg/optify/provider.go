package optify

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/juharris/optify-go/internal/otel"
)

// registrySource supplies the Registry a Provider reads through. A
// plain Provider reads a single, fixed Registry; Watcher supplies one
// that always resolves to its most recently built Registry, so a
// Provider embedded in a Watcher stays current across rebuilds.
type registrySource interface {
	currentRegistry() *Registry
}

// fixedRegistry is a registrySource that always resolves to the same
// Registry.
type fixedRegistry struct {
	registry *Registry
}

func (f fixedRegistry) currentRegistry() *Registry {
	return f.registry
}

// Provider is the read API over a Registry: name resolution, condition
// filtering, ordered composition, overrides, optional configurable
// string rendering, and JSON-Pointer-style sub-tree projection.
type Provider struct {
	source  registrySource
	cache   *Cache
	tracer  *otel.Tracer
	metrics *otel.Metrics
}

// NewProvider wraps registry with a Provider, backed by a fresh
// in-memory Cache.
func NewProvider(registry *Registry) *Provider {
	return newProvider(fixedRegistry{registry}, NewMemoryCache())
}

// NewProviderWithCache wraps registry with a Provider backed by an
// explicit Cache (e.g. a SQLite-backed one from NewSQLiteCache).
func NewProviderWithCache(registry *Registry, cache *Cache) *Provider {
	return newProvider(fixedRegistry{registry}, cache)
}

func newProvider(source registrySource, cache *Cache) *Provider {
	return &Provider{source: source, cache: cache, tracer: otel.NoopTracer()}
}

// registry returns the Registry currently in effect.
func (p *Provider) registry() *Registry {
	return p.source.currentRegistry()
}

// WithTracer attaches a tracer so composition calls emit
// "optify.compose" spans; returns the Provider for chaining.
func (p *Provider) WithTracer(tracer *otel.Tracer) *Provider {
	p.tracer = tracer
	return p
}

// WithMetrics attaches a Prometheus metrics recorder for composition
// duration and cache hit/miss counts; returns the Provider for
// chaining.
func (p *Provider) WithMetrics(metrics *otel.Metrics) *Provider {
	p.metrics = metrics
	return p
}

// GetFeatures returns the sorted canonical feature names.
func (p *Provider) GetFeatures() []string {
	return p.registry().Features()
}

// GetAliases returns the sorted list of every registered alias name,
// including identity entries for canonical names.
func (p *Provider) GetAliases() []string {
	return p.registry().Aliases()
}

// GetFeaturesAndAliases returns the sorted union of GetFeatures and
// GetAliases, deduplicated.
func (p *Provider) GetFeaturesAndAliases() []string {
	seen := make(map[string]bool)
	var all []string
	for _, name := range p.registry().Features() {
		if !seen[name] {
			seen[name] = true
			all = append(all, name)
		}
	}
	for _, name := range p.registry().Aliases() {
		if !seen[name] {
			seen[name] = true
			all = append(all, name)
		}
	}
	sort.Strings(all)
	return all
}

// GetCanonicalFeatureName resolves name (alias or canonical,
// case-insensitively) to its canonical form.
func (p *Provider) GetCanonicalFeatureName(name string) (string, error) {
	return p.registry().CanonicalName(name)
}

// GetCanonicalFeatureNames resolves every entry in names, in order,
// failing on the first unknown name.
func (p *Provider) GetCanonicalFeatureNames(names []string) ([]string, error) {
	result := make([]string, 0, len(names))
	for _, name := range names {
		canonical, err := p.registry().CanonicalName(name)
		if err != nil {
			return nil, err
		}
		result = append(result, canonical)
	}
	return result, nil
}

// GetFeatureMetadata returns the metadata for a canonical feature name.
func (p *Provider) GetFeatureMetadata(canonicalName string) (*OptionsMetadata, error) {
	record, ok := p.registry().Feature(canonicalName)
	if !ok {
		return nil, fmt.Errorf("%w: The given feature \"%s\" was not found.", ErrNotFound, canonicalName)
	}
	return &OptionsMetadata{
		Aliases: record.Aliases,
		Owners:  record.Owners,
		Details: record.Details,
		Name:    record.CanonicalName,
		Path:    record.Path,
	}, nil
}

// GetFeaturesWithMetadata returns every feature's metadata, keyed by
// canonical name.
func (p *Provider) GetFeaturesWithMetadata() map[string]*OptionsMetadata {
	result := make(map[string]*OptionsMetadata)
	for _, name := range p.registry().Features() {
		metadata, _ := p.GetFeatureMetadata(name)
		result[name] = metadata
	}
	return result
}

// HasConditions reports whether a canonical feature declares
// conditions.
func (p *Provider) HasConditions(canonicalName string) (bool, error) {
	record, ok := p.registry().Feature(canonicalName)
	if !ok {
		return false, fmt.Errorf("%w: The given feature \"%s\" was not found.", ErrNotFound, canonicalName)
	}
	return record.Conditions != nil, nil
}

// GetFilteredFeatureNames resolves names to canonical form (unless
// preferences.SkipFeatureNameConversion is set) and drops any feature
// whose Conditions evaluate false against preferences.Constraints.
func (p *Provider) GetFilteredFeatureNames(names []string, preferences *Preferences) ([]string, error) {
	if preferences == nil {
		preferences = NewPreferences()
	}

	resolvedNames := names
	if !preferences.SkipFeatureNameConversion {
		canonical, err := p.GetCanonicalFeatureNames(names)
		if err != nil {
			return nil, err
		}
		resolvedNames = canonical
	}

	constraints := preferences.Constraints
	if constraints == nil {
		constraints = map[string]any{}
	}

	var filtered []string
	for _, name := range resolvedNames {
		record, ok := p.registry().Feature(name)
		if !ok {
			return nil, fmt.Errorf("%w: The given feature \"%s\" was not found.", ErrNotFound, name)
		}
		if record.Conditions == nil || record.Conditions.Eval(constraints) {
			filtered = append(filtered, name)
		}
	}
	return filtered, nil
}

// GetAllOptions composes the full merged document for names under
// preferences (or default preferences if nil), consulting cacheOpts
// for memoization.
func (p *Provider) GetAllOptions(names []string, cacheOpts *CacheOptions, preferences *Preferences) (any, error) {
	return p.compose(names, cacheOpts, preferences)
}

// GetOptions is GetOptionsWithPreferences with default preferences and
// no caching.
func (p *Provider) GetOptions(key string, names []string) (any, error) {
	return p.GetOptionsWithPreferences(key, names, nil, nil)
}

// GetOptionsWithPreferences composes names under preferences, then
// projects the sub-tree at key (an RFC 6901 JSON Pointer). A missing
// key fails with the documented literal error shape unless
// preferences.Overrides supplies it.
func (p *Provider) GetOptionsWithPreferences(key string, names []string, cacheOpts *CacheOptions, preferences *Preferences) (any, error) {
	composed, err := p.compose(names, cacheOpts, preferences)
	if err != nil {
		return nil, err
	}
	value, err := getAtPointer(composed, jsonPointerFromKey(key))
	if err != nil {
		return nil, fmt.Errorf("%w: Error getting options with features %v: configuration property \"%s\" not found", ErrKeyNotFound, names, key)
	}
	return value, nil
}

// GetPossibleKeys enumerates the sorted child object keys at the
// sub-tree addressed by pointer within the composition of names.
// Arrays, scalars, and unresolvable pointers yield an empty list
// rather than an error.
func (p *Provider) GetPossibleKeys(names []string, pointer string, preferences *Preferences) ([]string, error) {
	composed, err := p.compose(names, nil, preferences)
	if err != nil {
		return nil, err
	}
	value, ok := lookupPointer(composed, jsonPointerFromKey(pointer))
	if !ok {
		return nil, nil
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, nil
	}
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// GetOptionsFromCache returns the cached composition for names under
// preferences without computing it on a miss, reporting whether the
// entry was present. A request with Overrides always reports a miss.
func (p *Provider) GetOptionsFromCache(names []string, cacheOpts *CacheOptions, preferences *Preferences) (any, bool, error) {
	if cacheOpts == nil {
		return nil, false, nil
	}
	if preferences != nil && preferences.Overrides != nil {
		return nil, false, nil
	}
	resolvedNames, err := p.canonicalizeForCache(names, preferences)
	if err != nil {
		return nil, false, err
	}
	key, err := fingerprintKey(cacheOpts.Key, resolvedNames, preferences)
	if err != nil {
		return nil, false, err
	}
	value, ok := p.cache.Get(key)
	return value, ok, nil
}

// compose runs the full composition algorithm: canonicalize, filter by
// conditions, ordered fold merge, overrides, optional
// configurable-string resolution.
func (p *Provider) compose(names []string, cacheOpts *CacheOptions, preferences *Preferences) (any, error) {
	if p.tracer != nil {
		_, span := p.tracer.Start(context.Background(), "optify.compose")
		defer span.End()
	}
	started := time.Now()
	result, err := p.composeUninstrumented(names, cacheOpts, preferences)
	p.metrics.RecordComposition(time.Since(started), err)
	return result, err
}

func (p *Provider) composeUninstrumented(names []string, cacheOpts *CacheOptions, preferences *Preferences) (any, error) {
	if preferences == nil {
		preferences = NewPreferences()
	}

	resolvedNames, err := p.canonicalizeForCache(names, preferences)
	if err != nil {
		return nil, err
	}

	var cacheKey string
	if cacheOpts != nil {
		if preferences.Overrides != nil {
			return nil, fmt.Errorf("%w: Caching when overrides are given is not supported", ErrCacheOverrides)
		}
		key, err := fingerprintKey(cacheOpts.Key, resolvedNames, preferences)
		if err != nil {
			return nil, err
		}
		cacheKey = key
		if cached, ok := p.cache.Get(cacheKey); ok {
			p.metrics.RecordCacheHit()
			return cached, nil
		}
		p.metrics.RecordCacheMiss()
	}

	filtered, err := p.GetFilteredFeatureNames(resolvedNames, &Preferences{
		Constraints:               preferences.Constraints,
		SkipFeatureNameConversion: true,
	})
	if err != nil {
		return nil, err
	}

	var result any = map[string]any{}
	for _, name := range filtered {
		source, ok := p.registry().Source(name)
		if !ok {
			return nil, fmt.Errorf("%w: The given feature \"%s\" was not found.", ErrNotFound, name)
		}
		result = Merge(result, source)
	}

	if preferences.Overrides != nil {
		result = Merge(result, preferences.Overrides)
	}

	if preferences.AreConfigurableStringsEnabled {
		rendered, err := resolveConfigurableStrings(result, p.registry().fileTable)
		if err != nil {
			return nil, err
		}
		result = rendered
	}

	if cacheOpts != nil {
		p.cache.Set(cacheKey, result)
	}

	return result, nil
}

// canonicalizeForCache resolves names to canonical form unless
// preferences asks to skip that, independent of condition filtering,
// since the cache key and the composition both need the canonical
// form before conditions are evaluated.
func (p *Provider) canonicalizeForCache(names []string, preferences *Preferences) ([]string, error) {
	if preferences != nil && preferences.SkipFeatureNameConversion {
		return names, nil
	}
	return p.GetCanonicalFeatureNames(names)
}

// jsonPointerFromKey accepts either an already-slashed JSON Pointer
// ("/myConfig/key") or the same pointer without its leading slash
// ("myConfig" or "myConfig/key") and normalizes it to an RFC 6901
// pointer. Dots are not treated as separators.
func jsonPointerFromKey(key string) string {
	if key == "" {
		return ""
	}
	if key[0] == '/' {
		return key
	}
	return "/" + key
}
