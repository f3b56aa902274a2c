package optify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildProvider(t *testing.T, files map[string]string) *Provider {
	t.Helper()
	dir := t.TempDir()
	for relPath, contents := range files {
		writeFeatureFile(t, dir, relPath, contents)
	}
	registry, err := NewBuilder().AddDirectory(dir).Build()
	require.NoError(t, err)
	return NewProvider(registry)
}

// E1 — simple merge: later feature wins on key collision.
func TestE1SimpleMerge(t *testing.T) {
	provider := buildProvider(t, map[string]string{
		"A.json": `{"options": {"myConfig": {"x": 1, "y": 2}}}`,
		"B.json": `{"options": {"myConfig": {"y": 9, "z": 3}}}`,
	})
	got, err := provider.GetOptions("myConfig", []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1.0, "y": 9.0, "z": 3.0}, got)
}

// E2 — order matters: reversing the feature order changes the winner.
func TestE2OrderMatters(t *testing.T) {
	provider := buildProvider(t, map[string]string{
		"A.json": `{"options": {"myConfig": {"x": 1, "y": 2}}}`,
		"B.json": `{"options": {"myConfig": {"y": 9, "z": 3}}}`,
	})
	got, err := provider.GetOptions("myConfig", []string{"B", "A"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1.0, "y": 2.0, "z": 3.0}, got)
}

// E3 — arrays are replaced outright, never concatenated.
func TestE3ArraysReplaced(t *testing.T) {
	provider := buildProvider(t, map[string]string{
		"A.json": `{"options": {"k": {"arr": [1, 2, 3]}}}`,
		"B.json": `{"options": {"k": {"arr": [4, 5]}}}`,
	})
	got, err := provider.GetOptions("k", []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"arr": []any{4.0, 5.0}}, got)
}

// E4 — imports fold beneath a feature's own options.
func TestE4ImportInheritance(t *testing.T) {
	provider := buildProvider(t, map[string]string{
		"base.json":  `{"options": {"obj": {"one": 1, "two": 2}}}`,
		"child.json": `{"imports": ["base"], "options": {"obj": {"one": 11, "three": 3}}}`,
	})
	got, err := provider.GetOptions("obj", []string{"child"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"one": 11.0, "two": 2.0, "three": 3.0}, got)
}

// E5 — a condition gates whether a feature survives GetFilteredFeatureNames.
func TestE5ConditionFilter(t *testing.T) {
	provider := buildProvider(t, map[string]string{
		"a.json": `{"conditions": {"jsonPointer": "/info", "equals": 3}, "options": {}}`,
		"b.json": `{"options": {}}`,
	})

	filtered, err := provider.GetFilteredFeatureNames([]string{"a", "b"},
		NewPreferences().SetConstraints(map[string]any{"info": 2.0}))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, filtered)

	filtered, err = provider.GetFilteredFeatureNames([]string{"a", "b"},
		NewPreferences().SetConstraints(map[string]any{"info": 3.0}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, filtered)
}

// E6 — overrides can supply a key absent from every composed feature.
func TestE6OverridesSupplyMissingKey(t *testing.T) {
	provider := buildProvider(t, map[string]string{
		"A.json": `{"options": {"present": 1}}`,
	})
	preferences := NewPreferences()
	preferences.Overrides = map[string]any{"does not exist": 42.0}

	got, err := provider.GetOptionsWithPreferences("does not exist", []string{"A"}, nil, preferences)
	require.NoError(t, err)
	assert.Equal(t, 42.0, got)
}

func TestGetOptionsMissingKeyErrors(t *testing.T) {
	provider := buildProvider(t, map[string]string{
		"A.json": `{"options": {"present": 1}}`,
	})
	_, err := provider.GetOptions("does not exist", []string{"A"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `configuration property "does not exist" not found`)
}

func TestGetAllOptionsMergesEveryFeature(t *testing.T) {
	provider := buildProvider(t, map[string]string{
		"A.json": `{"options": {"a": 1}}`,
		"B.json": `{"options": {"b": 2}}`,
	})
	got, err := provider.GetAllOptions([]string{"A", "B"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, got)
}

func TestUnknownFeatureNameErrors(t *testing.T) {
	provider := buildProvider(t, map[string]string{
		"A.json": `{"options": {}}`,
	})
	_, err := provider.GetOptions("x", []string{"nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), `The given feature "nope" was not found.`)
}

func TestSkipFeatureNameConversionTreatsNamesAsCanonical(t *testing.T) {
	provider := buildProvider(t, map[string]string{
		"dir/nested.json": `{"metadata": {"aliases": ["shortcut"]}, "options": {"v": 1}}`,
	})
	preferences := NewPreferences()
	preferences.SkipFeatureNameConversion = true

	got, err := provider.GetAllOptions([]string{"dir/nested"}, nil, preferences)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"v": 1.0}, got)

	_, err = provider.GetAllOptions([]string{"shortcut"}, nil, preferences)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPossibleKeys(t *testing.T) {
	provider := buildProvider(t, map[string]string{
		"A.json": `{"options": {"section": {"b": 1, "a": 2, "arr": [1, 2]}}}`,
	})
	keys, err := provider.GetPossibleKeys([]string{"A"}, "section", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "arr", "b"}, keys)

	keys, err = provider.GetPossibleKeys([]string{"A"}, "section/arr", nil)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCachingRoundTrip(t *testing.T) {
	provider := buildProvider(t, map[string]string{
		"A.json": `{"options": {"v": 1}}`,
	})
	cacheOpts := &CacheOptions{Key: "request-1"}

	value, hit, err := provider.GetOptionsFromCache([]string{"A"}, cacheOpts, nil)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, value)

	composed, err := provider.GetAllOptions([]string{"A"}, cacheOpts, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"v": 1.0}, composed)

	value, hit, err = provider.GetOptionsFromCache([]string{"A"}, cacheOpts, nil)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, composed, value)
}

func TestCachingNormalizesFeatureNameCase(t *testing.T) {
	provider := buildProvider(t, map[string]string{
		"feature_A.json": `{"options": {"v": 1}}`,
	})
	cacheOpts := &CacheOptions{}

	_, err := provider.GetAllOptions([]string{"feature_A"}, cacheOpts, nil)
	require.NoError(t, err)

	value, hit, err := provider.GetOptionsFromCache([]string{"FEATURE_A"}, cacheOpts, nil)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, map[string]any{"v": 1.0}, value)
}

func TestCachingWithOverridesIsRejected(t *testing.T) {
	provider := buildProvider(t, map[string]string{
		"A.json": `{"options": {"v": 1}}`,
	})
	preferences := NewPreferences()
	preferences.Overrides = map[string]any{"v": 2.0}

	_, err := provider.GetAllOptions([]string{"A"}, &CacheOptions{}, preferences)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCacheOverrides)
}

func TestConfigurableStringsDisabledByDefault(t *testing.T) {
	provider := buildProvider(t, map[string]string{
		"A.json": `{"options": {"greeting": {"$type": "Optify.ConfigurableString", "root": "Hi there", "components": {}}}}`,
	})
	got, err := provider.GetAllOptions([]string{"A"}, nil, nil)
	require.NoError(t, err)
	greeting := got.(map[string]any)["greeting"].(map[string]any)
	assert.Equal(t, "Optify.ConfigurableString", greeting["$type"])
}

func TestConfigurableStringsRenderedWhenEnabled(t *testing.T) {
	provider := buildProvider(t, map[string]string{
		"A.json": `{"options": {"greeting": {"$type": "Optify.ConfigurableString", "root": {"liquid": "Hi, {{ name }}!"}, "components": {"name": "Bob"}}}}`,
	})
	preferences := NewPreferences()
	preferences.AreConfigurableStringsEnabled = true

	got, err := provider.GetAllOptions([]string{"A"}, nil, preferences)
	require.NoError(t, err)
	assert.Equal(t, "Hi, Bob!", got.(map[string]any)["greeting"])
}

func TestFeatureMetadataAndHasConditions(t *testing.T) {
	provider := buildProvider(t, map[string]string{
		"base.json":  `{"metadata": {"owners": "team-a"}, "options": {}}`,
		"child.json": `{"imports": ["base"], "options": {}}`,
	})
	metadata, err := provider.GetFeatureMetadata("base")
	require.NoError(t, err)
	assert.Equal(t, "team-a", metadata.Owners)
	assert.Equal(t, "base", metadata.Name)

	has, err := provider.HasConditions("base")
	require.NoError(t, err)
	assert.False(t, has)
}
