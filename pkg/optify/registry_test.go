package optify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFeatureFile writes contents to relPath under dir, creating any
// parent directories it needs, and returns the absolute path.
func writeFeatureFile(t *testing.T, dir, relPath, contents string) string {
	t.Helper()
	path := filepath.Join(dir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestBuildSimpleRegistry(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFile(t, dir, "a.json", `{"options": {"myConfig": {"x": 1, "y": 2}}}`)
	writeFeatureFile(t, dir, "b.json", `{"options": {"myConfig": {"y": 9, "z": 3}}}`)

	registry, err := NewBuilder().AddDirectory(dir).Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, registry.Features())
}

func TestBuildSkipsMarkdownAndReservedDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFile(t, dir, "a.json", `{"options": {}}`)
	writeFeatureFile(t, dir, "README.md", "# not a feature")
	writeFeatureFile(t, dir, ".optify/schema.json", `{"not": "scanned"}`)

	registry, err := NewBuilder().AddDirectory(dir).Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, registry.Features())
}

func TestBuildCapturesNonFeatureFilesInFileTable(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFile(t, dir, "a.json", `{"options": {}}`)
	writeFeatureFile(t, dir, "greeting.liquid", "Hello, {{ name }}!")

	registry, err := NewBuilder().AddDirectory(dir).Build()
	require.NoError(t, err)
	contents, ok := registry.fileTable["greeting.liquid"]
	require.True(t, ok)
	assert.Equal(t, "Hello, {{ name }}!", contents)
}

func TestBuildDuplicateCanonicalNameFails(t *testing.T) {
	dirA := t.TempDir()
	writeFeatureFile(t, dirA, "a.json", `{"options": {}}`)
	dirB := t.TempDir()
	writeFeatureFile(t, dirB, "a.yaml", "options: {}")

	_, err := NewBuilder().AddDirectory(dirA).AddDirectory(dirB).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateCanonicalName)
}

func TestBuildDuplicateAliasFails(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFile(t, dir, "a.json", `{"options": {}}`)
	writeFeatureFile(t, dir, "b.json", `{"metadata": {"aliases": ["a"]}, "options": {}}`)

	_, err := NewBuilder().AddDirectory(dir).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateAlias)
	assert.Contains(t, err.Error(), "is already mapped to")
}

func TestBuildAliasCaseInsensitiveCollisionFails(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFile(t, dir, "a.json", `{"metadata": {"aliases": ["Shared"]}, "options": {}}`)
	writeFeatureFile(t, dir, "b.json", `{"metadata": {"aliases": ["shared"]}, "options": {}}`)

	_, err := NewBuilder().AddDirectory(dir).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateAlias)
}

func TestImportInheritance(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFile(t, dir, "base.json", `{"options": {"obj": {"one": 1, "two": 2}}}`)
	writeFeatureFile(t, dir, "child.json", `{"imports": ["base"], "options": {"obj": {"one": 11, "three": 3}}}`)

	registry, err := NewBuilder().AddDirectory(dir).Build()
	require.NoError(t, err)

	source, ok := registry.Source("child")
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"obj": map[string]any{"one": 11.0, "two": 2.0, "three": 3.0},
	}, source)
}

func TestImportByAliasFails(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFile(t, dir, "base.json", `{"metadata": {"aliases": ["b"]}, "options": {}}`)
	writeFeatureFile(t, dir, "child.json", `{"imports": ["b"], "options": {}}`)

	_, err := NewBuilder().AddDirectory(dir).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImportByAlias)
	assert.Contains(t, err.Error(), "canonical feature name 'base'")
}

func TestImportUnknownFeatureFails(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFile(t, dir, "child.json", `{"imports": ["missing"], "options": {}}`)

	_, err := NewBuilder().AddDirectory(dir).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImportOfConditionalFeatureFails(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFile(t, dir, "base.json", `{"conditions": {"jsonPointer": "/x", "equals": 1}, "options": {}}`)
	writeFeatureFile(t, dir, "child.json", `{"imports": ["base"], "options": {}}`)

	_, err := NewBuilder().AddDirectory(dir).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConditionsOnImport)
}

func TestImportCycleDetected(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFile(t, dir, "a.json", `{"imports": ["b"], "options": {}}`)
	writeFeatureFile(t, dir, "b.json", `{"imports": ["a"], "options": {}}`)

	_, err := NewBuilder().AddDirectory(dir).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "Cycle detected with import")
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
}

func TestInvalidConditionRegexFailsBuild(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFile(t, dir, "a.json", `{"conditions": {"jsonPointer": "/x", "matches": "(unterminated"}, "options": {}}`)

	_, err := NewBuilder().AddDirectory(dir).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConditionPattern)
}

func TestDependentsComputedAfterLoad(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFile(t, dir, "base.json", `{"options": {}}`)
	writeFeatureFile(t, dir, "child-a.json", `{"imports": ["base"], "options": {}}`)
	writeFeatureFile(t, dir, "child-b.json", `{"imports": ["base"], "options": {}}`)

	registry, err := NewBuilder().AddDirectory(dir).Build()
	require.NoError(t, err)

	base, ok := registry.Feature("base")
	require.True(t, ok)
	assert.Equal(t, []string{"child-a", "child-b"}, base.Dependents)
}

func TestCanonicalNameResolvesAliasCaseInsensitively(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFile(t, dir, "a.json", `{"metadata": {"aliases": ["Primary"]}, "options": {}}`)

	registry, err := NewBuilder().AddDirectory(dir).Build()
	require.NoError(t, err)

	canonical, err := registry.CanonicalName("PRIMARY")
	require.NoError(t, err)
	assert.Equal(t, "a", canonical)

	canonical, err = registry.CanonicalName("A")
	require.NoError(t, err)
	assert.Equal(t, "a", canonical)
}

func TestSchemaValidationRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFile(t, dir, "a.json", `{"unexpectedField": true, "options": {}}`)
	schemaPath := writeFeatureFile(t, dir, ".optify/schema.json", `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"metadata": {"type": "object"},
			"imports": {"type": "array"},
			"conditions": {},
			"options": {"type": "object"}
		}
	}`)

	_, err := NewBuilder().AddDirectory(dir).WithSchema(schemaPath).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaValidation)
}
