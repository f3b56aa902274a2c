package optify

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/titanous/json5"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// OptionsMetadata is the informational part of a feature file: an
// author-supplied alias list plus bookkeeping the loader fills in after
// parsing.
type OptionsMetadata struct {
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty" toml:"aliases,omitempty"`
	Owners  string   `yaml:"owners,omitempty" json:"owners,omitempty" toml:"owners,omitempty"`
	Details any      `yaml:"details,omitempty" json:"details,omitempty" toml:"details,omitempty"`

	// Name and Path are never read from the file; Provider.GetFeatureMetadata
	// fills them in with the canonical name derived from the file's
	// location and its absolute path, respectively.
	Name string `yaml:"-" json:"-" toml:"-"`
	Path string `yaml:"-" json:"-" toml:"-"`
}

// rawFeatureFile is the format-agnostic decoded shape of one feature
// file, before condition parsing and canonical-name assignment.
type rawFeatureFile struct {
	Metadata   *OptionsMetadata `yaml:"metadata,omitempty" json:"metadata,omitempty" toml:"metadata,omitempty" validate:"omitempty"`
	Imports    []string         `yaml:"imports,omitempty" json:"imports,omitempty" toml:"imports,omitempty" validate:"omitempty,dive,required"`
	Conditions any              `yaml:"conditions,omitempty" json:"conditions,omitempty" toml:"conditions,omitempty"`
	Options    any              `yaml:"options,omitempty" json:"options,omitempty" toml:"options,omitempty"`
}

var fileValidator = validator.New()

// decodeFeatureFile dispatches on path's extension to the matching
// format decoder, canonicalizes the result to a rawFeatureFile, and
// runs struct-level validation before any condition parsing or import
// resolution happens.
//
// Recognized extensions: .json, .yaml/.yml, .toml, .json5. Any other
// extension is skipped by the caller (walkDirectory in loader.go) before this is ever
// reached, except for the reserved .optify/ directory (see loader.go).
func decodeFeatureFile(path string, contents []byte, schema *gojsonschema.Schema) (*rawFeatureFile, error) {
	if schema != nil {
		if err := validateAgainstSchema(path, contents, schema); err != nil {
			return nil, err
		}
	}

	var file rawFeatureFile
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(contents, &file)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(contents, &file)
	case ".toml":
		err = toml.Unmarshal(contents, &file)
	case ".json5":
		err = json5.Unmarshal(contents, &file)
	default:
		return nil, fmt.Errorf("unsupported feature file extension %q for file '%s'", ext, path)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing file '%s': %w", path, err)
	}

	if err := fileValidator.Struct(&file); err != nil {
		return nil, fmt.Errorf("error validating file '%s': %w", path, err)
	}

	return &file, nil
}

// validateAgainstSchema re-decodes contents as a generic JSON document
// (reusing the same format dispatch) and validates it against schema
// before the typed decode runs, so that unknown or malformed fields are
// rejected with a schema-shaped error rather than silently dropped by
// the typed struct decoder.
//
// Grounded verbatim in vvoland-cagent/pkg/config/examples_test.go's
// TestJsonSchemaWorksForExamples, which validates a raw document
// against a gojsonschema.Schema before further processing.
func validateAgainstSchema(path string, contents []byte, schema *gojsonschema.Schema) error {
	var doc any
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(contents, &doc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(contents, &doc)
	case ".toml":
		err = toml.Unmarshal(contents, &doc)
	case ".json5":
		err = json5.Unmarshal(contents, &doc)
	default:
		return fmt.Errorf("unsupported feature file extension %q for file '%s'", ext, path)
	}
	if err != nil {
		return fmt.Errorf("error parsing file '%s' for schema validation: %w", path, err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: error validating file '%s': %w", ErrSchemaValidation, path, err)
	}
	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, issue := range result.Errors() {
			messages = append(messages, issue.String())
		}
		return fmt.Errorf("%w: file '%s': %s", ErrSchemaValidation, path, strings.Join(messages, "; "))
	}
	return nil
}

// loadSchema reads a JSON Schema document from path for optional
// feature-file validation.
func loadSchema(path string) (*gojsonschema.Schema, error) {
	loader := gojsonschema.NewReferenceLoader("file://" + path)
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("error loading schema '%s': %w", path, err)
	}
	return schema, nil
}
