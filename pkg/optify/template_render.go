package optify

import (
	"fmt"
	"regexp"

	"github.com/osteele/liquid"
)

// FileTable maps a file's path (relative to a loaded root directory)
// to its contents, as captured once at build time. Configurable
// strings with a `{file}` component resolve against this table instead
// of touching disk during rendering.
type FileTable map[string]string

type componentKind int

const (
	componentPlain componentKind = iota
	componentLiquid
	componentFile
)

type templateComponent struct {
	kind  componentKind
	value string
}

// parseComponentSpec interprets one root/component value: a plain
// string, `{"liquid": "..."}`, or `{"file": "path"}`.
func parseComponentSpec(raw any) (*templateComponent, error) {
	switch v := raw.(type) {
	case string:
		return &templateComponent{kind: componentPlain, value: v}, nil
	case map[string]any:
		if liquidSrc, ok := v["liquid"].(string); ok {
			return &templateComponent{kind: componentLiquid, value: liquidSrc}, nil
		}
		if path, ok := v["file"].(string); ok {
			return &templateComponent{kind: componentFile, value: path}, nil
		}
		return nil, fmt.Errorf("%w: component must be a string, {liquid}, or {file}", ErrTemplateRender)
	default:
		return nil, fmt.Errorf("%w: component must be a string, {liquid}, or {file}, got %T", ErrTemplateRender, raw)
	}
}

// componentResolver resolves a configurable string's named components,
// memoizing each result and detecting cyclic references among
// `{liquid}` components. Components are resolved component-by-component
// through a memoized/cycle-checked path ahead of the render, since
// resolution order doesn't affect the final result — only a cycle
// fails, regardless of which component triggers it first.
type componentResolver struct {
	specs      map[string]any
	fileTable  FileTable
	engine     *liquid.Engine
	resolved   map[string]string
	inProgress map[string]bool
}

func newComponentResolver(specs map[string]any, fileTable FileTable, engine *liquid.Engine) *componentResolver {
	return &componentResolver{
		specs:      specs,
		fileTable:  fileTable,
		engine:     engine,
		resolved:   make(map[string]string),
		inProgress: make(map[string]bool),
	}
}

func (r *componentResolver) resolveComponent(name string) (string, error) {
	if value, ok := r.resolved[name]; ok {
		return value, nil
	}
	if r.inProgress[name] {
		return "", fmt.Errorf("%w: cyclic component reference at %q", ErrTemplateRender, name)
	}
	raw, ok := r.specs[name]
	if !ok {
		return "", fmt.Errorf("%w: component %q is not declared", ErrTemplateRender, name)
	}
	spec, err := parseComponentSpec(raw)
	if err != nil {
		return "", err
	}

	r.inProgress[name] = true
	value, err := r.render(spec)
	delete(r.inProgress, name)
	if err != nil {
		return "", err
	}
	r.resolved[name] = value
	return value, nil
}

func (r *componentResolver) render(component *templateComponent) (string, error) {
	switch component.kind {
	case componentPlain:
		return component.value, nil
	case componentFile:
		contents, ok := r.fileTable[component.value]
		if !ok {
			return "", fmt.Errorf("%w: file not found: %q", ErrTemplateRender, component.value)
		}
		return contents, nil
	case componentLiquid:
		return r.renderLiquid(component.value)
	default:
		return "", fmt.Errorf("%w: unknown component kind", ErrTemplateRender)
	}
}

func (r *componentResolver) renderLiquid(source string) (string, error) {
	bindings := make(map[string]any, len(r.specs))
	for _, name := range referencedComponentNames(source, r.specs) {
		value, err := r.resolveComponent(name)
		if err != nil {
			return "", err
		}
		bindings[name] = value
	}

	tpl, err := r.engine.ParseString(source)
	if err != nil {
		return "", fmt.Errorf("%w: parsing liquid template: %w", ErrTemplateRender, err)
	}
	rendered, err := tpl.Render(bindings)
	if err != nil {
		return "", fmt.Errorf("%w: rendering liquid template: %w", ErrTemplateRender, err)
	}
	return string(rendered), nil
}

// referencedComponentNames returns the subset of specs' keys that
// source actually mentions as a liquid variable, so that resolving a
// sibling component never forces resolution of components its own
// template body doesn't touch (that would make an unrelated pair of
// components sharing a resolver look cyclic when neither references
// the other).
func referencedComponentNames(source string, specs map[string]any) []string {
	var referenced []string
	for name := range specs {
		pattern := `\{\{\-?\s*` + regexp.QuoteMeta(name) + `(\s*[\.\|\s\}])`
		if matched, _ := regexp.MatchString(pattern, source+" "); matched {
			referenced = append(referenced, name)
		}
	}
	return referenced
}

// renderConfigurableStringSite renders a single located site (the
// decoded `map[string]any` at one of locateConfigurableStrings'
// pointers) to its resulting string value.
func renderConfigurableStringSite(site map[string]any, fileTable FileTable, engine *liquid.Engine) (string, error) {
	rootRaw, ok := site["root"]
	if !ok {
		return "", fmt.Errorf("%w: configurable string site missing \"root\"", ErrTemplateRender)
	}
	root, err := parseComponentSpec(rootRaw)
	if err != nil {
		return "", err
	}

	components, _ := site["components"].(map[string]any)
	resolver := newComponentResolver(components, fileTable, engine)
	return resolver.render(root)
}
