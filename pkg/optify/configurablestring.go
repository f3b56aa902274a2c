package optify

import (
	"fmt"

	"github.com/osteele/liquid"
)

// resolveConfigurableStrings locates every configurable-string site in
// doc and replaces each one, at its JSON Pointer, with its rendered
// string value. doc is not mutated: when any site is found a new tree
// is returned, and when none is found doc itself is returned.
func resolveConfigurableStrings(doc any, fileTable FileTable) (any, error) {
	pointers := locateConfigurableStrings(doc)
	if len(pointers) == 0 {
		return doc, nil
	}

	engine := liquid.NewEngine()
	result := cloneValue(doc)

	// A root-level site (pointer == "") replaces the whole document;
	// locateConfigurableStrings never returns "" alongside other
	// pointers, since it stops recursing into a found site.
	if len(pointers) == 1 && pointers[0] == "" {
		site, ok := result.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: root site is not an object", ErrTemplateRender)
		}
		return renderConfigurableStringSite(site, fileTable, engine)
	}

	for _, pointer := range pointers {
		siteValue, err := getAtPointer(result, pointer)
		if err != nil {
			return nil, fmt.Errorf("%w: resolving site at %q: %w", ErrTemplateRender, pointer, err)
		}
		site, ok := siteValue.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: site at %q is not an object", ErrTemplateRender, pointer)
		}
		rendered, err := renderConfigurableStringSite(site, fileTable, engine)
		if err != nil {
			return nil, fmt.Errorf("%w: site at %q: %w", ErrTemplateRender, pointer, err)
		}
		if err := setAtPointer(result, pointer, rendered); err != nil {
			return nil, fmt.Errorf("%w: replacing site at %q: %w", ErrTemplateRender, pointer, err)
		}
	}
	return result, nil
}

// setAtPointer replaces the value found at pointer within doc in
// place. pointer must resolve to an existing location; the root ("")
// case is handled separately by resolveConfigurableStrings, which
// returns the rendered value directly instead of mutating in place.
func setAtPointer(doc any, pointer string, value any) error {
	if pointer == "" {
		return nil
	}
	return setAtSegments(doc, splitPointer(pointer), value)
}

func setAtSegments(doc any, segments []string, value any) error {
	switch container := doc.(type) {
	case map[string]any:
		key := unescapePointerSegment(segments[0])
		if len(segments) == 1 {
			container[key] = value
			return nil
		}
		child, ok := container[key]
		if !ok {
			return fmt.Errorf("no such key %q", key)
		}
		return setAtSegments(child, segments[1:], value)
	case []any:
		index, err := parsePointerIndex(segments[0], len(container))
		if err != nil {
			return err
		}
		if len(segments) == 1 {
			container[index] = value
			return nil
		}
		return setAtSegments(container[index], segments[1:], value)
	default:
		return fmt.Errorf("cannot descend into %T", doc)
	}
}
