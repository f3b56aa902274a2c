package optify

import (
	"sort"
	"strconv"
)

const (
	configurableStringTypeKey = "$type"
	configurableStringType    = "Optify.ConfigurableString"
)

// locateConfigurableStrings deep-walks doc and returns the sorted JSON
// Pointers of every configurable-string marker site: an object bearing
// `"$type": "Optify.ConfigurableString"`. Recursion does not continue
// into a found site's own sub-tree (a nested marker inside a site's
// "components" is not itself a separate site). The result is sorted
// since Go map iteration order is not stable.
func locateConfigurableStrings(doc any) []string {
	var pointers []string
	walkConfigurableStrings(doc, "", &pointers)
	sort.Strings(pointers)
	return pointers
}

func walkConfigurableStrings(value any, path string, pointers *[]string) {
	switch v := value.(type) {
	case map[string]any:
		if typeValue, ok := v[configurableStringTypeKey]; ok {
			if typeStr, ok := typeValue.(string); ok && typeStr == configurableStringType {
				*pointers = append(*pointers, path)
				return
			}
		}
		for key, sub := range v {
			walkConfigurableStrings(sub, path+"/"+escapePointerSegment(key), pointers)
		}
	case []any:
		for i, sub := range v {
			walkConfigurableStrings(sub, path+"/"+strconv.Itoa(i), pointers)
		}
	}
}
