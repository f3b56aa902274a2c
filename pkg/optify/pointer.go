package optify

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonpointer"
)

// getAtPointer resolves an RFC 6901 JSON Pointer against doc and returns
// the sub-tree found there. The empty pointer "" returns doc itself;
// "/" addresses the member whose key is the empty string. Used by Provider.GetOptions' key projection, distinct from
// conditions_eval.go's lookupPointer in that a missing pointer here is
// an error (ErrKeyNotFound), not a false condition.
func getAtPointer(doc any, pointer string) (any, error) {
	if pointer == "" {
		return doc, nil
	}
	ptr, err := gojsonpointer.NewJsonPointer(pointer)
	if err != nil {
		return nil, fmt.Errorf("invalid key \"%s\": %w", pointer, err)
	}
	value, _, err := ptr.Get(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: configuration property \"%s\" not found", ErrKeyNotFound, strings.TrimPrefix(pointer, "/"))
	}
	return value, nil
}

// childPointers returns the sorted, immediate child JSON Pointers one
// level below pointer in doc. Only object-valued nodes have enumerable children; arrays and scalars
// yield none.
func childPointers(doc any, pointer string) []string {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	children := make([]string, 0, len(obj))
	for key := range obj {
		children = append(children, pointer+"/"+escapePointerSegment(key))
	}
	sort.Strings(children)
	return children
}

// escapePointerSegment applies the RFC 6901 "~1"/"~0" escaping a raw map
// key needs before it can be appended to a pointer string.
func escapePointerSegment(segment string) string {
	segment = strings.ReplaceAll(segment, "~", "~0")
	segment = strings.ReplaceAll(segment, "/", "~1")
	return segment
}

// unescapePointerSegment reverses escapePointerSegment.
func unescapePointerSegment(segment string) string {
	segment = strings.ReplaceAll(segment, "~1", "/")
	segment = strings.ReplaceAll(segment, "~0", "~")
	return segment
}

// splitPointer splits a non-empty JSON Pointer into its raw (still
// escaped) segments, dropping the leading "/".
func splitPointer(pointer string) []string {
	return strings.Split(strings.TrimPrefix(pointer, "/"), "/")
}

// parsePointerIndex parses a JSON Pointer array-index segment, bounds
// checked against length.
func parsePointerIndex(segment string, length int) (int, error) {
	index, err := strconv.Atoi(segment)
	if err != nil {
		return 0, fmt.Errorf("invalid array index %q", segment)
	}
	if index < 0 || index >= length {
		return 0, fmt.Errorf("array index %d out of range", index)
	}
	return index, nil
}
