package optify

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/xeipuuv/gojsonpointer"
)

// Eval reports whether c holds against constraints, a decoded JSON
// document (typically map[string]any) supplied by the caller for a
// single GetOptions request. An absent jsonPointer target is treated
// as "does not match" rather than an error, so a feature with
// conditions simply doesn't apply when the caller supplies no
// relevant constraint.
func (c *Condition) Eval(constraints any) bool {
	switch c.kind {
	case conditionAnd:
		for _, child := range c.children {
			if !child.Eval(constraints) {
				return false
			}
		}
		return true
	case conditionOr:
		for _, child := range c.children {
			if child.Eval(constraints) {
				return true
			}
		}
		return false
	case conditionNot:
		return !c.negated.Eval(constraints)
	case conditionLeaf:
		value, found := lookupPointer(constraints, c.jsonPointer)
		if !found {
			return false
		}
		if c.matches != nil {
			return c.matches.MatchString(stringify(value))
		}
		return reflect.DeepEqual(canonicalize(value), canonicalize(c.equals))
	default:
		return false
	}
}

// lookupPointer resolves an RFC 6901 JSON Pointer against doc, returning
// (nil, false) for any error (missing segment, index out of range, not
// a container) rather than surfacing gojsonpointer's error type, since
// a missing constraint is a normal, expected case here.
func lookupPointer(doc any, pointer string) (any, bool) {
	ptr, err := gojsonpointer.NewJsonPointer(pointer)
	if err != nil {
		return nil, false
	}
	value, _, err := ptr.Get(doc)
	if err != nil {
		return nil, false
	}
	return value, true
}

// stringify renders value the way a constraint document would encode
// it as text, so that "matches" can test non-string leaves (numbers,
// booleans) against a pattern too.
func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}

// canonicalize round-trips value through JSON so structurally equal
// values compare equal regardless of numeric representation
// (float64 vs. int) or map key ordering.
func canonicalize(value any) any {
	encoded, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return value
	}
	return decoded
}
