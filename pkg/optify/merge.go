package optify

// Merge recursively merges source into a clone of target and returns
// the result. Object keys present in source recurse into the matching
// target key when both sides hold an object; any other shape
// (including arrays) is replaced outright by a clone of the source
// value. target and source are never mutated.
func Merge(target, source any) any {
	targetMap, targetIsObject := target.(map[string]any)
	sourceMap, sourceIsObject := source.(map[string]any)

	if !targetIsObject || !sourceIsObject {
		return cloneValue(source)
	}

	result := make(map[string]any, len(targetMap)+len(sourceMap))
	for k, v := range targetMap {
		result[k] = v
	}
	for key, sourceValue := range sourceMap {
		if existing, ok := result[key]; ok {
			result[key] = Merge(existing, sourceValue)
		} else {
			result[key] = cloneValue(sourceValue)
		}
	}
	return result
}

// MergeWithDefaults fills gaps in target from defaults, recursing into
// object-valued gaps, without letting defaults override anything target
// already supplies. It is the symmetric inverse of Merge, useful for
// overlay use cases outside the main composition path.
func MergeWithDefaults(target, defaults any) any {
	targetMap, targetIsObject := target.(map[string]any)
	if !targetIsObject {
		// target already has a concrete, non-object value; it wins outright.
		return cloneValue(target)
	}

	defaultsMap, defaultsIsObject := defaults.(map[string]any)
	if !defaultsIsObject {
		// defaults isn't an object but target is; keep target as-is.
		return cloneValue(target)
	}

	result := make(map[string]any, len(targetMap)+len(defaultsMap))
	for k, v := range targetMap {
		result[k] = v
	}
	for key, defaultValue := range defaultsMap {
		if existing, ok := result[key]; ok {
			result[key] = MergeWithDefaults(existing, defaultValue)
		} else {
			result[key] = cloneValue(defaultValue)
		}
	}
	return result
}

// cloneValue deep-clones a decoded-JSON value (map[string]any,
// []any, or a scalar) so that merge results never alias the inputs.
func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		cloned := make(map[string]any, len(value))
		for k, sub := range value {
			cloned[k] = cloneValue(sub)
		}
		return cloned
	case []any:
		cloned := make([]any, len(value))
		for i, sub := range value {
			cloned[i] = cloneValue(sub)
		}
		return cloned
	default:
		return value
	}
}
