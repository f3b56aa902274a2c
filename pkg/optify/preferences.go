package optify

import "encoding/json"

// Preferences carries the per-request knobs a composition can be asked
// to honor: constraints for condition evaluation, overrides applied
// last, and two opt-in flags.
type Preferences struct {
	// Constraints is consulted when evaluating a feature's Conditions.
	// A nil Constraints behaves as an empty JSON object.
	Constraints any

	// Overrides, when non-nil, is merged on top of the composed result
	// last. A request with Overrides is never read from or written to
	// the cache (see Provider.compose and Provider.GetOptionsFromCache).
	Overrides any

	// SkipFeatureNameConversion, when true, treats the caller's feature
	// names as already canonical instead of resolving aliases.
	SkipFeatureNameConversion bool

	// AreConfigurableStringsEnabled, when true, locates and renders
	// configurable-string sites in the composed result.
	AreConfigurableStringsEnabled bool
}

// NewPreferences returns the zero-value Preferences (all flags false,
// no constraints, no overrides).
func NewPreferences() *Preferences {
	return &Preferences{}
}

// SetConstraints sets Constraints directly from an already-decoded
// JSON value (map[string]any, slice, or scalar), or clears it when
// given nil.
func (p *Preferences) SetConstraints(constraints any) *Preferences {
	p.Constraints = constraints
	return p
}

// SetConstraintsJSON decodes constraintsJSON and sets Constraints from
// the result, returning an error if it isn't valid JSON.
func (p *Preferences) SetConstraintsJSON(constraintsJSON string) error {
	var decoded any
	if err := json.Unmarshal([]byte(constraintsJSON), &decoded); err != nil {
		return err
	}
	p.Constraints = decoded
	return nil
}
