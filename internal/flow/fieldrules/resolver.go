package fieldrules

import (
	"onboard/internal/domain"
	dErrors "onboard/pkg/domain-errors"
)

// Resolver answers field policy lookups against one rule table.
type Resolver struct {
	table Table
}

func NewResolver(table Table) *Resolver {
	return &Resolver{table: table}
}

// NewDefaultResolver builds a resolver over the current flow version's table.
func NewDefaultResolver() *Resolver {
	return NewResolver(DefaultTable())
}

// Resolve returns the policy for a field in the given entity context. The
// resolver's values are authoritative unless the caller supplies an override,
// which wins for this single resolution only.
//
// Unknown field paths are configuration errors: the form references a field
// the rule table never heard of, which means form and table drifted apart.
func (r *Resolver) Resolve(fieldPath string, ctx domain.EntityContext, override *Override) (FieldRule, error) {
	entry, ok := r.table[fieldPath]
	if !ok {
		return FieldRule{}, dErrors.Newf(dErrors.CodeConfiguration,
			"field %q is not in the rule table", fieldPath)
	}

	rule := entry.base
	for _, cond := range entry.conditionals {
		if cond.when(ctx) {
			cond.apply(&rule)
		}
	}

	if override != nil {
		if override.Display != nil {
			rule.Display = *override.Display
		}
		if override.Required != nil {
			rule.Required = *override.Required
		}
		if override.Interaction != nil {
			rule.Interaction = *override.Interaction
		}
	}

	return rule, nil
}

// Known reports whether the table has an entry for the field path. The
// registry test uses it to keep step definitions and the table in lockstep.
func (r *Resolver) Known(fieldPath string) bool {
	_, ok := r.table[fieldPath]
	return ok
}
