package domain

import dErrors "onboard/pkg/domain-errors"

// EntityType is the legal organization type of the client being onboarded.
// Invariant: the value must be one of the supported types; construct via
// ParseEntityType at trust boundaries.
type EntityType string

const (
	EntityTypeSoleProprietorship EntityType = "SOLE_PROPRIETORSHIP"
	EntityTypeLLC                EntityType = "LIMITED_LIABILITY_COMPANY"
	EntityTypeCCorp              EntityType = "C_CORPORATION"
	EntityTypeSCorp              EntityType = "S_CORPORATION"
	EntityTypePartnership        EntityType = "PARTNERSHIP"
	EntityTypeIndividual         EntityType = "INDIVIDUAL"
)

// validEntityTypes is the single source of truth for supported types.
var validEntityTypes = map[EntityType]bool{
	EntityTypeSoleProprietorship: true,
	EntityTypeLLC:                true,
	EntityTypeCCorp:              true,
	EntityTypeSCorp:              true,
	EntityTypePartnership:        true,
	EntityTypeIndividual:         true,
}

// ParseEntityType constructs an EntityType from external input.
func ParseEntityType(s string) (EntityType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "entity type cannot be empty")
	}
	t := EntityType(s)
	if !validEntityTypes[t] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported entity type %q", s)
	}
	return t, nil
}

func (t EntityType) IsValid() bool { return validEntityTypes[t] }

// EntityContext carries the client attributes that parameterize which flow
// sections, fields, and rules apply. Immutable for the duration of a
// resolution.
type EntityContext struct {
	EntityType   EntityType
	Jurisdiction string
	Products     []string
}

// HasProduct reports whether the client selected the given product.
func (c EntityContext) HasProduct(product string) bool {
	for _, p := range c.Products {
		if p == product {
			return true
		}
	}
	return false
}
