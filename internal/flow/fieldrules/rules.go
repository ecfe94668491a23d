// Package fieldrules resolves per-field display, required, and interaction
// policy from the active entity context. Rules live in a build-time table;
// resolution is deterministic and side-effect free.
package fieldrules

import (
	"onboard/internal/domain"
)

// Display controls whether a field is rendered at all.
type Display string

const (
	DisplayVisible Display = "visible"
	DisplayHidden  Display = "hidden"
)

// Interaction controls how a rendered field accepts input.
type Interaction string

const (
	InteractionEnabled  Interaction = "enabled"
	InteractionReadonly Interaction = "readonly"
	InteractionDisabled Interaction = "disabled"
)

// FieldRule is the resolved policy for one field in one entity context.
type FieldRule struct {
	Display     Display
	Required    bool
	Interaction Interaction
}

// Override lets a step pin individual attributes for a single resolution,
// e.g. marking a field required regardless of base rules. Nil members defer
// to the resolver.
type Override struct {
	Display     *Display
	Required    *bool
	Interaction *Interaction
}

// conditional mutates the resolved rule when its predicate holds for the
// entity context. Conditionals apply in declaration order, later wins.
type conditional struct {
	when  func(domain.EntityContext) bool
	apply func(*FieldRule)
}

// spec is one table entry: a base rule plus context-dependent adjustments.
type spec struct {
	base         FieldRule
	conditionals []conditional
}

// Table maps logical field paths to their rule specs for one flow version.
type Table map[string]spec

func visible(required bool) FieldRule {
	return FieldRule{Display: DisplayVisible, Required: required, Interaction: InteractionEnabled}
}

func hidden() FieldRule {
	return FieldRule{Display: DisplayHidden, Required: false, Interaction: InteractionDisabled}
}

func forEntityTypes(types ...domain.EntityType) func(domain.EntityContext) bool {
	return func(ctx domain.EntityContext) bool {
		for _, t := range types {
			if ctx.EntityType == t {
				return true
			}
		}
		return false
	}
}

func forJurisdiction(jurisdiction string) func(domain.EntityContext) bool {
	return func(ctx domain.EntityContext) bool {
		return ctx.Jurisdiction == jurisdiction
	}
}

func require() func(*FieldRule) {
	return func(r *FieldRule) { r.Required = true }
}

func optional() func(*FieldRule) {
	return func(r *FieldRule) { r.Required = false }
}

func hide() func(*FieldRule) {
	return func(r *FieldRule) {
		r.Display = DisplayHidden
		r.Required = false
		r.Interaction = InteractionDisabled
	}
}

func readonly() func(*FieldRule) {
	return func(r *FieldRule) { r.Interaction = InteractionReadonly }
}

// DefaultTable is the rule table for the current flow version. Field paths
// here must stay in lockstep with the step definitions in the flow registry;
// the registry test cross-checks them.
func DefaultTable() Table {
	return Table{
		"organizationDetails.organizationName": {base: visible(true)},
		"organizationDetails.yearOfFormation":  {base: visible(true)},
		"organizationDetails.countryOfFormation": {base: visible(true), conditionals: []conditional{
			{when: forJurisdiction("US"), apply: readonly()},
		}},
		"organizationDetails.organizationIds.ein": {base: visible(false), conditionals: []conditional{
			{when: forJurisdiction("US"), apply: require()},
			{when: forEntityTypes(domain.EntityTypeSoleProprietorship), apply: optional()},
		}},
		"organizationDetails.industryCode": {base: visible(true)},
		"organizationDetails.website":      {base: visible(false)},
		"organizationDetails.phone":        {base: visible(true)},
		"organizationDetails.address.line1":      {base: visible(true)},
		"organizationDetails.address.city":       {base: visible(true)},
		"organizationDetails.address.state":      {base: visible(false), conditionals: []conditional{
			{when: forJurisdiction("US"), apply: require()},
		}},
		"organizationDetails.address.postalCode": {base: visible(true)},

		"individualDetails.firstName": {base: visible(true)},
		"individualDetails.lastName":  {base: visible(true)},
		"individualDetails.birthDate": {base: visible(true)},
		"individualDetails.jobTitle":  {base: visible(false), conditionals: []conditional{
			{when: forEntityTypes(domain.EntityTypeCCorp, domain.EntityTypeSCorp), apply: require()},
		}},
		"individualDetails.individualIds.ssn": {base: visible(false), conditionals: []conditional{
			{when: forJurisdiction("US"), apply: require()},
		}},
		"individualDetails.countryOfResidence":  {base: visible(true)},
		"individualDetails.natureOfOwnership": {base: hidden(), conditionals: []conditional{
			{when: forEntityTypes(domain.EntityTypeLLC, domain.EntityTypeCCorp, domain.EntityTypeSCorp, domain.EntityTypePartnership),
				apply: func(r *FieldRule) { *r = visible(true) }},
		}},
		"individualDetails.address.line1":      {base: visible(true)},
		"individualDetails.address.city":       {base: visible(true)},
		"individualDetails.address.state":      {base: visible(false), conditionals: []conditional{
			{when: forJurisdiction("US"), apply: require()},
		}},
		"individualDetails.address.postalCode": {base: visible(true)},

		"attestation.accuracyConfirmed": {base: visible(true)},
		"attestation.termsAccepted":     {base: visible(true)},
	}
}
