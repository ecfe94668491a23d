package flow

import (
	"fmt"
	"strings"

	"onboard/internal/domain"
	"onboard/internal/flow/fieldrules"
	"onboard/internal/schema"
)

// Section and step ids for the current flow version. Navigation state
// persists these, so renaming one is a breaking change for resumed sessions.
const (
	SectionBusiness  = "business"
	SectionPersonal  = "personal"
	SectionOwners    = "owners"
	SectionQuestions = "questions"
	SectionDocuments = "documents"
	SectionReview    = "review"

	StepBusinessIdentity = "business-identity"
	StepBusinessProfile  = "business-profile"
	StepBusinessAddress  = "business-address"
	StepBusinessReview   = "business-review"

	StepPersonalIdentity = "personal-identity"
	StepPersonalAddress  = "personal-address"
	StepPersonalReview   = "personal-review"

	StepOwnerIdentity = "owner-identity"
	StepOwnerAddress  = "owner-address"
	StepOwnerReview   = "owner-review"

	StepQuestionForm   = "additional-questions"
	StepDocumentUpload = "document-upload"
	StepReviewAttest   = "review-attest"
)

// DefaultRegistry builds the registry for the current flow version.
func DefaultRegistry(resolver *fieldrules.Resolver, compiler *schema.Compiler) (*Registry, error) {
	return New(DefaultSections(resolver, compiler)...)
}

// DefaultSections declares the flow graph. Order here is presentation and
// resume order.
func DefaultSections(resolver *fieldrules.Resolver, compiler *schema.Compiler) []Section {
	notIndividual := func(ctx domain.EntityContext) bool {
		return ctx.EntityType != domain.EntityTypeIndividual
	}
	hasOwnerStructure := func(ctx domain.EntityContext) bool {
		return ctx.EntityType != domain.EntityTypeIndividual &&
			ctx.EntityType != domain.EntityTypeSoleProprietorship
	}

	return []Section{
		{
			ID:      SectionBusiness,
			Label:   "Business details",
			Kind:    KindStepper,
			Include: notIndividual,
			Steps: []Step{
				{
					ID:    StepBusinessIdentity,
					Kind:  StepForm,
					Title: "Tell us about your business",
					Fields: []string{
						"organizationDetails.organizationName",
						"organizationDetails.yearOfFormation",
						"organizationDetails.countryOfFormation",
						"organizationDetails.organizationIds.ein",
					},
					Validate:  formValidator(resolver, nil),
					Transform: trimStrings,
				},
				{
					ID:    StepBusinessProfile,
					Kind:  StepForm,
					Title: "Business profile",
					Fields: []string{
						"organizationDetails.industryCode",
						"organizationDetails.website",
						"organizationDetails.phone",
					},
					Validate:  formValidator(resolver, nil),
					Transform: trimStrings,
				},
				{
					ID:    StepBusinessAddress,
					Kind:  StepForm,
					Title: "Business address",
					Fields: []string{
						"organizationDetails.address.line1",
						"organizationDetails.address.city",
						"organizationDetails.address.state",
						"organizationDetails.address.postalCode",
					},
					Validate:  formValidator(resolver, nil),
					Transform: trimStrings,
				},
				{
					ID:    StepBusinessReview,
					Kind:  StepCheckAnswers,
					Title: "Check your answers",
				},
			},
		},
		{
			ID:    SectionPersonal,
			Label: "Your details",
			Kind:  KindStepper,
			PartyFilter: &PartyFilter{
				PartyType: domain.PartyTypeIndividual,
				Roles:     []domain.PartyRole{domain.RoleController, domain.RoleDecisionMaker},
			},
			Steps: []Step{
				{
					ID:    StepPersonalIdentity,
					Kind:  StepForm,
					Title: "Your identity",
					Fields: []string{
						"individualDetails.firstName",
						"individualDetails.lastName",
						"individualDetails.birthDate",
						"individualDetails.jobTitle",
						"individualDetails.individualIds.ssn",
					},
					Validate:  formValidator(resolver, nil),
					Transform: trimStrings,
				},
				{
					ID:    StepPersonalAddress,
					Kind:  StepForm,
					Title: "Your address",
					Fields: []string{
						"individualDetails.countryOfResidence",
						"individualDetails.address.line1",
						"individualDetails.address.city",
						"individualDetails.address.state",
						"individualDetails.address.postalCode",
					},
					Validate:  formValidator(resolver, nil),
					Transform: trimStrings,
				},
				{
					ID:    StepPersonalReview,
					Kind:  StepCheckAnswers,
					Title: "Check your answers",
				},
			},
		},
		{
			ID:      SectionOwners,
			Label:   "Beneficial owners",
			Kind:    KindStepper,
			Include: hasOwnerStructure,
			PartyFilter: &PartyFilter{
				PartyType: domain.PartyTypeIndividual,
				Roles:     []domain.PartyRole{domain.RoleBeneficialOwner},
			},
			Repeatable: true,
			Steps: []Step{
				{
					ID:    StepOwnerIdentity,
					Kind:  StepForm,
					Title: "Owner identity",
					Fields: []string{
						"individualDetails.firstName",
						"individualDetails.lastName",
						"individualDetails.birthDate",
						"individualDetails.natureOfOwnership",
					},
					Validate:  formValidator(resolver, nil),
					Transform: trimStrings,
				},
				{
					ID:    StepOwnerAddress,
					Kind:  StepForm,
					Title: "Owner address",
					Fields: []string{
						"individualDetails.countryOfResidence",
						"individualDetails.address.line1",
						"individualDetails.address.city",
						"individualDetails.address.state",
						"individualDetails.address.postalCode",
					},
					Validate:  formValidator(resolver, nil),
					Transform: trimStrings,
				},
				{
					ID:    StepOwnerReview,
					Kind:  StepCheckAnswers,
					Title: "Check owner details",
				},
			},
		},
		{
			ID:    SectionQuestions,
			Label: "Additional questions",
			Kind:  KindSingleScreen,
			Steps: []Step{
				{
					ID:          StepQuestionForm,
					Kind:        StepComponent,
					Title:       "Due diligence questions",
					Description: "Questions the review team needs answered for your business profile.",
					Validate:    questionsValidator(compiler),
				},
			},
		},
		{
			ID:    SectionDocuments,
			Label: "Supporting documents",
			Kind:  KindSingleScreen,
			Steps: []Step{
				{
					ID:       StepDocumentUpload,
					Kind:     StepComponent,
					Title:    "Upload documents",
					Validate: documentsValidator,
				},
			},
		},
		{
			ID:    SectionReview,
			Label: "Review and attest",
			Kind:  KindReview,
			Steps: []Step{
				{
					ID:    StepReviewAttest,
					Kind:  StepCheckAnswers,
					Title: "Review and attest",
					Fields: []string{
						"attestation.accuracyConfirmed",
						"attestation.termsAccepted",
					},
					Validate: attestationValidator,
				},
			},
		},
	}
}

// formValidator builds a step validator over the rule table: hidden fields
// are skipped, required fields must carry a non-empty value. overrides pin
// rules per field for this step only.
func formValidator(resolver *fieldrules.Resolver, overrides map[string]*fieldrules.Override) func(ValidationInput) schema.FieldErrors {
	return func(in ValidationInput) schema.FieldErrors {
		errs := make(schema.FieldErrors)
		for _, field := range fieldsInScope(in) {
			rule, err := resolver.Resolve(field, in.Context, overrides[field])
			if err != nil {
				// Configuration drift: surface on the field so tests catch it
				// immediately; the registry test also cross-checks the table.
				errs.Add(field, "field has no rule table entry")
				continue
			}
			if rule.Display == fieldrules.DisplayHidden {
				continue
			}
			if rule.Required && isEmpty(in.Values[field]) {
				errs.Add(field, "is required")
			}
		}
		return errs
	}
}

// fieldsInScope lists the field paths present in the validation input. The
// step's own field list is injected by the registry when the validator runs;
// values outside it are ignored.
func fieldsInScope(in ValidationInput) []string {
	return in.Fields
}

// trimStrings removes surrounding whitespace from string values before
// persistence.
func trimStrings(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if s, ok := v.(string); ok {
			out[k] = strings.TrimSpace(s)
			continue
		}
		out[k] = v
	}
	return out
}

// questionsValidator compiles the session's outstanding question catalog and
// validates stored responses against it.
func questionsValidator(compiler *schema.Compiler) func(ValidationInput) schema.FieldErrors {
	return func(in ValidationInput) schema.FieldErrors {
		errs := make(schema.FieldErrors)
		if len(in.Questions) == 0 {
			return errs
		}
		compiled, err := compiler.Compile(in.Questions)
		if err != nil {
			errs.Add("questions", "question catalog could not be compiled")
			return errs
		}
		return compiled.Validate(in.Responses)
	}
}

// documentsValidator treats the step as satisfied once the upstream review
// holds no outstanding document requests.
func documentsValidator(in ValidationInput) schema.FieldErrors {
	errs := make(schema.FieldErrors)
	if in.OutstandingDocuments > 0 {
		errs.Add("documents", fmt.Sprintf("%d document request(s) outstanding", in.OutstandingDocuments))
	}
	return errs
}

// attestationValidator requires explicit true confirmations.
func attestationValidator(in ValidationInput) schema.FieldErrors {
	errs := make(schema.FieldErrors)
	for _, field := range []string{"attestation.accuracyConfirmed", "attestation.termsAccepted"} {
		if !isTrue(in.Values[field]) {
			errs.Add(field, "must be confirmed")
		}
	}
	return errs
}

func isTrue(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	default:
		return false
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}
