package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"onboard/internal/domain"
	"onboard/internal/flow/fieldrules"
	"onboard/internal/schema"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
)

type RegistrySuite struct {
	suite.Suite
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	var err error
	s.registry, err = DefaultRegistry(fieldrules.NewDefaultResolver(), schema.NewCompiler())
	s.Require().NoError(err)
}

func usLLC() domain.EntityContext {
	return domain.EntityContext{
		EntityType:   domain.EntityTypeLLC,
		Jurisdiction: "US",
		Products:     []string{"EMBEDDED_PAYMENTS"},
	}
}

func (s *RegistrySuite) TestUnknownIDsAreConfigurationErrors() {
	_, err := s.registry.Section("nonexistent")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))

	_, _, err = s.registry.Step("nonexistent")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
}

func (s *RegistrySuite) TestDuplicateIDsFailConstruction() {
	_, err := New(
		Section{ID: "a", Steps: []Step{{ID: "s1"}}},
		Section{ID: "a"},
	)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))

	_, err = New(
		Section{ID: "a", Steps: []Step{{ID: "s1"}}},
		Section{ID: "b", Steps: []Step{{ID: "s1"}}},
	)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
}

func (s *RegistrySuite) TestInclusionPredicates() {
	s.Run("LLC sees owners section", func() {
		ids := sectionIDs(s.registry.SectionsFor(usLLC()))
		s.Contains(ids, id.SectionID(SectionOwners))
		s.Contains(ids, id.SectionID(SectionBusiness))
	})

	s.Run("sole proprietorship skips owners", func() {
		ctx := usLLC()
		ctx.EntityType = domain.EntityTypeSoleProprietorship
		ids := sectionIDs(s.registry.SectionsFor(ctx))
		s.NotContains(ids, id.SectionID(SectionOwners))
		s.Contains(ids, id.SectionID(SectionBusiness))
	})

	s.Run("individual skips business and owners", func() {
		ctx := usLLC()
		ctx.EntityType = domain.EntityTypeIndividual
		ids := sectionIDs(s.registry.SectionsFor(ctx))
		s.NotContains(ids, id.SectionID(SectionBusiness))
		s.NotContains(ids, id.SectionID(SectionOwners))
		s.Contains(ids, id.SectionID(SectionPersonal))
	})
}

func (s *RegistrySuite) TestStepperOrdering() {
	first, err := s.registry.FirstStep(SectionBusiness)
	s.Require().NoError(err)
	s.Equal(id.StepID(StepBusinessIdentity), first.ID)

	next, ok, err := s.registry.NextStep(StepBusinessIdentity)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(id.StepID(StepBusinessProfile), next.ID)

	_, ok, err = s.registry.NextStep(StepBusinessReview)
	s.Require().NoError(err)
	s.False(ok, "last step has no successor")

	prev, ok, err := s.registry.PrevStep(StepBusinessProfile)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(id.StepID(StepBusinessIdentity), prev.ID)

	_, ok, err = s.registry.PrevStep(StepBusinessIdentity)
	s.Require().NoError(err)
	s.False(ok, "first step exits to section overview")
}

func (s *RegistrySuite) TestSectionAfterSkipsExcluded() {
	ctx := usLLC()
	ctx.EntityType = domain.EntityTypeSoleProprietorship

	next, ok, err := s.registry.SectionAfter(SectionPersonal, ctx)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(id.SectionID(SectionQuestions), next.ID, "owners is excluded for sole proprietorships")
}

func (s *RegistrySuite) TestPartyFilters() {
	client := domain.ClientRecord{
		Parties: []domain.Party{
			{ID: "p-1", Type: domain.PartyTypeIndividual, Active: true, Roles: []domain.PartyRole{domain.RoleController}},
			{ID: "p-2", Type: domain.PartyTypeIndividual, Active: true, Roles: []domain.PartyRole{domain.RoleBeneficialOwner}},
			{ID: "p-3", Type: domain.PartyTypeIndividual, Active: false, Roles: []domain.PartyRole{domain.RoleBeneficialOwner}},
			{ID: "p-4", Type: domain.PartyTypeOrganization, Active: true, Roles: []domain.PartyRole{domain.RoleClient}},
		},
	}

	owners, err := s.registry.Section(SectionOwners)
	s.Require().NoError(err)

	matched := owners.MatchingParties(client)
	s.Require().Len(matched, 1, "only active individual owners match")
	s.Equal(id.PartyID("p-2"), matched[0].ID)
}

// TestFieldsHaveRuleTableEntries keeps step definitions and the rule table in
// lockstep: a form field without a table entry would fail at render time as a
// configuration error.
func (s *RegistrySuite) TestFieldsHaveRuleTableEntries() {
	resolver := fieldrules.NewDefaultResolver()
	for _, section := range s.registry.Sections() {
		if section.Kind == KindReview {
			// Attestation checks have a bespoke validator.
			continue
		}
		for _, step := range section.Steps {
			for _, field := range step.Fields {
				s.True(resolver.Known(field), "field %q in step %q missing from rule table", field, step.ID)
			}
		}
	}
}

func TestFormValidator(t *testing.T) {
	registry, err := DefaultRegistry(fieldrules.NewDefaultResolver(), schema.NewCompiler())
	require.NoError(t, err)

	_, step, err := registry.Step(StepBusinessIdentity)
	require.NoError(t, err)

	t.Run("missing required fields are reported", func(t *testing.T) {
		errs := step.Check(ValidationInput{
			Context: usLLC(),
			Values:  map[string]any{},
		})
		assert.Contains(t, errs, "organizationDetails.organizationName")
		assert.Contains(t, errs, "organizationDetails.organizationIds.ein")
	})

	t.Run("ein is only required in the US", func(t *testing.T) {
		ctx := usLLC()
		ctx.Jurisdiction = "CA"
		errs := step.Check(ValidationInput{
			Context: ctx,
			Values: map[string]any{
				"organizationDetails.organizationName":   "Acme Ltd",
				"organizationDetails.yearOfFormation":    "2019",
				"organizationDetails.countryOfFormation": "CA",
			},
		})
		assert.NotContains(t, errs, "organizationDetails.organizationIds.ein")
		assert.True(t, errs.Empty(), "got %v", errs)
	})
}

func TestTrimStringsTransform(t *testing.T) {
	out := trimStrings(map[string]any{
		"organizationDetails.organizationName": "  Acme Ltd ",
		"organizationDetails.yearOfFormation":  "2019",
		"count":                                3,
	})
	assert.Equal(t, "Acme Ltd", out["organizationDetails.organizationName"])
	assert.Equal(t, 3, out["count"])
}

func TestAttestationValidator(t *testing.T) {
	registry, err := DefaultRegistry(fieldrules.NewDefaultResolver(), schema.NewCompiler())
	require.NoError(t, err)

	_, step, err := registry.Step(StepReviewAttest)
	require.NoError(t, err)

	errs := step.Check(ValidationInput{Values: map[string]any{
		"attestation.accuracyConfirmed": true,
	}})
	assert.NotContains(t, errs, "attestation.accuracyConfirmed")
	assert.Contains(t, errs, "attestation.termsAccepted")

	errs = step.Check(ValidationInput{Values: map[string]any{
		"attestation.accuracyConfirmed": true,
		"attestation.termsAccepted":     "true",
	}})
	assert.True(t, errs.Empty())
}

func sectionIDs(sections []Section) []id.SectionID {
	out := make([]id.SectionID, 0, len(sections))
	for _, s := range sections {
		out = append(out, s.ID)
	}
	return out
}
