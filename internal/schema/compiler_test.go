package schema

import (
	"testing"

	"github.com/stretchr/testify/suite"

	id "onboard/pkg/domain"
)

// =============================================================================
// Schema Compiler Test Suite
// =============================================================================
// Justification for unit tests: the compiler's conditional-requiredness rules
// are the riskiest logic in the engine and cannot be exercised precisely
// through transport-level tests, which would need a full catalog round trip
// per case.

type CompilerSuite struct {
	suite.Suite
	compiler *Compiler
}

func TestCompilerSuite(t *testing.T) {
	suite.Run(t, new(CompilerSuite))
}

func (s *CompilerSuite) SetupTest() {
	s.compiler = NewCompiler()
}

func intPtr(n int) *int { return &n }

// parentChildCatalog mirrors the catalog shape served upstream: 30005 is an
// enumerated parent whose "B" answer makes 30006 relevant.
func parentChildCatalog() []Question {
	return []Question{
		{
			ID:         "30005",
			Kind:       KindString,
			EnumValues: []string{"A", "B"},
			Triggers: []SubQuestionTrigger{
				{AnyValues: []string{"B"}, QuestionIDs: []id.QuestionID{"30006"}},
			},
		},
		{
			ID:       "30006",
			Kind:     KindString,
			ParentID: "30005",
			MinItems: intPtr(1),
		},
	}
}

func (s *CompilerSuite) TestDependentQuestionExemption() {
	compiled, err := s.compiler.Compile(parentChildCatalog())
	s.Require().NoError(err)

	s.Run("non-matching parent answer exempts the child entirely", func() {
		errs := compiled.Validate(ResponseSet{
			"30005": {"A"},
			"30006": {},
		})
		s.True(errs.Empty(), "expected no errors, got %v", errs)
		s.False(compiled.Active("30006", ResponseSet{"30005": {"A"}}))
	})

	s.Run("matching parent answer enforces child cardinality", func() {
		errs := compiled.Validate(ResponseSet{
			"30005": {"B"},
			"30006": {},
		})
		s.Contains(errs, FieldKey("30006"))
		s.True(compiled.Active("30006", ResponseSet{"30005": {"B"}}))
	})

	s.Run("matching parent answer accepts a provided child value", func() {
		errs := compiled.Validate(ResponseSet{
			"30005": {"B"},
			"30006": {"x"},
		})
		s.True(errs.Empty(), "expected no errors, got %v", errs)
	})

	s.Run("unanswered parent never requires the child", func() {
		errs := compiled.Validate(ResponseSet{
			"30006": {},
		})
		s.NotContains(errs, FieldKey("30006"))
		// The parent itself is a root question and stays required.
		s.Contains(errs, FieldKey("30005"))
	})
}

func (s *CompilerSuite) TestIdempotentCompilation() {
	catalog := parentChildCatalog()

	first, err := s.compiler.Compile(catalog)
	s.Require().NoError(err)
	second, err := s.compiler.Compile(catalog)
	s.Require().NoError(err)

	samples := []ResponseSet{
		{"30005": {"A"}, "30006": {}},
		{"30005": {"B"}, "30006": {}},
		{"30005": {"B"}, "30006": {"x"}},
		{"30005": {"C"}},
		{},
	}
	for _, sample := range samples {
		s.Equal(first.Validate(sample), second.Validate(sample))
	}
}

func (s *CompilerSuite) TestMultiValuedParentMatching() {
	catalog := []Question{
		{
			ID:         "400",
			Kind:       KindString,
			EnumValues: []string{"WIRE", "ACH", "CARD"},
			MaxItems:   intPtr(3),
			Triggers: []SubQuestionTrigger{
				{AnyValues: []string{"WIRE", "CARD"}, QuestionIDs: []id.QuestionID{"401"}},
			},
		},
		{ID: "401", Kind: KindString, ParentID: "400", MinItems: intPtr(1)},
	}
	compiled, err := s.compiler.Compile(catalog)
	s.Require().NoError(err)

	s.Run("any overlap activates the child", func() {
		errs := compiled.Validate(ResponseSet{"400": {"ACH", "CARD"}})
		s.Contains(errs, FieldKey("401"))
	})

	s.Run("no overlap leaves the child exempt", func() {
		errs := compiled.Validate(ResponseSet{"400": {"ACH"}})
		s.NotContains(errs, FieldKey("401"))
	})

	s.Run("matching is exact element membership, not substring", func() {
		errs := compiled.Validate(ResponseSet{"400": {"WIRE_TRANSFER"}})
		s.NotContains(errs, FieldKey("401"))
	})
}

func (s *CompilerSuite) TestElementValidators() {
	s.Run("boolean accepts only the two values", func() {
		compiled, err := s.compiler.Compile([]Question{{ID: "1", Kind: KindBoolean}})
		s.Require().NoError(err)

		s.True(compiled.Validate(ResponseSet{"1": {"true"}}).Empty())
		s.True(compiled.Validate(ResponseSet{"1": {"false"}}).Empty())
		s.Contains(compiled.Validate(ResponseSet{"1": {"yes"}}), FieldKey("1"))
	})

	s.Run("closed enum rejects values outside the set", func() {
		compiled, err := s.compiler.Compile([]Question{
			{ID: "2", Kind: KindString, EnumValues: []string{"US", "CA"}},
		})
		s.Require().NoError(err)

		s.True(compiled.Validate(ResponseSet{"2": {"US"}}).Empty())
		s.Contains(compiled.Validate(ResponseSet{"2": {"MX"}}), FieldKey("2"))
	})

	s.Run("integer requires digit strings", func() {
		compiled, err := s.compiler.Compile([]Question{{ID: "3", Kind: KindInteger}})
		s.Require().NoError(err)

		s.True(compiled.Validate(ResponseSet{"3": {"42"}}).Empty())
		s.Contains(compiled.Validate(ResponseSet{"3": {"42.5"}}), FieldKey("3"))
		s.Contains(compiled.Validate(ResponseSet{"3": {"many"}}), FieldKey("3"))
	})

	s.Run("date requires a real calendar date", func() {
		compiled, err := s.compiler.Compile([]Question{{ID: "4", Kind: KindDate}})
		s.Require().NoError(err)

		s.True(compiled.Validate(ResponseSet{"4": {"2024-02-29"}}).Empty())
		s.Contains(compiled.Validate(ResponseSet{"4": {"2023-02-30"}}), FieldKey("4"))
		s.Contains(compiled.Validate(ResponseSet{"4": {"02/29/2024"}}), FieldKey("4"))
	})

	s.Run("pattern check applies to free strings", func() {
		compiled, err := s.compiler.Compile([]Question{
			{ID: "5", Kind: KindString, Pattern: `^\d{5}$`},
		})
		s.Require().NoError(err)

		s.True(compiled.Validate(ResponseSet{"5": {"12345"}}).Empty())
		s.Contains(compiled.Validate(ResponseSet{"5": {"1234"}}), FieldKey("5"))
	})

	s.Run("invalid pattern fails compilation", func() {
		_, err := s.compiler.Compile([]Question{
			{ID: "6", Kind: KindString, Pattern: `([`},
		})
		s.Error(err)
	})
}

func (s *CompilerSuite) TestUnknownKindDegradesToFreeText() {
	compiled, err := s.compiler.Compile([]Question{{ID: "9", Kind: "GEOJSON"}})
	s.Require().NoError(err)

	s.True(compiled.Validate(ResponseSet{"9": {"anything"}}).Empty())
	s.Contains(compiled.Validate(ResponseSet{"9": {""}}), FieldKey("9"))
}

func (s *CompilerSuite) TestCardinalityBounds() {
	compiled, err := s.compiler.Compile([]Question{
		{ID: "7", Kind: KindString, MinItems: intPtr(2), MaxItems: intPtr(3)},
	})
	s.Require().NoError(err)

	s.Contains(compiled.Validate(ResponseSet{"7": {"a"}}), FieldKey("7"))
	s.True(compiled.Validate(ResponseSet{"7": {"a", "b"}}).Empty())
	s.Contains(compiled.Validate(ResponseSet{"7": {"a", "b", "c", "d"}}), FieldKey("7"))
}

func (s *CompilerSuite) TestDependentWithoutTriggerStaysUnconstrained() {
	compiled, err := s.compiler.Compile([]Question{
		{ID: "10", Kind: KindString},
		{ID: "11", Kind: KindString, ParentID: "10", MinItems: intPtr(1)},
	})
	s.Require().NoError(err)

	errs := compiled.Validate(ResponseSet{"10": {"whatever"}})
	s.NotContains(errs, FieldKey("11"))
}
