package schema

import (
	"fmt"
	"log/slog"

	id "onboard/pkg/domain"
)

// fieldSchema is one compiled question: its element validator plus the
// activation rule for dependents.
type fieldSchema struct {
	question Question
	elem     elementValidator
	// dependent questions are only constrained when the parent's current
	// response intersects match.
	dependent bool
	parentID  id.QuestionID
	match     []string
}

// Schema is a compiled composite validator over one question catalog.
// Immutable after compilation; Validate is a pure function of its input, so
// re-validating on every keystroke is safe.
type Schema struct {
	fields map[id.QuestionID]*fieldSchema
	order  []id.QuestionID
}

// Compiler builds Schemas from question catalogs.
type Compiler struct {
	logger *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile derives a composite schema from the catalog. Compilation is
// deterministic: the same catalog always yields a schema accepting the same
// inputs. Questions with unparsable patterns fail compilation (a catalog
// fault); questions with unrecognized item kinds degrade to free text with a
// diagnostic.
func (c *Compiler) Compile(questions []Question) (*Schema, error) {
	s := &Schema{fields: make(map[id.QuestionID]*fieldSchema, len(questions))}

	// Child activation rules live on the parents' triggers; index them first.
	type activation struct {
		parentID id.QuestionID
		match    []string
	}
	activations := make(map[id.QuestionID]activation)
	for _, q := range questions {
		for _, trig := range q.Triggers {
			for _, childID := range trig.QuestionIDs {
				activations[childID] = activation{parentID: q.ID, match: trig.AnyValues}
			}
		}
	}

	for _, q := range questions {
		elem, err := c.elementFor(q)
		if err != nil {
			return nil, err
		}

		fs := &fieldSchema{question: q, elem: elem}
		if !q.IsRoot() {
			act, ok := activations[q.ID]
			if !ok {
				// A declared parent without a trigger leaves activation
				// unknowable; an empty match set keeps the question
				// unconstrained rather than risking a required-but-unreachable
				// field.
				c.logger.Warn("dependent question has no trigger on its parent; leaving unconstrained",
					"question_id", q.ID, "parent_id", q.ParentID)
				fs.dependent = true
				fs.parentID = q.ParentID
			} else {
				fs.dependent = true
				fs.parentID = act.parentID
				fs.match = act.match
			}
		}

		s.fields[q.ID] = fs
		s.order = append(s.order, q.ID)
	}

	return s, nil
}

// elementFor maps an item kind to its validator. This switch is the closed
// dispatch: every ItemKind constant must have an arm.
func (c *Compiler) elementFor(q Question) (elementValidator, error) {
	switch q.Kind {
	case KindBoolean:
		return booleanValidator, nil
	case KindString:
		if len(q.EnumValues) > 0 {
			return enumValidator(q.EnumValues), nil
		}
		if q.Pattern != "" {
			return patternValidator(q.Pattern)
		}
		return freeTextValidator, nil
	case KindInteger:
		return integerValidator, nil
	case KindDate:
		return dateValidator, nil
	default:
		c.logger.Warn("question has unrecognized item kind; treating as free text",
			"question_id", q.ID, "kind", q.Kind)
		return freeTextValidator, nil
	}
}

// Validate checks a response document against the compiled schema.
//
// Root questions are checked unconditionally, cardinality bounds included.
// Dependent questions are checked only when the parent's current response
// intersects their trigger match set; otherwise they are exempt from all
// constraints, cardinality included.
func (s *Schema) Validate(responses ResponseSet) FieldErrors {
	errs := make(FieldErrors)

	for _, qid := range s.order {
		fs := s.fields[qid]
		if fs.dependent && !s.dependentActive(fs, responses) {
			continue
		}
		s.validateField(fs, responses[qid], errs)
	}

	return errs
}

// QuestionIDs returns the catalog ids in compilation order.
func (s *Schema) QuestionIDs() []id.QuestionID {
	out := make([]id.QuestionID, len(s.order))
	copy(out, s.order)
	return out
}

// Active reports whether a question is currently constrained given the
// responses: root questions always, dependents only while triggered. The UI
// layer uses this to decide which sub-questions to render.
func (s *Schema) Active(questionID id.QuestionID, responses ResponseSet) bool {
	fs, ok := s.fields[questionID]
	if !ok {
		return false
	}
	if !fs.dependent {
		return true
	}
	return s.dependentActive(fs, responses)
}

func (s *Schema) dependentActive(fs *fieldSchema, responses ResponseSet) bool {
	parentValues := responses[fs.parentID]
	if len(parentValues) == 0 {
		// Unanswered parent never activates a dependent.
		return false
	}
	return intersects(parentValues, fs.match)
}

func (s *Schema) validateField(fs *fieldSchema, values []string, errs FieldErrors) {
	key := FieldKey(fs.question.ID)

	minItems := 1
	if fs.question.MinItems != nil {
		minItems = *fs.question.MinItems
	}
	if len(values) < minItems {
		if minItems == 1 {
			errs.Add(key, "must be answered")
		} else {
			errs.Add(key, fmt.Sprintf("must have at least %d items", minItems))
		}
	}
	if fs.question.MaxItems != nil && len(values) > *fs.question.MaxItems {
		errs.Add(key, fmt.Sprintf("must have at most %d items", *fs.question.MaxItems))
	}

	for _, v := range values {
		if err := fs.elem(v); err != nil {
			errs.Add(key, err.Error())
		}
	}
}
