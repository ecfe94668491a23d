package schema

import (
	"fmt"
	"regexp"
	"time"

	"github.com/asaskevich/govalidator"
)

// elementValidator checks one response value. The compiler builds exactly one
// per question from its item kind; construction never fails, unknown kinds
// degrade to free text upstream.
type elementValidator func(value string) error

func booleanValidator(value string) error {
	if value != "true" && value != "false" {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func enumValidator(allowed []string) elementValidator {
	return func(value string) error {
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		return fmt.Errorf("must be one of the allowed values")
	}
}

func freeTextValidator(value string) error {
	if value == "" {
		return fmt.Errorf("must not be empty")
	}
	return nil
}

func patternValidator(pattern string) (elementValidator, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return func(value string) error {
		if value == "" {
			return fmt.Errorf("must not be empty")
		}
		if !re.MatchString(value) {
			return fmt.Errorf("has an invalid format")
		}
		return nil
	}, nil
}

func integerValidator(value string) error {
	if value == "" {
		return fmt.Errorf("must not be empty")
	}
	if !govalidator.IsNumeric(value) {
		return fmt.Errorf("must be a whole number")
	}
	return nil
}

// dateValidator requires a real calendar date, not just digit groups:
// 2023-02-30 fails.
func dateValidator(value string) error {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return fmt.Errorf("must be a date in YYYY-MM-DD format")
	}
	if parsed.Format("2006-01-02") != value {
		return fmt.Errorf("must be a valid calendar date")
	}
	return nil
}

// intersects reports whether any response value is in the match set. Matching
// is exact element membership on both sides; a scalar match value is a
// one-element set.
func intersects(responseValues, matchValues []string) bool {
	for _, rv := range responseValues {
		for _, mv := range matchValues {
			if rv == mv {
				return true
			}
		}
	}
	return false
}
