package config

// Validator decides whether value may be stored at index.
type Validator interface {
	Validate(index int, value byte) bool
}

// ValidatorFunc adapts a plain function to Validator.
type ValidatorFunc func(index int, value byte) bool

func (f ValidatorFunc) Validate(index int, value byte) bool { return f(index, value) }

// ChangeHandler is told about every value committed by SetByte, after the
// store has been updated.
type ChangeHandler interface {
	Changed(index int, value byte)
}

// ChangeHandlerFunc adapts a plain function to ChangeHandler.
type ChangeHandlerFunc func(index int, value byte)

func (f ChangeHandlerFunc) Changed(index int, value byte) { f(index, value) }

// Rule bounds the value at one index, inclusive at both ends.
type Rule struct {
	Index int
	Min   byte
	Max   byte
}

// RangeValidator accepts a value when it lies inside the rule for its index.
// Indexes without a rule accept any value.
type RangeValidator struct {
	rules map[int]Rule
}

// NewRangeValidator builds a validator from rules. A later rule for the same
// index replaces an earlier one.
func NewRangeValidator(rules ...Rule) *RangeValidator {
	v := &RangeValidator{rules: make(map[int]Rule, len(rules))}
	for _, r := range rules {
		v.rules[r.Index] = r
	}
	return v
}

func (v *RangeValidator) Validate(index int, value byte) bool {
	r, ok := v.rules[index]
	if !ok {
		return true
	}
	return value >= r.Min && value <= r.Max
}

// AllOf accepts a value only when every validator accepts it.
func AllOf(validators ...Validator) Validator {
	return ValidatorFunc(func(index int, value byte) bool {
		for _, v := range validators {
			if !v.Validate(index, value) {
				return false
			}
		}
		return true
	})
}
