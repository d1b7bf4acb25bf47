package domain

// Severity captures rule outcomes.
type Severity string

// Rule severities determine whether a broken rule blocks saving.
const (
	// SeverityBlock makes the object invalid and therefore not savable.
	SeverityBlock Severity = "block"
	// SeverityWarn is reported but does not affect validity.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a broken business rule.
type Violation struct {
	Rule     string   `json:"rule"`
	Field    string   `json:"field,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Result aggregates violations produced by an object's rules.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Rule is a business rule evaluated against an object after every field change.
type Rule interface {
	Name() string
	Check(obj Object) Result
}

type ruleFunc struct {
	name string
	fn   func(Object) Result
}

func (r ruleFunc) Name() string             { return r.name }
func (r ruleFunc) Check(obj Object) Result { return r.fn(obj) }

// NewRule adapts a function into a Rule.
func NewRule(name string, fn func(Object) Result) Rule {
	return ruleFunc{name: name, fn: fn}
}

// Required returns a blocking rule that fails while the string field is empty.
func Required(field *Field[string]) Rule {
	name := "required:" + field.Name()
	return NewRule(name, func(Object) Result {
		if field.Get() != "" {
			return Result{}
		}
		return Result{Violations: []Violation{{
			Rule:     name,
			Field:    field.Name(),
			Severity: SeverityBlock,
			Message:  field.Name() + " is required",
		}}}
	})
}

// AddRule registers a rule on the object and re-evaluates all rules.
func (b *Base) AddRule(rule Rule) {
	if rule == nil {
		return
	}
	b.rules = append(b.rules, rule)
	b.CheckRules()
}

// CheckRules re-evaluates every registered rule and replaces the broken rule set.
func (b *Base) CheckRules() {
	if len(b.rules) == 0 {
		b.broken = nil
		return
	}
	var combined Result
	for _, rule := range b.rules {
		combined.Merge(rule.Check(b.self))
	}
	b.broken = combined.Violations
}

// BrokenRules returns a copy of the object's current violations.
func (b *Base) BrokenRules() []Violation {
	return append([]Violation(nil), b.broken...)
}
