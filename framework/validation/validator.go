package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ── Types ────────────────────────────────────────────────────────────────────

// Errors holds validation failures per field.
// JSON output: {"errors": {"field": ["msg1", "msg2"]}}
type Errors struct {
	Bag map[string][]string `json:"errors"`
}

func (e *Errors) add(field, msg string) {
	if e.Bag == nil {
		e.Bag = make(map[string][]string)
	}
	e.Bag[field] = append(e.Bag[field], msg)
}

// Has returns true if there are any errors.
func (e *Errors) Has() bool { return len(e.Bag) > 0 }

// First returns the first error for a field.
func (e *Errors) First(field string) string {
	if msgs, ok := e.Bag[field]; ok && len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Error renders every failure as "field: msg; field: msg" in field order, so
// an Errors value can travel as an ordinary error.
func (e *Errors) Error() string {
	fields := make([]string, 0, len(e.Bag))
	for f := range e.Bag {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e.Bag[f], ", "))
	}
	return strings.Join(parts, "; ")
}

// ── Validator ────────────────────────────────────────────────────────────────

// Rules is a map of field → pipe-separated rule string.
// e.g. Rules{"name": "required|max:255", "scope": "in:singleton,prototype"}
type Rules map[string]string

// Translator turns a rule message key into text. fallback is the built-in
// English template; args are the field name and the rule parameter.
type Translator func(key, fallback string, args ...any) string

// Validator validates a flat map of input values.
type Validator struct {
	data       map[string]string
	rules      Rules
	errors     *Errors
	translator Translator
}

// Make creates a new Validator over data.
func Make(data map[string]string, rules Rules) *Validator {
	return &Validator{
		data:   data,
		rules:  rules,
		errors: &Errors{},
	}
}

// WithTranslator routes rule messages through tr, typically a message
// catalog lookup keyed by "validation.<rule>".
func (v *Validator) WithTranslator(tr Translator) *Validator {
	v.translator = tr
	return v
}

// Fails runs validation and returns true if any rule fails.
func (v *Validator) Fails() bool {
	v.validate()
	return v.errors.Has()
}

// Passes runs validation and returns true if all rules pass.
func (v *Validator) Passes() bool { return !v.Fails() }

// Errors returns the validation error bag.
func (v *Validator) Errors() *Errors { return v.errors }

// Validate runs the rules and returns the bag as an error, or nil.
func (v *Validator) Validate() error {
	if v.Fails() {
		return v.errors
	}
	return nil
}

// ── Core validation loop ─────────────────────────────────────────────────────

func (v *Validator) validate() {
	v.errors = &Errors{}

	fields := make([]string, 0, len(v.rules))
	for field := range v.rules {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		value := v.data[field]
		for _, rule := range strings.Split(v.rules[field], "|") {
			rule = strings.TrimSpace(rule)
			if rule == "" {
				continue
			}

			// min:3 → name=min, param=3
			name, param, _ := strings.Cut(rule, ":")

			if !v.applyRule(field, value, name, param) {
				break // bail on first failure
			}
		}
	}
}

var (
	alphaNumRe  = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	alphaDashRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

var templates = map[string]string{
	"required":   "The {0} field is required.",
	"numeric":    "The {0} must be a number.",
	"integer":    "The {0} must be an integer.",
	"boolean":    "The {0} field must be true or false.",
	"min":        "The {0} must be at least {1} characters.",
	"max":        "The {0} may not be greater than {1} characters.",
	"in":         "The selected {0} is invalid.",
	"not_in":     "The selected {0} is invalid.",
	"alpha_num":  "The {0} may only contain letters and numbers.",
	"alpha_dash": "The {0} may only contain letters, numbers, dashes and underscores.",
	"regex":      "The {0} format is invalid.",
	"gte":        "The {0} must be greater than or equal to {1}.",
	"lte":        "The {0} must be less than or equal to {1}.",
}

func (v *Validator) fail(field, rule, param string) bool {
	fallback := templates[rule]
	if v.translator != nil {
		v.errors.add(field, v.translator("validation."+rule, fallback, field, param))
		return false
	}
	v.errors.add(field, strings.NewReplacer("{0}", field, "{1}", param).Replace(fallback))
	return false
}

// applyRule returns true if the rule passes.
func (v *Validator) applyRule(field, value, rule, param string) bool {
	switch rule {
	case "required":
		if strings.TrimSpace(value) == "" {
			return v.fail(field, rule, param)
		}

	case "nullable":
		if value == "" {
			return false // stop processing this field silently
		}

	case "numeric":
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return v.fail(field, rule, param)
		}

	case "integer":
		if _, err := strconv.Atoi(value); err != nil {
			return v.fail(field, rule, param)
		}

	case "boolean":
		if _, err := strconv.ParseBool(value); err != nil {
			return v.fail(field, rule, param)
		}

	case "min":
		n, _ := strconv.Atoi(param)
		if utf8.RuneCountInString(value) < n {
			return v.fail(field, rule, param)
		}

	case "max":
		n, _ := strconv.Atoi(param)
		if utf8.RuneCountInString(value) > n {
			return v.fail(field, rule, param)
		}

	case "in":
		for _, a := range strings.Split(param, ",") {
			if strings.TrimSpace(a) == value {
				return true
			}
		}
		return v.fail(field, rule, param)

	case "not_in":
		for _, d := range strings.Split(param, ",") {
			if strings.TrimSpace(d) == value {
				return v.fail(field, rule, param)
			}
		}

	case "alpha_num":
		if !alphaNumRe.MatchString(value) {
			return v.fail(field, rule, param)
		}

	case "alpha_dash":
		if !alphaDashRe.MatchString(value) {
			return v.fail(field, rule, param)
		}

	case "regex":
		re, err := regexp.Compile(param)
		if err != nil || !re.MatchString(value) {
			return v.fail(field, rule, param)
		}

	case "gte", "lte":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return v.fail(field, "numeric", param)
		}
		t, _ := strconv.ParseFloat(param, 64)
		if (rule == "gte" && f < t) || (rule == "lte" && f > t) {
			return v.fail(field, rule, param)
		}

	default:
		panic(fmt.Sprintf("validation: unknown rule %q on field %q", rule, field))
	}

	return true
}
