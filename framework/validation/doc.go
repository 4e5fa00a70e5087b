// Package validation checks flat string maps against pipe-separated rules.
//
// It guards the inputs the context accepts from its collaborators: component
// definitions handed over by service providers and the typed configuration
// loaded at bootstrap.
//
// # Basic Usage
//
//	v := validation.Make(map[string]string{
//	    "name":  "dataSource",
//	    "scope": "singleton",
//	}, validation.Rules{
//	    "name":  "required|max:255",
//	    "scope": "in:singleton,prototype",
//	})
//
//	if err := v.Validate(); err != nil {
//	    // err is *validation.Errors, Bag map[string][]string
//	}
//
// # Available Rules
//
//   - required       — present and not blank
//   - nullable       — empty values skip the remaining rules
//   - min:n, max:n   — UTF-8 length bounds
//   - numeric, integer, boolean
//   - gte:n, lte:n   — numeric bounds
//   - in:a,b,c / not_in:a,b,c
//   - alpha_num, alpha_dash
//   - regex:pattern  — the pattern must not contain "|"
//
// Rules run per field in order and stop at the first failure.
//
// # Messages
//
// Failure text comes from built-in English templates ("The {0} field is
// required."). WithTranslator routes them through a message catalog instead,
// using the keys "validation.<rule>" with the field name and rule parameter as
// positional arguments.
package validation
