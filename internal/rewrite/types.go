package rewrite

import (
	"fmt"
	"regexp"
	"strings"
)

// Context selects the tone profile applied by the engine
type Context string

const (
	// ContextDating is the warm, direct profile
	ContextDating Context = "dating"
	// ContextProfessional is the authoritative, respectful profile
	ContextProfessional Context = "professional"
)

// MaxInputLength is the largest message, in characters, callers may submit
const MaxInputLength = 500

// DefaultMinLength is the default length guard threshold
const DefaultMinLength = 10

// ParseContext converts a context selector into a Context.
// "work" is accepted as an alias of professional.
func ParseContext(value string) (Context, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dating":
		return ContextDating, nil
	case "professional", "work":
		return ContextProfessional, nil
	default:
		return "", &ConfigurationError{Field: "context", Value: value}
	}
}

// Valid reports whether c is one of the known contexts
func (c Context) Valid() bool {
	return c == ContextDating || c == ContextProfessional
}

func (c Context) String() string {
	return string(c)
}

// ConfigurationError reports a malformed context or engine setting
type ConfigurationError struct {
	Field string
	Value string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "context" {
		return fmt.Sprintf("invalid context %q (must be dating or professional)", e.Value)
	}
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}

// RuleKind distinguishes removal rules from substitution rules
type RuleKind int

const (
	// Removal rules replace their pattern with nothing
	Removal RuleKind = iota
	// Substitution rules replace their pattern with an assertive equivalent
	Substitution
)

// Rule is a single literal phrase rule
type Rule struct {
	Kind        RuleKind
	Phrase      string
	Replacement string
	Pattern     *regexp.Regexp
}

// Request is a single rewrite call
type Request struct {
	Text    string  `json:"text"`
	Context Context `json:"context"`
}

// Result is the outcome of a rewrite.
// Changed is true iff Text differs from the trimmed input.
type Result struct {
	Text    string   `json:"text"`
	Changed bool     `json:"changed"`
	Applied []string `json:"rules,omitempty"`
}
