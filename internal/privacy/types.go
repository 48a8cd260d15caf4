package privacy

import (
	"regexp"
	"strings"
)

// DetectionRule represents a single PII detection rule
type DetectionRule struct {
	Name    string
	Pattern *regexp.Regexp
	Label   string
}

// Finding represents a detection result
type Finding struct {
	EntityType string `json:"entity_type"`
	Count      int    `json:"count"`
}

// ProcessResult contains the result of processing text through the detector
type ProcessResult struct {
	MaskedText string    `json:"masked_text"`
	Findings   []Finding `json:"findings"`

	// placeholder -> original value, never serialized
	originals map[string]string
}

// Masked reports whether anything was replaced
func (r ProcessResult) Masked() bool {
	return len(r.originals) > 0
}

// Restore puts the original values back in place of their placeholders
func (r ProcessResult) Restore(text string) string {
	for placeholder, original := range r.originals {
		text = strings.ReplaceAll(text, placeholder, original)
	}
	return text
}

// GetDefaultRules returns the built-in detectors in matching order.
// URLs and emails run before phone numbers so their digits are not split.
func GetDefaultRules() []DetectionRule {
	return []DetectionRule{
		{
			Name:    "url",
			Pattern: regexp.MustCompile(`https?://[^\s"'<>]*[^\s"'<>.,!?;:)]`),
			Label:   "URL",
		},
		{
			Name:    "email",
			Pattern: regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
			Label:   "EMAIL",
		},
		{
			Name:    "credit_card",
			Pattern: regexp.MustCompile(`\b(?:\d{4}[ -]?){3}\d{1,4}\b`),
			Label:   "CARD",
		},
		{
			Name:    "ssn",
			Pattern: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			Label:   "SSN",
		},
		{
			Name:    "phone",
			Pattern: regexp.MustCompile(`(?:\+\d{1,3}[\s.-]?)?(?:\(\d{3}\)|\b\d{3})[\s.-]?\d{3}[\s.-]?\d{4}\b`),
			Label:   "PHONE",
		},
	}
}
