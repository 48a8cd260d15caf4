package privacy

import (
	"strings"
	"testing"

	"github.com/raaihank/confidenceboost/internal/config"
	"go.uber.org/zap"
)

func newDetector(t *testing.T, detectors ...string) *Detector {
	t.Helper()
	d, err := New(config.PrivacyConfig{Enabled: true, Detectors: detectors}, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d
}

func TestProcessText(t *testing.T) {
	d := newDetector(t, "all")

	tests := []struct {
		name   string
		input  string
		masked string
	}{
		{
			name:   "Email",
			input:  "Maybe email me at sam.lee@example.com sometime?",
			masked: "Maybe email me at [EMAIL_1] sometime?",
		},
		{
			name:   "Phone",
			input:  "I think you could call 555-123-4567 tonight",
			masked: "I think you could call [PHONE_1] tonight",
		},
		{
			name:   "InternationalPhone",
			input:  "text me on +1 555 123 4567",
			masked: "text me on [PHONE_1]",
		},
		{
			name:   "URL",
			input:  "Sorry, here is my portfolio https://example.com/me.",
			masked: "Sorry, here is my portfolio [URL_1].",
		},
		{
			name:   "CreditCard",
			input:  "card 4111 1111 1111 1111 please",
			masked: "card [CARD_1] please",
		},
		{
			name:   "SSN",
			input:  "my number is 123-45-6789",
			masked: "my number is [SSN_1]",
		},
		{
			name:   "Nothing",
			input:  "Would you like to grab coffee sometime?",
			masked: "Would you like to grab coffee sometime?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := d.ProcessText(tt.input)
			if result.MaskedText != tt.masked {
				t.Errorf("Expected %q, got %q", tt.masked, result.MaskedText)
			}
			if result.Restore(result.MaskedText) != tt.input {
				t.Errorf("Restore did not round trip: %q", result.Restore(result.MaskedText))
			}
		})
	}
}

func TestRepeatedValuesShareOnePlaceholder(t *testing.T) {
	d := newDetector(t, "email")

	result := d.ProcessText("a@b.io or c@d.io, I mean a@b.io")
	if result.MaskedText != "[EMAIL_1] or [EMAIL_2], I mean [EMAIL_1]" {
		t.Errorf("Unexpected masking %q", result.MaskedText)
	}
	if len(result.Findings) != 1 || result.Findings[0].Count != 3 {
		t.Errorf("Unexpected findings %+v", result.Findings)
	}
	if !result.Masked() {
		t.Error("Expected Masked to be true")
	}
}

func TestRestoreRewrittenText(t *testing.T) {
	d := newDetector(t, "all")

	result := d.ProcessText("Maybe you could email me at sam@example.com?")
	rewritten := "Email me at [EMAIL_1] - I'm looking forward to it!"
	if got := result.Restore(rewritten); got != "Email me at sam@example.com - I'm looking forward to it!" {
		t.Errorf("Unexpected restore %q", got)
	}
}

func TestDisabledDetector(t *testing.T) {
	d, err := New(config.PrivacyConfig{Enabled: false, Detectors: []string{"all"}}, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := d.ProcessText("mail sam@example.com")
	if result.MaskedText != "mail sam@example.com" || result.Masked() {
		t.Errorf("Disabled detector should not mask, got %q", result.MaskedText)
	}
}

func TestSelectedDetectors(t *testing.T) {
	d := newDetector(t, "phone")

	if got := d.GetEnabledRules(); strings.Join(got, ",") != "phone" {
		t.Errorf("Unexpected enabled rules %v", got)
	}

	result := d.ProcessText("sam@example.com 555-123-4567")
	if result.MaskedText != "sam@example.com [PHONE_1]" {
		t.Errorf("Unexpected masking %q", result.MaskedText)
	}
}

func TestUnknownDetector(t *testing.T) {
	if _, err := New(config.PrivacyConfig{Enabled: true, Detectors: []string{"passport"}}, zap.NewNop()); err == nil {
		t.Error("Expected error for unknown detector")
	}
}
