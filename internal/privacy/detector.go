package privacy

import (
	"fmt"

	"github.com/raaihank/confidenceboost/internal/config"
	"go.uber.org/zap"
)

// Detector masks personal details before a message leaves the process
// and restores them in the reply
type Detector struct {
	rules   []DetectionRule
	enabled map[string]bool
	logger  *zap.Logger
	config  config.PrivacyConfig
}

// New creates a new PII detector instance
func New(cfg config.PrivacyConfig, logger *zap.Logger) (*Detector, error) {
	detector := &Detector{
		rules:   GetDefaultRules(),
		enabled: make(map[string]bool),
		logger:  logger,
		config:  cfg,
	}

	if err := detector.configureDetectors(cfg.Detectors); err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	logger.Info("Privacy detector initialized",
		zap.Int("total_rules", len(detector.rules)),
		zap.Int("enabled_rules", detector.countEnabledRules()),
	)

	return detector, nil
}

// configureDetectors enables detectors by name; "all" enables every rule
func (d *Detector) configureDetectors(detectors []string) error {
	for _, rule := range d.rules {
		d.enabled[rule.Name] = false
	}

	for _, detector := range detectors {
		if detector == "all" {
			for _, rule := range d.rules {
				d.enabled[rule.Name] = true
			}
			continue
		}

		if _, known := d.enabled[detector]; !known {
			return fmt.Errorf("unknown detector: %s", detector)
		}
		d.enabled[detector] = true
	}

	return nil
}

// ProcessText replaces every detected value with a numbered placeholder
// such as [EMAIL_1]. Repeated values share one placeholder.
func (d *Detector) ProcessText(text string) ProcessResult {
	result := ProcessResult{
		MaskedText: text,
		Findings:   []Finding{},
	}
	if !d.config.Enabled {
		return result
	}

	for _, rule := range d.rules {
		if !d.enabled[rule.Name] {
			continue
		}

		seen := make(map[string]string)
		count := 0
		result.MaskedText = rule.Pattern.ReplaceAllStringFunc(result.MaskedText, func(match string) string {
			count++
			if placeholder, ok := seen[match]; ok {
				return placeholder
			}
			placeholder := fmt.Sprintf("[%s_%d]", rule.Label, len(seen)+1)
			seen[match] = placeholder
			if result.originals == nil {
				result.originals = make(map[string]string)
			}
			result.originals[placeholder] = match
			return placeholder
		})

		if count > 0 {
			result.Findings = append(result.Findings, Finding{EntityType: rule.Name, Count: count})
			d.logger.Debug("PII detected and masked",
				zap.String("entity_type", rule.Name),
				zap.Int("count", count),
			)
		}
	}

	return result
}

// countEnabledRules returns the number of enabled detection rules
func (d *Detector) countEnabledRules() int {
	count := 0
	for _, enabled := range d.enabled {
		if enabled {
			count++
		}
	}
	return count
}

// GetEnabledRules returns the enabled rule names in matching order
func (d *Detector) GetEnabledRules() []string {
	var enabled []string
	for _, rule := range d.rules {
		if d.enabled[rule.Name] {
			enabled = append(enabled, rule.Name)
		}
	}
	return enabled
}
