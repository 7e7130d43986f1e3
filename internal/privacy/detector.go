// Package privacy masks personal data before checked text is persisted.
package privacy

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/raaihank/grammar-sentinel/internal/config"
	"github.com/raaihank/grammar-sentinel/internal/logger"
)

// Redactor applies the enabled rules to text
type Redactor struct {
	rules       []Rule
	replacement string
	logger      *logger.Logger
}

// New creates a redactor from configuration
func New(cfg config.PrivacyConfig, log *logger.Logger) (*Redactor, error) {
	rules, err := selectRules(DefaultRules(), cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to configure redaction rules: %w", err)
	}

	replacement := cfg.Replacement
	if replacement == "" {
		replacement = "[MASKED_{{TYPE}}]"
	}

	r := &Redactor{
		rules:       rules,
		replacement: replacement,
		logger:      log.WithComponent("privacy"),
	}

	r.logger.Debug("Redactor initialized", zap.Strings("rules", r.RuleNames()))
	return r, nil
}

func selectRules(all []Rule, names []string) ([]Rule, error) {
	enabled := make(map[string]bool)
	for _, name := range names {
		if name == "all" {
			return all, nil
		}
		found := false
		for _, rule := range all {
			if rule.Name == name {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown rule: %s", name)
		}
		enabled[name] = true
	}

	var rules []Rule
	for _, rule := range all {
		if enabled[rule.Name] {
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

// Redact masks every match of the enabled rules
func (r *Redactor) Redact(text string) Result {
	findings := make([]Finding, 0)

	for _, rule := range r.rules {
		matches := rule.Pattern.FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			continue
		}

		mask := strings.ReplaceAll(r.replacement, "{{TYPE}}", strings.ToUpper(rule.Name))
		text = rule.Pattern.ReplaceAllLiteralString(text, mask)
		findings = append(findings, Finding{EntityType: rule.Name, Count: len(matches)})

		r.logger.Debug("Personal data masked",
			zap.String("entity_type", rule.Name),
			zap.Int("count", len(matches)),
		)
	}

	return Result{Text: text, Findings: findings}
}

// RuleNames lists the enabled rules in application order
func (r *Redactor) RuleNames() []string {
	names := make([]string, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.Name
	}
	return names
}
