package privacy

import "regexp"

// Rule masks one kind of personal data
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// Finding counts the matches of one rule
type Finding struct {
	EntityType string `json:"entityType"`
	Count      int    `json:"count"`
}

// Result contains redacted text and what was masked
type Result struct {
	Text     string    `json:"text"`
	Findings []Finding `json:"findings"`
}

// DefaultRules returns the built-in rules, applied in order
func DefaultRules() []Rule {
	return []Rule{
		{Name: "bearer_token", Pattern: regexp.MustCompile(`(?i)\bbearer\s+[a-z0-9._~+/=-]{8,}`)},
		{Name: "email", Pattern: regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)},
		{Name: "credit_card", Pattern: regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)},
		{Name: "phone", Pattern: regexp.MustCompile(`\+?\d{1,3}[ .-]?\(?\d{3}\)?[ .-]?\d{3}[ .-]?\d{4}\b`)},
		{Name: "ip_address", Pattern: regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	}
}
