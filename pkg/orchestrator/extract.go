package orchestrator

import (
	"regexp"
	"strings"
)

var (
	domainPattern   = regexp.MustCompile(`\b([a-zA-Z0-9][-a-zA-Z0-9]*(\.[a-zA-Z0-9][-a-zA-Z0-9]*)+)\b`)
	taskNamePattern = regexp.MustCompile(`(?i)\b(execute|run)\s+task\s+"([^"]+)"`)

	setupPhrasePattern  = regexp.MustCompile(`\b(setup|configure|add)\b`)
	verifyPhrasePattern = regexp.MustCompile(`\b(verify|check)\b`)
)

// extractDomain pulls the first domain-shaped token out of the message.
func extractDomain(message string) (string, bool) {
	m := domainPattern.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// extractTaskName pulls the quoted task name out of execute/run task phrasing.
func extractTaskName(message string) (string, bool) {
	m := taskNamePattern.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return m[2], true
}

// inferDNSAction maps request phrasing to a shogun action. Setup phrasing
// wins over verify phrasing; anything else asks for information.
func inferDNSAction(message string) string {
	lower := strings.ToLower(message)
	switch {
	case setupPhrasePattern.MatchString(lower):
		return "setup_dns"
	case verifyPhrasePattern.MatchString(lower):
		return "verify_dns"
	default:
		return "dns_info"
	}
}
