package agent

import (
	"regexp"
	"strings"
)

// Surface patterns checked before trigger scanning. These reproduce the
// legacy router's special-case routing.
var (
	dnsSetupPattern  = regexp.MustCompile(`\b(setup|configure)\s+(domain|dns|vercel)\b`)
	taskPattern      = regexp.MustCompile(`\b(execute|run|automate)\s+tasks?\b`)
	liveCheckPattern = regexp.MustCompile(`\bis\s+this\s+live\b`)
)

// Method records how a classification decision was reached.
type Method string

const (
	MethodExplicit Method = "explicit"
	MethodPattern  Method = "pattern"
	MethodTrigger  Method = "trigger"
	MethodDefault  Method = "default"
)

// Decision is the outcome of classifying one message.
type Decision struct {
	Agent   string
	Method  Method
	Trigger string // the matched keyword when Method is MethodTrigger
}

// Classify picks the agent for a message. Resolution order, first match wins:
// a known explicit agent, the fixed surface patterns, the first agent whose
// trigger keyword appears as a substring of the lower-cased message, then
// claudia as default. Classify is deterministic and has no side effects.
//
// Trigger matching is substring matching, so a keyword embedded inside an
// unrelated word still nominates its agent. That is legacy behavior the
// routing contract preserves.
func (r *Registry) Classify(message, explicit string) Decision {
	if _, ok := r.Lookup(explicit); ok && explicit != "" {
		return Decision{Agent: explicit, Method: MethodExplicit}
	}

	lower := strings.ToLower(message)

	if dnsSetupPattern.MatchString(lower) {
		return Decision{Agent: KeyShogun, Method: MethodPattern}
	}
	if taskPattern.MatchString(lower) {
		return Decision{Agent: KeyClaudia, Method: MethodPattern}
	}
	if liveCheckPattern.MatchString(lower) {
		return Decision{Agent: KeyClaudia, Method: MethodPattern}
	}

	for _, a := range r.agents {
		for _, trigger := range a.Triggers {
			if strings.Contains(lower, trigger) {
				return Decision{Agent: a.Key, Method: MethodTrigger, Trigger: trigger}
			}
		}
	}

	return Decision{Agent: KeyClaudia, Method: MethodDefault}
}

// IsLiveCheck reports whether the message asks the "is this live" status question.
func IsLiveCheck(message string) bool {
	return liveCheckPattern.MatchString(strings.ToLower(message))
}

// IsTaskRequest reports whether the message uses execute/run task phrasing.
func IsTaskRequest(message string) bool {
	return taskRequestPattern.MatchString(strings.ToLower(message))
}

// MentionsDomain reports whether the message refers to domains, DNS, or vercel.
func MentionsDomain(message string) bool {
	return domainMentionPattern.MatchString(strings.ToLower(message))
}

var (
	taskRequestPattern   = regexp.MustCompile(`\b(execute|run)\s+tasks?\b`)
	domainMentionPattern = regexp.MustCompile(`\b(domain|dns|vercel)\b`)
)
