// Package classifier decides whether a generated answer admits to having no
// information. Classification is deliberately pattern-based rather than
// semantic: the rules match phrasings the system prompt itself instructs the
// model to produce, which keeps false positives rare without a second LLM
// round-trip. Missed unanswered cases are acceptable.
package classifier

import (
	"strings"

	"github.com/campus-agent/backend/internal/llm"
)

// Rules are matched in order, case-insensitively; any hit classifies the
// answer as unanswered. The staff referral phrase is the shared constant the
// system prompt embeds, so prompt and classifier cannot drift apart silently.
var rules = []string{
	llm.StaffReferralPhrase,
	"don't have that information",
	"do not have that information",
	"don't have information about",
	"no information available",
	"couldn't find any information",
	"could not find any information",
	"unable to find information",
	"i'm unable to help with that",
	"i am unable to help with that",
	"cannot help with that",
	"outside my knowledge base",
}

// IsUnanswered reports whether the answer text represents "no information
// available".
func IsUnanswered(answer string) bool {
	lower := strings.ToLower(answer)
	for _, rule := range rules {
		if strings.Contains(lower, strings.ToLower(rule)) {
			return true
		}
	}
	return false
}
