package llm

import (
	"fmt"
	"strings"
)

// StaffReferralPhrase is the canned fallback the assistant is instructed to
// produce when the knowledge base has no answer. The answer classifier keys
// on this exact phrase, so the prompt below and the classifier rules form a
// versioned contract: change one, change the other.
const StaffReferralPhrase = "contact the staff locally at student_help@jssaten.ac.in"

// RewriteSystemPrompt instructs the model to turn a follow-up question into a
// standalone one using the preceding chat history.
const RewriteSystemPrompt = `You are a query rewriting expert. Based on the chat history, rephrase the "Follow Up user Question" into a complete, standalone question. Only output the rewritten question.`

// AssistantSystemPrompt embeds retrieved knowledge-base context into the
// campus assistant's instructions.
func AssistantSystemPrompt(context string) string {
	return fmt.Sprintf(`You are a helpful campus assistant chatbot for JSS Academy of Technical Education, Noida.

Use the following context from the campus knowledge base to answer questions:

CONTEXT:
%s

Guidelines:
1. Answer based on the provided context
2. If the context doesn't contain relevant information, say "I don't have that information" and advise the student to %s
3. Be concise and helpful
4. For scholarship or admission queries, guide users through the process
5. If asked to fill forms or applications, confirm details with the user first`, context, StaffReferralPhrase)
}

// NormalizeSystemPrompt instructs the model to canonicalize a raw question to
// its topic-level phrasing. Existing normalized phrasings are supplied as
// in-context examples so equivalent questions converge on identical text.
func NormalizeSystemPrompt(existing []string) string {
	var b strings.Builder
	b.WriteString(`You normalize student questions for a knowledge-gap tracker.

Rewrite the question into a short, canonical, admin-facing phrasing:
- Strip casual or emotional language.
- Generalize over incidental details (year, branch, specific wording) to the core topic.
- If the question is materially the same topic as one of the existing normalized questions below, reuse that exact phrasing verbatim.
- Only output the normalized question.`)

	if len(existing) > 0 {
		b.WriteString("\n\nExisting normalized questions:\n")
		for _, q := range existing {
			b.WriteString("- ")
			b.WriteString(q)
			b.WriteString("\n")
		}
	}

	return b.String()
}
