// Package normalize reduces raw student questions to canonical, topic-level
// phrasings so repeat questions collapse onto one knowledge-gap entry, and
// matches normalized questions against existing ones.
package normalize

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/campus-agent/backend/internal/llm"
	"github.com/campus-agent/backend/pkg/logger"
)

// Completer is the slice of the LLM client the normalizer needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type Normalizer struct {
	llm Completer
}

func NewNormalizer(completer Completer) *Normalizer {
	return &Normalizer{llm: completer}
}

// Normalize canonicalizes a raw question, biased toward reusing one of the
// existing normalized phrasings when the topic is the same. Normalization is
// best-effort: any LLM failure falls back to the raw question verbatim.
func (n *Normalizer) Normalize(ctx context.Context, question string, existing []string) string {
	systemPrompt := llm.NormalizeSystemPrompt(existing)

	normalized, err := n.llm.Complete(ctx, systemPrompt, question)
	if err != nil {
		logger.Warn("Question normalization failed, using raw question",
			zap.Error(err),
			zap.String("question", question),
		)
		return question
	}

	normalized = stripWrappingQuotes(strings.TrimSpace(normalized))
	if normalized == "" {
		return question
	}

	return normalized
}

func stripWrappingQuotes(s string) string {
	for len(s) >= 2 {
		first := s[0]
		last := s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		break
	}
	return s
}
