package models

import "time"

// Gap entry status lifecycle. Resolved is terminal; a topic that resurfaces
// after resolution starts a fresh entry.
const (
	StatusOpen        = "open"
	StatusUnderReview = "under_review"
	StatusResolved    = "resolved"
)

// Priority tiers, derived purely from ask count.
const (
	PriorityLow      = "low"
	PriorityNormal   = "normal"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Answer sources for a gap entry.
const (
	AnswerSourceNone  = "none"
	AnswerSourceAI    = "ai"
	AnswerSourceHuman = "human"
)

// Occurrence preserves one verbatim phrasing mapped onto a gap entry.
type Occurrence struct {
	Question string    `json:"question"`
	AskedAt  time.Time `json:"asked_at"`
}

// Resolution records how and by whom a gap entry was closed.
type Resolution struct {
	Answer     string    `json:"answer"`
	ResolvedBy string    `json:"resolved_by"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// GapEntry is a deduplicated unanswered question: many raw questions map to
// one entry via normalization plus similarity matching.
type GapEntry struct {
	ID                 string       `json:"id"`
	Question           string       `json:"question"`
	NormalizedQuestion string       `json:"normalized_question"`
	Category           string       `json:"category"`
	Answered           bool         `json:"answered"`
	AnswerSource       string       `json:"answer_source"`
	Askers             []string     `json:"askers"`
	AskCount           int          `json:"ask_count"`
	Occurrences        []Occurrence `json:"occurrences"`
	Priority           string       `json:"priority"`
	Status             string       `json:"status"`
	Assignee           string       `json:"assignee,omitempty"`
	Resolution         *Resolution  `json:"resolution,omitempty"`
	FirstSeen          time.Time    `json:"first_seen"`
	LastAsked          time.Time    `json:"last_asked"`
}

// PriorityForAskCount maps an ask count onto a priority tier. Entries never
// store a priority set independently of this function.
func PriorityForAskCount(askCount int) string {
	switch {
	case askCount >= 10:
		return PriorityCritical
	case askCount >= 5:
		return PriorityHigh
	case askCount >= 2:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// GapStats aggregates the ledger for admin views.
type GapStats struct {
	Total        int            `json:"total"`
	ByStatus     map[string]int `json:"by_status"`
	TotalAsks    int            `json:"total_asks"`
	UniqueAskers int            `json:"unique_askers"`
}

// ChatRecord is one audited chat turn.
type ChatRecord struct {
	ID                string
	SessionID         string
	UserID            string
	Question          string
	RewrittenQuestion string
	Answer            string
	Answered          bool
	LatencyMS         int
	CreatedAt         time.Time
}
