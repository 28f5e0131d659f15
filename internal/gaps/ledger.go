// Package gaps maintains the knowledge-gap ledger: deduplicated unanswered
// questions with ask counts, priority derived from ask volume, assignment,
// and a resolution lifecycle.
package gaps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-agent/backend/internal/metrics"
	"github.com/campus-agent/backend/internal/normalize"
	"github.com/campus-agent/backend/internal/storage/models"
	"github.com/campus-agent/backend/pkg/logger"
)

// ErrAlreadyResolved rejects lifecycle changes on a terminal entry.
var ErrAlreadyResolved = errors.New("gap entry is already resolved")

// Store is the persistence surface the ledger requires.
type Store interface {
	InsertGapEntry(entry *models.GapEntry) error
	UpdateGapEntry(entry *models.GapEntry) error
	GetGapEntry(id string) (*models.GapEntry, error)
	ListOpenGapEntries() ([]models.GapEntry, error)
	ListGapEntries(status, category, sortBy string) ([]models.GapEntry, error)
	DeleteGapEntry(id string) error
}

// QuestionNormalizer canonicalizes a raw question given existing phrasings.
type QuestionNormalizer interface {
	Normalize(ctx context.Context, question string, existing []string) string
}

type Ledger struct {
	store      Store
	normalizer QuestionNormalizer
	threshold  float64

	// Serializes the find-or-create read-modify-write so two simultaneous
	// same-topic events cannot both miss the similarity search and create
	// duplicate entries.
	mu sync.Mutex
}

func NewLedger(store Store, normalizer QuestionNormalizer, similarityThreshold float64) *Ledger {
	return &Ledger{
		store:      store,
		normalizer: normalizer,
		threshold:  similarityThreshold,
	}
}

// RecordUnanswered folds one unanswered question into the ledger: normalize
// against the open entries, match by similarity, then either increment the
// matched entry or create a fresh one. Resolved entries never participate in
// matching, so a topic that resurfaces after resolution starts a new entry.
func (l *Ledger) RecordUnanswered(ctx context.Context, question, askerID string) (*models.GapEntry, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	open, err := l.store.ListOpenGapEntries()
	if err != nil {
		return nil, fmt.Errorf("failed to load open entries: %w", err)
	}

	existing := make([]string, len(open))
	for i, e := range open {
		existing[i] = e.NormalizedQuestion
	}

	normalized := l.normalizer.Normalize(ctx, question, existing)
	now := time.Now()

	if match := normalize.FindSimilar(normalized, existing, l.threshold); match != nil {
		entry := open[match.Index]
		entry.AskCount++
		entry.Occurrences = append(entry.Occurrences, models.Occurrence{Question: question, AskedAt: now})
		if askerID != "" && !containsString(entry.Askers, askerID) {
			entry.Askers = append(entry.Askers, askerID)
		}
		entry.LastAsked = now
		entry.Priority = models.PriorityForAskCount(entry.AskCount)

		if err := l.store.UpdateGapEntry(&entry); err != nil {
			return nil, fmt.Errorf("failed to update gap entry: %w", err)
		}

		metrics.GapRecordTotal.WithLabelValues("merged").Inc()
		logger.Info("Unanswered question merged into existing gap",
			zap.String("entry_id", entry.ID),
			zap.String("normalized", entry.NormalizedQuestion),
			zap.Int("ask_count", entry.AskCount),
			zap.Float64("similarity", match.Score),
		)

		return &entry, nil
	}

	entry := &models.GapEntry{
		ID:                 uuid.New().String(),
		Question:           question,
		NormalizedQuestion: normalized,
		Category:           categorize(question),
		Answered:           false,
		AnswerSource:       models.AnswerSourceNone,
		AskCount:           1,
		Occurrences:        []models.Occurrence{{Question: question, AskedAt: now}},
		Priority:           models.PriorityForAskCount(1),
		Status:             models.StatusOpen,
		FirstSeen:          now,
		LastAsked:          now,
	}
	if askerID != "" {
		entry.Askers = []string{askerID}
	}

	if err := l.store.InsertGapEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to insert gap entry: %w", err)
	}

	metrics.GapRecordTotal.WithLabelValues("created").Inc()
	metrics.GapEntriesOpen.Set(float64(len(open) + 1))
	logger.Info("New knowledge gap recorded",
		zap.String("entry_id", entry.ID),
		zap.String("normalized", normalized),
	)

	return entry, nil
}

// ListFilter narrows and orders admin views of the ledger.
type ListFilter struct {
	Status   string
	Category string
	SortBy   string // ask_count (default) or recent
}

// List returns matching entries plus ledger-wide statistics.
func (l *Ledger) List(filter ListFilter) (models.GapStats, []models.GapEntry, error) {
	entries, err := l.store.ListGapEntries(filter.Status, filter.Category, filter.SortBy)
	if err != nil {
		return models.GapStats{}, nil, fmt.Errorf("failed to list gap entries: %w", err)
	}

	all := entries
	if filter.Status != "" || filter.Category != "" {
		all, err = l.store.ListGapEntries("", "", "")
		if err != nil {
			return models.GapStats{}, nil, fmt.Errorf("failed to aggregate stats: %w", err)
		}
	}

	return buildStats(all), entries, nil
}

func (l *Ledger) Get(id string) (*models.GapEntry, error) {
	return l.store.GetGapEntry(id)
}

// Resolve writes the resolution and moves the entry to its terminal state.
func (l *Ledger) Resolve(id, answer, resolvedBy string) (*models.GapEntry, error) {
	if strings.TrimSpace(answer) == "" {
		return nil, fmt.Errorf("answer is required")
	}

	entry, err := l.store.GetGapEntry(id)
	if err != nil {
		return nil, err
	}

	if entry.Status == models.StatusResolved {
		return nil, fmt.Errorf("entry %s: %w", id, ErrAlreadyResolved)
	}

	entry.Answered = true
	entry.AnswerSource = models.AnswerSourceHuman
	entry.Status = models.StatusResolved
	entry.Priority = models.PriorityForAskCount(entry.AskCount)
	entry.Resolution = &models.Resolution{
		Answer:     answer,
		ResolvedBy: resolvedBy,
		ResolvedAt: time.Now(),
	}

	if err := l.store.UpdateGapEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to resolve gap entry: %w", err)
	}

	logger.Info("Knowledge gap resolved",
		zap.String("entry_id", entry.ID),
		zap.String("resolved_by", resolvedBy),
	)

	return entry, nil
}

// Assign moves an open entry under review by a staff member.
func (l *Ledger) Assign(id, assignee string) (*models.GapEntry, error) {
	if strings.TrimSpace(assignee) == "" {
		return nil, fmt.Errorf("assignee is required")
	}

	entry, err := l.store.GetGapEntry(id)
	if err != nil {
		return nil, err
	}

	if entry.Status == models.StatusResolved {
		return nil, fmt.Errorf("entry %s: %w", id, ErrAlreadyResolved)
	}

	entry.Status = models.StatusUnderReview
	entry.Assignee = assignee
	entry.Priority = models.PriorityForAskCount(entry.AskCount)

	if err := l.store.UpdateGapEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to assign gap entry: %w", err)
	}

	return entry, nil
}

func (l *Ledger) Delete(id string) error {
	return l.store.DeleteGapEntry(id)
}

func buildStats(entries []models.GapEntry) models.GapStats {
	stats := models.GapStats{
		Total:    len(entries),
		ByStatus: make(map[string]int),
	}

	askers := make(map[string]struct{})
	for _, e := range entries {
		stats.ByStatus[e.Status]++
		stats.TotalAsks += e.AskCount
		for _, a := range e.Askers {
			askers[a] = struct{}{}
		}
	}
	stats.UniqueAskers = len(askers)

	return stats
}

// Checked in order so a question touching several topics categorizes
// deterministically.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"scholarship", "scholarship"},
	{"admission", "admission"},
	{"hostel", "hostel"},
	{"fee", "fees"},
	{"exam", "examination"},
	{"placement", "placement"},
	{"library", "library"},
}

func categorize(question string) string {
	lower := strings.ToLower(question)
	for _, kc := range categoryKeywords {
		if strings.Contains(lower, kc.keyword) {
			return kc.category
		}
	}
	return "general"
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
