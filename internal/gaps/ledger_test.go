package gaps

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/campus-agent/backend/internal/storage/models"
)

// fakeStore is an in-memory Store for ledger tests.
type fakeStore struct {
	entries map[string]*models.GapEntry
	order   []string

	listErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]*models.GapEntry)}
}

func (f *fakeStore) InsertGapEntry(entry *models.GapEntry) error {
	cp := *entry
	f.entries[entry.ID] = &cp
	f.order = append(f.order, entry.ID)
	return nil
}

func (f *fakeStore) UpdateGapEntry(entry *models.GapEntry) error {
	if _, ok := f.entries[entry.ID]; !ok {
		return models.ErrNotFound
	}
	cp := *entry
	f.entries[entry.ID] = &cp
	return nil
}

func (f *fakeStore) GetGapEntry(id string) (*models.GapEntry, error) {
	entry, ok := f.entries[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *entry
	return &cp, nil
}

func (f *fakeStore) ListOpenGapEntries() ([]models.GapEntry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.GapEntry
	for _, id := range f.order {
		if e := f.entries[id]; e != nil && !e.Answered {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) ListGapEntries(status, category, sortBy string) ([]models.GapEntry, error) {
	var out []models.GapEntry
	for _, id := range f.order {
		e := f.entries[id]
		if e == nil {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		if category != "" && e.Category != category {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeStore) DeleteGapEntry(id string) error {
	if _, ok := f.entries[id]; !ok {
		return models.ErrNotFound
	}
	delete(f.entries, id)
	return nil
}

// identityNormalizer lowercases and trims, no LLM involved.
type identityNormalizer struct{}

func (identityNormalizer) Normalize(ctx context.Context, question string, existing []string) string {
	return strings.ToLower(strings.TrimSpace(question))
}

func newTestLedger(store Store) *Ledger {
	return NewLedger(store, identityNormalizer{}, 0.6)
}

func TestRecordUnansweredCreatesEntry(t *testing.T) {
	store := newFakeStore()
	ledger := newTestLedger(store)

	entry, err := ledger.RecordUnanswered(context.Background(), "When is the hostel fee deadline?", "student1")
	if err != nil {
		t.Fatalf("RecordUnanswered failed: %v", err)
	}

	if entry.AskCount != 1 {
		t.Errorf("AskCount = %d, want 1", entry.AskCount)
	}
	if entry.Status != models.StatusOpen {
		t.Errorf("Status = %q, want %q", entry.Status, models.StatusOpen)
	}
	if entry.Priority != models.PriorityLow {
		t.Errorf("Priority = %q, want %q", entry.Priority, models.PriorityLow)
	}
	if entry.AnswerSource != models.AnswerSourceNone {
		t.Errorf("AnswerSource = %q, want %q", entry.AnswerSource, models.AnswerSourceNone)
	}
	if len(entry.Askers) != 1 || entry.Askers[0] != "student1" {
		t.Errorf("Askers = %v, want [student1]", entry.Askers)
	}
	if len(entry.Occurrences) != 1 || entry.Occurrences[0].Question != "When is the hostel fee deadline?" {
		t.Errorf("Occurrences = %+v", entry.Occurrences)
	}
	if entry.Category != "hostel" {
		t.Errorf("Category = %q, want hostel", entry.Category)
	}
}

func TestRecordUnansweredMergesSimilar(t *testing.T) {
	store := newFakeStore()
	ledger := newTestLedger(store)
	ctx := context.Background()

	first, err := ledger.RecordUnanswered(ctx, "hostel fee payment deadline", "student1")
	if err != nil {
		t.Fatalf("first RecordUnanswered failed: %v", err)
	}

	second, err := ledger.RecordUnanswered(ctx, "Hostel fee payment deadline", "student2")
	if err != nil {
		t.Fatalf("second RecordUnanswered failed: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("similar question created a new entry: %q vs %q", second.ID, first.ID)
	}
	if second.AskCount != 2 {
		t.Errorf("AskCount = %d, want 2", second.AskCount)
	}
	if second.Priority != models.PriorityNormal {
		t.Errorf("Priority = %q, want %q", second.Priority, models.PriorityNormal)
	}
	if len(second.Askers) != 2 {
		t.Errorf("Askers = %v, want two distinct askers", second.Askers)
	}
	if len(second.Occurrences) != 2 {
		t.Errorf("Occurrences = %d, want 2", len(second.Occurrences))
	}
	if len(store.order) != 1 {
		t.Errorf("store has %d entries, want 1", len(store.order))
	}
}

func TestRecordUnansweredSameAskerNotDuplicated(t *testing.T) {
	store := newFakeStore()
	ledger := newTestLedger(store)
	ctx := context.Background()

	ledger.RecordUnanswered(ctx, "hostel fee payment deadline", "student1")
	entry, err := ledger.RecordUnanswered(ctx, "hostel fee payment deadline", "student1")
	if err != nil {
		t.Fatalf("RecordUnanswered failed: %v", err)
	}

	if entry.AskCount != 2 {
		t.Errorf("AskCount = %d, want 2", entry.AskCount)
	}
	if len(entry.Askers) != 1 {
		t.Errorf("Askers = %v, want one unique asker", entry.Askers)
	}
}

func TestRecordUnansweredDissimilarCreatesNew(t *testing.T) {
	store := newFakeStore()
	ledger := newTestLedger(store)
	ctx := context.Background()

	first, _ := ledger.RecordUnanswered(ctx, "hostel fee payment deadline", "student1")
	second, err := ledger.RecordUnanswered(ctx, "library opening hours", "student1")
	if err != nil {
		t.Fatalf("RecordUnanswered failed: %v", err)
	}

	if second.ID == first.ID {
		t.Error("dissimilar question merged into existing entry")
	}
	if len(store.order) != 2 {
		t.Errorf("store has %d entries, want 2", len(store.order))
	}
}

func TestRecordUnansweredPriorityEscalation(t *testing.T) {
	store := newFakeStore()
	ledger := newTestLedger(store)
	ctx := context.Background()

	var entry *models.GapEntry
	var err error
	for i := 0; i < 5; i++ {
		entry, err = ledger.RecordUnanswered(ctx, "hostel fee payment deadline", "")
		if err != nil {
			t.Fatalf("RecordUnanswered failed: %v", err)
		}
	}

	if entry.AskCount != 5 {
		t.Fatalf("AskCount = %d, want 5", entry.AskCount)
	}
	if entry.Priority != models.PriorityHigh {
		t.Errorf("Priority at 5 asks = %q, want %q", entry.Priority, models.PriorityHigh)
	}

	for i := 0; i < 5; i++ {
		entry, _ = ledger.RecordUnanswered(ctx, "hostel fee payment deadline", "")
	}
	if entry.Priority != models.PriorityCritical {
		t.Errorf("Priority at 10 asks = %q, want %q", entry.Priority, models.PriorityCritical)
	}
}

func TestRecordUnansweredSkipsResolvedEntries(t *testing.T) {
	store := newFakeStore()
	ledger := newTestLedger(store)
	ctx := context.Background()

	first, _ := ledger.RecordUnanswered(ctx, "hostel fee payment deadline", "student1")
	if _, err := ledger.Resolve(first.ID, "July 15th", "admin1"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	second, err := ledger.RecordUnanswered(ctx, "hostel fee payment deadline", "student2")
	if err != nil {
		t.Fatalf("RecordUnanswered failed: %v", err)
	}

	if second.ID == first.ID {
		t.Error("resolved entry was reopened instead of starting fresh")
	}
	if second.AskCount != 1 {
		t.Errorf("AskCount = %d, want 1", second.AskCount)
	}
}

func TestRecordUnansweredEmptyQuestion(t *testing.T) {
	ledger := newTestLedger(newFakeStore())

	if _, err := ledger.RecordUnanswered(context.Background(), "   ", "student1"); err == nil {
		t.Error("expected error for blank question")
	}
}

func TestRecordUnansweredStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("disk gone")
	ledger := newTestLedger(store)

	if _, err := ledger.RecordUnanswered(context.Background(), "hostel fees", "s1"); err == nil {
		t.Error("expected error when the store fails")
	}
}

func TestResolveLifecycle(t *testing.T) {
	store := newFakeStore()
	ledger := newTestLedger(store)
	ctx := context.Background()

	entry, _ := ledger.RecordUnanswered(ctx, "hostel fee payment deadline", "student1")

	resolved, err := ledger.Resolve(entry.ID, "July 15th", "admin1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if resolved.Status != models.StatusResolved {
		t.Errorf("Status = %q, want %q", resolved.Status, models.StatusResolved)
	}
	if !resolved.Answered {
		t.Error("Answered = false after resolve")
	}
	if resolved.AnswerSource != models.AnswerSourceHuman {
		t.Errorf("AnswerSource = %q, want %q", resolved.AnswerSource, models.AnswerSourceHuman)
	}
	if resolved.Resolution == nil || resolved.Resolution.Answer != "July 15th" {
		t.Errorf("Resolution = %+v", resolved.Resolution)
	}

	// Terminal state: a second resolve is rejected.
	if _, err := ledger.Resolve(entry.ID, "different answer", "admin2"); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("second Resolve error = %v, want ErrAlreadyResolved", err)
	}
}

func TestResolveValidation(t *testing.T) {
	ledger := newTestLedger(newFakeStore())

	if _, err := ledger.Resolve("missing", "answer", "admin1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Resolve unknown id error = %v, want ErrNotFound", err)
	}

	store := newFakeStore()
	ledger = newTestLedger(store)
	entry, _ := ledger.RecordUnanswered(context.Background(), "hostel fees", "s1")
	if _, err := ledger.Resolve(entry.ID, "  ", "admin1"); err == nil {
		t.Error("expected error for blank answer")
	}
}

func TestAssignMovesUnderReview(t *testing.T) {
	store := newFakeStore()
	ledger := newTestLedger(store)

	entry, _ := ledger.RecordUnanswered(context.Background(), "hostel fees", "s1")

	assigned, err := ledger.Assign(entry.ID, "admin1")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if assigned.Status != models.StatusUnderReview {
		t.Errorf("Status = %q, want %q", assigned.Status, models.StatusUnderReview)
	}
	if assigned.Assignee != "admin1" {
		t.Errorf("Assignee = %q, want admin1", assigned.Assignee)
	}

	// An under-review entry still merges new asks.
	merged, err := ledger.RecordUnanswered(context.Background(), "hostel fees", "s2")
	if err != nil {
		t.Fatalf("RecordUnanswered failed: %v", err)
	}
	if merged.ID != entry.ID {
		t.Error("under-review entry no longer matches new asks")
	}
}

func TestAssignResolvedRejected(t *testing.T) {
	store := newFakeStore()
	ledger := newTestLedger(store)

	entry, _ := ledger.RecordUnanswered(context.Background(), "hostel fees", "s1")
	ledger.Resolve(entry.ID, "answer", "admin1")

	if _, err := ledger.Assign(entry.ID, "admin2"); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("Assign on resolved entry error = %v, want ErrAlreadyResolved", err)
	}
}

func TestListStatsAndFiltering(t *testing.T) {
	store := newFakeStore()
	ledger := newTestLedger(store)
	ctx := context.Background()

	ledger.RecordUnanswered(ctx, "hostel fee payment deadline", "s1")
	ledger.RecordUnanswered(ctx, "hostel fee payment deadline", "s2")
	libEntry, _ := ledger.RecordUnanswered(ctx, "library opening hours", "s1")
	ledger.Resolve(libEntry.ID, "8am to 10pm", "admin1")

	stats, entries, err := ledger.List(ListFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if stats.Total != 2 {
		t.Errorf("stats.Total = %d, want 2", stats.Total)
	}
	if stats.TotalAsks != 3 {
		t.Errorf("stats.TotalAsks = %d, want 3", stats.TotalAsks)
	}
	if stats.UniqueAskers != 2 {
		t.Errorf("stats.UniqueAskers = %d, want 2", stats.UniqueAskers)
	}
	if stats.ByStatus[models.StatusOpen] != 1 || stats.ByStatus[models.StatusResolved] != 1 {
		t.Errorf("stats.ByStatus = %v", stats.ByStatus)
	}
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(entries))
	}

	// Filtering narrows entries but stats stay ledger-wide.
	stats, entries, err = ledger.List(ListFilter{Status: models.StatusResolved})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != libEntry.ID {
		t.Errorf("filtered entries = %+v", entries)
	}
	if stats.Total != 2 {
		t.Errorf("filtered stats.Total = %d, want 2", stats.Total)
	}
}

func TestDeleteEntry(t *testing.T) {
	store := newFakeStore()
	ledger := newTestLedger(store)

	entry, _ := ledger.RecordUnanswered(context.Background(), "hostel fees", "s1")

	if err := ledger.Delete(entry.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := ledger.Delete(entry.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestCategorize(t *testing.T) {
	cases := []struct {
		question string
		want     string
	}{
		{"how do I apply for a scholarship?", "scholarship"},
		{"hostel room availability", "hostel"},
		{"when is the admission deadline", "admission"},
		{"tuition fee structure", "fees"},
		{"exam timetable for semester 3", "examination"},
		{"placement statistics last year", "placement"},
		{"library card renewal", "library"},
		{"where is the auditorium", "general"},
	}

	for _, tc := range cases {
		if got := categorize(tc.question); got != tc.want {
			t.Errorf("categorize(%q) = %q, want %q", tc.question, got, tc.want)
		}
	}
}
