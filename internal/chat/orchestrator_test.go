package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/campus-agent/backend/internal/llm"
	"github.com/campus-agent/backend/internal/session"
	"github.com/campus-agent/backend/internal/storage/models"
)

// fakeLLM replies from a script, one response per ChatComplete call.
type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     [][]llm.Message
}

func (f *fakeLLM) ChatComplete(ctx context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}

	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRetriever struct {
	context string
	err     error
	gotQ    string
	gotTopK int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, question string, topK int) (string, error) {
	f.gotQ = question
	f.gotTopK = topK
	return f.context, f.err
}

type fakeGapRecorder struct {
	recorded chan string
	err      error
}

func (f *fakeGapRecorder) RecordUnanswered(ctx context.Context, question, askerID string) (*models.GapEntry, error) {
	if f.recorded != nil {
		f.recorded <- question
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.GapEntry{ID: "gap1", Question: question, AskCount: 1}, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	records []*models.ChatRecord
}

func (f *fakeAudit) InsertChatRecord(record *models.ChatRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func newTestSessions(t *testing.T) *session.MemoryStore {
	t.Helper()
	s := session.NewMemoryStore(time.Minute, time.Hour, 10)
	t.Cleanup(s.Stop)
	return s
}

func TestChatFirstTurnSkipsRewrite(t *testing.T) {
	sessions := newTestSessions(t)
	llmClient := &fakeLLM{responses: []string{"The deadline is July 15th."}}
	retriever := &fakeRetriever{context: "Hostel fees are due July 15th."}
	o := NewOrchestrator(sessions, llmClient, retriever, &fakeGapRecorder{}, nil, 10)

	resp, err := o.Chat(context.Background(), Request{Question: "When are hostel fees due?", UserID: "s1"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	// No history yet: only the generation call happens.
	if llmClient.callCount() != 1 {
		t.Errorf("LLM called %d times, want 1", llmClient.callCount())
	}
	if resp.RewrittenQuestion != "When are hostel fees due?" {
		t.Errorf("RewrittenQuestion = %q, want the raw question", resp.RewrittenQuestion)
	}
	if resp.Answer != "The deadline is July 15th." {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if resp.SessionID == "" {
		t.Error("response is missing a session ID")
	}
	if retriever.gotQ != "When are hostel fees due?" {
		t.Errorf("retriever got %q", retriever.gotQ)
	}
	if retriever.gotTopK != 10 {
		t.Errorf("retriever topK = %d, want 10", retriever.gotTopK)
	}
}

func TestChatFollowUpUsesRewrite(t *testing.T) {
	sessions := newTestSessions(t)
	llmClient := &fakeLLM{responses: []string{
		"The deadline is July 15th.",
		"What happens if hostel fees are paid late?",
		"A late fine applies.",
	}}
	retriever := &fakeRetriever{context: "ctx"}
	o := NewOrchestrator(sessions, llmClient, retriever, &fakeGapRecorder{}, nil, 10)
	ctx := context.Background()

	first, err := o.Chat(ctx, Request{Question: "When are hostel fees due?", UserID: "s1"})
	if err != nil {
		t.Fatalf("first Chat failed: %v", err)
	}

	second, err := o.Chat(ctx, Request{
		Question:  "what if I pay late?",
		UserID:    "s1",
		SessionID: first.SessionID,
	})
	if err != nil {
		t.Fatalf("second Chat failed: %v", err)
	}

	// Rewrite plus generation on the follow-up.
	if llmClient.callCount() != 3 {
		t.Fatalf("LLM called %d times, want 3", llmClient.callCount())
	}
	if second.RewrittenQuestion != "What happens if hostel fees are paid late?" {
		t.Errorf("RewrittenQuestion = %q", second.RewrittenQuestion)
	}
	if retriever.gotQ != "What happens if hostel fees are paid late?" {
		t.Errorf("retriever got %q, want the rewritten question", retriever.gotQ)
	}
	if second.SessionID != first.SessionID {
		t.Errorf("session changed between turns: %q vs %q", second.SessionID, first.SessionID)
	}
}

func TestChatPersistsRewrittenTurnOnly(t *testing.T) {
	sessions := newTestSessions(t)
	llmClient := &fakeLLM{responses: []string{"The deadline is July 15th."}}
	o := NewOrchestrator(sessions, llmClient, &fakeRetriever{}, &fakeGapRecorder{}, nil, 10)
	ctx := context.Background()

	resp, err := o.Chat(ctx, Request{Question: "  When are hostel fees due?  ", UserID: "s1"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	history, err := sessions.History(ctx, resp.SessionID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if history[0].Role != session.RoleUser || history[0].Content != "When are hostel fees due?" {
		t.Errorf("user turn = %+v", history[0])
	}
	if history[1].Role != session.RoleAssistant || history[1].Content != "The deadline is July 15th." {
		t.Errorf("assistant turn = %+v", history[1])
	}
}

func TestChatRetrievalFailurePropagates(t *testing.T) {
	sessions := newTestSessions(t)
	llmClient := &fakeLLM{responses: []string{"unused"}}
	retriever := &fakeRetriever{err: errors.New("index down")}
	o := NewOrchestrator(sessions, llmClient, retriever, &fakeGapRecorder{}, nil, 10)

	if _, err := o.Chat(context.Background(), Request{Question: "hostel fees?"}); err == nil {
		t.Fatal("expected error when retrieval fails")
	}
}

func TestChatGenerationFailurePropagates(t *testing.T) {
	sessions := newTestSessions(t)
	llmClient := &fakeLLM{err: errors.New("model down")}
	o := NewOrchestrator(sessions, llmClient, &fakeRetriever{}, &fakeGapRecorder{}, nil, 10)

	if _, err := o.Chat(context.Background(), Request{Question: "hostel fees?"}); err == nil {
		t.Fatal("expected error when generation fails")
	}
}

func TestChatBlankQuestionRejected(t *testing.T) {
	o := NewOrchestrator(newTestSessions(t), &fakeLLM{}, &fakeRetriever{}, &fakeGapRecorder{}, nil, 10)

	if _, err := o.Chat(context.Background(), Request{Question: "   "}); err == nil {
		t.Fatal("expected error for blank question")
	}
}

func TestChatUnansweredTriggersGapRecording(t *testing.T) {
	sessions := newTestSessions(t)
	llmClient := &fakeLLM{responses: []string{"I don't have that information."}}
	recorder := &fakeGapRecorder{recorded: make(chan string, 1)}
	o := NewOrchestrator(sessions, llmClient, &fakeRetriever{}, recorder, nil, 10)

	_, err := o.Chat(context.Background(), Request{Question: "Can I keep a pet in the hostel?", UserID: "s1"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	select {
	case q := <-recorder.recorded:
		if q != "Can I keep a pet in the hostel?" {
			t.Errorf("recorded question = %q", q)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("gap recording never ran")
	}
}

func TestChatAnsweredSkipsGapRecording(t *testing.T) {
	sessions := newTestSessions(t)
	llmClient := &fakeLLM{responses: []string{"The deadline is July 15th."}}
	recorder := &fakeGapRecorder{recorded: make(chan string, 1)}
	o := NewOrchestrator(sessions, llmClient, &fakeRetriever{}, recorder, nil, 10)

	if _, err := o.Chat(context.Background(), Request{Question: "When are hostel fees due?"}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	select {
	case q := <-recorder.recorded:
		t.Errorf("gap recorded for an answered question: %q", q)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestChatGapRecorderFailureDoesNotFailChat(t *testing.T) {
	sessions := newTestSessions(t)
	llmClient := &fakeLLM{responses: []string{"I don't have that information."}}
	recorder := &fakeGapRecorder{recorded: make(chan string, 1), err: errors.New("ledger down")}
	o := NewOrchestrator(sessions, llmClient, &fakeRetriever{}, recorder, nil, 10)

	resp, err := o.Chat(context.Background(), Request{Question: "Can I keep a pet in the hostel?"})
	if err != nil {
		t.Fatalf("Chat failed despite best-effort gap recording: %v", err)
	}
	if resp.Answer == "" {
		t.Error("empty answer")
	}
	<-recorder.recorded
}

func TestChatContextReachesGeneration(t *testing.T) {
	sessions := newTestSessions(t)
	llmClient := &fakeLLM{responses: []string{"answer"}}
	retriever := &fakeRetriever{context: "Hostel fees are due July 15th.\n\nLate fine is 500."}
	o := NewOrchestrator(sessions, llmClient, retriever, &fakeGapRecorder{}, nil, 10)

	if _, err := o.Chat(context.Background(), Request{Question: "fees?"}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	system := llmClient.calls[0][0]
	if system.Role != llm.RoleSystem {
		t.Fatalf("first message role = %q, want system", system.Role)
	}
	if !strings.Contains(system.Content, "Hostel fees are due July 15th.") {
		t.Error("retrieved context missing from the system prompt")
	}
}

func TestChatAuditsTurn(t *testing.T) {
	sessions := newTestSessions(t)
	llmClient := &fakeLLM{responses: []string{"The deadline is July 15th."}}
	audit := &fakeAudit{}
	o := NewOrchestrator(sessions, llmClient, &fakeRetriever{}, &fakeGapRecorder{}, audit, 10)

	resp, err := o.Chat(context.Background(), Request{Question: "When are hostel fees due?", UserID: "s1"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	audit.mu.Lock()
	defer audit.mu.Unlock()
	if len(audit.records) != 1 {
		t.Fatalf("audit has %d records, want 1", len(audit.records))
	}
	rec := audit.records[0]
	if rec.SessionID != resp.SessionID {
		t.Errorf("audit session = %q, want %q", rec.SessionID, resp.SessionID)
	}
	if !rec.Answered {
		t.Error("audit marks an answered turn as unanswered")
	}
	if rec.Question != "When are hostel fees due?" {
		t.Errorf("audit question = %q", rec.Question)
	}
}
