// Package chat composes the conversational pipeline: history-aware query
// rewriting, context retrieval, grounded answer generation, and the
// knowledge-gap bookkeeping that follows an unanswerable question.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-agent/backend/internal/classifier"
	"github.com/campus-agent/backend/internal/llm"
	"github.com/campus-agent/backend/internal/metrics"
	"github.com/campus-agent/backend/internal/session"
	"github.com/campus-agent/backend/internal/storage/models"
	"github.com/campus-agent/backend/pkg/logger"
)

const gapLogTimeout = 30 * time.Second

type LLM interface {
	ChatComplete(ctx context.Context, messages []llm.Message) (string, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int) (string, error)
}

type GapRecorder interface {
	RecordUnanswered(ctx context.Context, question, askerID string) (*models.GapEntry, error)
}

// AuditStore persists the per-turn audit trail. Audit failures never fail a
// chat response.
type AuditStore interface {
	InsertChatRecord(record *models.ChatRecord) error
}

type Orchestrator struct {
	sessions  session.Store
	llm       LLM
	retriever Retriever
	gaps      GapRecorder
	audit     AuditStore
	topK      int
}

func NewOrchestrator(sessions session.Store, llmClient LLM, retriever Retriever, gaps GapRecorder, audit AuditStore, topK int) *Orchestrator {
	if topK <= 0 {
		topK = 10
	}

	return &Orchestrator{
		sessions:  sessions,
		llm:       llmClient,
		retriever: retriever,
		gaps:      gaps,
		audit:     audit,
		topK:      topK,
	}
}

type Request struct {
	Question  string
	UserID    string
	SessionID string
}

type Response struct {
	Answer            string
	SessionID         string
	RewrittenQuestion string
}

// Chat runs one conversational turn. Embedding, search, and generation
// failures propagate; session bookkeeping and gap logging are best-effort.
// The response always carries a session identifier so the caller can keep
// the conversation going.
func (o *Orchestrator) Chat(ctx context.Context, req Request) (*Response, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	start := time.Now()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.MintID(req.UserID)
	}

	history, err := o.sessions.History(ctx, sessionID)
	if err != nil {
		// A lost session only costs conversational context; proceed fresh.
		logger.Warn("Failed to load session history",
			zap.Error(err),
			zap.String("session_id", sessionID),
		)
		history = nil
	}

	rewritten := o.rewriteQuestion(ctx, history, question)

	contextBlock, err := o.retriever.Retrieve(ctx, rewritten, o.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	answer, err := o.generateAnswer(ctx, contextBlock, history, rewritten)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	// Only the final exchange becomes durable history; the rewrite framing
	// never does.
	err = o.sessions.Append(ctx, sessionID,
		session.Turn{Role: session.RoleUser, Content: rewritten},
		session.Turn{Role: session.RoleAssistant, Content: answer},
	)
	if err != nil {
		logger.Warn("Failed to persist session turns",
			zap.Error(err),
			zap.String("session_id", sessionID),
		)
	}

	unanswered := classifier.IsUnanswered(answer)
	if unanswered {
		metrics.UnansweredTotal.Inc()
		go o.logKnowledgeGap(rewritten, req.UserID)
	}

	o.auditTurn(sessionID, req.UserID, question, rewritten, answer, !unanswered, time.Since(start))

	return &Response{
		Answer:            answer,
		SessionID:         sessionID,
		RewrittenQuestion: rewritten,
	}, nil
}

// rewriteQuestion turns a follow-up into a standalone question using the
// session history. With no history, or on any LLM failure, the raw question
// stands.
func (o *Orchestrator) rewriteQuestion(ctx context.Context, history []session.Turn, question string) string {
	if len(history) == 0 {
		return question
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: llm.RewriteSystemPrompt})
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})

	rewritten, err := o.llm.ChatComplete(ctx, messages)
	if err != nil {
		logger.Warn("Query rewrite failed, using raw question", zap.Error(err))
		return question
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return question
	}

	return rewritten
}

func (o *Orchestrator) generateAnswer(ctx context.Context, contextBlock string, history []session.Turn, question string) (string, error) {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: llm.AssistantSystemPrompt(contextBlock)})
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})

	return o.llm.ChatComplete(ctx, messages)
}

// logKnowledgeGap runs detached from the request: a failure to record the
// gap is logged and the chat response is unaffected.
func (o *Orchestrator) logKnowledgeGap(question, userID string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Knowledge gap logging panicked", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), gapLogTimeout)
	defer cancel()

	entry, err := o.gaps.RecordUnanswered(ctx, question, userID)
	if err != nil {
		logger.Error("Failed to record knowledge gap",
			zap.Error(err),
			zap.String("question", question),
		)
		return
	}

	logger.Info("Knowledge gap logged",
		zap.String("entry_id", entry.ID),
		zap.Int("ask_count", entry.AskCount),
	)
}

func (o *Orchestrator) auditTurn(sessionID, userID, question, rewritten, answer string, answered bool, elapsed time.Duration) {
	if o.audit == nil {
		return
	}

	record := &models.ChatRecord{
		ID:                uuid.New().String(),
		SessionID:         sessionID,
		UserID:            userID,
		Question:          question,
		RewrittenQuestion: rewritten,
		Answer:            answer,
		Answered:          answered,
		LatencyMS:         int(elapsed.Milliseconds()),
		CreatedAt:         time.Now(),
	}

	if err := o.audit.InsertChatRecord(record); err != nil {
		logger.Warn("Failed to audit chat turn", zap.Error(err))
	}
}

func historyMessages(history []session.Turn) []llm.Message {
	messages := make([]llm.Message, len(history))
	for i, t := range history {
		messages[i] = llm.Message{Role: t.Role, Content: t.Content}
	}
	return messages
}
