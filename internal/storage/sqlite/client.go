package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/campus-agent/backend/internal/storage/models"
	"github.com/campus-agent/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping() error {
	return c.db.Ping()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS gap_entries (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		normalized_question TEXT NOT NULL,
		category TEXT,
		answered INTEGER NOT NULL DEFAULT 0,
		answer_source TEXT NOT NULL DEFAULT 'none',
		askers TEXT NOT NULL,
		ask_count INTEGER NOT NULL,
		occurrences TEXT NOT NULL,
		priority TEXT NOT NULL,
		status TEXT NOT NULL,
		assignee TEXT,
		resolution TEXT,
		first_seen INTEGER NOT NULL,
		last_asked INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_gaps_normalized ON gap_entries(normalized_question);
	CREATE INDEX IF NOT EXISTS idx_gaps_status_count ON gap_entries(answered, ask_count);
	CREATE INDEX IF NOT EXISTS idx_gaps_last_asked ON gap_entries(last_asked);

	CREATE TABLE IF NOT EXISTS chat_history (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id TEXT,
		question TEXT NOT NULL,
		rewritten_question TEXT,
		answer TEXT,
		answered INTEGER NOT NULL DEFAULT 1,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_session ON chat_history(session_id);
	CREATE INDEX IF NOT EXISTS idx_chat_created ON chat_history(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertGapEntry(entry *models.GapEntry) error {
	askersJSON, _ := json.Marshal(entry.Askers)
	occurrencesJSON, _ := json.Marshal(entry.Occurrences)
	resolutionJSON := resolutionToJSON(entry.Resolution)

	query := `
		INSERT INTO gap_entries (id, question, normalized_question, category, answered,
			answer_source, askers, ask_count, occurrences, priority, status, assignee,
			resolution, first_seen, last_asked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		entry.ID,
		entry.Question,
		entry.NormalizedQuestion,
		entry.Category,
		boolToInt(entry.Answered),
		entry.AnswerSource,
		string(askersJSON),
		entry.AskCount,
		string(occurrencesJSON),
		entry.Priority,
		entry.Status,
		entry.Assignee,
		resolutionJSON,
		entry.FirstSeen.Unix(),
		entry.LastAsked.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert gap entry: %w", err)
	}

	logger.Debug("Gap entry inserted",
		zap.String("entry_id", entry.ID),
		zap.String("normalized", entry.NormalizedQuestion),
	)
	return nil
}

func (c *Client) UpdateGapEntry(entry *models.GapEntry) error {
	askersJSON, _ := json.Marshal(entry.Askers)
	occurrencesJSON, _ := json.Marshal(entry.Occurrences)
	resolutionJSON := resolutionToJSON(entry.Resolution)

	query := `
		UPDATE gap_entries
		SET question = ?, normalized_question = ?, category = ?, answered = ?,
			answer_source = ?, askers = ?, ask_count = ?, occurrences = ?, priority = ?,
			status = ?, assignee = ?, resolution = ?, last_asked = ?
		WHERE id = ?
	`

	result, err := c.db.Exec(
		query,
		entry.Question,
		entry.NormalizedQuestion,
		entry.Category,
		boolToInt(entry.Answered),
		entry.AnswerSource,
		string(askersJSON),
		entry.AskCount,
		string(occurrencesJSON),
		entry.Priority,
		entry.Status,
		entry.Assignee,
		resolutionJSON,
		entry.LastAsked.Unix(),
		entry.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update gap entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}

	return nil
}

const gapColumns = `id, question, normalized_question, category, answered, answer_source,
	askers, ask_count, occurrences, priority, status, assignee, resolution, first_seen, last_asked`

func (c *Client) GetGapEntry(id string) (*models.GapEntry, error) {
	query := `SELECT ` + gapColumns + ` FROM gap_entries WHERE id = ?`

	entry, err := scanGapEntry(c.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get gap entry: %w", err)
	}

	return entry, nil
}

// ListOpenGapEntries returns entries still eligible for similarity matching,
// which excludes resolved/answered entries.
func (c *Client) ListOpenGapEntries() ([]models.GapEntry, error) {
	query := `SELECT ` + gapColumns + ` FROM gap_entries WHERE answered = 0 ORDER BY first_seen ASC`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list open gap entries: %w", err)
	}
	defer rows.Close()

	return collectGapEntries(rows)
}

func (c *Client) ListGapEntries(status, category, sortBy string) ([]models.GapEntry, error) {
	query := `SELECT ` + gapColumns + ` FROM gap_entries`
	var args []interface{}
	var where []string

	if status != "" {
		where = append(where, "status = ?")
		args = append(args, status)
	}
	if category != "" {
		where = append(where, "category = ?")
		args = append(args, category)
	}

	for i, clause := range where {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}

	switch sortBy {
	case "recent":
		query += " ORDER BY last_asked DESC"
	default:
		query += " ORDER BY ask_count DESC, last_asked DESC"
	}

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list gap entries: %w", err)
	}
	defer rows.Close()

	return collectGapEntries(rows)
}

func (c *Client) DeleteGapEntry(id string) error {
	result, err := c.db.Exec(`DELETE FROM gap_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete gap entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (c *Client) InsertChatRecord(record *models.ChatRecord) error {
	query := `
		INSERT INTO chat_history (id, session_id, user_id, question, rewritten_question,
			answer, answered, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.SessionID,
		record.UserID,
		record.Question,
		record.RewrittenQuestion,
		record.Answer,
		boolToInt(record.Answered),
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert chat record: %w", err)
	}

	return nil
}

func (c *Client) GetChatHistory(sessionID string, limit int) ([]models.ChatRecord, error) {
	query := `
		SELECT id, session_id, user_id, question, rewritten_question, answer, answered, latency_ms, created_at
		FROM chat_history
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	defer rows.Close()

	var records []models.ChatRecord
	for rows.Next() {
		var r models.ChatRecord
		var answered int
		var createdAt int64

		err := rows.Scan(&r.ID, &r.SessionID, &r.UserID, &r.Question, &r.RewrittenQuestion,
			&r.Answer, &answered, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Answered = answered != 0
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGapEntry(row rowScanner) (*models.GapEntry, error) {
	var e models.GapEntry
	var answered int
	var askersJSON, occurrencesJSON string
	var resolutionJSON sql.NullString
	var firstSeen, lastAsked int64

	err := row.Scan(
		&e.ID,
		&e.Question,
		&e.NormalizedQuestion,
		&e.Category,
		&answered,
		&e.AnswerSource,
		&askersJSON,
		&e.AskCount,
		&occurrencesJSON,
		&e.Priority,
		&e.Status,
		&e.Assignee,
		&resolutionJSON,
		&firstSeen,
		&lastAsked,
	)
	if err != nil {
		return nil, err
	}

	e.Answered = answered != 0
	json.Unmarshal([]byte(askersJSON), &e.Askers)
	json.Unmarshal([]byte(occurrencesJSON), &e.Occurrences)
	if resolutionJSON.Valid && resolutionJSON.String != "" {
		var res models.Resolution
		if err := json.Unmarshal([]byte(resolutionJSON.String), &res); err == nil {
			e.Resolution = &res
		}
	}
	e.FirstSeen = time.Unix(firstSeen, 0)
	e.LastAsked = time.Unix(lastAsked, 0)

	return &e, nil
}

func collectGapEntries(rows *sql.Rows) ([]models.GapEntry, error) {
	var entries []models.GapEntry
	for rows.Next() {
		entry, err := scanGapEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func resolutionToJSON(res *models.Resolution) interface{} {
	if res == nil {
		return nil
	}
	data, _ := json.Marshal(res)
	return string(data)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
