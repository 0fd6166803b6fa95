// Package persistence is the session-record store: every session's
// messages, tool executions, plan, and configuration survive process
// restarts here. It backs onto modernc.org/sqlite, a pure-Go SQLite
// driver, chosen over a cgo-dependent one so the binary stays a single
// static executable.
//
// The sqlite schema here is this implementation's choice, not a wire
// contract.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zcode-dev/agentcore/internal/core"
)

// Store persists Session records to a SQLite database. All methods run
// their query on the calling goroutine; callers that must not block on
// file I/O should invoke Store methods from a worker goroutine.
// internal/session calls them directly, so its writes block the caller.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and
// ensures the schema exists. path may be ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY churn
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			config TEXT NOT NULL,
			model_config TEXT,
			plan TEXT,
			next_request_id INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS messages (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			request_id INTEGER,
			PRIMARY KEY (session_id, seq)
		);
		CREATE TABLE IF NOT EXISTS tool_executions (
			session_id TEXT NOT NULL,
			request_id INTEGER NOT NULL,
			tool_id TEXT NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			status_message TEXT,
			input TEXT,
			output TEXT,
			PRIMARY KEY (session_id, request_id, tool_id)
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
		CREATE INDEX IF NOT EXISTS idx_tool_executions_session ON tool_executions(session_id);
	`)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Create inserts a brand new session record.
func (s *Store) Create(ctx context.Context, sess *core.Session) error {
	configJSON, err := json.Marshal(sess.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, created_at, updated_at, config, next_request_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.CreatedAt, sess.UpdatedAt, string(configJSON), sess.NextRequestID)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sess.ID, err)
	}
	return nil
}

// Save persists the full state of sess: its header row, every message
// (overwriting the prior sequence), every tool execution, and its plan.
// Called after each durable mutation: new user message, model-config
// backfill or change, sandbox-policy change, and end of each agent-loop
// iteration (a new session is written with Create instead).
func (s *Store) Save(ctx context.Context, sess *core.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	configJSON, err := json.Marshal(sess.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	var modelJSON any
	if sess.ModelConfig != nil {
		b, err := json.Marshal(sess.ModelConfig)
		if err != nil {
			return fmt.Errorf("marshal model config: %w", err)
		}
		modelJSON = string(b)
	}
	planJSON, err := json.Marshal(sess.Plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, name, created_at, updated_at, config, model_config, plan, next_request_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, updated_at=excluded.updated_at, config=excluded.config,
			model_config=excluded.model_config, plan=excluded.plan, next_request_id=excluded.next_request_id`,
		sess.ID, sess.Name, sess.CreatedAt, sess.UpdatedAt, string(configJSON), modelJSON, string(planJSON), sess.NextRequestID)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", sess.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("clear messages for %s: %w", sess.ID, err)
	}
	for i, msg := range sess.Messages {
		contentJSON, err := json.Marshal(msg.Content)
		if err != nil {
			return fmt.Errorf("marshal message %d content: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (session_id, seq, role, content, request_id) VALUES (?, ?, ?, ?, ?)`,
			sess.ID, i, string(msg.Role), string(contentJSON), msg.RequestID); err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tool_executions WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("clear tool executions for %s: %w", sess.ID, err)
	}
	for _, te := range sess.ToolExecutions {
		inputJSON, err := json.Marshal(te.Input)
		if err != nil {
			return fmt.Errorf("marshal tool execution input: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tool_executions (session_id, request_id, tool_id, name, status, status_message, input, output)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, te.RequestID, te.ToolID, te.Name, string(te.Status), te.StatusMessage, string(inputJSON), te.Output); err != nil {
			return fmt.Errorf("insert tool execution %s: %w", te.ToolID, err)
		}
	}

	return tx.Commit()
}

// Load hydrates a full Session record, reconstructing messages, tool
// executions, and plan in persisted order.
func (s *Store) Load(ctx context.Context, id string) (*core.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at, config, model_config, plan, next_request_id
		FROM sessions WHERE id = ?`, id)

	var (
		sess           core.Session
		configJSON     string
		modelJSON      sql.NullString
		planJSON       sql.NullString
	)
	if err := row.Scan(&sess.ID, &sess.Name, &sess.CreatedAt, &sess.UpdatedAt, &configJSON, &modelJSON, &planJSON, &sess.NextRequestID); err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(configJSON), &sess.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config for %s: %w", id, err)
	}
	if modelJSON.Valid && modelJSON.String != "" {
		var mc core.ModelConfig
		if err := json.Unmarshal([]byte(modelJSON.String), &mc); err != nil {
			return nil, fmt.Errorf("unmarshal model config for %s: %w", id, err)
		}
		sess.ModelConfig = &mc
	}
	if planJSON.Valid && planJSON.String != "" && planJSON.String != "null" {
		if err := json.Unmarshal([]byte(planJSON.String), &sess.Plan); err != nil {
			return nil, fmt.Errorf("unmarshal plan for %s: %w", id, err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, request_id FROM messages WHERE session_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query messages for %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			msg         core.Message
			role        string
			contentJSON string
		)
		if err := rows.Scan(&role, &contentJSON, &msg.RequestID); err != nil {
			return nil, fmt.Errorf("scan message for %s: %w", id, err)
		}
		msg.Role = core.Role(role)
		if err := json.Unmarshal([]byte(contentJSON), &msg.Content); err != nil {
			return nil, fmt.Errorf("unmarshal message content for %s: %w", id, err)
		}
		sess.Messages = append(sess.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	teRows, err := s.db.QueryContext(ctx, `
		SELECT request_id, tool_id, name, status, status_message, input, output
		FROM tool_executions WHERE session_id = ? ORDER BY request_id ASC, tool_id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query tool executions for %s: %w", id, err)
	}
	defer teRows.Close()
	for teRows.Next() {
		var (
			te        core.ToolExecution
			status    string
			inputJSON sql.NullString
		)
		if err := teRows.Scan(&te.RequestID, &te.ToolID, &te.Name, &status, &te.StatusMessage, &inputJSON, &te.Output); err != nil {
			return nil, fmt.Errorf("scan tool execution for %s: %w", id, err)
		}
		te.Status = core.ExecStatus(status)
		if inputJSON.Valid && inputJSON.String != "" && inputJSON.String != "null" {
			if err := json.Unmarshal([]byte(inputJSON.String), &te.Input); err != nil {
				return nil, fmt.Errorf("unmarshal tool execution input for %s: %w", id, err)
			}
		}
		sess.ToolExecutions = append(sess.ToolExecutions, te)
	}
	if err := teRows.Err(); err != nil {
		return nil, err
	}

	return &sess, nil
}

// Delete removes a session and all its rows.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range []string{"tool_executions", "messages", "sessions"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, table, idColumn(table)), id); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func idColumn(table string) string {
	if table == "sessions" {
		return "id"
	}
	return "session_id"
}

// ListSummary is the lightweight row returned by List, enough to drive a
// UiEvent::UpdateChatList without hydrating full sessions.
type ListSummary struct {
	ID        string
	Name      string
	UpdatedAt time.Time
}

// List returns every session's summary, most recently updated first.
func (s *Store) List(ctx context.Context) ([]ListSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, updated_at FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var out []ListSummary
	for rows.Next() {
		var l ListSummary
		if err := rows.Scan(&l.ID, &l.Name, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LatestID returns the id of the most recently updated session, which
// backs the "continue last task" CLI flag.
func (s *Store) LatestID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM sessions ORDER BY updated_at DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", core.ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("latest session id: %w", err)
	}
	return id, nil
}
