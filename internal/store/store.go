// Package store persists conversations and messages in a relational
// database. The backend is chosen from the database URL: postgres:// URLs
// use pgx, anything else is treated as a SQLite file path.
package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mhutchinson/chatrelay/internal/models"
)

// ErrNotFound is returned when a referenced conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id INTEGER NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
    ON messages(conversation_id, created_at);`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS conversations (
    id BIGSERIAL PRIMARY KEY,
    session_id TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
    id BIGSERIAL PRIMARY KEY,
    conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
    ON messages(conversation_id, created_at);`

type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database named by databaseURL, applies the schema
// and returns a ready Store.
func Open(databaseURL string) (*Store, error) {
	driver, dsn, schema := "sqlite3", databaseURL, sqliteSchema
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		driver, schema = "pgx", postgresSchema
	} else if !strings.Contains(dsn, "?") {
		// Cascade deletes depend on SQLite enforcing foreign keys.
		dsn += "?_foreign_keys=on"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == "sqlite3" {
		// SQLite allows one writer; a single pooled connection also keeps
		// :memory: databases visible across calls.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// bind rewrites ? placeholders to the $n form pgx expects.
func (s *Store) bind(query string) string {
	if s.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func newSessionID() string {
	u := uuid.New()
	return "session_" + hex.EncodeToString(u[:])[:16]
}

// CreateConversation inserts an empty conversation with a fresh session
// token and returns it with its assigned id and timestamp.
func (s *Store) CreateConversation(ctx context.Context) (*models.Conversation, error) {
	conv := &models.Conversation{SessionID: newSessionID()}
	err := s.db.QueryRowContext(ctx, s.bind(`
        INSERT INTO conversations (session_id)
        VALUES (?)
        RETURNING id, created_at`), conv.SessionID).Scan(&conv.ID, &conv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation returns the conversation with the given id, or
// ErrNotFound.
func (s *Store) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := s.db.QueryRowContext(ctx, s.bind(`
        SELECT id, session_id, created_at
        FROM conversations
        WHERE id = ?`), id).Scan(&conv.ID, &conv.SessionID, &conv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

// ListMessages returns all messages of a conversation, oldest first. Ties
// on created_at are broken by id so the transcript order is deterministic.
// An unknown conversation id yields an empty slice, not an error.
func (s *Store) ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(`
        SELECT id, conversation_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY created_at ASC, id ASC`), conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ConvID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// AppendMessage inserts one message and returns it with its assigned id
// and timestamp. The foreign key constraint rejects unknown conversations.
func (s *Store) AppendMessage(ctx context.Context, conversationID int64, role models.Role, content string) (*models.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("append message: unknown role %q", role)
	}
	msg := &models.Message{ConvID: conversationID, Role: role, Content: content}
	err := s.db.QueryRowContext(ctx, s.bind(`
        INSERT INTO messages (conversation_id, role, content)
        VALUES (?, ?, ?)
        RETURNING id, created_at`), conversationID, role, content).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// DeleteConversation removes a conversation and all its messages in one
// transaction. Returns ErrNotFound if the conversation does not exist.
func (s *Store) DeleteConversation(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM messages WHERE conversation_id = ?`), id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	res, err := tx.ExecContext(ctx, s.bind(`DELETE FROM conversations WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}
