// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

// Package history persists conversations, their messages and per-user
// preferences in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jllopis/neurosync/pkg/errors"
	"github.com/jllopis/neurosync/pkg/storage"
)

const (
	conversationsTable = "conversations"
	messagesTable      = "messages"
	preferencesTable   = "user_preferences"
)

// Themes accepted by SetPreferences.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New(errors.CodeNotFound, "conversation not found", nil)

// Conversation is a titled chat owned by one user.
type Conversation struct {
	ID        int64     `json:"id" yaml:"id"`
	UserID    int64     `json:"user_id" yaml:"user_id"`
	Title     string    `json:"title" yaml:"title"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Message is one stored turn.
type Message struct {
	ID             int64          `json:"id" yaml:"id"`
	ConversationID int64          `json:"conversation_id" yaml:"conversation_id"`
	Role           string         `json:"role" yaml:"role"`
	Content        string         `json:"content" yaml:"content"`
	Timestamp      time.Time      `json:"timestamp" yaml:"timestamp"`
	Metadata       map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Preferences are the per-user display and behavior settings.
type Preferences struct {
	Theme         string `json:"theme" yaml:"theme"`
	AutoSummarize bool   `json:"auto_summarize" yaml:"auto_summarize"`
}

// DefaultPreferences are created on first access.
func DefaultPreferences() Preferences {
	return Preferences{Theme: ThemeDark}
}

// Store is the SQLite conversation store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates the store and ensures its schema.
func NewStore(ctx context.Context, db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := storage.Migrate(ctx, db, schema); err != nil {
		return nil, err
	}
	return s, nil
}

var schema = []string{
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`, conversationsTable),
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id INTEGER NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		metadata TEXT
	)`, messagesTable, conversationsTable),
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		user_id INTEGER PRIMARY KEY,
		theme TEXT NOT NULL DEFAULT 'dark',
		auto_summarize INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`, preferencesTable),
	fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user ON %s(user_id)`, conversationsTable, conversationsTable),
	fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_conversation ON %s(conversation_id)`, messagesTable, messagesTable),
	fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_timestamp ON %s(timestamp)`, messagesTable, messagesTable),
}

// CreateConversation inserts a conversation and returns its id.
func (s *Store) CreateConversation(ctx context.Context, userID int64, title string) (int64, error) {
	now := storage.Timestamp(s.now())
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)", conversationsTable),
		userID, title, now, now)
	if err != nil {
		return 0, storage.WrapError(err, "create conversation")
	}
	return res.LastInsertId()
}

// GetConversation loads one conversation.
func (s *Store) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id, user_id, title, created_at, updated_at FROM %s WHERE id = ?", conversationsTable), id)
	c, err := scanConversation(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storage.WrapError(err, "get conversation")
	}
	return c, nil
}

// AppendMessage stores a message and bumps the conversation's updated_at in
// the same transaction. metadata may be nil.
func (s *Store) AppendMessage(ctx context.Context, conversationID int64, role, content string, metadata map[string]any) (int64, error) {
	var meta sql.NullString
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return 0, errors.New(errors.CodeInvalidInput, "metadata is not serializable", err)
		}
		meta = sql.NullString{String: string(raw), Valid: true}
	}

	now := storage.Timestamp(s.now())
	var id int64
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET updated_at = ? WHERE id = ?", conversationsTable), now, conversationID)
		if err != nil {
			return storage.WrapError(err, "append message")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		res, err = tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (conversation_id, role, content, timestamp, metadata) VALUES (?, ?, ?, ?, ?)", messagesTable),
			conversationID, role, content, now, meta)
		if err != nil {
			return storage.WrapError(err, "append message")
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// ListConversations returns a user's conversations, most recently active
// first.
func (s *Store) ListConversations(ctx context.Context, userID int64) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, user_id, title, created_at, updated_at FROM %s WHERE user_id = ? ORDER BY updated_at DESC, id DESC", conversationsTable),
		userID)
	if err != nil {
		return nil, storage.WrapError(err, "list conversations")
	}
	return collectConversations(rows)
}

// GetMessages returns a conversation's messages in insertion order.
func (s *Store) GetMessages(ctx context.Context, conversationID int64) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, conversation_id, role, content, timestamp, metadata FROM %s WHERE conversation_id = ? ORDER BY timestamp ASC, id ASC", messagesTable),
		conversationID)
	if err != nil {
		return nil, storage.WrapError(err, "get messages")
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m    Message
			ts   int64
			meta sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &ts, &meta); err != nil {
			return nil, storage.WrapError(err, "get messages")
		}
		m.Timestamp = storage.Time(ts)
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &m.Metadata); err != nil {
				return nil, storage.WrapError(err, "decode metadata")
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.WrapError(err, "get messages")
	}
	return out, nil
}

// DeleteConversation removes a conversation and, by cascade, its messages.
func (s *Store) DeleteConversation(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", conversationsTable), id)
	if err != nil {
		return storage.WrapError(err, "delete conversation")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RenameConversation changes the title and bumps updated_at.
func (s *Store) RenameConversation(ctx context.Context, id int64, title string) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET title = ?, updated_at = ? WHERE id = ?", conversationsTable),
		title, storage.Timestamp(s.now()), id)
	if err != nil {
		return storage.WrapError(err, "rename conversation")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchConversations finds a user's conversations whose title or any
// message contains query. Conversations without messages match on title.
func (s *Store) SearchConversations(ctx context.Context, userID int64, query string) ([]Conversation, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT DISTINCT c.id, c.user_id, c.title, c.created_at, c.updated_at
		 FROM %s c LEFT JOIN %s m ON c.id = m.conversation_id
		 WHERE c.user_id = ? AND (c.title LIKE ? ESCAPE '\' OR m.content LIKE ? ESCAPE '\')
		 ORDER BY c.updated_at DESC, c.id DESC`, conversationsTable, messagesTable),
		userID, pattern, pattern)
	if err != nil {
		return nil, storage.WrapError(err, "search conversations")
	}
	return collectConversations(rows)
}

// GetPreferences returns a user's preferences, creating the defaults on
// first access.
func (s *Store) GetPreferences(ctx context.Context, userID int64) (Preferences, error) {
	if err := s.ensurePreferences(ctx, userID); err != nil {
		return DefaultPreferences(), err
	}
	var (
		p    Preferences
		auto int
	)
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT theme, auto_summarize FROM %s WHERE user_id = ?", preferencesTable), userID).
		Scan(&p.Theme, &auto)
	if err != nil {
		return DefaultPreferences(), storage.WrapError(err, "get preferences")
	}
	p.AutoSummarize = auto != 0
	return p, nil
}

// SetPreferences updates the given fields; nil leaves a field unchanged.
func (s *Store) SetPreferences(ctx context.Context, userID int64, theme *string, autoSummarize *bool) error {
	if theme != nil && *theme != ThemeDark && *theme != ThemeLight {
		return errors.New(errors.CodeInvalidInput, "theme must be dark or light", nil).WithContext("theme", *theme)
	}
	if err := s.ensurePreferences(ctx, userID); err != nil {
		return err
	}

	sets := []string{"updated_at = ?"}
	args := []any{storage.Timestamp(s.now())}
	if theme != nil {
		sets = append(sets, "theme = ?")
		args = append(args, *theme)
	}
	if autoSummarize != nil {
		sets = append(sets, "auto_summarize = ?")
		args = append(args, boolInt(*autoSummarize))
	}
	args = append(args, userID)
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s WHERE user_id = ?", preferencesTable, strings.Join(sets, ", ")), args...)
	if err != nil {
		return storage.WrapError(err, "set preferences")
	}
	return nil
}

func (s *Store) ensurePreferences(ctx context.Context, userID int64) error {
	now := storage.Timestamp(s.now())
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT OR IGNORE INTO %s (user_id, created_at, updated_at) VALUES (?, ?, ?)", preferencesTable),
		userID, now, now)
	if err != nil {
		return storage.WrapError(err, "create preferences")
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*Conversation, error) {
	var (
		c                Conversation
		created, updated int64
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &created, &updated); err != nil {
		return nil, err
	}
	c.CreatedAt = storage.Time(created)
	c.UpdatedAt = storage.Time(updated)
	return &c, nil
}

func collectConversations(rows *sql.Rows) ([]Conversation, error) {
	defer rows.Close()
	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, storage.WrapError(err, "scan conversation")
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.WrapError(err, "scan conversation")
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
