// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth stores users and their session tokens.
//
// Passwords are hashed with bcrypt. A session token is 32 random bytes,
// hex encoded, and is valid until its expiry passes or the session ends.
package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jllopis/neurosync/pkg/errors"
	"github.com/jllopis/neurosync/pkg/storage"
	"golang.org/x/crypto/bcrypt"
)

// DefaultSessionTTL is how long a new session stays valid.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Outcome messages shown to the user.
const (
	MsgRegistered      = "User registered successfully!"
	MsgUsernameTaken   = "Username already exists"
	MsgEmailTaken      = "Email already exists"
	MsgRegisterFailed  = "Registration failed"
	MsgMissingFields   = "Please fill in all required fields"
	MsgUserNotFound    = "User not found"
	MsgInvalidPassword = "Invalid password"
	MsgLoginOK         = "Login successful"
)

const (
	usersTable    = "users"
	sessionsTable = "user_sessions"
)

// User is a registered account. LastLogin is zero until the first login.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastLogin time.Time `json:"last_login,omitempty"`
}

// Result reports a registration outcome.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// AuthResult reports a login outcome.
type AuthResult struct {
	OK      bool   `json:"ok"`
	UserID  int64  `json:"user_id,omitempty"`
	Message string `json:"message"`
}

// Store is the SQLite credential and session store.
type Store struct {
	db   *sql.DB
	ttl  time.Duration
	now  func() time.Time
	cost int
}

// Option configures a Store.
type Option func(*Store)

// WithSessionTTL sets the session lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBcryptCost sets the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Store) { s.cost = cost }
}

// NewStore creates the store and ensures its schema.
func NewStore(ctx context.Context, db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	s := &Store{db: db, ttl: DefaultSessionTTL, now: time.Now, cost: bcrypt.DefaultCost}
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
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		last_login INTEGER NOT NULL DEFAULT 0
	)`, usersTable),
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
		session_token TEXT UNIQUE NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	)`, sessionsTable, usersTable),
	fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_expires ON %s(expires_at)`, sessionsTable, sessionsTable),
}

// Register creates an account. Duplicate usernames or emails are reported
// in the Result, not as errors.
func (s *Store) Register(ctx context.Context, username, password, email, fullName string) (Result, error) {
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return Result{Message: MsgMissingFields}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Result{Message: MsgRegisterFailed}, errors.New(errors.CodeInvalidInput, "password cannot be hashed", err)
	}

	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (username, password_hash, email, full_name, created_at) VALUES (?, ?, ?, ?, ?)", usersTable),
		username, string(hash), email, strings.TrimSpace(fullName), storage.Timestamp(s.now()))
	switch {
	case err == nil:
		return Result{OK: true, Message: MsgRegistered}, nil
	case storage.IsUniqueViolation(err, usersTable+".username"):
		return Result{Message: MsgUsernameTaken}, nil
	case storage.IsUniqueViolation(err, usersTable+".email"):
		return Result{Message: MsgEmailTaken}, nil
	case storage.IsUniqueViolation(err, ""):
		return Result{Message: MsgRegisterFailed}, nil
	default:
		return Result{Message: MsgRegisterFailed}, storage.WrapError(err, "register")
	}
}

// Authenticate checks a username and password and stamps last_login on
// success.
func (s *Store) Authenticate(ctx context.Context, username, password string) (AuthResult, error) {
	var (
		id   int64
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id, password_hash FROM %s WHERE username = ?", usersTable),
		strings.TrimSpace(username)).Scan(&id, &hash)
	if stderrors.Is(err, sql.ErrNoRows) {
		return AuthResult{Message: MsgUserNotFound}, nil
	}
	if err != nil {
		return AuthResult{}, storage.WrapError(err, "authenticate")
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return AuthResult{Message: MsgInvalidPassword}, nil
	}
	if _, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET last_login = ? WHERE id = ?", usersTable),
		storage.Timestamp(s.now()), id); err != nil {
		return AuthResult{}, storage.WrapError(err, "authenticate")
	}
	return AuthResult{OK: true, UserID: id, Message: MsgLoginOK}, nil
}

// CreateSession issues a token for userID valid for the configured TTL.
func (s *Store) CreateSession(ctx context.Context, userID int64) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", errors.New(errors.CodeInternal, "session token generation failed", err)
	}
	now := s.now()
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (user_id, session_token, created_at, expires_at) VALUES (?, ?, ?, ?)", sessionsTable),
		userID, token, storage.Timestamp(now), storage.Timestamp(now.Add(s.ttl)))
	if err != nil {
		return "", storage.WrapError(err, "create session")
	}
	return token, nil
}

// VerifySession returns the user owning token, if the session is live.
func (s *Store) VerifySession(ctx context.Context, token string) (int64, bool, error) {
	if token == "" {
		return 0, false, nil
	}
	var userID int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT user_id FROM %s WHERE session_token = ? AND expires_at > ?", sessionsTable),
		token, storage.Timestamp(s.now())).Scan(&userID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storage.WrapError(err, "verify session")
	}
	return userID, true, nil
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, userID int64) (*User, error) {
	var (
		u                  User
		created, lastLogin int64
	)
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id, username, email, full_name, created_at, last_login FROM %s WHERE id = ?", usersTable),
		userID).Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &created, &lastLogin)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, "user not found", nil).WithContext("user_id", userID)
	}
	if err != nil {
		return nil, storage.WrapError(err, "get user")
	}
	u.CreatedAt = storage.Time(created)
	u.LastLogin = storage.Time(lastLogin)
	return &u, nil
}

// EndSession deletes the session. Unknown tokens are ignored.
func (s *Store) EndSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE session_token = ?", sessionsTable), token)
	if err != nil {
		return storage.WrapError(err, "end session")
	}
	return nil
}

// PurgeExpired deletes sessions past their expiry and reports how many.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE expires_at <= ?", sessionsTable),
		storage.Timestamp(s.now()))
	if err != nil {
		return 0, storage.WrapError(err, "purge sessions")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
