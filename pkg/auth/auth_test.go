package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jllopis/neurosync/pkg/errors"
	"github.com/jllopis/neurosync/pkg/storage"
	"golang.org/x/crypto/bcrypt"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestStore(t *testing.T, c *clock) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := NewStore(ctx, db, WithBcryptCost(bcrypt.MinCost), WithClock(c.now))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, &clock{t: time.Now()})

	tests := []struct {
		name     string
		username string
		email    string
		password string
		ok       bool
		message  string
	}{
		{name: "new user", username: "ada", email: "ada@example.com", password: "secret", ok: true, message: MsgRegistered},
		{name: "duplicate username", username: "ada", email: "other@example.com", password: "secret", message: MsgUsernameTaken},
		{name: "duplicate email", username: "grace", email: "ada@example.com", password: "secret", message: MsgEmailTaken},
		{name: "missing fields", username: "", email: "x@example.com", password: "secret", message: MsgMissingFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Register(ctx, tt.username, tt.password, tt.email, "")
			if err != nil {
				t.Fatalf("Register error: %v", err)
			}
			if res.OK != tt.ok || res.Message != tt.message {
				t.Errorf("Register() = %+v, want ok=%v message=%q", res, tt.ok, tt.message)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	s := newTestStore(t, c)
	if _, err := s.Register(ctx, "ada", "secret", "ada@example.com", "Ada Lovelace"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		username string
		password string
		ok       bool
		message  string
	}{
		{name: "success", username: "ada", password: "secret", ok: true, message: MsgLoginOK},
		{name: "wrong password", username: "ada", password: "nope", message: MsgInvalidPassword},
		{name: "unknown user", username: "bob", password: "secret", message: MsgUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Authenticate(ctx, tt.username, tt.password)
			if err != nil {
				t.Fatalf("Authenticate error: %v", err)
			}
			if res.OK != tt.ok || res.Message != tt.message {
				t.Errorf("Authenticate() = %+v", res)
			}
			if tt.ok && res.UserID == 0 {
				t.Error("expected user id on success")
			}
		})
	}

	res, _ := s.Authenticate(ctx, "ada", "secret")
	u, err := s.GetUser(ctx, res.UserID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Username != "ada" || u.FullName != "Ada Lovelace" || !u.LastLogin.Equal(c.t) {
		t.Errorf("unexpected user %+v", u)
	}
	if _, err := s.GetUser(ctx, 999); !errors.IsCode(err, errors.CodeNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Now()}
	s := newTestStore(t, c)
	s.Register(ctx, "ada", "secret", "ada@example.com", "")
	login, _ := s.Authenticate(ctx, "ada", "secret")

	token, err := s.CreateSession(ctx, login.UserID)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(token))
	}
	other, _ := s.CreateSession(ctx, login.UserID)
	if other == token {
		t.Error("tokens must be unique")
	}

	uid, ok, err := s.VerifySession(ctx, token)
	if err != nil || !ok || uid != login.UserID {
		t.Fatalf("VerifySession() = %d, %v, %v", uid, ok, err)
	}

	c.t = c.t.Add(DefaultSessionTTL + time.Second)
	if _, ok, _ := s.VerifySession(ctx, token); ok {
		t.Error("expired token must not verify")
	}
	n, err := s.PurgeExpired(ctx)
	if err != nil || n != 2 {
		t.Errorf("PurgeExpired() = %d, %v, want 2", n, err)
	}
}

func TestEndSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, &clock{t: time.Now()})
	s.Register(ctx, "ada", "secret", "ada@example.com", "")
	login, _ := s.Authenticate(ctx, "ada", "secret")
	token, _ := s.CreateSession(ctx, login.UserID)

	if err := s.EndSession(ctx, token); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if _, ok, _ := s.VerifySession(ctx, token); ok {
		t.Error("ended session must not verify")
	}
	if _, ok, _ := s.VerifySession(ctx, "unknown"); ok {
		t.Error("unknown token must not verify")
	}
}
