package chat

import (
	"context"
	"log/slog"

	"github.com/jllopis/neurosync/pkg/agent"
	"github.com/jllopis/neurosync/pkg/auth"
	"github.com/jllopis/neurosync/pkg/errors"
)

// Login is the outcome of a login attempt.
type Login struct {
	auth.AuthResult
	Token string `json:"token,omitempty"`
}

// Register creates an account.
func (s *Service) Register(ctx context.Context, username, password, email, fullName string) (auth.Result, error) {
	if s.users == nil {
		return auth.Result{}, errors.New(errors.CodeInternal, "credential store not configured", nil)
	}
	return s.users.Register(ctx, username, password, email, fullName)
}

// Login checks credentials, opens a session and builds its agent.
func (s *Service) Login(ctx context.Context, username, password string) (Login, error) {
	if s.users == nil {
		return Login{}, errors.New(errors.CodeInternal, "credential store not configured", nil)
	}
	if username == "" || password == "" {
		return Login{AuthResult: auth.AuthResult{Message: "Please fill in all fields"}}, nil
	}
	res, err := s.users.Authenticate(ctx, username, password)
	if err != nil || !res.OK {
		return Login{AuthResult: res}, err
	}

	a, err := s.newAgent()
	if err != nil {
		return Login{}, errors.New(errors.CodeInternal, "failed to initialize AI engine", err)
	}
	token, err := s.users.CreateSession(ctx, res.UserID)
	if err != nil {
		return Login{}, err
	}

	s.mu.Lock()
	s.sessions[token] = &session{userID: res.UserID, agent: a}
	s.mu.Unlock()

	s.log.Info("chat.login", slog.Int64("user_id", res.UserID), slog.String("agent_id", a.ID()))
	return Login{AuthResult: res, Token: token}, nil
}

// Logout ends the session and drops its agent.
func (s *Service) Logout(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	if s.users == nil {
		return nil
	}
	return s.users.EndSession(ctx, token)
}

// Me returns the user behind token.
func (s *Service) Me(ctx context.Context, token string) (*auth.User, error) {
	sess, err := s.session(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.users.GetUser(ctx, sess.userID)
}

// Authorize returns the user id behind token.
func (s *Service) Authorize(ctx context.Context, token string) (int64, error) {
	sess, err := s.session(ctx, token)
	if err != nil {
		return 0, err
	}
	return sess.userID, nil
}

// session resolves a live session. A valid token without an in-memory
// session (after a restart, say) gets a fresh agent.
func (s *Service) session(ctx context.Context, token string) (*session, error) {
	if s.users == nil || token == "" {
		return nil, ErrUnauthorized
	}
	userID, ok, err := s.users.VerifySession(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[token]; ok && sess.userID == userID {
		return sess, nil
	}
	a, err := s.newAgent()
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to initialize AI engine", err)
	}
	sess := &session{userID: userID, agent: a}
	s.sessions[token] = sess
	return sess, nil
}

// Agent returns the agent of a session, for read-only views such as the
// tool list and stored facts.
func (s *Service) Agent(ctx context.Context, token string) (*agent.Agent, error) {
	sess, err := s.session(ctx, token)
	if err != nil {
		return nil, err
	}
	return sess.agent, nil
}

// PruneSessions drops the agents of sessions whose token no longer
// verifies, typically after the credential store purged expired sessions.
// It returns how many were dropped.
func (s *Service) PruneSessions(ctx context.Context) (int, error) {
	if s.users == nil {
		return 0, nil
	}
	s.mu.Lock()
	tokens := make([]string, 0, len(s.sessions))
	for token := range s.sessions {
		tokens = append(tokens, token)
	}
	s.mu.Unlock()

	var stale []string
	for _, token := range tokens {
		_, ok, err := s.users.VerifySession(ctx, token)
		if err != nil {
			return 0, err
		}
		if !ok {
			stale = append(stale, token)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range stale {
		delete(s.sessions, token)
	}
	return len(stale), nil
}

// Sessions reports how many sessions hold an agent.
func (s *Service) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
