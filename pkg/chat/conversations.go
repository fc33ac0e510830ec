package chat

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"

	"github.com/jllopis/neurosync/pkg/errors"
	"github.com/jllopis/neurosync/pkg/history"
	"github.com/jllopis/neurosync/pkg/telemetry"
)

// DefaultTitle names conversations created without a first message.
const DefaultTitle = "New conversation"

// Result is the answer to one chat message after both turns were stored.
type Result struct {
	ConversationID int64  `json:"conversation_id"`
	MessageID      int64  `json:"message_id"`
	Text           string `json:"text"`
	Route          string `json:"route"`
	Failure        string `json:"failure"`
	Fallback       bool   `json:"fallback"`
	Roadmap        bool   `json:"roadmap"`
	Summary        string `json:"summary,omitempty"`
}

// Send answers message in conversationID, or in a new conversation titled
// after the message when conversationID is zero.
func (s *Service) Send(ctx context.Context, token string, conversationID int64, message string) (*Result, error) {
	sess, err := s.session(ctx, token)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(message) == "" {
		return nil, errors.New(errors.CodeInvalidInput, "message is required", nil)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	ctx, span := telemetry.Tracer().Start(ctx, "Chat.Send")
	defer span.End()

	if conversationID == 0 {
		conversationID, err = s.history.CreateConversation(ctx, sess.userID, history.Title(message))
		if err != nil {
			return nil, err
		}
		sess.agent.Reset()
		sess.conversation = conversationID
		sess.summary = ""
	} else if err := s.open(ctx, sess, conversationID); err != nil {
		return nil, err
	}

	if _, err := s.history.AppendMessage(ctx, conversationID, "user", message, nil); err != nil {
		return nil, err
	}

	span.SetAttributes(telemetry.ConversationAttributes(sess.userID, conversationID)...)
	out := s.Answer(ctx, sess.agent, message)

	msgID, err := s.history.AppendMessage(ctx, conversationID, "assistant", out.Text, out.Metadata())
	if err != nil {
		return nil, err
	}

	res := &Result{
		ConversationID: conversationID,
		MessageID:      msgID,
		Text:           out.Text,
		Route:          string(out.Route),
		Failure:        string(out.Failure),
		Fallback:       out.Fallback,
		Roadmap:        out.Roadmap,
	}

	if summary, ok := s.autoSummarize(ctx, sess, conversationID); ok {
		res.Summary = summary
	}
	return res, nil
}

// open makes conversationID the session's current conversation, seeding the
// agent with its latest stored turns when switching.
func (s *Service) open(ctx context.Context, sess *session, conversationID int64) error {
	if _, err := s.owned(ctx, sess.userID, conversationID); err != nil {
		return err
	}
	if sess.conversation == conversationID {
		return nil
	}
	msgs, err := s.history.GetMessages(ctx, conversationID)
	if err != nil {
		return err
	}
	if len(msgs) > s.window {
		msgs = msgs[len(msgs)-s.window:]
	}
	sess.agent.Seed(turnsFromMessages(msgs))
	sess.conversation = conversationID
	sess.summary = ""
	return nil
}

func (s *Service) autoSummarize(ctx context.Context, sess *session, conversationID int64) (string, bool) {
	prefs, err := s.history.GetPreferences(ctx, sess.userID)
	if err != nil || !prefs.AutoSummarize {
		return "", false
	}
	msgs, err := s.history.GetMessages(ctx, conversationID)
	if err != nil || len(msgs) < AutoSummarizeThreshold {
		return "", false
	}
	reply := sess.agent.Summarize(ctx, turnsFromMessages(msgs))
	if reply.Failed() {
		s.log.Warn("chat.summary.failure", slog.Int64("conversation_id", conversationID), slog.String("failure", string(reply.Failure)))
		return "", false
	}
	sess.summary = reply.Text
	return reply.Text, true
}

// owned loads a conversation and checks it belongs to userID. Foreign
// conversations are reported as not found.
func (s *Service) owned(ctx context.Context, userID, conversationID int64) (*history.Conversation, error) {
	conv, err := s.history.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, history.ErrNotFound
	}
	return conv, nil
}

// NewConversation creates an empty conversation and starts a fresh memory.
func (s *Service) NewConversation(ctx context.Context, token, title string) (*history.Conversation, error) {
	sess, err := s.session(ctx, token)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	id, err := s.history.CreateConversation(ctx, sess.userID, history.Title(title))
	if err != nil {
		return nil, err
	}
	sess.agent.Reset()
	sess.conversation = id
	sess.summary = ""
	return s.history.GetConversation(ctx, id)
}

// Conversations lists the user's conversations, filtered by query when set.
func (s *Service) Conversations(ctx context.Context, token, query string) ([]history.Conversation, error) {
	userID, err := s.Authorize(ctx, token)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) != "" {
		return s.history.SearchConversations(ctx, userID, strings.TrimSpace(query))
	}
	return s.history.ListConversations(ctx, userID)
}

// Messages returns the stored messages of an owned conversation.
func (s *Service) Messages(ctx context.Context, token string, conversationID int64) ([]history.Message, error) {
	userID, err := s.Authorize(ctx, token)
	if err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.history.GetMessages(ctx, conversationID)
}

// Rename retitles an owned conversation.
func (s *Service) Rename(ctx context.Context, token string, conversationID int64, title string) error {
	userID, err := s.Authorize(ctx, token)
	if err != nil {
		return err
	}
	if strings.TrimSpace(title) == "" {
		return errors.New(errors.CodeInvalidInput, "title is required", nil)
	}
	if _, err := s.owned(ctx, userID, conversationID); err != nil {
		return err
	}
	return s.history.RenameConversation(ctx, conversationID, strings.TrimSpace(title))
}

// Delete removes an owned conversation. Deleting the current conversation
// also clears the session memory.
func (s *Service) Delete(ctx context.Context, token string, conversationID int64) error {
	sess, err := s.session(ctx, token)
	if err != nil {
		return err
	}
	if _, err := s.owned(ctx, sess.userID, conversationID); err != nil {
		return err
	}
	if err := s.history.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}
	sess.mu.Lock()
	if sess.conversation == conversationID {
		sess.agent.Reset()
		sess.conversation = 0
		sess.summary = ""
	}
	sess.mu.Unlock()
	return nil
}

// Clear resets the session memory without touching stored history.
func (s *Service) Clear(ctx context.Context, token string) error {
	sess, err := s.session(ctx, token)
	if err != nil {
		return err
	}
	sess.agent.Reset()
	return nil
}

// Stats computes statistics for an owned conversation.
func (s *Service) Stats(ctx context.Context, token string, conversationID int64) (history.Stats, error) {
	msgs, err := s.Messages(ctx, token, conversationID)
	if err != nil {
		return history.Stats{}, err
	}
	return history.ComputeStats(msgs), nil
}

// Export renders an owned conversation in format.
func (s *Service) Export(ctx context.Context, token string, conversationID int64, format string) ([]byte, error) {
	userID, err := s.Authorize(ctx, token)
	if err != nil {
		return nil, err
	}
	conv, err := s.owned(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.history.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "No conversation to export", nil)
	}
	return history.Export(format, conv, msgs, s.now())
}

// Summarize asks the session agent for a bullet summary of an owned
// conversation.
func (s *Service) Summarize(ctx context.Context, token string, conversationID int64) (string, error) {
	sess, err := s.session(ctx, token)
	if err != nil {
		return "", err
	}
	if _, err := s.owned(ctx, sess.userID, conversationID); err != nil {
		return "", err
	}
	msgs, err := s.history.GetMessages(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "", errors.New(errors.CodeInvalidInput, "No messages to summarize yet.", nil)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	reply := sess.agent.Summarize(ctx, turnsFromMessages(msgs))
	if reply.Failed() {
		return "", errors.New(errors.CodeLLMError, "Failed to generate summary", stderrors.New(reply.Text))
	}
	sess.summary = reply.Text
	return reply.Text, nil
}

// Preferences returns the user's preferences.
func (s *Service) Preferences(ctx context.Context, token string) (history.Preferences, error) {
	userID, err := s.Authorize(ctx, token)
	if err != nil {
		return history.Preferences{}, err
	}
	return s.history.GetPreferences(ctx, userID)
}

// SetPreferences updates the given preference fields.
func (s *Service) SetPreferences(ctx context.Context, token string, theme *string, autoSummarize *bool) (history.Preferences, error) {
	userID, err := s.Authorize(ctx, token)
	if err != nil {
		return history.Preferences{}, err
	}
	if err := s.history.SetPreferences(ctx, userID, theme, autoSummarize); err != nil {
		return history.Preferences{}, err
	}
	return s.history.GetPreferences(ctx, userID)
}
