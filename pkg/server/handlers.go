package server

import (
	"net/http"
	"time"

	"github.com/jllopis/neurosync/pkg/auth"
	"github.com/jllopis/neurosync/pkg/errors"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status, lastErr := s.svc.Health()
	body := map[string]any{"status": status, "version": s.version}
	if lastErr != nil {
		body["last_error"] = lastErr.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.svc.Register(r.Context(), c.Username, c.Password, c.Email, c.FullName)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if !res.OK {
		status = http.StatusConflict
		if res.Message == auth.MsgMissingFields {
			status = http.StatusBadRequest
		}
	}
	writeJSON(w, status, res)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.svc.Login(r.Context(), c.Username, c.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.OK {
		writeJSON(w, http.StatusUnauthorized, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Logout(r.Context(), tokenFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Me(r.Context(), tokenFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type toolView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Agent(r.Context(), tokenFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	list := a.Tools().List()
	out := make([]toolView, 0, len(list))
	for _, t := range list {
		out = append(out, toolView{Name: t.Name, Description: t.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFacts(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Agent(r.Context(), tokenFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	facts := a.Facts()
	if facts == nil {
		facts = []string{}
	}
	writeJSON(w, http.StatusOK, facts)
}

type chatRequest struct {
	ConversationID int64  `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.svc.Send(r.Context(), tokenFrom(r), req.ConversationID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Clear(r.Context(), tokenFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Preferences(r.Context(), tokenFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type preferencesRequest struct {
	Theme         *string `json:"theme,omitempty"`
	AutoSummarize *bool   `json:"auto_summarize,omitempty"`
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.svc.SetPreferences(r.Context(), tokenFrom(r), req.Theme, req.AutoSummarize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Conversations(r.Context(), tokenFrom(r), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type titleRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	conv, err := s.svc.NewConversation(r.Context(), tokenFrom(r), req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req titleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.svc.Rename(r.Context(), tokenFrom(r), id, req.Title); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.svc.Delete(r.Context(), tokenFrom(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	msgs, err := s.svc.Messages(r.Context(), tokenFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if msgs == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := s.svc.Stats(r.Context(), tokenFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	format := r.URL.Query().Get("format")
	data, err := s.svc.Export(r.Context(), tokenFrom(r), id, format)
	if err != nil {
		writeError(w, err)
		return
	}
	contentType, ext := exportContentType(format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename(ext, time.Now())+`"`)
	_, _ = w.Write(data)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	summary, err := s.svc.Summarize(r.Context(), tokenFrom(r), id)
	if err != nil {
		if errors.IsCode(err, errors.CodeLLMError) {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Failed to generate summary"})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}
