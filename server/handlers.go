package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tk103331/eino-chatlab/chat"
	"github.com/tk103331/eino-chatlab/logger"
	"github.com/tk103331/eino-chatlab/segment"
	"github.com/tk103331/eino-chatlab/snippet"
	"github.com/tk103331/eino-chatlab/store"
)

type replyResponse struct {
	*chat.Reply
	HTML string `json:"html"`
}

type historyRequest struct {
	ParticipantID string `json:"participantID"`
}

type historyItem struct {
	chat.Exchange
	HTML string `json:"html"`
}

type historyResponse struct {
	Interactions []historyItem `json:"interactions"`
}

type renderRequest struct {
	Text string `json:"text"`
	// Snippet renders Text as the body of a single block, which is how the
	// frontend shows a snippet again after looking at its raw source.
	Snippet bool `json:"snippet,omitempty"`
}

type renderResponse struct {
	Fragments []segment.Fragment `json:"fragments,omitempty"`
	HTML      string             `json:"html"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if !s.decode(w, r, &req) {
		return
	}

	reply, err := s.svc.Chat(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, replyResponse{Reply: reply, HTML: snippet.Markup(reply.Fragments, snippet.NewID)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if !s.decode(w, r, &req) {
		return
	}

	exchanges, err := s.svc.History(r.Context(), req.ParticipantID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := historyResponse{Interactions: make([]historyItem, 0, len(exchanges))}
	for _, ex := range exchanges {
		out.Interactions = append(out.Interactions, historyItem{
			Exchange: ex,
			HTML:     snippet.Markup(ex.Fragments, snippet.NewID),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLogEvent(w http.ResponseWriter, r *http.Request) {
	var e chat.Event
	if !s.decode(w, r, &e) {
		return
	}

	if err := s.svc.LogEvent(r.Context(), e); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged"})
}

func (s *Server) handleProjectInfo(w http.ResponseWriter, r *http.Request) {
	var info store.ProjectInfo
	if !s.decode(w, r, &info) {
		return
	}
	info.ID = ""

	reply, err := s.svc.GenerateReadme(r.Context(), info)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, replyResponse{Reply: reply, HTML: snippet.Markup(reply.Fragments, snippet.NewID)})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if !s.decode(w, r, &req) {
		return
	}

	seg := s.svc.Segmenter()
	if !req.Snippet {
		fragments := seg.Segment(req.Text)
		writeJSON(w, http.StatusOK, renderResponse{
			Fragments: fragments,
			HTML:      snippet.Markup(fragments, snippet.NewID),
		})
		return
	}

	out, err := seg.Renderer().Render(segment.StripFormatPrefix(req.Text))
	if err != nil {
		jsonErr(w, fmt.Sprintf("render failed: %v", err), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, renderResponse{HTML: seg.Sanitizer().Sanitize(out)})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		jsonErr(w, "content type must be application/json", http.StatusUnsupportedMediaType)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonErr(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		jsonErr(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, chat.ErrEmptyInput),
		errors.Is(err, chat.ErrInvalidProject),
		errors.Is(err, chat.ErrInvalidEvent):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrCompletion):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		logger.Error("HTTP", msg)
		if code == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	jsonErr(w, msg, code)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("HTTP", fmt.Sprintf("encode response: %v", err))
	}
}
