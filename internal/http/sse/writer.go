// Package sse writes chat replies as server-sent events.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/yungbote/haven-backend/internal/modules/orchestrator"
	"github.com/yungbote/haven-backend/internal/platform/apierr"
)

const HeaderTokenBudget = "X-Token-Budget"

var ErrStreamingUnsupported = errors.New("streaming unsupported")

type frame struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Writer is an orchestrator.Sink over an http.ResponseWriter. Headers are
// only committed by Open, so errors raised before it can still be sent as
// plain JSON.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	lang    string

	mu     sync.Mutex
	opened bool
}

var _ orchestrator.Sink = (*Writer)(nil)

func NewWriter(w http.ResponseWriter, acceptLanguage string) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return &Writer{w: w, flusher: f, lang: acceptLanguage}, nil
}

func (s *Writer) Opened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

func (s *Writer) Open(meta orchestrator.Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	if meta.BudgetWarning {
		h.Set(HeaderTokenBudget, "warning")
	}
	s.w.WriteHeader(http.StatusOK)
	s.opened = true

	b, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: meta\ndata: %s\n\n", b); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *Writer) Delta(text string) error {
	return s.write(frame{Type: "delta", Text: text})
}

func (s *Writer) Done() error {
	return s.write(frame{Type: "done"})
}

func (s *Writer) Error(err *apierr.Error) error {
	code := "internal_error"
	if err != nil && err.Code != "" {
		code = err.Code
	}
	return s.write(frame{Type: "error", Code: code, Message: apierr.Message(code, s.lang)})
}

func (s *Writer) write(f frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return errors.New("sse: write before open")
	}
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
