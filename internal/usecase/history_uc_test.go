package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
)

func TestHistory_MarkdownAndHTML(t *testing.T) {
	log := &memHistory{}
	ts := time.Date(2025, 3, 3, 14, 5, 0, 0, time.Local)
	log.Append(context.Background(), model.NewHistoryEntry(dcf, ts))
	log.Append(context.Background(), model.NewHistoryEntry(model.JobParams{ParentDocumentID: "doc-1", Context: "capex"}, ts.Add(time.Minute)))

	h := NewHistoryUseCase(log)
	h.now = func() time.Time { return ts }

	md, err := h.Markdown(context.Background())
	if err != nil {
		t.Fatalf("markdown: %v", err)
	}
	for _, want := range []string{
		"# Research History",
		"## 1. 3/3/2025, 2:05:00 PM",
		"**Research Type:** DCF Valuation",
		"## 2. 3/3/2025, 2:06:00 PM",
		"**Follow-up of:** doc-1",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	html, err := h.HTML(context.Background())
	if err != nil {
		t.Fatalf("html: %v", err)
	}
	if !strings.Contains(html, `<h1 id="research-history">Research History</h1>`) {
		t.Fatalf("unexpected html:\n%s", html)
	}
	if h.FileName("md") != "research-history-2025-03-03.md" {
		t.Fatalf("file name = %q", h.FileName("md"))
	}
}

func TestHistory_EmptyLog(t *testing.T) {
	h := NewHistoryUseCase(&memHistory{})
	if _, err := h.Markdown(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
