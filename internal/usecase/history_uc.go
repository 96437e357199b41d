package usecase

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/repository"
)

const historyTimeLayout = "1/2/2006, 3:04:05 PM"

// HistoryUC exports the research submission log.
type HistoryUC struct {
	log repository.HistoryLog
	md  goldmark.Markdown
	now func() time.Time
}

func NewHistoryUseCase(log repository.HistoryLog) *HistoryUC {
	return &HistoryUC{
		log: log,
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Linkify),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		now: time.Now,
	}
}

func (h *HistoryUC) Entries(ctx context.Context) ([]model.HistoryEntry, error) {
	return h.log.List(ctx)
}

// FileName is the suggested download name for today's export.
func (h *HistoryUC) FileName(ext string) string {
	return "research-history-" + h.now().Format("2006-01-02") + "." + ext
}

// Markdown renders every entry in submission order. An empty log yields
// domain.ErrNotFound.
func (h *HistoryUC) Markdown(ctx context.Context) (string, error) {
	entries, err := h.log.List(ctx)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: no research history", domain.ErrNotFound)
	}

	var b strings.Builder
	b.WriteString("# Research History\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", h.now().Format(historyTimeLayout))
	b.WriteString("---\n\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, e.Timestamp.Local().Format(historyTimeLayout))
		fmt.Fprintf(&b, "**Research Type:** %s\n", e.Capability)
		fmt.Fprintf(&b, "**Framework:** %s\n\n", e.Framework)
		if e.IsFollowUp {
			fmt.Fprintf(&b, "**Follow-up of:** %s\n\n", e.ParentDocumentID)
		}
		fmt.Fprintf(&b, "**Context:**\n%s\n\n", e.Context)
		b.WriteString("**Research Parameters:**\n")
		fmt.Fprintf(&b, "- Scope: %s\n", e.Modifiers.Scope)
		fmt.Fprintf(&b, "- Overview Details: %s\n", e.Modifiers.OverviewDetails)
		fmt.Fprintf(&b, "- Analytical Rigor: %s\n", e.Modifiers.AnalyticalRigor)
		fmt.Fprintf(&b, "- Perspective: %s\n\n", e.Modifiers.Perspective)
		b.WriteString("---\n\n")
	}
	return b.String(), nil
}

// HTML renders the markdown export as a standalone HTML fragment.
func (h *HistoryUC) HTML(ctx context.Context) (string, error) {
	md, err := h.Markdown(ctx)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render history: %w", err)
	}
	return buf.String(), nil
}
