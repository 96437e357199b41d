package model

import (
	"strings"
	"testing"
	"time"
)

func TestClassifyRunStatus(t *testing.T) {
	cases := map[string]RunBucket{
		"completed": RunComplete,
		"FINISHED":  RunComplete,
		"Done":      RunComplete,
		" success ": RunComplete,
		"failed":    RunFailed,
		"Error":     RunFailed,
		"CANCELLED": RunFailed,
		"running":   RunInProgress,
		"":          RunInProgress,
		"queued":    RunInProgress,
	}
	for in, want := range cases {
		if got := ClassifyRunStatus(in); got != want {
			t.Errorf("ClassifyRunStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestJob_Expired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	j := NewJob(JobKindResearch, JobParams{Capability: "DCF Valuation"}, RunRef{}, now.Add(-31*time.Minute))
	if !j.Expired(now, 30*time.Minute) {
		t.Fatalf("expected a 31 minute old job to be expired")
	}
	if j.HasRun() {
		t.Fatalf("job without identifiers must not report a run")
	}
	fresh := NewJob(JobKindResearch, JobParams{}, RunRef{WorkflowID: "wf1", RunID: "r1"}, now)
	if fresh.Expired(now, 30*time.Minute) {
		t.Fatalf("fresh job reported expired")
	}
	if !fresh.HasRun() {
		t.Fatalf("expected run reference")
	}
	if fresh.ID == j.ID || fresh.ID == "" {
		t.Fatalf("job ids must be unique and non-empty")
	}
}

func TestRunRef_ValidNeedsBoth(t *testing.T) {
	if (RunRef{WorkflowID: "wf"}).Valid() {
		t.Fatal("half a reference must not be valid")
	}
}

func TestChatSession_RecentTurnsAndTitle(t *testing.T) {
	now := time.Now()
	s := NewChatSession(now)
	if s.DeriveTitle() != "Untitled Chat" {
		t.Fatalf("unexpected default title %q", s.DeriveTitle())
	}
	for i := 0; i < 12; i++ {
		s.AddTurn(RoleUser, strings.Repeat("q", 60), false, now)
		s.AddTurn(RoleAssistant, "a", false, now)
	}
	if got := len(s.RecentTurns(10)); got != 10 {
		t.Fatalf("expected 10 recent turns, got %d", got)
	}
	if got := s.RecentTurns(10)[9].Role; got != RoleAssistant {
		t.Fatalf("window must end at the latest turn, got %s", got)
	}
	title := s.DeriveTitle()
	if !strings.HasSuffix(title, "...") || len([]rune(title)) != 53 {
		t.Fatalf("unexpected title %q", title)
	}

	c := s.Clone()
	c.Turns[0].Content = "changed"
	if s.Turns[0].Content == "changed" {
		t.Fatal("clone shares turn storage")
	}
}

func TestFormatTurns(t *testing.T) {
	got := FormatTurns([]ChatTurn{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}})
	if got != "User: hi\nAssistant: hello" {
		t.Fatalf("unexpected format %q", got)
	}
}

func TestDocumentFromObject(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	d := DocumentFromObject(ContentObject{
		ID:         "o1",
		Name:       "DeepResearch_NVDA-DCF_Valuation",
		Properties: map[string]any{"capability": "Valuation"},
	}, now)
	if d.Title != "NVDA DCF Valuation" {
		t.Errorf("title = %q", d.Title)
	}
	if d.Area != "Valuation" || d.Topic != "General" {
		t.Errorf("area/topic = %q/%q", d.Area, d.Topic)
	}
	if !d.CreatedAt.Equal(now) {
		t.Errorf("missing timestamps should fall back to now")
	}

	docs := []Document{
		{ID: "old", CreatedAt: now.Add(-time.Hour)},
		{ID: "new", CreatedAt: now},
	}
	SortNewestFirst(docs)
	if docs[0].ID != "new" {
		t.Errorf("expected newest first, got %s", docs[0].ID)
	}
}
