package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/adapter"
)

const longAnswer = "**3. Agent Answer:** Revenue grew 12% year over year."

type staticNames map[string]string

func (s staticNames) Name(id string) string {
	if n, ok := s[id]; ok {
		return n
	}
	return id
}

func newChat(runs *fakeRuns, obs *recordingObserver) (*chatUC, *memChats) {
	saved := &memChats{}
	c := NewChatUseCase(runs, saved, staticNames{"c1": "Semis"}, obs, ChatOptions{
		Interaction:   "ChatV2",
		StreamTimeout: time.Second,
	}, &nopLog)
	return c, saved
}

func chatRuns(stream *fakeStream) *fakeRuns {
	return &fakeRuns{ref: model.RunRef{WorkflowID: "wf", RunID: "r"}, stream: stream}
}

func lastTurn(c *chatUC) model.ChatTurn {
	s := c.Session()
	return s.Turns[len(s.Turns)-1]
}

func TestChat_TerminalPathsReturnToIdleOnce(t *testing.T) {
	cases := []struct {
		name    string
		stream  func() *fakeStream
		cancel  bool
		turns   int
		isError bool
		reply   string
	}{
		{
			name:   "answer then finish",
			stream: func() *fakeStream { return newStream(adapter.StreamEvent{Type: "answer", Message: longAnswer}, adapter.StreamEvent{Type: "finish"}) },
			turns:  2,
			reply:  "Revenue grew 12% year over year.",
		},
		{
			name:   "finish without answer",
			stream: func() *fakeStream { return newStream(adapter.StreamEvent{Type: "update", Message: "thinking"}, adapter.StreamEvent{FinishReason: "stop"}) },
			turns:  2,
			reply:  noAnswerReply,
		},
		{
			name:   "natural close",
			stream: func() *fakeStream { return newStream() },
			turns:  2,
			reply:  noAnswerReply,
		},
		{
			name: "stream error",
			stream: func() *fakeStream {
				s := newStream()
				s.endErr = errors.New("connection reset")
				return s
			},
			turns:   2,
			isError: true,
			reply:   errorReply,
		},
		{
			name: "abort",
			stream: func() *fakeStream {
				s := newStream()
				s.block = true
				return s
			},
			cancel: true,
			turns:  1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obs := &recordingObserver{}
			stream := tc.stream()
			c, _ := newChat(chatRuns(stream), obs)

			if err := c.Send(context.Background(), "What changed in Q3?"); err != nil {
				t.Fatalf("send: %v", err)
			}
			if tc.cancel {
				deadline := time.Now().Add(time.Second)
				for c.State() != ChatStreaming && time.Now().Before(deadline) {
					time.Sleep(time.Millisecond)
				}
				c.Cancel()
			}
			c.Wait()

			if c.State() != ChatIdle {
				t.Fatalf("state = %s", c.State())
			}
			if obs.enables() != 1 {
				t.Fatalf("input re-enabled %d times", obs.enables())
			}
			s := c.Session()
			if len(s.Turns) != tc.turns {
				t.Fatalf("expected %d turns, got %+v", tc.turns, s.Turns)
			}
			if tc.turns == 2 {
				got := lastTurn(c)
				if got.Content != tc.reply || got.IsError != tc.isError {
					t.Fatalf("unexpected reply %+v", got)
				}
			}
			if tc.cancel && stream.closes == 0 {
				t.Fatal("stream must be closed on abort")
			}
		})
	}
}

func TestChat_FirstQualifyingAnswerWins(t *testing.T) {
	obs := &recordingObserver{}
	stream := newStream(
		adapter.StreamEvent{Type: "answer", Message: "short"},
		adapter.StreamEvent{Type: "answer", Message: "The first full answer."},
		adapter.StreamEvent{Type: "answer", Message: "A second full answer."},
		adapter.StreamEvent{Message: "stream_end"},
	)
	c, _ := newChat(chatRuns(stream), obs)
	c.Send(context.Background(), "q")
	c.Wait()

	s := c.Session()
	if len(s.Turns) != 2 || s.Turns[1].Content != "The first full answer." {
		t.Fatalf("unexpected turns %+v", s.Turns)
	}
}

func TestChat_AnswerThresholdCountsCharacters(t *testing.T) {
	stream := newStream(
		adapter.StreamEvent{Type: "answer", Message: "营收同比增长百分"},
		adapter.StreamEvent{Type: "answer", Message: "营收同比增长百分之十二点五"},
		adapter.StreamEvent{Message: "stream_end"},
	)
	c, _ := newChat(chatRuns(stream), &recordingObserver{})
	c.Send(context.Background(), "q")
	c.Wait()

	s := c.Session()
	if len(s.Turns) != 2 || s.Turns[1].Content != "营收同比增长百分之十二点五" {
		t.Fatalf("an eight character answer must not qualify, turns %+v", s.Turns)
	}
}

func TestChat_RejectsEmptyAndConcurrentSends(t *testing.T) {
	stream := newStream()
	stream.block = true
	runs := chatRuns(stream)
	c, _ := newChat(runs, &recordingObserver{})

	if err := c.Send(context.Background(), "   "); !errors.Is(err, domain.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if err := c.Send(context.Background(), "first"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := c.Send(context.Background(), "second"); !errors.Is(err, domain.ErrExchangeInFlight) {
		t.Fatalf("expected ErrExchangeInFlight, got %v", err)
	}
	c.Cancel()
	if runs.execCount() != 1 {
		t.Fatalf("expected one dispatch, got %d", runs.execCount())
	}
	if n := len(c.Session().Turns); n != 1 {
		t.Fatalf("rejected sends must not add turns, got %d", n)
	}
}

func TestChat_DispatchFailuresProduceErrorTurn(t *testing.T) {
	cases := map[string]*fakeRuns{
		"vendor error": {execErr: errors.New("503")},
		"missing run":  {ref: model.RunRef{WorkflowID: "wf"}},
	}
	for name, runs := range cases {
		t.Run(name, func(t *testing.T) {
			obs := &recordingObserver{}
			c, _ := newChat(runs, obs)
			c.Send(context.Background(), "q")
			c.Wait()
			got := lastTurn(c)
			if !got.IsError || got.Content != errorReply {
				t.Fatalf("unexpected reply %+v", got)
			}
			if c.State() != ChatIdle || obs.enables() != 1 {
				t.Fatalf("state=%s enables=%d", c.State(), obs.enables())
			}
		})
	}
}

func TestChat_StreamOpenFailure(t *testing.T) {
	runs := &fakeRuns{ref: model.RunRef{WorkflowID: "wf", RunID: "r"}, openErr: errors.New("401")}
	c, _ := newChat(runs, &recordingObserver{})
	c.Send(context.Background(), "q")
	c.Wait()
	if got := lastTurn(c); !got.IsError {
		t.Fatalf("expected error turn, got %+v", got)
	}
}

func TestChat_StreamTimeout(t *testing.T) {
	stream := newStream()
	stream.block = true
	obs := &recordingObserver{}
	c := NewChatUseCase(chatRuns(stream), &memChats{}, nil, obs, ChatOptions{StreamTimeout: 20 * time.Millisecond}, &nopLog)

	c.Send(context.Background(), "q")
	c.Wait()
	if got := lastTurn(c); !got.IsError || got.Content != errorReply {
		t.Fatalf("unexpected reply %+v", got)
	}
	if obs.enables() != 1 {
		t.Fatalf("enables = %d", obs.enables())
	}
}

func TestChat_SendOutlivesRequestContext(t *testing.T) {
	c, _ := newChat(chatRuns(newStream(adapter.StreamEvent{Type: "answer", Message: longAnswer})), &recordingObserver{})
	ctx, cancel := context.WithCancel(context.Background())
	c.Send(ctx, "q")
	cancel()
	c.Wait()
	if got := lastTurn(c); got.IsError || got.Role != model.RoleAssistant {
		t.Fatalf("request cancellation must not abort the exchange, got %+v", got)
	}
}

func TestChat_PromptCarriesScopeAndPriorTurns(t *testing.T) {
	runs := chatRuns(newStream(adapter.StreamEvent{Type: "answer", Message: longAnswer}))
	c, _ := newChat(runs, &recordingObserver{})
	c.SetScope([]string{"c1"})

	c.Send(context.Background(), "first question")
	c.Wait()
	runs.stream = newStream(adapter.StreamEvent{Type: "answer", Message: longAnswer})
	c.Send(context.Background(), "second question")
	c.Wait()

	req := runs.lastRequest()
	if !req.Interactive || req.Interaction != "ChatV2" {
		t.Fatalf("unexpected request %+v", req)
	}
	task := req.Data["task"].(string)
	for _, want := range []string{
		"Only search and reference documents from these collections: Semis.",
		"Collection IDs to search: c1",
		"User: first question\nAssistant: Revenue grew",
		"Current question: second question",
	} {
		if !strings.Contains(task, want) {
			t.Errorf("prompt missing %q:\n%s", want, task)
		}
	}
	if strings.Contains(task, "User: second question") {
		t.Error("current message must not appear in the prior turns")
	}
}

func TestChat_DocumentScope(t *testing.T) {
	runs := chatRuns(newStream())
	c, _ := newChat(runs, &recordingObserver{})
	c.ScopeToDocument("doc-9")
	c.Send(context.Background(), "summarize")
	c.Wait()
	task := runs.lastRequest().Data["task"].(string)
	if !strings.HasPrefix(task, "Document ID: doc-9") {
		t.Fatalf("unexpected prompt %q", task)
	}
}

func TestChat_NewConversationAutosaves(t *testing.T) {
	c, saved := newChat(chatRuns(newStream(adapter.StreamEvent{Type: "answer", Message: longAnswer})), &recordingObserver{})
	c.SetScope([]string{"c1"})
	c.NewConversation(context.Background())
	if len(saved.items) != 0 {
		t.Fatal("an empty session must not be saved")
	}

	c.Send(context.Background(), "keep me")
	c.Wait()
	c.NewConversation(context.Background())
	if len(saved.items) != 1 || saved.items[0].Title != "keep me" {
		t.Fatalf("expected autosave, got %+v", saved.items)
	}
	s := c.Session()
	if len(s.Turns) != 0 || s.Scoped() || s.ID != "" {
		t.Fatalf("new conversation must be empty and unscoped, got %+v", s)
	}

	loaded, err := c.Load(context.Background(), saved.items[0].ID)
	if err != nil || len(loaded.Turns) != 2 {
		t.Fatalf("load: %v %+v", err, loaded)
	}
	if _, err := c.Load(context.Background(), "chat_missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChat_StarAndDeleteTrackCurrentSession(t *testing.T) {
	c, _ := newChat(chatRuns(newStream()), &recordingObserver{})
	c.Send(context.Background(), "q")
	c.Wait()
	s, err := c.Save(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if on, _ := c.ToggleStar(context.Background(), s.ID); !on || !c.Session().Starred {
		t.Fatal("star must reflect on the current session")
	}
	if err := c.Delete(context.Background(), s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if c.Session().ID != "" {
		t.Fatal("deleting the current session must detach it")
	}
	if list, _ := c.History(context.Background()); len(list) != 0 {
		t.Fatalf("history = %d", len(list))
	}
}
