// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/adapter"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/repository"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/metrics"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

const (
	noAnswerReply = "I processed your request but couldn't generate a response. Please try rephrasing your question."
	errorReply    = "Sorry, there was an error processing your question. Please try again."
)

type ChatState int

const (
	ChatIdle ChatState = iota
	ChatAwaitingDispatch
	ChatStreaming
)

func (s ChatState) String() string {
	switch s {
	case ChatAwaitingDispatch:
		return "awaiting_dispatch"
	case ChatStreaming:
		return "streaming"
	default:
		return "idle"
	}
}

type ChatUseCase interface {
	Send(ctx context.Context, message string) error
	Cancel()
	Wait()
	NewConversation(ctx context.Context)
	SetScope(collectionIDs []string)
	ScopeToDocument(documentID string)
	Save(ctx context.Context) (*model.ChatSession, error)
	Load(ctx context.Context, id string) (*model.ChatSession, error)
	ToggleStar(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	History(ctx context.Context) ([]*model.ChatSession, error)
	Session() *model.ChatSession
	State() ChatState
}

type ChatOptions struct {
	Interaction    string
	HistoryWindow  int
	MinAnswerChars int
	StreamTimeout  time.Duration
}

// exchange is one send/stream cycle. done closes after the input has been
// re-enabled.
type exchange struct {
	cancel  context.CancelFunc
	aborted atomic.Bool
	done    chan struct{}
}

// chatUC runs one exchange at a time for the current session.
type chatUC struct {
	runs     adapter.RunAPI
	saved    repository.ChatHistoryRepository
	names    CollectionNamer
	observer adapter.ChatObserver
	opt      ChatOptions
	log      *zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	state   ChatState
	session *model.ChatSession
	current *exchange
}

func NewChatUseCase(
	runs adapter.RunAPI,
	saved repository.ChatHistoryRepository,
	names CollectionNamer,
	observer adapter.ChatObserver,
	opt ChatOptions,
	logger *zerolog.Logger,
) *chatUC {
	if observer == nil {
		observer = adapter.NopChatObserver{}
	}
	if opt.HistoryWindow <= 0 {
		opt.HistoryWindow = 10
	}
	if opt.MinAnswerChars <= 0 {
		opt.MinAnswerChars = 10
	}
	if opt.StreamTimeout <= 0 {
		opt.StreamTimeout = 5 * time.Minute
	}
	l := logger.With().Str("component", "chat_uc").Logger()
	return &chatUC{
		runs:     runs,
		saved:    saved,
		names:    names,
		observer: observer,
		opt:      opt,
		log:      &l,
		now:      time.Now,
		session:  model.NewChatSession(time.Now()),
	}
}

// Send starts an exchange and returns once it is accepted. An empty message
// or one sent while an exchange is in flight changes nothing.
func (c *chatUC) Send(ctx context.Context, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		metrics.IncChatExchange("rejected")
		return domain.ErrEmptyMessage
	}

	c.mu.Lock()
	if c.state != ChatIdle {
		c.mu.Unlock()
		metrics.IncChatExchange("rejected")
		return domain.ErrExchangeInFlight
	}
	prior := c.session.RecentTurns(c.opt.HistoryWindow)
	prompt := c.promptLocked(message, prior)
	turn := c.session.AddTurn(model.RoleUser, message, false, c.now())
	c.state = ChatAwaitingDispatch

	exCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opt.StreamTimeout)
	ex := &exchange{cancel: cancel, done: make(chan struct{})}
	c.current = ex
	c.mu.Unlock()

	c.observer.TurnAdded(turn)
	c.observer.InputEnabled(false)
	c.observer.Thinking(true)

	go c.run(exCtx, ex, prompt)
	return nil
}

func (c *chatUC) promptLocked(message string, prior []model.ChatTurn) string {
	if c.session.DocumentID != "" {
		return BuildDocumentChatPrompt(c.session.DocumentID, message, prior)
	}
	ids := c.session.Collections
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if c.names != nil {
			names = append(names, c.names.Name(id))
		} else {
			names = append(names, id)
		}
	}
	return BuildLibraryChatPrompt(message, prior, names, ids)
}

func (c *chatUC) run(ctx context.Context, ex *exchange, prompt string) {
	outcome := "no_answer"
	l := *c.log
	defer func() { c.finish(ex, outcome) }()

	ref, err := c.runs.ExecuteAsync(ctx, adapter.ExecuteRequest{
		Interaction: c.opt.Interaction,
		Data:        map[string]any{"task": prompt},
		Interactive: true,
	})
	if err == nil && !ref.Valid() {
		err = domain.ErrMissingRun
	}
	if err != nil {
		if ex.aborted.Load() {
			outcome = "cancelled"
			return
		}
		outcome = "dispatch_failed"
		l.Error().Err(err).Msg("chat dispatch failed")
		c.reply(ex, errorReply, true)
		return
	}

	if !c.setState(ex, ChatStreaming) {
		outcome = "cancelled"
		return
	}
	l = l.With().Str("run_id", ref.RunID).Logger()

	stream, err := c.runs.StreamRun(ctx, ref, c.now())
	if err != nil {
		if ex.aborted.Load() {
			outcome = "cancelled"
			return
		}
		outcome = "stream_failed"
		l.Error().Err(err).Msg("chat stream failed to open")
		c.reply(ex, errorReply, true)
		return
	}
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer func() {
		stop()
		_ = stream.Close()
	}()

	answered, err := c.consume(ex, stream)
	switch {
	case ex.aborted.Load():
		outcome = "cancelled"
	case answered:
		outcome = "answered"
		if err != nil {
			l.Warn().Err(err).Msg("stream ended with an error after the answer")
		}
	case err != nil:
		outcome = "stream_failed"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			l.Warn().Dur("timeout", c.opt.StreamTimeout).Msg("chat stream timed out")
		} else {
			l.Error().Err(err).Msg("chat stream failed")
		}
		c.reply(ex, errorReply, true)
	default:
		c.reply(ex, noAnswerReply, false)
	}
}

// consume reads until a terminal event or the end of the stream. The first
// answer longer than the threshold, counted in characters, wins; later ones
// are dropped.
func (c *chatUC) consume(ex *exchange, stream adapter.EventStream) (bool, error) {
	answered := false
	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return answered, nil
		}
		if err != nil {
			return answered, err
		}
		if ev.Type == "answer" && ev.Message != "" && !answered {
			a := ExtractAnswer(ev.Message)
			if utf8.RuneCountInString(strings.TrimSpace(a)) > c.opt.MinAnswerChars {
				answered = true
				c.observer.Thinking(false)
				c.reply(ex, a, false)
			}
		}
		if ev.Terminal() {
			return answered, nil
		}
	}
}

// reply appends an assistant turn unless the exchange is no longer current.
func (c *chatUC) reply(ex *exchange, text string, isError bool) {
	c.mu.Lock()
	if c.current != ex || ex.aborted.Load() {
		c.mu.Unlock()
		return
	}
	turn := c.session.AddTurn(model.RoleAssistant, text, isError, c.now())
	c.mu.Unlock()
	c.observer.TurnAdded(turn)
}

func (c *chatUC) setState(ex *exchange, s ChatState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != ex || ex.aborted.Load() {
		return false
	}
	c.state = s
	return true
}

// finish returns to Idle and re-enables input. It runs once per exchange.
func (c *chatUC) finish(ex *exchange, outcome string) {
	ex.cancel()
	c.mu.Lock()
	if c.current == ex {
		c.current = nil
		c.state = ChatIdle
	}
	c.mu.Unlock()

	metrics.IncChatExchange(outcome)
	c.log.Debug().Str("outcome", outcome).Msg("chat exchange finished")
	c.observer.Thinking(false)
	c.observer.InputEnabled(true)
	close(ex.done)
}

// Cancel aborts the exchange in flight, if any, and waits for it to unwind.
// No turn is appended for a cancelled exchange.
func (c *chatUC) Cancel() {
	c.mu.Lock()
	ex := c.current
	c.mu.Unlock()
	if ex == nil {
		return
	}
	ex.aborted.Store(true)
	ex.cancel()
	<-ex.done
}

// Wait blocks until the exchange in flight, if any, has finished.
func (c *chatUC) Wait() {
	c.mu.Lock()
	ex := c.current
	c.mu.Unlock()
	if ex != nil {
		<-ex.done
	}
}

func (c *chatUC) State() ChatState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *chatUC) Session() *model.ChatSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// NewConversation cancels any exchange, keeps an unsaved session with turns,
// and starts an empty unscoped one.
func (c *chatUC) NewConversation(ctx context.Context) {
	c.Cancel()
	c.autosave(ctx, "")
	c.mu.Lock()
	c.session = model.NewChatSession(c.now())
	c.mu.Unlock()
}

func (c *chatUC) SetScope(collectionIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Collections = append([]string{}, collectionIDs...)
	c.session.DocumentID = ""
}

func (c *chatUC) ScopeToDocument(documentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.DocumentID = documentID
	c.session.Collections = []string{}
}

// Save stores the current session and returns the stored copy.
func (c *chatUC) Save(ctx context.Context) (*model.ChatSession, error) {
	c.mu.Lock()
	snap := c.session.Clone()
	c.mu.Unlock()
	if err := c.saved.Save(ctx, snap); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.session.ID = snap.ID
	c.session.Title = snap.Title
	c.mu.Unlock()
	return snap, nil
}

func (c *chatUC) autosave(ctx context.Context, nextID string) {
	c.mu.Lock()
	keep := len(c.session.Turns) > 0 && (c.session.ID == "" || c.session.ID != nextID)
	c.mu.Unlock()
	if !keep {
		return
	}
	if _, err := c.Save(ctx); err != nil {
		c.log.Warn().Err(err).Msg("failed to save chat before switching")
	}
}

// Load switches to a saved session, saving the current one first.
func (c *chatUC) Load(ctx context.Context, id string) (*model.ChatSession, error) {
	s, err := c.saved.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Cancel()
	c.autosave(ctx, id)
	c.mu.Lock()
	c.session = s.Clone()
	c.mu.Unlock()
	return s, nil
}

func (c *chatUC) ToggleStar(ctx context.Context, id string) (bool, error) {
	starred, err := c.saved.ToggleStar(ctx, id)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	if c.session.ID == id {
		c.session.Starred = starred
	}
	c.mu.Unlock()
	return starred, nil
}

func (c *chatUC) Delete(ctx context.Context, id string) error {
	if err := c.saved.Delete(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	if c.session.ID == id {
		c.session.ID = ""
	}
	c.mu.Unlock()
	return nil
}

func (c *chatUC) History(ctx context.Context) ([]*model.ChatSession, error) {
	return c.saved.List(ctx)
}
