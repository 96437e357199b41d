package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/config"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/adapter"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/metrics"
)

var _ adapter.JobNotifier = (*Notifier)(nil)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

const queueSize = 32

// Notifier posts a message to one chat when a job finishes. Sends happen on a
// background goroutine; when the queue is full the message is dropped.
type Notifier struct {
	bot    Sender
	chatID int64
	log    *zerolog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan string
	wg     sync.WaitGroup
}

// NewNotifier connects to the Bot API with the configured token.
func NewNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (*Notifier, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return NewNotifierWithSender(bot, cfg.ChatID, logger), nil
}

func NewNotifierWithSender(bot Sender, chatID int64, logger *zerolog.Logger) *Notifier {
	l := logger.With().Str("component", "telegram_notifier").Int64("chat_id", chatID).Logger()
	return &Notifier{bot: bot, chatID: chatID, log: &l, queue: make(chan string, queueSize)}
}

// Start runs the send loop until ctx is done or Close is called.
func (n *Notifier) Start(ctx context.Context) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case text, ok := <-n.queue:
				if !ok {
					return
				}
				n.send(text)
			}
		}
	}()
}

// Close stops accepting messages and waits for queued ones to be sent.
func (n *Notifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	n.wg.Wait()
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.bot.Send(msg); err != nil {
		metrics.IncNotification("telegram", "error")
		n.log.Warn().Err(err).Msg("failed to send job notification")
		return
	}
	metrics.IncNotification("telegram", "sent")
}

func (n *Notifier) ActiveJobsChanged(int) {}

func (n *Notifier) JobFinished(job model.Job, ev model.CompletionEvent) {
	text := FormatJobFinished(job, ev)
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		metrics.IncNotification("telegram", "dropped")
		return
	}
	select {
	case n.queue <- text:
	default:
		metrics.IncNotification("telegram", "dropped")
		n.log.Warn().Str("job_id", job.ID).Msg("notification queue full; dropped")
	}
}

// FormatJobFinished renders the chat message for a finished job.
func FormatJobFinished(job model.Job, ev model.CompletionEvent) string {
	var b strings.Builder
	switch ev.Outcome {
	case model.OutcomeFailed:
		b.WriteString("❌ *Research failed*\n")
	case model.OutcomeExpired:
		b.WriteString("⌛ *Research timed out*\n")
	default:
		b.WriteString("✅ *Research ready*\n")
	}
	subject := job.Params.Capability
	if job.Kind == model.JobKindFollowUp {
		subject = "Follow-up research"
	}
	if subject == "" {
		subject = string(job.Kind)
	}
	b.WriteString(subject)
	if job.Params.Framework != "" && job.Kind != model.JobKindFollowUp {
		b.WriteString(" / " + job.Params.Framework)
	}
	b.WriteByte('\n')
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	fmt.Fprintf(&b, "Took %s (%s)", job.Age(at).Round(time.Second), ev.Source)
	return b.String()
}
