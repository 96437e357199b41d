// File: internal/domain/ports/adapter/notifier.go
package adapter

import "github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"

// JobNotifier receives job lifecycle updates. Implementations must not block.
type JobNotifier interface {
	ActiveJobsChanged(n int)
	JobFinished(job model.Job, ev model.CompletionEvent)
}

// ChatObserver receives chat UI updates.
type ChatObserver interface {
	InputEnabled(enabled bool)
	TurnAdded(turn model.ChatTurn)
	Thinking(on bool)
}

// NopJobNotifier discards all updates.
type NopJobNotifier struct{}

func (NopJobNotifier) ActiveJobsChanged(int) {}

func (NopJobNotifier) JobFinished(model.Job, model.CompletionEvent) {}

// NopChatObserver discards all updates.
type NopChatObserver struct{}

func (NopChatObserver) InputEnabled(bool)        {}
func (NopChatObserver) TurnAdded(model.ChatTurn) {}
func (NopChatObserver) Thinking(bool)            {}
