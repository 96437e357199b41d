// File: internal/domain/ports/adapter/vertesia.go
package adapter

import (
	"context"
	"time"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
)

// ExecuteRequest starts one asynchronous interaction run.
type ExecuteRequest struct {
	Interaction string
	Data        map[string]any
	Interactive bool
}

// StreamEvent is one decoded record of a run's event stream.
type StreamEvent struct {
	Type         string `json:"type"`
	Message      string `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Terminal reports whether the event is an end-of-stream signal.
func (e StreamEvent) Terminal() bool {
	return e.Type == "finish" || e.Message == "stream_end" || e.FinishReason == "stop"
}

// EventStream yields events until io.EOF; Close releases the connection.
type EventStream interface {
	Next() (StreamEvent, error)
	Close() error
}

// RunAPI is the port for dispatching and tracking vendor runs.
type RunAPI interface {
	// ExecuteAsync may return a zero RunRef; that is a supported outcome.
	ExecuteAsync(ctx context.Context, req ExecuteRequest) (model.RunRef, error)
	RunStatus(ctx context.Context, ref model.RunRef) (string, error)
	StreamRun(ctx context.Context, ref model.RunRef, since time.Time) (EventStream, error)
}

// NewObject is the payload for creating a content object.
// Text is the content source: inline text or an uploaded file id.
type NewObject struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Type        string         `json:"type,omitempty"`
	Text        string         `json:"text,omitempty"`
	ContentName string         `json:"content_name,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// ObjectStore is the port for the vendor's content object library.
type ObjectStore interface {
	ListObjects(ctx context.Context, limit int) ([]model.ContentObject, error)
	GetObject(ctx context.Context, id string) (model.ContentObject, error)
	CreateObject(ctx context.Context, obj NewObject) (model.ContentObject, error)
	DeleteObject(ctx context.Context, id string) error
	DownloadURL(ctx context.Context, file string) (string, error)
	FetchText(ctx context.Context, url string) (string, error)
	// UploadFile stores raw bytes and returns the file id to use as a
	// content source.
	UploadFile(ctx context.Context, name, mimeType string, data []byte) (string, error)
}

type MemberAction string

const (
	MemberAdd    MemberAction = "add"
	MemberRemove MemberAction = "delete"
)

// CollectionStore manages static collections and their members.
type CollectionStore interface {
	SearchCollections(ctx context.Context) ([]model.Collection, error)
	CollectionMembers(ctx context.Context, collectionID string) ([]string, error)
	CreateCollection(ctx context.Context, name, description string) (model.Collection, error)
	DeleteCollection(ctx context.Context, collectionID string) error
	UpdateMembers(ctx context.Context, collectionID string, action MemberAction, docIDs []string) error
}
