package model

import (
	"sort"
	"strings"
	"time"
)

// ContentObject is a raw object from the vendor's content store.
type ContentObject struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
	Content    ObjectContent  `json:"content"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ObjectContent.Source is either inline text, a storage URI, or an object
// carrying a file reference.
type ObjectContent struct {
	Source any    `json:"source,omitempty"`
	Type   string `json:"type,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Prop returns a string property, or "" when absent.
func (o ContentObject) Prop(key string) string {
	if o.Properties == nil {
		return ""
	}
	if s, ok := o.Properties[key].(string); ok {
		return s
	}
	return ""
}

// Document is a library entry as shown to the user.
type Document struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Area          string    `json:"area"`
	Topic         string    `json:"topic"`
	CreatedAt     time.Time `json:"created_at"`
	ContentSource any       `json:"content_source,omitempty"`
}

var titlePrefixes = []string{"DeepResearch_", "Deep Research_", "deep research_", "DEEP RESEARCH_", "DEEP RESEARCH:"}

// DocumentFromObject strips generator prefixes and separators from the name.
func DocumentFromObject(o ContentObject, now time.Time) Document {
	title := o.Name
	if title == "" {
		title = "Untitled"
	}
	for _, p := range titlePrefixes {
		title = strings.TrimPrefix(title, p)
	}
	title = strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(title))

	created := o.CreatedAt
	if created.IsZero() {
		if ts, err := time.Parse(time.RFC3339, o.Prop("generated_at")); err == nil {
			created = ts
		} else {
			created = now
		}
	}
	area := o.Prop("capability")
	if area == "" {
		area = "Research"
	}
	topic := o.Prop("framework")
	if topic == "" {
		topic = "General"
	}
	return Document{
		ID:            o.ID,
		Title:         title,
		Area:          area,
		Topic:         topic,
		CreatedAt:     created,
		ContentSource: o.Content.Source,
	}
}

// SortNewestFirst orders documents by creation time, descending.
func SortNewestFirst(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
}

// Collection is a named static grouping of documents.
type Collection struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	MemberIDs   []string `json:"member_ids,omitempty"`
}

// Digest is a Portfolio Pulse document with its resolved text.
type Digest struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Articles  []DigestArticle `json:"articles,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type DigestArticle struct {
	Title     string     `json:"title"`
	Points    []string   `json:"points"`
	Citations []Citation `json:"citations,omitempty"`
}

type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// HistoryEntry is one line of the unbounded research submission log.
type HistoryEntry struct {
	Timestamp        time.Time `json:"timestamp"`
	Capability       string    `json:"capability"`
	Framework        string    `json:"framework"`
	Context          string    `json:"context"`
	Modifiers        Modifiers `json:"modifiers"`
	ParentDocumentID string    `json:"parent_document_id,omitempty"`
	IsFollowUp       bool      `json:"is_followup,omitempty"`
}

func NewHistoryEntry(p JobParams, now time.Time) HistoryEntry {
	return HistoryEntry{
		Timestamp:        now,
		Capability:       p.Capability,
		Framework:        p.Framework,
		Context:          p.Context,
		Modifiers:        p.Modifiers,
		ParentDocumentID: p.ParentDocumentID,
		IsFollowUp:       p.IsFollowUp(),
	}
}
