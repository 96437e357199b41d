package model

import (
	"time"

	"github.com/google/uuid"
)

type JobKind string

const (
	JobKindResearch   JobKind = "research"
	JobKindFollowUp   JobKind = "follow_up"
	JobKindWhiteLabel JobKind = "white_label"
)

// RunRef is the (workflowId, runId) pair the vendor may return from a dispatch.
type RunRef struct {
	WorkflowID string `json:"workflow_id,omitempty"`
	RunID      string `json:"run_id,omitempty"`
}

// Valid reports whether both identifiers are present.
func (r RunRef) Valid() bool {
	return r.WorkflowID != "" && r.RunID != ""
}

// Modifiers are the research parameter toggles chosen in the UI.
type Modifiers struct {
	Scope           string `json:"scope,omitempty"`
	OverviewDetails string `json:"overviewDetails,omitempty"`
	AnalyticalRigor string `json:"analyticalRigor,omitempty"`
	Perspective     string `json:"perspective,omitempty"`
}

// JobParams is the parameter bag submitted with a generation request. The job
// core never interprets it; it is forwarded to the vendor and echoed to the
// research history log.
type JobParams struct {
	Capability       string    `json:"capability,omitempty"`
	Framework        string    `json:"framework,omitempty"`
	Context          string    `json:"context,omitempty"`
	Modifiers        Modifiers `json:"modifiers"`
	ParentDocumentID string    `json:"parent_document_id,omitempty"`

	// white label synthesis
	DocumentIDs   []string `json:"document_ids,omitempty"`
	Justification string   `json:"justification,omitempty"`
	Length        string   `json:"length,omitempty"`
}

// IsFollowUp reports whether the request continues an existing document.
func (p JobParams) IsFollowUp() bool {
	return p.ParentDocumentID != ""
}

// Job is one outstanding generation request.
type Job struct {
	ID        string
	Kind      JobKind
	Params    JobParams
	CreatedAt time.Time
	Run       RunRef
}

func NewJob(kind JobKind, params JobParams, run RunRef, now time.Time) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Params:    params,
		CreatedAt: now,
		Run:       run,
	}
}

// HasRun reports whether the job can be tracked by status polling.
func (j *Job) HasRun() bool {
	return j.Run.Valid()
}

func (j *Job) Age(now time.Time) time.Duration {
	return now.Sub(j.CreatedAt)
}

// Expired reports whether the job has outlived the absolute ceiling.
func (j *Job) Expired(now time.Time, ceiling time.Duration) bool {
	return j.Age(now) > ceiling
}

// Deadline is the instant the ceiling is reached.
func (j *Job) Deadline(ceiling time.Duration) time.Time {
	return j.CreatedAt.Add(ceiling)
}
