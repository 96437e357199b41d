// File: internal/infra/persist/job_store.go
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/repository"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/metrics"
)

var _ repository.JobStore = (*JobStore)(nil)

// jobRecord is the serialized projection of a Job. startTime is epoch
// milliseconds.
type jobRecord struct {
	ID         string           `json:"id"`
	Kind       model.JobKind    `json:"kind,omitempty"`
	Params     *model.JobParams `json:"data,omitempty"`
	StartTime  int64            `json:"startTime"`
	WorkflowID string           `json:"workflowId,omitempty"`
	RunID      string           `json:"runId,omitempty"`

	flatRecord
}

// flatRecord is the browser-era layout: parameters at the top level and no
// identifiers. It is read, never written.
type flatRecord struct {
	Capability      string `json:"capability,omitempty"`
	Framework       string `json:"framework,omitempty"`
	Scope           string `json:"scope,omitempty"`
	OverviewDetails string `json:"overviewDetails,omitempty"`
	AnalyticalRigor string `json:"analyticalRigor,omitempty"`
	Perspective     string `json:"perspective,omitempty"`
}

func (r jobRecord) params() model.JobParams {
	if r.Params != nil {
		return *r.Params
	}
	return model.JobParams{
		Capability: r.Capability,
		Framework:  r.Framework,
		Modifiers: model.Modifiers{
			Scope:           r.Scope,
			OverviewDetails: r.OverviewDetails,
			AnalyticalRigor: r.AnalyticalRigor,
			Perspective:     r.Perspective,
		},
	}
}

// JobStore persists the active job set under one key.
type JobStore struct {
	kv      repository.KVStore
	key     string
	ceiling time.Duration
	log     *zerolog.Logger
	now     func() time.Time
}

func NewJobStore(kv repository.KVStore, key string, ceiling time.Duration, logger *zerolog.Logger) *JobStore {
	l := logger.With().Str("component", "job_store").Logger()
	return &JobStore{kv: kv, key: key, ceiling: ceiling, log: &l, now: time.Now}
}

// Save writes every job. Failures are logged and swallowed.
func (s *JobStore) Save(ctx context.Context, jobs []*model.Job) {
	recs := make([]jobRecord, 0, len(jobs))
	for _, j := range jobs {
		params := j.Params
		recs = append(recs, jobRecord{
			ID:         j.ID,
			Kind:       j.Kind,
			Params:     &params,
			StartTime:  j.CreatedAt.UnixMilli(),
			WorkflowID: j.Run.WorkflowID,
			RunID:      j.Run.RunID,
		})
	}
	b, err := json.Marshal(recs)
	if err != nil {
		metrics.IncStoreError("encode")
		s.log.Error().Err(err).Msg("failed to encode jobs state")
		return
	}
	if err := s.kv.Set(ctx, s.key, string(b)); err != nil {
		s.log.Error().Err(err).Int("jobs", len(jobs)).Msg("failed to save jobs state")
	}
}

// Load returns persisted jobs in insertion order, dropping any older than the
// ceiling. An unreadable payload is cleared and treated as empty.
func (s *JobStore) Load(ctx context.Context) []*model.Job {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read jobs state")
		return nil
	}

	var recs []jobRecord
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		metrics.IncStoreError("decode")
		s.log.Warn().Err(err).Msg("jobs state unreadable; clearing")
		s.Clear(ctx)
		return nil
	}

	now := s.now()
	out := make([]*model.Job, 0, len(recs))
	for _, r := range recs {
		if r.StartTime <= 0 {
			continue
		}
		j := &model.Job{
			ID:        r.ID,
			Kind:      r.Kind,
			Params:    r.params(),
			CreatedAt: time.UnixMilli(r.StartTime),
			Run:       model.RunRef{WorkflowID: r.WorkflowID, RunID: r.RunID},
		}
		if j.Expired(now, s.ceiling) {
			s.log.Debug().Str("job_id", j.ID).Dur("age", j.Age(now)).Msg("dropping expired job record")
			continue
		}
		if j.ID == "" {
			j.ID = model.NewJob(j.Kind, j.Params, j.Run, j.CreatedAt).ID
		}
		if j.Kind == "" {
			j.Kind = model.JobKindResearch
		}
		if !j.Run.Valid() {
			j.Run = model.RunRef{}
		}
		out = append(out, j)
	}
	return out
}

// Clear removes the key entirely.
func (s *JobStore) Clear(ctx context.Context) {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		s.log.Error().Err(err).Msg("failed to clear jobs state")
	}
}
