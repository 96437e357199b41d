// File: internal/usecase/pulse_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/adapter"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/repository"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/metrics"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/worker"
)

const (
	pulseLockKey       = "scout:pulse:generate"
	watchlistPrefix    = "My Watchlist:"
	minDigestChars     = 20
	uploadRetention    = 48 * time.Hour
	watchlistScanLimit = 100
)

type PulseOptions struct {
	Interaction      string
	Gate             time.Duration
	GenerationWait   time.Duration
	UploadSettle     time.Duration
	Keywords         []string
	MaxUploadsPerDay int
}

// PulseUC drives Portfolio Pulse digest generation and watchlist uploads.
type PulseUC struct {
	runs    adapter.RunAPI
	objects adapter.ObjectStore
	state   repository.PulseStateRepository
	lock    repository.Locker
	pool    *worker.Pool
	opt     PulseOptions
	log     *zerolog.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error

	mu      sync.RWMutex
	digests []model.Digest

	// base scopes post-upload generations; Close cancels it.
	base   context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup
}

func NewPulseUseCase(
	runs adapter.RunAPI,
	objects adapter.ObjectStore,
	state repository.PulseStateRepository,
	lock repository.Locker,
	pool *worker.Pool,
	opt PulseOptions,
	logger *zerolog.Logger,
) *PulseUC {
	if opt.Gate <= 0 {
		opt.Gate = 12 * time.Hour
	}
	if opt.MaxUploadsPerDay <= 0 {
		opt.MaxUploadsPerDay = 2
	}
	if len(opt.Keywords) == 0 {
		opt.Keywords = []string{"digest", "pulse", "portfolio pulse"}
	}
	if lock == nil {
		lock = NewLocalLocker()
	}
	l := logger.With().Str("component", "pulse_uc").Logger()
	base, cancel := context.WithCancel(context.Background())
	return &PulseUC{
		base:    base,
		cancel:  cancel,
		runs:    runs,
		objects: objects,
		state:   state,
		lock:    lock,
		pool:    pool,
		opt:     opt,
		log:     &l,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CanGenerate reports whether the gate is open, and otherwise how long until
// it opens. An unreadable gate counts as open.
func (p *PulseUC) CanGenerate(ctx context.Context) (bool, time.Duration) {
	last, err := p.state.LastGeneration(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("generation gate unreadable; treating as open")
		return true, 0
	}
	if last.IsZero() {
		return true, 0
	}
	left := p.opt.Gate - p.now().Sub(last)
	if left <= 0 {
		return true, 0
	}
	return false, left
}

// Generate asks the Pulse interaction for a new digest, waits for it to land
// and reloads the digest list. The gate closes before the dispatch, so a
// failed dispatch still counts.
func (p *PulseUC) Generate(ctx context.Context) error {
	if ok, left := p.CanGenerate(ctx); !ok {
		metrics.IncPulseGeneration("gated")
		p.log.Info().Dur("remaining", left).Msg("generation blocked by gate")
		return fmt.Errorf("%w: %s remaining", domain.ErrGenerationGated, formatRemaining(left))
	}

	token, err := p.lock.TryLock(ctx, pulseLockKey, p.opt.GenerationWait+time.Minute)
	if errors.Is(err, domain.ErrLockHeld) {
		metrics.IncPulseGeneration("in_progress")
		return domain.ErrGenerationInProgress
	}
	if err != nil {
		return fmt.Errorf("acquire generation lock: %w", err)
	}
	defer func() {
		if err := p.lock.Unlock(context.WithoutCancel(ctx), pulseLockKey, token); err != nil {
			p.log.Warn().Err(err).Msg("failed to release generation lock")
		}
	}()

	if err := p.state.SetLastGeneration(ctx, p.now()); err != nil {
		p.log.Error().Err(err).Msg("failed to close generation gate")
	}
	if _, err := p.runs.ExecuteAsync(ctx, adapter.ExecuteRequest{
		Interaction: p.opt.Interaction,
		Data:        map[string]any{"Task": "begin"},
	}); err != nil {
		metrics.IncPulseGeneration("failed")
		p.log.Error().Err(err).Msg("pulse dispatch failed")
		return fmt.Errorf("%w: %v", domain.ErrDispatchFailed, err)
	}
	metrics.IncPulseGeneration("dispatched")
	p.log.Info().Dur("wait", p.opt.GenerationWait).Msg("pulse generation dispatched")

	if err := p.sleep(ctx, p.opt.GenerationWait); err != nil {
		return err
	}
	_, err = p.LoadDigests(ctx)
	return err
}

func formatRemaining(d time.Duration) string {
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

func (p *PulseUC) isDigest(o model.ContentObject) bool {
	text := strings.ToLower(o.Name + " " + o.Prop("title"))
	for _, k := range p.opt.Keywords {
		if strings.Contains(text, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// LoadDigests fetches every digest object, newest first. Digests whose text
// cannot be resolved or is too short are skipped.
func (p *PulseUC) LoadDigests(ctx context.Context) ([]model.Digest, error) {
	objs, err := p.objects.ListObjects(ctx, libraryPageSize)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	var candidates []model.ContentObject
	for _, o := range objs {
		if p.isDigest(o) {
			candidates = append(candidates, o)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})

	slots := make([]*model.Digest, len(candidates))
	batch := p.pool.Batch()
	var submitErr error
	for i := range candidates {
		i := i
		if submitErr = batch.Submit(ctx, func(ctx context.Context) error {
			d, err := p.loadDigest(ctx, candidates[i])
			if err != nil {
				return err
			}
			slots[i] = d
			return nil
		}); submitErr != nil {
			break
		}
	}
	err = batch.Wait()
	if submitErr != nil {
		return nil, submitErr
	}
	if err != nil {
		p.log.Warn().Err(err).Msg("some digests failed to load")
	}

	out := make([]model.Digest, 0, len(slots))
	for _, d := range slots {
		if d != nil {
			out = append(out, *d)
		}
	}
	p.mu.Lock()
	p.digests = out
	p.mu.Unlock()
	p.log.Debug().Int("digests", len(out)).Msg("digests loaded")
	return out, nil
}

func (p *PulseUC) loadDigest(ctx context.Context, o model.ContentObject) (*model.Digest, error) {
	full, err := p.objects.GetObject(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("get digest %s: %w", o.ID, err)
	}
	text, err := p.resolveText(ctx, full.Content.Source)
	if err != nil {
		return nil, fmt.Errorf("digest %s content: %w", o.ID, err)
	}
	if len(strings.TrimSpace(text)) < minDigestChars {
		return nil, nil
	}
	title, articles := ParseDigest(text)
	created := full.CreatedAt
	if created.IsZero() {
		created = o.CreatedAt
	}
	if created.IsZero() {
		created = p.now()
	}
	return &model.Digest{ID: o.ID, Title: title, Content: text, Articles: articles, CreatedAt: created}, nil
}

// resolveText returns inline text, or downloads storage URIs and file
// references.
func (p *PulseUC) resolveText(ctx context.Context, src any) (string, error) {
	switch v := src.(type) {
	case string:
		if strings.HasPrefix(v, "gs://") || strings.HasPrefix(v, "s3://") {
			return p.download(ctx, v)
		}
		return v, nil
	case map[string]any:
		for _, k := range []string{"file", "store", "path", "key"} {
			if ref, ok := v[k].(string); ok && ref != "" {
				return p.download(ctx, ref)
			}
		}
		return "", errors.New("file reference without a location")
	default:
		return "", nil
	}
}

func (p *PulseUC) download(ctx context.Context, file string) (string, error) {
	u, err := p.objects.DownloadURL(ctx, file)
	if err != nil {
		return "", err
	}
	return p.objects.FetchText(ctx, u)
}

// Digests returns the last loaded digests, newest first.
func (p *PulseUC) Digests() []model.Digest {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]model.Digest(nil), p.digests...)
}

func isWatchlist(o model.ContentObject) bool {
	return strings.HasPrefix(o.Name, watchlistPrefix) || o.Prop("type") == "watchlist"
}

// HasWatchlist reports whether a watchlist object exists. Lookup failures
// count as no watchlist.
func (p *PulseUC) HasWatchlist(ctx context.Context) bool {
	objs, err := p.objects.ListObjects(ctx, watchlistScanLimit)
	if err != nil {
		p.log.Warn().Err(err).Msg("watchlist lookup failed")
		return false
	}
	for _, o := range objs {
		if isWatchlist(o) {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// CheckAndGenerateIfNeeded generates when the newest digest is not from
// today, or when there is no digest but a watchlist exists.
func (p *PulseUC) CheckAndGenerateIfNeeded(ctx context.Context) error {
	digests := p.Digests()
	if len(digests) == 0 {
		loaded, err := p.LoadDigests(ctx)
		if err != nil {
			p.log.Warn().Err(err).Msg("digest load failed")
		}
		digests = loaded
	}
	if len(digests) == 0 {
		if !p.HasWatchlist(ctx) {
			p.log.Info().Msg("no digest and no watchlist; waiting for upload")
			return nil
		}
		return p.Generate(ctx)
	}
	if sameDay(digests[0].CreatedAt, p.now()) {
		return nil
	}
	return p.Generate(ctx)
}

func (p *PulseUC) uploadsToday(ctx context.Context) int {
	ups, err := p.state.Uploads(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("upload record unreadable")
		return 0
	}
	now := p.now()
	n := 0
	for _, t := range ups {
		if sameDay(t, now) {
			n++
		}
	}
	return n
}

// CanUploadWatchlist reports whether today's upload allowance has room and
// how many uploads remain.
func (p *PulseUC) CanUploadWatchlist(ctx context.Context) (bool, int) {
	left := p.opt.MaxUploadsPerDay - p.uploadsToday(ctx)
	if left < 0 {
		left = 0
	}
	return left > 0, left
}

// RecordWatchlistUpload appends now and prunes entries older than two days.
func (p *PulseUC) RecordWatchlistUpload(ctx context.Context) error {
	ups, err := p.state.Uploads(ctx)
	if err != nil {
		ups = nil
	}
	now := p.now()
	ups = append(ups, now)
	kept := ups[:0]
	for _, t := range ups {
		if now.Sub(t) < uploadRetention {
			kept = append(kept, t)
		}
	}
	return p.state.SetUploads(ctx, kept)
}

// ResetGate reopens generation immediately.
func (p *PulseUC) ResetGate(ctx context.Context) error {
	return p.state.ClearLastGeneration(ctx)
}

// Watchlist is an uploaded holdings file.
type Watchlist struct {
	FileName string
	MimeType string
	Data     []byte
}

// UploadWatchlist replaces the current watchlist, drops today's digests,
// reopens the gate and schedules a generation after the settle delay.
func (p *PulseUC) UploadWatchlist(ctx context.Context, w Watchlist) (model.ContentObject, error) {
	if ok, _ := p.CanUploadWatchlist(ctx); !ok {
		return model.ContentObject{}, domain.ErrUploadLimit
	}
	if len(w.Data) == 0 {
		return model.ContentObject{}, fmt.Errorf("%w: empty watchlist", domain.ErrInvalidArgument)
	}
	if w.MimeType == "" {
		w.MimeType = "application/octet-stream"
	}

	objs, err := p.objects.ListObjects(ctx, libraryPageSize)
	if err != nil {
		return model.ContentObject{}, fmt.Errorf("list objects: %w", err)
	}
	now := p.now()
	for _, o := range objs {
		todaysDigest := strings.HasPrefix(strings.ToLower(o.Name), "digest:") && sameDay(o.CreatedAt, now)
		if !isWatchlist(o) && !todaysDigest {
			continue
		}
		if err := p.objects.DeleteObject(ctx, o.ID); err != nil {
			p.log.Warn().Err(err).Str("object_id", o.ID).Msg("failed to delete object")
		}
	}

	name := watchlistPrefix + " " + now.Format("01-02-2006")
	fileID, err := p.objects.UploadFile(ctx, name, w.MimeType, w.Data)
	if err != nil {
		return model.ContentObject{}, fmt.Errorf("upload watchlist: %w", err)
	}
	obj, err := p.objects.CreateObject(ctx, adapter.NewObject{
		Name:        name,
		Description: "Portfolio Pulse watchlist",
		Type:        w.MimeType,
		Text:        fileID,
		ContentName: w.FileName,
		Properties: map[string]any{
			"type":              "watchlist",
			"uploaded_at":       now.UTC().Format(time.RFC3339),
			"original_filename": w.FileName,
		},
	})
	if err != nil {
		return model.ContentObject{}, fmt.Errorf("create watchlist object: %w", err)
	}

	if err := p.RecordWatchlistUpload(ctx); err != nil {
		p.log.Error().Err(err).Msg("failed to record watchlist upload")
	}
	if err := p.ResetGate(ctx); err != nil {
		p.log.Error().Err(err).Msg("failed to reset generation gate")
	}
	p.log.Info().Str("object_id", obj.ID).Msg("watchlist uploaded")

	// The request context ends with the response; the generation outlives it
	// but not Close.
	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(p.base, cancel)
	p.bg.Add(1)
	go func() {
		defer p.bg.Done()
		defer stop()
		defer cancel()
		if err := p.sleep(bg, p.opt.UploadSettle); err != nil {
			return
		}
		if err := p.Generate(bg); err != nil {
			p.log.Warn().Err(err).Msg("post-upload generation did not run")
		}
	}()
	return obj, nil
}

// Wait blocks until background generations started by uploads return.
func (p *PulseUC) Wait() {
	p.bg.Wait()
}

// Close cancels pending post-upload generations and waits for them to exit.
func (p *PulseUC) Close() {
	p.cancel()
	p.bg.Wait()
}
