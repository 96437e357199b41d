package usecase

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/adapter"
)

var nopLog = zerolog.Nop()

// ---- shared call recorder ----

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(s string) int {
	n := 0
	for _, c := range r.list() {
		if c == s {
			n++
		}
	}
	return n
}

// ---- vendor runs ----

type fakeRuns struct {
	mu       sync.Mutex
	execErr  error
	ref      model.RunRef
	requests []adapter.ExecuteRequest
	statuses []string // consumed in order; the last one repeats
	statusFn func() (string, error)
	polls    int
	stream   adapter.EventStream
	openErr  error
	execHook func(ctx context.Context) error
}

func (f *fakeRuns) ExecuteAsync(ctx context.Context, req adapter.ExecuteRequest) (model.RunRef, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	hook := f.execHook
	ref, err := f.ref, f.execErr
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return model.RunRef{}, err
		}
	}
	return ref, err
}

func (f *fakeRuns) RunStatus(ctx context.Context, ref model.RunRef) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.statusFn != nil {
		return f.statusFn()
	}
	if len(f.statuses) == 0 {
		return "running", nil
	}
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}

func (f *fakeRuns) StreamRun(ctx context.Context, ref model.RunRef, since time.Time) (adapter.EventStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

func (f *fakeRuns) execCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeRuns) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func (f *fakeRuns) lastRequest() adapter.ExecuteRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// ---- event stream ----

var errStreamClosed = errors.New("stream closed")

// fakeStream replays events, then either ends, fails, or blocks until closed.
type fakeStream struct {
	mu     sync.Mutex
	events []adapter.StreamEvent
	endErr error
	block  bool
	closed chan struct{}
	once   sync.Once
	closes int
}

func newStream(events ...adapter.StreamEvent) *fakeStream {
	return &fakeStream{events: events, closed: make(chan struct{})}
}

func (s *fakeStream) Next() (adapter.StreamEvent, error) {
	s.mu.Lock()
	if len(s.events) > 0 {
		ev := s.events[0]
		s.events = s.events[1:]
		s.mu.Unlock()
		return ev, nil
	}
	block, endErr := s.block, s.endErr
	s.mu.Unlock()
	if block {
		<-s.closed
		return adapter.StreamEvent{}, errStreamClosed
	}
	if endErr != nil {
		return adapter.StreamEvent{}, endErr
	}
	return adapter.StreamEvent{}, io.EOF
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	s.once.Do(func() { close(s.closed) })
	return nil
}

// ---- document library ----

type fakeLibrary struct {
	mu        sync.Mutex
	count     int
	refreshes int
	grow      map[int]int // refresh number -> documents added
	rec       *recorder
	err       error
}

func (l *fakeLibrary) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func (l *fakeLibrary) Refresh(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refreshes++
	if l.rec != nil {
		l.rec.add("refresh")
	}
	if l.err != nil {
		return l.count, l.err
	}
	l.count += l.grow[l.refreshes]
	return l.count, nil
}

func (l *fakeLibrary) refreshCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refreshes
}

// ---- job store / history ----

type memJobStore struct {
	mu    sync.Mutex
	saved []*model.Job
	saves int
	load  []*model.Job
}

func (m *memJobStore) Save(ctx context.Context, jobs []*model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.saved = nil
	for _, j := range jobs {
		cp := *j
		m.saved = append(m.saved, &cp)
	}
}

func (m *memJobStore) Load(ctx context.Context) []*model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load
}

func (m *memJobStore) Clear(ctx context.Context) {}

func (m *memJobStore) savedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.saved))
	for _, j := range m.saved {
		ids = append(ids, j.ID)
	}
	return ids
}

type memHistory struct {
	mu      sync.Mutex
	entries []model.HistoryEntry
	err     error
}

func (m *memHistory) Append(ctx context.Context, e model.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memHistory) List(ctx context.Context) ([]model.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.HistoryEntry(nil), m.entries...), m.err
}

// ---- notifiers ----

type recordingNotifier struct {
	mu       sync.Mutex
	counts   []int
	finished []model.CompletionEvent
	rec      *recorder
	done     chan model.CompletionEvent
}

func newNotifier(rec *recorder) *recordingNotifier {
	return &recordingNotifier{rec: rec, done: make(chan model.CompletionEvent, 16)}
}

func (n *recordingNotifier) ActiveJobsChanged(c int) {
	n.mu.Lock()
	n.counts = append(n.counts, c)
	n.mu.Unlock()
}

func (n *recordingNotifier) JobFinished(job model.Job, ev model.CompletionEvent) {
	n.mu.Lock()
	n.finished = append(n.finished, ev)
	n.mu.Unlock()
	if n.rec != nil {
		n.rec.add("complete")
	}
	n.done <- ev
}

func (n *recordingNotifier) lastCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.counts) == 0 {
		return -1
	}
	return n.counts[len(n.counts)-1]
}

func (n *recordingNotifier) finishedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.finished)
}

type recordingObserver struct {
	mu       sync.Mutex
	enabled  []bool
	turns    []model.ChatTurn
	thinking []bool
}

func (o *recordingObserver) InputEnabled(e bool) {
	o.mu.Lock()
	o.enabled = append(o.enabled, e)
	o.mu.Unlock()
}

func (o *recordingObserver) TurnAdded(t model.ChatTurn) {
	o.mu.Lock()
	o.turns = append(o.turns, t)
	o.mu.Unlock()
}

func (o *recordingObserver) Thinking(on bool) {
	o.mu.Lock()
	o.thinking = append(o.thinking, on)
	o.mu.Unlock()
}

func (o *recordingObserver) enables() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, e := range o.enabled {
		if e {
			n++
		}
	}
	return n
}

// ---- watcher that records calls (controller tests) ----

type fakeWatcher struct {
	mu      sync.Mutex
	watched []string
	forgot  []string
}

func (w *fakeWatcher) Watch(job model.Job) {
	w.mu.Lock()
	w.watched = append(w.watched, job.ID)
	w.mu.Unlock()
}

func (w *fakeWatcher) Forget(id string) {
	w.mu.Lock()
	w.forgot = append(w.forgot, id)
	w.mu.Unlock()
}

// ---- key-value store ----

type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV { return &memKV{data: map[string]string{}} }

func (m *memKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memKV) Close() error { return nil }

// ---- object store ----

type fakeObjects struct {
	mu       sync.Mutex
	objects  []model.ContentObject
	full     map[string]model.ContentObject
	files    map[string]string // download file ref -> text
	deleted  []string
	uploaded []byte
	created  []adapter.NewObject
	listErr  error
}

func (f *fakeObjects) ListObjects(ctx context.Context, limit int) ([]model.ContentObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := append([]model.ContentObject(nil), f.objects...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeObjects) GetObject(ctx context.Context, id string) (model.ContentObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.full[id]; ok {
		return o, nil
	}
	for _, o := range f.objects {
		if o.ID == id {
			return o, nil
		}
	}
	return model.ContentObject{}, domain.ErrNotFound
}

func (f *fakeObjects) CreateObject(ctx context.Context, obj adapter.NewObject) (model.ContentObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, obj)
	o := model.ContentObject{ID: "new-" + obj.Name, Name: obj.Name, Properties: obj.Properties}
	f.objects = append(f.objects, o)
	return o, nil
}

func (f *fakeObjects) DeleteObject(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	kept := f.objects[:0]
	for _, o := range f.objects {
		if o.ID != id {
			kept = append(kept, o)
		}
	}
	f.objects = kept
	return nil
}

func (f *fakeObjects) DownloadURL(ctx context.Context, file string) (string, error) {
	return "https://signed/" + file, nil
}

func (f *fakeObjects) FetchText(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.files[url[len("https://signed/"):]]
	if !ok {
		return "", domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeObjects) UploadFile(ctx context.Context, name, mimeType string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append([]byte(nil), data...)
	return "file-1", nil
}

// ---- pulse state ----

type memPulseState struct {
	mu      sync.Mutex
	last    time.Time
	uploads []time.Time
}

func (m *memPulseState) LastGeneration(ctx context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, nil
}

func (m *memPulseState) SetLastGeneration(ctx context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = t
	return nil
}

func (m *memPulseState) ClearLastGeneration(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = time.Time{}
	return nil
}

func (m *memPulseState) Uploads(ctx context.Context) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.uploads...), nil
}

func (m *memPulseState) SetUploads(ctx context.Context, ts []time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append([]time.Time(nil), ts...)
	return nil
}

// ---- saved chats ----

type memChats struct {
	mu    sync.Mutex
	items []*model.ChatSession
	seq   int
}

func (m *memChats) List(ctx context.Context) ([]*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.ChatSession(nil), m.items...), nil
}

func (m *memChats) Get(ctx context.Context, id string) (*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.items {
		if s.ID == id {
			return s.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memChats) Save(ctx context.Context, s *model.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		m.seq++
		s.ID = "chat_" + string(rune('a'+m.seq))
	}
	s.Title = s.DeriveTitle()
	for i, cur := range m.items {
		if cur.ID == s.ID {
			m.items[i] = s.Clone()
			return nil
		}
	}
	m.items = append([]*model.ChatSession{s.Clone()}, m.items...)
	return nil
}

func (m *memChats) ToggleStar(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.items {
		if s.ID == id {
			s.Starred = !s.Starred
			return s.Starred, nil
		}
	}
	return false, domain.ErrNotFound
}

func (m *memChats) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.items {
		if s.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}
