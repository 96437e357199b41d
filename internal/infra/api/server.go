package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	uport "github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/usecase"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/usecase"
)

// Pulse is the digest surface the API exposes.
type Pulse interface {
	CanGenerate(ctx context.Context) (bool, time.Duration)
	Generate(ctx context.Context) error
	Digests() []model.Digest
	CanUploadWatchlist(ctx context.Context) (bool, int)
	UploadWatchlist(ctx context.Context, w usecase.Watchlist) (model.ContentObject, error)
}

// History is the research log export surface.
type History interface {
	Entries(ctx context.Context) ([]model.HistoryEntry, error)
	Markdown(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	FileName(ext string) string
}

// Collections is the collection cache plus its vendor-side mutations.
type Collections interface {
	Collections() []model.Collection
	Create(ctx context.Context, name, description string) (model.Collection, error)
	Delete(ctx context.Context, id string) error
	AddDocuments(ctx context.Context, id string, docIDs []string) error
	RemoveDocuments(ctx context.Context, id string, docIDs []string) error
}

// Deps are the use cases behind the routes. Pulse and Collections may be nil.
type Deps struct {
	Research    usecase.ResearchUseCase
	Chat        usecase.ChatUseCase
	Library     uport.DocumentCatalog
	Collections Collections
	Pulse       Pulse
	History     History
	Hub         *Hub
}

type Server struct {
	deps    Deps
	log     *zerolog.Logger
	timeout time.Duration

	base   context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup
}

func NewServer(deps Deps, timeout time.Duration, logger *zerolog.Logger) *Server {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	l := logger.With().Str("component", "api").Logger()
	base, cancel := context.WithCancel(context.Background())
	return &Server{deps: deps, log: &l, timeout: timeout, base: base, cancel: cancel}
}

// Router returns the full route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	if s.deps.Hub != nil {
		r.Handle("/ws", s.deps.Hub)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Timeout(s.timeout))

		r.Post("/research", s.startResearch)
		r.Post("/white-label", s.startWhiteLabel)
		r.Get("/jobs", s.listJobs)
		r.Delete("/jobs/{id}", s.completeJob)
		r.Put("/jobs/{id}/run", s.attachRun)

		r.Get("/documents", s.listDocuments)
		r.Post("/documents/refresh", s.refreshDocuments)
		r.Route("/collections", func(r chi.Router) {
			r.Get("/", s.listCollections)
			r.Post("/", s.createCollection)
			r.Delete("/{id}", s.deleteCollection)
			r.Post("/{id}/documents", s.addToCollection)
			r.Delete("/{id}/documents", s.removeFromCollection)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Get("/", s.chatSession)
			r.Post("/messages", s.chatSend)
			r.Post("/new", s.chatNew)
			r.Post("/cancel", s.chatCancel)
			r.Put("/scope", s.chatScope)
			r.Post("/save", s.chatSave)
			r.Get("/history", s.chatHistory)
			r.Post("/history/{id}/load", s.chatLoad)
			r.Post("/history/{id}/star", s.chatStar)
			r.Delete("/history/{id}", s.chatDelete)
		})

		r.Get("/history", s.exportHistory)

		r.Route("/pulse", func(r chi.Router) {
			r.Post("/generate", s.pulseGenerate)
			r.Get("/digests", s.pulseDigests)
			r.Post("/watchlist", s.pulseUpload)
		})
	})
	return r
}

// Close cancels background work started by handlers and waits for it.
func (s *Server) Close() {
	s.cancel()
	s.bg.Wait()
}

// goBackground runs fn past the end of the request. It keeps the request's
// values and stops when the server closes.
func (s *Server) goBackground(ctx context.Context, name string, fn func(ctx context.Context) error) {
	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.base, cancel)
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer stop()
		defer cancel()
		if err := fn(bg); err != nil {
			s.log.Warn().Err(err).Str("task", name).Msg("background task failed")
		}
	}()
}
