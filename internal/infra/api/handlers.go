package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/logging"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/usecase"
)

const maxWatchlistBytes = 5 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrEmptyMessage), errors.Is(err, domain.ErrMissingRun):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrExchangeInFlight), errors.Is(err, domain.ErrGenerationInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGenerationGated), errors.Is(err, domain.ErrUploadLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrDispatchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidArgument)
	}
	return nil
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

// ---- jobs ----

type jobView struct {
	ID        string          `json:"id"`
	Kind      model.JobKind   `json:"kind"`
	Params    model.JobParams `json:"params"`
	CreatedAt time.Time       `json:"created_at"`
	HasRun    bool            `json:"has_run"`
}

func toJobView(j model.Job) jobView {
	return jobView{ID: j.ID, Kind: j.Kind, Params: j.Params, CreatedAt: j.CreatedAt, HasRun: j.HasRun()}
}

func (s *Server) startResearch(w http.ResponseWriter, r *http.Request) {
	var p model.JobParams
	if err := decode(r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	job, err := s.deps.Research.StartJob(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toJobView(job))
}

func (s *Server) startWhiteLabel(w http.ResponseWriter, r *http.Request) {
	var p model.JobParams
	if err := decode(r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	job, err := s.deps.Research.StartWhiteLabel(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toJobView(job))
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.deps.Research.ActiveJobs()
	out := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobView(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "jobs": out})
}

func (s *Server) completeJob(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Research.CompleteJob(chi.URLParam(r, "id")) {
		s.writeError(w, r, domain.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) attachRun(w http.ResponseWriter, r *http.Request) {
	var ref model.RunRef
	if err := decode(r, &ref); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Research.AttachRun(chi.URLParam(r, "id"), ref); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- library ----

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs := s.deps.Library.Documents()
	if area := r.URL.Query().Get("area"); area != "" {
		kept := docs[:0]
		for _, d := range docs {
			if strings.EqualFold(d.Area, area) {
				kept = append(kept, d)
			}
		}
		docs = kept
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(docs), "documents": docs})
}

func (s *Server) refreshDocuments(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Library.Refresh(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) listCollections(w http.ResponseWriter, r *http.Request) {
	var cols []model.Collection
	if s.deps.Collections != nil {
		cols = s.deps.Collections.Collections()
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": cols})
}

func (s *Server) collections(w http.ResponseWriter, r *http.Request) (Collections, bool) {
	if s.deps.Collections == nil {
		s.writeError(w, r, fmt.Errorf("%w: collections are not loaded", domain.ErrNotFound))
		return nil, false
	}
	return s.deps.Collections, true
}

func (s *Server) createCollection(w http.ResponseWriter, r *http.Request) {
	cs, ok := s.collections(w, r)
	if !ok {
		return
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	col, err := cs.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, col)
}

func (s *Server) deleteCollection(w http.ResponseWriter, r *http.Request) {
	cs, ok := s.collections(w, r)
	if !ok {
		return
	}
	if err := cs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type membersRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

func (s *Server) addToCollection(w http.ResponseWriter, r *http.Request) {
	s.updateMembers(w, r, Collections.AddDocuments)
}

func (s *Server) removeFromCollection(w http.ResponseWriter, r *http.Request) {
	s.updateMembers(w, r, Collections.RemoveDocuments)
}

func (s *Server) updateMembers(w http.ResponseWriter, r *http.Request, op func(Collections, context.Context, string, []string) error) {
	cs, ok := s.collections(w, r)
	if !ok {
		return
	}
	var req membersRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.DocumentIDs) == 0 {
		s.writeError(w, r, fmt.Errorf("%w: document_ids is empty", domain.ErrInvalidArgument))
		return
	}
	if err := op(cs, r.Context(), chi.URLParam(r, "id"), req.DocumentIDs); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- chat ----

type chatView struct {
	State   string             `json:"state"`
	Session *model.ChatSession `json:"session"`
}

func (s *Server) chatView() chatView {
	return chatView{State: s.deps.Chat.State().String(), Session: s.deps.Chat.Session()}
}

func (s *Server) chatSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.chatView())
}

func (s *Server) chatSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Chat.Send(r.Context(), req.Message); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.chatView())
}

func (s *Server) chatNew(w http.ResponseWriter, r *http.Request) {
	s.deps.Chat.NewConversation(r.Context())
	writeJSON(w, http.StatusOK, s.chatView())
}

func (s *Server) chatCancel(w http.ResponseWriter, r *http.Request) {
	s.deps.Chat.Cancel()
	writeJSON(w, http.StatusOK, s.chatView())
}

func (s *Server) chatScope(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CollectionIDs []string `json:"collection_ids"`
		DocumentID    string   `json:"document_id"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.DocumentID != "" {
		s.deps.Chat.ScopeToDocument(req.DocumentID)
	} else {
		s.deps.Chat.SetScope(req.CollectionIDs)
	}
	writeJSON(w, http.StatusOK, s.chatView())
}

func (s *Server) chatSave(w http.ResponseWriter, r *http.Request) {
	saved, err := s.deps.Chat.Save(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) chatHistory(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Chat.History(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

func (s *Server) chatLoad(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Chat.Load(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.chatView())
}

func (s *Server) chatStar(w http.ResponseWriter, r *http.Request) {
	starred, err := s.deps.Chat.ToggleStar(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"starred": starred})
}

func (s *Server) chatDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Chat.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- history ----

func (s *Server) exportHistory(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("format") {
	case "md", "markdown":
		md, err := s.deps.History.Markdown(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+s.deps.History.FileName("md")+`"`)
		_, _ = io.WriteString(w, md)
	case "html":
		html, err := s.deps.History.HTML(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, html)
	default:
		entries, err := s.deps.History.Entries(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(entries), "entries": entries})
	}
}

// ---- pulse ----

func (s *Server) pulseGenerate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pulse == nil {
		s.writeError(w, r, fmt.Errorf("%w: pulse is disabled", domain.ErrNotFound))
		return
	}
	if ok, left := s.deps.Pulse.CanGenerate(r.Context()); !ok {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(left.Seconds())))
		s.writeError(w, r, fmt.Errorf("%w: retry in %s", domain.ErrGenerationGated, left.Round(time.Minute)))
		return
	}
	s.goBackground(r.Context(), "pulse_generate", s.deps.Pulse.Generate)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "generating"})
}

func (s *Server) pulseDigests(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pulse == nil {
		writeJSON(w, http.StatusOK, map[string]any{"digests": []model.Digest{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"digests": s.deps.Pulse.Digests()})
}

func (s *Server) pulseUpload(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pulse == nil {
		s.writeError(w, r, fmt.Errorf("%w: pulse is disabled", domain.ErrNotFound))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxWatchlistBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: multipart field \"file\" is required", domain.ErrInvalidArgument))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err))
		return
	}
	obj, err := s.deps.Pulse.UploadWatchlist(r.Context(), usecase.Watchlist{
		FileName: hdr.Filename,
		MimeType: hdr.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_, left := s.deps.Pulse.CanUploadWatchlist(r.Context())
	writeJSON(w, http.StatusCreated, map[string]any{"object": obj, "uploads_left": left})
}
