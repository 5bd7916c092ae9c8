package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ai_art_description/access"
	"ai_art_description/generator"
	"ai_art_description/jobs"
	"ai_art_description/publisher"
)

// ActorRolesHeader carries the caller's roles and capabilities, comma
// separated. The proxy in front of this service is trusted to set it.
const ActorRolesHeader = "X-Actor-Roles"

// Options configures the HTTP surface.
type Options struct {
	// Timeout bounds an interactive generation; it should exceed the model timeout.
	Timeout     time.Duration
	BulkWorkers int
	Rule        publisher.AutoRule
	Now         func() time.Time
}

type Server struct {
	pub     *publisher.Publisher
	queue   jobs.Queue
	tracker *jobs.Tracker
	opts    Options
}

func New(pub *publisher.Publisher, queue jobs.Queue, tracker *jobs.Tracker, opts Options) (*Server, error) {
	if pub == nil {
		return nil, errors.New("publisher required")
	}
	if queue == nil {
		return nil, errors.New("job queue required")
	}
	if tracker == nil {
		tracker = jobs.NewTracker()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 150 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{pub: pub, queue: queue, tracker: tracker, opts: opts}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/items/{id}/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/bulk", s.handleBulk)
	mux.HandleFunc("POST /api/hooks/post-status", s.handlePostStatus)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleJob)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return logMiddleware(mux)
}

// --- Handlers ---

type bulkReq struct {
	ItemIDs []int64 `json:"item_ids"`
	Async   bool    `json:"async"`
}

// enqueuedResp lists queued job IDs. When enqueueing stops early, Error and
// NotQueued say why and which items were left out.
type enqueuedResp struct {
	JobIDs    []string `json:"job_ids"`
	Error     string   `json:"error,omitempty"`
	NotQueued []int64  `json:"not_queued,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.Timeout)
	defer cancel()

	out := s.pub.GenerateDescription(ctx, publisher.Request{
		ItemID: id,
		Actor:  parseGrants(r.Header.Get(ActorRolesHeader)),
	})
	writeJSON(w, statusFor(out), out)
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.ItemIDs) == 0 {
		http.Error(w, "item_ids required", http.StatusBadRequest)
		return
	}

	if req.Async {
		resp := enqueuedResp{JobIDs: []string{}}
		for i, id := range req.ItemIDs {
			job := jobs.NewJob(id, true, jobs.SourceBulk)
			if err := s.enqueue(r.Context(), job); err != nil {
				log.Error().Err(err).Int("queued", len(resp.JobIDs)).Msg("Bulk enqueue stopped early")
				resp.Error = err.Error()
				resp.NotQueued = req.ItemIDs[i:]
				writeJSON(w, http.StatusServiceUnavailable, resp)
				return
			}
			resp.JobIDs = append(resp.JobIDs, job.ID)
		}
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	report := s.pub.RunBulk(r.Context(), req.ItemIDs, s.opts.BulkWorkers)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handlePostStatus(w http.ResponseWriter, r *http.Request) {
	var ev publisher.StatusTransition
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ok, err := s.pub.CheckTransition(r.Context(), s.opts.Rule, ev, s.opts.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	job := jobs.NewJob(ev.ItemID, false, jobs.SourcePublish)
	if err := s.enqueue(r.Context(), job); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, enqueuedResp{JobIDs: []string{job.ID}})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	st, ok := s.tracker.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// --- Helpers ---

func (s *Server) enqueue(ctx context.Context, job jobs.Job) error {
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return err
	}
	s.tracker.Set(job, jobs.StateQueued, nil)
	return nil
}

func parseGrants(header string) access.Grants {
	var out access.Grants
	for _, g := range strings.Split(header, ",") {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

func statusFor(out publisher.Outcome) int {
	if out.Success {
		return http.StatusOK
	}
	switch out.Reason {
	case generator.ReasonUnauthorized:
		return http.StatusForbidden
	case generator.ReasonItemNotFound:
		return http.StatusNotFound
	case generator.ReasonMissingImage, generator.ReasonMissingCategory:
		return http.StatusUnprocessableEntity
	case generator.ReasonTransport, generator.ReasonProviderError, generator.ReasonMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
