package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shedcmd/internal/config"
	appLog "shedcmd/internal/log"
	"shedcmd/internal/scheduler"
)

// Store keeps the most recent scheduler report for the HTTP handlers. It
// implements scheduler.Reporter.
type Store struct {
	mu        sync.RWMutex
	last      *scheduler.Report
	startedAt time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{startedAt: time.Now()}
}

// Publish records rep as the latest report. A skipped tick keeps the schedule
// from the last evaluated one so /api/events stays useful.
func (s *Store) Publish(rep scheduler.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rep.Skipped && s.last != nil {
		rep.Schedule = s.last.Schedule
	}
	s.last = &rep
}

// Last returns a copy of the latest report.
func (s *Store) Last() (scheduler.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return scheduler.Report{}, false
	}
	return *s.last, true
}

// Server exposes scheduler status over HTTP.
type Server struct {
	cfg   config.StatusConfig
	store *Store
}

// NewServer constructs a new Server.
func NewServer(cfg config.StatusConfig, store *Store) *Server {
	return &Server{cfg: cfg, store: store}
}

// Handler returns the router for this server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLog)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			r.Use(s.basicAuth)
		}
		r.Get("/api/status", s.handleStatus)
		r.Get("/api/events", s.handleEvents)
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	})
	return r
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="shedcmd", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		appLog.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"duration", time.Since(start).Round(time.Microsecond), "request_id", chimw.GetReqID(r.Context()))
	})
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func Serve(ctx context.Context, cfg config.StatusConfig, store *Store) error {
	s := NewServer(cfg, store)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+cfg.Listen)
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting status server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("status server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventDTO is the JSON view of one event.
type eventDTO struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
	Note  string     `json:"note"`
}

// commandDTO is the JSON view of one dispatched command.
type commandDTO struct {
	Index      int    `json:"index"`
	Command    string `json:"command"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// statusResponse is the JSON response shape for /api/status.
type statusResponse struct {
	StartedAt    time.Time    `json:"started_at"`
	Ready        bool         `json:"ready"`
	Tick         uint64       `json:"tick"`
	At           *time.Time   `json:"at,omitempty"`
	Fetched      bool         `json:"fetched"`
	Skipped      bool         `json:"skipped"`
	FetchError   string       `json:"fetch_error,omitempty"`
	Next         *eventDTO    `json:"next,omitempty"`
	DeltaMinutes *int64       `json:"delta_minutes,omitempty"`
	Triggered    bool         `json:"triggered"`
	BatchID      string       `json:"batch_id,omitempty"`
	Dispatch     []commandDTO `json:"dispatch,omitempty"`
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	At     *time.Time `json:"at,omitempty"`
	Events []eventDTO `json:"events"`
}

func toEventDTO(start, end time.Time, note string) eventDTO {
	dto := eventDTO{Start: start, Note: note}
	if !end.IsZero() {
		e := end
		dto.End = &e
	}
	return dto
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{StartedAt: s.store.startedAt}
	rep, ok := s.store.Last()
	if !ok {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	at := rep.At
	resp.Ready = true
	resp.Tick = rep.Tick
	resp.At = &at
	resp.Fetched = rep.Fetched
	resp.Skipped = rep.Skipped
	resp.FetchError = rep.FetchErr
	if !rep.Skipped && rep.Result.Upcoming {
		ev := toEventDTO(rep.Result.Event.Start, rep.Result.Event.End, rep.Result.Event.Note)
		delta := rep.Result.DeltaMinutes
		resp.Next = &ev
		resp.DeltaMinutes = &delta
		resp.Triggered = rep.Result.Triggered
	}
	resp.BatchID = rep.BatchID
	for _, r := range rep.Dispatch {
		c := commandDTO{
			Index:      r.Index,
			Command:    r.Command,
			ExitCode:   r.ExitCode,
			DurationMs: r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			c.Error = r.Err.Error()
		}
		resp.Dispatch = append(resp.Dispatch, c)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	resp := eventsResponse{Events: []eventDTO{}}
	if rep, ok := s.store.Last(); ok {
		at := rep.At
		resp.At = &at
		for _, ev := range rep.Schedule.Events {
			resp.Events = append(resp.Events, toEventDTO(ev.Start, ev.End, ev.Note))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}
