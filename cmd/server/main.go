package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pubomax/website-navigator/internal/config"
	"github.com/pubomax/website-navigator/internal/logger"
	"github.com/pubomax/website-navigator/internal/metrics"
	"github.com/pubomax/website-navigator/rules"
	"github.com/pubomax/website-navigator/signals"
	"github.com/pubomax/website-navigator/sites"
	"github.com/pubomax/website-navigator/visitor"
)

const maxVisitorIDLength = 128

type Server struct {
	sites    *sites.Manager
	visitors *visitor.Service
	metrics  *metrics.Metrics
	checks   map[string]func(context.Context) error
	router   *chi.Mux
}

func NewServer(manager *sites.Manager, visitors *visitor.Service, m *metrics.Metrics) *Server {
	s := &Server{
		sites:    manager,
		visitors: visitors,
		metrics:  m,
		checks:   make(map[string]func(context.Context) error),
	}

	s.setupRoutes()

	return s
}

// AddHealthCheck registers a dependency probed by the health endpoint
func (s *Server) AddHealthCheck(name string, check func(context.Context) error) {
	s.checks[name] = check
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/api/v1/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	// Scoring and segmentation
	r.Post("/api/v1/score", s.handleScore)
	r.Post("/api/v1/segment", s.handleSegment)

	// Session lifecycle
	r.Route("/api/v1/visitors/{visitorId}", func(r chi.Router) {
		r.Post("/interactions", s.handleInteraction)
		r.Delete("/session", s.handleEndSession)
	})

	// Rule table management
	r.Route("/api/v1/sites", func(r chi.Router) {
		r.Get("/", s.handleListSites)
		r.Get("/{siteId}/table", s.handleGetTable)
		r.Put("/{siteId}/table", s.handlePutTable)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger counts response statuses and logs each request at debug level
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger.HTTPStatus(status)
		logger.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start).String(),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status: "unhealthy",
				Error:  name + ": " + err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		SitesLoaded: len(s.sites.ListSites()),
	})
}

// Score handler
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	respondJSON(w, http.StatusOK, s.visitors.Score(siteOrDefault(req.SiteID), req.Attributes))
}

// Segment handler
func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	var req SegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	query := r.URL.Query()
	if req.SiteID == "" {
		req.SiteID = query.Get("siteId")
	}
	if req.VisitorID == "" {
		req.VisitorID = query.Get("visitorId")
	}
	if len(req.VisitorID) > maxVisitorIDLength {
		respondError(w, http.StatusBadRequest, "visitorId is too long", nil)
		return
	}

	env := signals.FromURL(req.PageURL, req.Referrer)
	if req.PageURL == "" || req.Referrer == "" {
		fromRequest := signals.FromRequest(r)
		if req.PageURL == "" {
			env.UTMSource = fromRequest.UTMSource
			env.UTMMedium = fromRequest.UTMMedium
			env.UTMCampaign = fromRequest.UTMCampaign
		}
		if req.Referrer == "" {
			env.Referrer = fromRequest.Referrer
		}
	}

	result := s.visitors.Evaluate(r.Context(), siteOrDefault(req.SiteID), req.VisitorID, env)
	respondJSON(w, http.StatusOK, result)
}

// Interaction handler
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	visitorID := chi.URLParam(r, "visitorId")

	var req InteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	siteID := siteOrDefault(req.SiteID)

	armed, err := s.visitors.RecordInteraction(r.Context(), siteID, visitorID, req.Kind)
	switch {
	case errors.Is(err, visitor.ErrInvalidInteraction):
		respondError(w, http.StatusBadRequest, "kind must be scroll or click", err)
		return
	case errors.Is(err, visitor.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "session not found", err)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "failed to record interaction", err)
		return
	}

	current, _ := s.visitors.CurrentSegment(siteID, visitorID)
	respondJSON(w, http.StatusOK, InteractionResponse{Armed: armed, Segment: current})
}

// End session handler
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	visitorID := chi.URLParam(r, "visitorId")
	siteID := siteOrDefault(r.URL.Query().Get("siteId"))

	if !s.visitors.EndSession(siteID, visitorID) {
		respondError(w, http.StatusNotFound, "session not found", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List sites handler
func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, SitesListResponse{Sites: s.sites.ListSites()})
}

// Get table handler
func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	siteID, err := siteParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid site ID", err)
		return
	}

	site := s.sites.Default()
	if siteID != sites.DefaultSiteID {
		site, err = s.sites.Lookup(siteID)
		if err != nil {
			respondError(w, http.StatusNotFound, "site not found", err)
			return
		}
	}

	respondJSON(w, http.StatusOK, SiteTableResponse{
		SiteID:  site.ID,
		Version: site.Version,
		Table:   site.Table,
	})
}

// Put table handler. The new table replaces the running one atomically.
func (s *Server) handlePutTable(w http.ResponseWriter, r *http.Request) {
	siteID, err := siteParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid site ID", err)
		return
	}
	if siteID == sites.DefaultSiteID {
		respondError(w, http.StatusBadRequest, "the default table is read-only", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body", err)
		return
	}
	table, err := rules.ParseTableJSON(body)
	if err != nil {
		s.metrics.TableUpdates.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusBadRequest, "invalid rule table", err)
		return
	}

	site, err := s.sites.UpdateSiteTable(siteID, table)
	if errors.Is(err, sites.ErrInvalidTable) {
		s.metrics.TableUpdates.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusBadRequest, "invalid rule table", err)
		return
	}
	if err != nil {
		s.metrics.TableUpdates.WithLabelValues("error").Inc()
		respondError(w, http.StatusInternalServerError, "failed to update rule table", err)
		return
	}

	s.metrics.TableUpdates.WithLabelValues("ok").Inc()
	respondJSON(w, http.StatusOK, SiteTableResponse{
		SiteID:  site.ID,
		Version: site.Version,
		Table:   site.Table,
	})
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

func siteOrDefault(siteID string) string {
	if siteID == "" {
		return sites.DefaultSiteID
	}
	return siteID
}

// siteParam returns the unescaped {siteId} path parameter
func siteParam(r *http.Request) (string, error) {
	return url.PathUnescape(chi.URLParam(r, "siteId"))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	ctx := context.Background()
	if err := logger.Setup(ctx, logger.OptionsFromEnv()); err != nil {
		logger.Warn("logger setup degraded", "error", err)
	}

	deps, err := openBackends(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open backends", "error", err)
	}
	defer deps.Close()

	fallback := rules.DefaultTable()
	if cfg.RuleTablePath != "" {
		fallback, err = rules.LoadTableFile(cfg.RuleTablePath)
		if err != nil {
			logger.Fatal("failed to load rule table", "path", cfg.RuleTablePath, "error", err)
		}
	}

	manager, err := sites.NewManager(deps.store, fallback, rules.CacheConfig{TTL: cfg.TableCacheTTL})
	if err != nil {
		logger.Fatal("failed to create site manager", "error", err)
	}
	if err := manager.LoadAllSites(); err != nil {
		logger.Fatal("failed to load sites", "error", err)
	}
	logger.Info("rule tables ready", "sites", manager.ListSites(), "defaultTable", fallback.Version)

	m := metrics.New()
	visitors := visitor.NewService(manager, deps.keys,
		visitor.WithDwell(cfg.PromotionDwell),
		visitor.WithSessionTTL(cfg.SessionTTL),
		visitor.WithMetrics(m),
	)
	defer visitors.Close()

	server := NewServer(manager, visitors, m)
	deps.registerHealthChecks(server)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("server starting", "port", cfg.Port, "historyBackend", cfg.HistoryBackend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(shutdownCtx); err != nil {
		logger.Error("logger shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
