package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clipforge/internal/config"
	"clipforge/internal/models"
	"clipforge/internal/ratelimit"
	"clipforge/internal/reconcile"
	"clipforge/internal/store"
	"clipforge/internal/sweep"
	"clipforge/internal/telemetry"
	"clipforge/internal/worker"
)

const (
	minPromptLen = 10
	maxEventBody = 1 << 20
)

// Server wires the HTTP boundary: intake, status, the share-event webhook,
// and the cron trigger endpoints.
type Server struct {
	cfg        config.Config
	store      store.Store
	worker     *worker.Worker
	sweep      *sweep.Sweep
	reconciler *reconcile.Reconciler
	limiter    *ratelimit.Limiter
	log        zerolog.Logger
}

func New(cfg config.Config, st store.Store, w *worker.Worker, sw *sweep.Sweep, rec *reconcile.Reconciler, limiter *ratelimit.Limiter, log zerolog.Logger) *Server {
	return &Server{
		cfg:        cfg,
		store:      st,
		worker:     w,
		sweep:      sw,
		reconciler: rec,
		limiter:    limiter,
		log:        log.With().Str("component", "api").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Post("/api/generate", s.handleGenerate)
	r.Get("/api/jobs", s.handleListJobs)
	r.Post("/api/webhook", s.handleWebhook)
	r.Get("/api/process-pending", s.requireCronSecret(s.handleProcessPending))
	r.Get("/api/cron/cleanup", s.requireCronSecret(s.handleCleanup))
	return r
}

type generateRequest struct {
	FID      int64  `json:"fid"`
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(strings.TrimSpace(req.Prompt)) < minPromptLen {
		httpError(w, http.StatusBadRequest, "a prompt of at least 10 characters is required")
		return
	}
	if req.FID <= 0 {
		httpError(w, http.StatusBadRequest, "a numeric fid is required")
		return
	}

	if s.limiter != nil {
		allowed, _, err := s.limiter.Allow(r.Context(), req.FID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "rate limit error")
			return
		}
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			httpError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
	}

	job := models.Job{
		ID:        uuid.New().String(),
		OwnerFID:  req.FID,
		Prompt:    strings.TrimSpace(req.Prompt),
		InputRef:  req.ImageURL,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Put(r.Context(), job); err != nil {
		s.log.Error().Err(err).Msg("create job")
		httpError(w, http.StatusInternalServerError, "failed to submit job")
		return
	}
	telemetry.JobsSubmitted.Inc()
	s.log.Info().Str("job_id", job.ID).Int64("fid", job.OwnerFID).Msg("job submitted")

	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"job_id":  job.ID,
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	fidParam := r.URL.Query().Get("fid")
	if fidParam == "" {
		httpError(w, http.StatusBadRequest, "fid parameter is required")
		return
	}
	fid, err := strconv.ParseInt(fidParam, 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid fid format")
		return
	}

	jobs, err := s.store.ListAll(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list jobs")
		httpError(w, http.StatusInternalServerError, "failed to retrieve jobs")
		return
	}

	var owned []models.Job
	for _, job := range jobs {
		if job.OwnerFID == fid {
			owned = append(owned, job)
		}
	}
	// Newest first within each status group.
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})
	grouped := make(map[string][]models.Job)
	for _, job := range owned {
		grouped[job.Status] = append(grouped[job.Status], job)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"jobs":    grouped,
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		httpError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	outcome, err := s.reconciler.HandleEvent(r.Context(), body, r.Header.Get("X-Webhook-Signature"))
	if errors.Is(err, reconcile.ErrBadSignature) {
		telemetry.WebhookRejected.Inc()
		httpError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("webhook event")
		httpError(w, http.StatusInternalServerError, "event handling failed")
		return
	}
	telemetry.WebhookEvents.Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"outcome": outcome,
	})
}

func (s *Server) handleProcessPending(w http.ResponseWriter, r *http.Request) {
	result, err := s.worker.ProcessOne(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("process pending")
		httpError(w, http.StatusInternalServerError, "processing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	archived, err := s.sweep.RunOnce(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("cleanup")
		httpError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "archived": archived})
}

// requireCronSecret guards the trigger endpoints with a bearer secret, the
// same scheme the hosting platform's scheduler uses.
func (s *Server) requireCronSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.CronSecret == "" {
			httpError(w, http.StatusInternalServerError, "cron secret not configured")
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.CronSecret)) != 1 {
			httpError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func httpError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"success": false, "message": msg})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
