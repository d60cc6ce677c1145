package worker

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"clipforge/internal/blob"
	"clipforge/internal/config"
	"clipforge/internal/models"
	"clipforge/internal/notify"
	"clipforge/internal/renderer"
	"clipforge/internal/store"
	"clipforge/internal/telemetry"
)

const (
	notifyTitle = "Clip ready"
	notifyBody  = "Your animation is ready! Tap to view and share."
)

// Outcome of a single worker activation.
const (
	OutcomeIdle   = "idle"
	OutcomeReady  = "ready"
	OutcomeFailed = "failed"
)

// Result describes what one activation did.
type Result struct {
	Outcome string `json:"outcome"`
	JobID   string `json:"job_id,omitempty"`
}

// Worker turns exactly one pending job into ready or failed per activation.
// Each activation is stateless aside from the store, so concurrent
// activations are safe: the atomic claim decides who owns a job.
type Worker struct {
	cfg        config.Config
	store      store.Store
	blob       blob.Store
	renderer   renderer.Renderer
	notifier   notify.Notifier
	httpClient *http.Client
	log        zerolog.Logger
}

func New(cfg config.Config, st store.Store, bs blob.Store, r renderer.Renderer, n notify.Notifier, log zerolog.Logger) *Worker {
	return &Worker{
		cfg:      cfg,
		store:    st,
		blob:     bs,
		renderer: r,
		notifier: n,
		httpClient: &http.Client{
			Timeout: cfg.DownloadTimeout,
		},
		log: log.With().Str("component", "worker").Logger(),
	}
}

// Run polls on a fixed interval until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.WorkerPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := w.ProcessOne(ctx); err != nil {
			w.log.Error().Err(err).Msg("activation failed")
		}
	}
}

// ProcessOne claims the oldest pending job and drives it through
// render -> upload -> ready. Claim conflicts are skipped silently; pipeline
// failures end the job in failed with a last-error summary. At most one job
// is processed per call.
func (w *Worker) ProcessOne(ctx context.Context) (Result, error) {
	jobs, err := w.store.ListAll(ctx)
	if err != nil {
		return Result{Outcome: OutcomeIdle}, fmt.Errorf("list jobs: %w", err)
	}

	pending := 0
	var claimed *models.Job
	for i := range jobs {
		if jobs[i].Status != models.StatusPending {
			continue
		}
		pending++
		if claimed != nil {
			continue
		}
		job, ok, err := w.store.Claim(ctx, jobs[i].ID, models.StatusPending, models.StatusProcessing)
		if err != nil {
			return Result{Outcome: OutcomeIdle}, fmt.Errorf("claim %s: %w", jobs[i].ID, err)
		}
		if !ok {
			// Another activation got there first.
			w.log.Debug().Str("job_id", jobs[i].ID).Msg("claim lost, skipping")
			pending--
			continue
		}
		pending--
		claimed = &job
	}
	telemetry.PendingGauge.Set(float64(pending))
	if claimed == nil {
		return Result{Outcome: OutcomeIdle}, nil
	}

	job := *claimed
	log := w.log.With().Str("job_id", job.ID).Logger()
	log.Info().Msg("claimed job")

	if err := w.runPipeline(ctx, &job); err != nil {
		log.Error().Err(err).Msg("pipeline failed")
		summary := err.Error()
		job.LastError = &summary
		if job.Transition(models.StatusFailed, time.Now()) {
			if perr := w.store.Put(ctx, job); perr != nil {
				return Result{Outcome: OutcomeFailed, JobID: job.ID}, fmt.Errorf("persist failed job: %w", perr)
			}
		}
		telemetry.RendersFailed.Inc()
		return Result{Outcome: OutcomeFailed, JobID: job.ID}, nil
	}

	telemetry.RendersSucceeded.Inc()
	log.Info().Str("temp_asset_url", deref(job.TempAssetURL)).Msg("job ready")
	return Result{Outcome: OutcomeReady, JobID: job.ID}, nil
}

// runPipeline mutates job through to ready, persisting the transition. Any
// error leaves the record untouched for the caller's failure handling.
func (w *Worker) runPipeline(ctx context.Context, job *models.Job) error {
	inputPath, cleanupInput, err := w.resolveInput(ctx, job.InputRef)
	if err != nil {
		return fmt.Errorf("resolve input: %w", err)
	}
	defer cleanupInput()

	renderCtx, cancel := context.WithTimeout(ctx, w.cfg.RenderTimeout)
	defer cancel()
	videoPath, err := w.renderer.Render(renderCtx, inputPath, w.cfg.RenderDir, w.cfg.RenderDuration)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	// The local file goes away no matter how the rest of the pipeline ends.
	defer os.Remove(videoPath)

	uploadCtx, cancel := context.WithTimeout(ctx, w.cfg.BlobTimeout)
	defer cancel()
	assetURL, err := w.blob.Upload(uploadCtx, AssetKey(job.ID), videoPath, "video/mp4")
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	job.TempAssetURL = &assetURL
	job.LastError = nil
	if !job.Transition(models.StatusReady, time.Now()) {
		return fmt.Errorf("job left processing state (now %s)", job.Status)
	}
	if err := w.store.Put(ctx, *job); err != nil {
		return fmt.Errorf("persist ready job: %w", err)
	}

	deepLink := DeepLink(w.cfg.HostURL, job.ID)
	if err := w.notifier.Notify(ctx, job.OwnerFID, notifyTitle, notifyBody, deepLink); err != nil {
		telemetry.NotifyFailures.Inc()
		w.log.Warn().Err(err).Str("job_id", job.ID).Msg("notification failed")
	}
	return nil
}

// AssetKey derives the blob key from the job id alone, so re-uploads are
// idempotent and the key is always reconstructable.
func AssetKey(jobID string) string {
	return "renders/" + jobID + ".mp4"
}

// DeepLink points the user at their video list, carrying the job id.
func DeepLink(hostURL, jobID string) string {
	return fmt.Sprintf("%s/my-videos?job=%s", hostURL, jobID)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
