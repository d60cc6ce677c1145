// Package reconcile folds asynchronous proof-of-share events into job state.
// Events arrive at-least-once and unordered; every transition here is
// idempotent, with the lifecycle table as the safety net.
package reconcile

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clipforge/internal/models"
	"clipforge/internal/store"
)

// ErrBadSignature rejects events that cannot be verified against the shared
// secret. No state is touched for such events.
var ErrBadSignature = errors.New("invalid event signature")

// Outcome reported for an accepted event.
type Outcome string

const (
	OutcomeIgnored       Outcome = "ignored"        // author not monitored
	OutcomeNoJobRef      Outcome = "no_job_ref"     // nothing in the embeds points at a job
	OutcomeUnknownJob    Outcome = "unknown_job"    // referenced job not in this deployment
	OutcomeNoop          Outcome = "noop"           // job not in a state that can advance
	OutcomeShared        Outcome = "shared"         // permanent copy captured
	OutcomeSharedPartial Outcome = "shared_partial" // share recorded, permanent copy not yet visible
)

// assetKeyPattern recovers a job id from a staged-asset URL.
var assetKeyPattern = regexp.MustCompile(`/renders/([A-Za-z0-9-]+)\.mp4`)

// PermanentPicker selects the embed URL to treat as the durable copy, or ""
// when none qualifies. Pluggable because "second distinct URL" is a heuristic,
// not a guarantee.
type PermanentPicker func(post Post, tempURL, hostURL string) string

// Reconciler advances ready jobs to shared when an event proves the user
// published the asset.
type Reconciler struct {
	store         store.Store
	secret        string
	monitorFID    int64 // 0 accepts any author
	hostURL       string
	shareBase     string
	pickPermanent PermanentPicker
	now           func() time.Time
	log           zerolog.Logger
}

func New(st store.Store, secret string, monitorFID int64, hostURL, shareBase string, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:         st,
		secret:        secret,
		monitorFID:    monitorFID,
		hostURL:       strings.TrimSuffix(hostURL, "/"),
		shareBase:     strings.TrimSuffix(shareBase, "/"),
		pickPermanent: defaultPermanentPicker,
		now:           time.Now,
		log:           log.With().Str("component", "reconciler").Logger(),
	}
}

// SetPermanentPicker overrides the durable-copy heuristic.
func (r *Reconciler) SetPermanentPicker(p PermanentPicker) {
	if p != nil {
		r.pickPermanent = p
	}
}

// VerifySignature checks the HMAC-SHA256 hex signature of the raw body.
func (r *Reconciler) VerifySignature(body []byte, signature string) bool {
	if r.secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(r.secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(strings.TrimSpace(signature)))
}

// HandleEvent verifies, matches, and applies one inbound event. Unknown jobs
// and unmatchable events are acknowledged, not errors; only an unverifiable
// signature or a store fault is an error.
func (r *Reconciler) HandleEvent(ctx context.Context, body []byte, signature string) (Outcome, error) {
	if !r.VerifySignature(body, signature) {
		return "", ErrBadSignature
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return "", fmt.Errorf("decode event: %w", err)
	}
	post := event.Data

	if r.monitorFID != 0 && post.Author.FID != r.monitorFID {
		return OutcomeIgnored, nil
	}

	jobID, tempURL := r.extractJobRef(post)
	if jobID == "" {
		return OutcomeNoJobRef, nil
	}
	log := r.log.With().Str("job_id", jobID).Str("post", post.Hash).Logger()

	job, found, err := r.store.Get(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("get job: %w", err)
	}
	if !found {
		// Stale or foreign traffic; acknowledge and move on.
		log.Debug().Msg("event references unknown job")
		return OutcomeUnknownJob, nil
	}

	if tempURL == "" && job.TempAssetURL != nil {
		tempURL = *job.TempAssetURL
	}

	if !job.Transition(models.StatusShared, r.now()) {
		// Duplicate or late delivery; the record stays byte-for-byte as it was.
		log.Debug().Str("status", job.Status).Msg("event replay, no transition")
		return OutcomeNoop, nil
	}

	shareRef := fmt.Sprintf("%s/%s/%s", r.shareBase, post.Author.Username, post.Hash)
	job.ShareRef = &shareRef

	permanent := r.pickPermanent(post, tempURL, r.hostURL)
	if permanent != "" {
		job.PermanentAssetURL = &permanent
	}

	if err := r.store.Put(ctx, job); err != nil {
		return "", fmt.Errorf("persist shared job: %w", err)
	}

	if permanent == "" {
		log.Info().Msg("share recorded without permanent copy")
		return OutcomeSharedPartial, nil
	}
	log.Info().Str("permanent_asset_url", permanent).Msg("permanent copy captured")
	return OutcomeShared, nil
}

// extractJobRef finds a job id in the post, either from a staged-asset URL
// (returning that URL too) or from a deep link carrying ?job=<id>.
func (r *Reconciler) extractJobRef(post Post) (jobID, tempURL string) {
	for _, embed := range post.Embeds {
		ref := embed.ref()
		if ref == "" {
			continue
		}
		if m := assetKeyPattern.FindStringSubmatch(ref); m != nil {
			return m[1], ref
		}
	}
	for _, embed := range post.Embeds {
		ref := embed.ref()
		if ref == "" || (r.hostURL != "" && !strings.HasPrefix(ref, r.hostURL)) {
			continue
		}
		if u, err := url.Parse(ref); err == nil {
			if id := u.Query().Get("job"); id != "" {
				return id, ""
			}
		}
	}
	return "", ""
}

// defaultPermanentPicker treats the first embed that is neither the staged
// asset nor a deep link into this app as the durable copy.
func defaultPermanentPicker(post Post, tempURL, hostURL string) string {
	for _, embed := range post.Embeds {
		ref := embed.ref()
		if ref == "" || ref == tempURL {
			continue
		}
		if hostURL != "" && strings.HasPrefix(ref, hostURL) {
			continue
		}
		return ref
	}
	return ""
}
