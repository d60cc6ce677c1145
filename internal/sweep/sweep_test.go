package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipforge/internal/models"
	"clipforge/internal/store"
)

type fakeBlob struct {
	mu      sync.Mutex
	err     error
	deletes []string
}

func (f *fakeBlob) Upload(_ context.Context, key, _, _ string) (string, error) {
	return "https://blobs.test/" + key, nil
}

func (f *fakeBlob) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, url)
	return f.err
}

func newTestSweep(t *testing.T, now time.Time) (*Sweep, store.Store, *fakeBlob) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	st := store.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	fb := &fakeBlob{}
	s := New(st, fb, 48*time.Hour, zerolog.Nop())
	s.now = func() time.Time { return now }
	return s, st, fb
}

func readyJob(id string, readyAt time.Time) models.Job {
	url := "https://blobs.test/renders/" + id + ".mp4"
	return models.Job{
		ID:           id,
		OwnerFID:     42,
		Prompt:       "ten-char minimum prompt",
		Status:       models.StatusReady,
		TempAssetURL: &url,
		CreatedAt:    readyAt.Add(-time.Minute),
		ReadyAt:      &readyAt,
	}
}

func TestSweepRetentionBoundary(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	s, st, fb := newTestSweep(t, now)

	// One second past the threshold: reclaimed.
	require.NoError(t, st.Put(ctx, readyJob("job-old", now.Add(-48*time.Hour-time.Second))))
	// One minute short of it: untouched.
	require.NoError(t, st.Put(ctx, readyJob("job-fresh", now.Add(-47*time.Hour-59*time.Minute))))

	archived, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, archived)
	assert.Equal(t, []string{"https://blobs.test/renders/job-old.mp4"}, fb.deletes)

	old, _, err := st.Get(ctx, "job-old")
	require.NoError(t, err)
	assert.Equal(t, models.StatusArchived, old.Status)
	assert.Nil(t, old.TempAssetURL)

	fresh, _, err := st.Get(ctx, "job-fresh")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, fresh.Status)
	assert.NotNil(t, fresh.TempAssetURL)
}

func TestSweepIdempotent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	s, st, fb := newTestSweep(t, now)

	require.NoError(t, st.Put(ctx, readyJob("job-1", now.Add(-72*time.Hour))))

	archived, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, archived)

	// Second pass right after finds nothing newly eligible.
	archived, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, archived)
	assert.Len(t, fb.deletes, 1)
}

func TestSweepArchivesSharedAndKeepsPermanentURL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	s, st, _ := newTestSweep(t, now)

	job := readyJob("job-1", now.Add(-72*time.Hour))
	perm := "https://cdn.example.com/abc.mp4"
	shared := now.Add(-60 * time.Hour)
	job.Status = models.StatusShared
	job.PermanentAssetURL = &perm
	job.SharedAt = &shared
	require.NoError(t, st.Put(ctx, job))

	archived, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, archived)

	got, _, err := st.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusArchived, got.Status)
	assert.Nil(t, got.TempAssetURL)
	require.NotNil(t, got.PermanentAssetURL)
	assert.Equal(t, perm, *got.PermanentAssetURL)
}

func TestSweepArchivesDespiteDeleteFailure(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	s, st, fb := newTestSweep(t, now)
	fb.err = errors.New("already gone")

	require.NoError(t, st.Put(ctx, readyJob("job-1", now.Add(-72*time.Hour))))

	archived, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, archived)

	got, _, err := st.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusArchived, got.Status)
	assert.Nil(t, got.TempAssetURL)
}

func TestSweepIgnoresJobsWithoutStagedAsset(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	s, st, fb := newTestSweep(t, now)

	// Failed long ago, nothing staged: never touched.
	job := models.Job{
		ID:        "job-failed",
		OwnerFID:  42,
		Prompt:    "ten-char minimum prompt",
		Status:    models.StatusFailed,
		CreatedAt: now.Add(-100 * time.Hour),
	}
	require.NoError(t, st.Put(ctx, job))

	archived, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, archived)
	assert.Empty(t, fb.deletes)
}
