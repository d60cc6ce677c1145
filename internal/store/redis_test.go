package store

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipforge/internal/models"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func sampleJob(id string, createdAt time.Time) models.Job {
	return models.Job{
		ID:        id,
		OwnerFID:  42,
		Prompt:    "a slow zoom on my avatar",
		Status:    models.StatusPending,
		CreatedAt: createdAt,
	}
}

func TestPutGetRoundtrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	job := sampleJob("job-1", time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	url := "https://blobs.example.com/renders/job-1.mp4"
	job.TempAssetURL = &url

	require.NoError(t, st.Put(ctx, job))

	got, found, err := st.Get(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, job, got)

	_, found, err = st.Get(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListAllSortsByCreation(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.Put(ctx, sampleJob("job-b", base.Add(time.Minute))))
	require.NoError(t, st.Put(ctx, sampleJob("job-a", base)))
	require.NoError(t, st.Put(ctx, sampleJob("job-c", base.Add(2*time.Minute))))

	jobs, err := st.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "job-a", jobs[0].ID)
	assert.Equal(t, "job-b", jobs[1].ID)
	assert.Equal(t, "job-c", jobs[2].ID)
}

func TestClaimSwapsStatusOnce(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	job := sampleJob("job-1", time.Now().UTC())
	require.NoError(t, st.Put(ctx, job))

	claimed, ok, err := st.Claim(ctx, "job-1", models.StatusPending, models.StatusProcessing)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.StatusProcessing, claimed.Status)
	assert.Equal(t, job.Prompt, claimed.Prompt)

	// Second claim observes processing and loses.
	_, ok, err = st.Claim(ctx, "job-1", models.StatusPending, models.StatusProcessing)
	require.NoError(t, err)
	assert.False(t, ok)

	got, found, err := st.Get(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusProcessing, got.Status)
}

func TestClaimMissingJobIsSkip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	_, ok, err := st.Claim(ctx, "ghost", models.StatusPending, models.StatusProcessing)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClaimPreservesOtherFields(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	job := sampleJob("job-1", time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	job.InputRef = "https://example.com/avatar.png"
	require.NoError(t, st.Put(ctx, job))

	claimed, ok, err := st.Claim(ctx, "job-1", models.StatusPending, models.StatusProcessing)
	require.NoError(t, err)
	require.True(t, ok)

	want := job
	want.Status = models.StatusProcessing
	assert.Equal(t, want, claimed)
}
