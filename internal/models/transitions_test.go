package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionTable(t *testing.T) {
	allowed := map[[2]string]bool{
		{StatusPending, StatusProcessing}: true,
		{StatusProcessing, StatusReady}:   true,
		{StatusProcessing, StatusFailed}:  true,
		{StatusReady, StatusShared}:       true,
		{StatusReady, StatusArchived}:     true,
		{StatusShared, StatusArchived}:    true,
	}
	statuses := []string{StatusPending, StatusProcessing, StatusReady, StatusShared, StatusArchived, StatusFailed}
	for _, from := range statuses {
		for _, to := range statuses {
			got := CanTransition(from, to)
			assert.Equal(t, allowed[[2]string{from, to}], got, "%s -> %s", from, to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusFailed))
	assert.True(t, IsTerminal(StatusArchived))
	assert.False(t, IsTerminal(StatusPending))
	assert.False(t, IsTerminal(StatusReady))
}

func TestTransitionSideEffects(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	url := "https://blobs.example.com/renders/abc.mp4"

	job := Job{ID: "abc", Status: StatusProcessing}
	require.True(t, job.Transition(StatusReady, now))
	require.NotNil(t, job.ReadyAt)
	assert.Equal(t, now, *job.ReadyAt)

	job.TempAssetURL = &url
	require.True(t, job.Transition(StatusShared, now.Add(time.Hour)))
	require.NotNil(t, job.SharedAt)
	assert.Equal(t, now.Add(time.Hour), *job.SharedAt)

	require.True(t, job.Transition(StatusArchived, now.Add(2*time.Hour)))
	assert.Nil(t, job.TempAssetURL, "archiving clears the staged asset url")
	// ready_at and shared_at are stamped once and survive archival
	assert.Equal(t, now, *job.ReadyAt)
}

func TestTransitionRejectsIllegalEdges(t *testing.T) {
	url := "https://blobs.example.com/renders/abc.mp4"
	readyAt := time.Now().UTC()
	original := Job{
		ID:           "abc",
		Status:       StatusArchived,
		ReadyAt:      &readyAt,
		TempAssetURL: &url,
	}
	job := original

	// A terminal job never moves and is left untouched.
	assert.False(t, job.Transition(StatusShared, time.Now()))
	assert.Equal(t, original, job)

	// ready cannot jump straight to a terminal failure.
	job = Job{ID: "x", Status: StatusReady}
	assert.False(t, job.Transition(StatusFailed, time.Now()))
	assert.Equal(t, StatusReady, job.Status)
}

func TestTransitionStampsTimestampsOnce(t *testing.T) {
	first := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	job := Job{ID: "abc", Status: StatusProcessing}
	require.True(t, job.Transition(StatusReady, first))

	// If a record somehow re-enters ready, the original stamp wins.
	job.Status = StatusProcessing
	require.True(t, job.Transition(StatusReady, first.Add(time.Hour)))
	assert.Equal(t, first, *job.ReadyAt)
}
