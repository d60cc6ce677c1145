package models

import (
	"time"
)

// transitions lists the legal edges of the job lifecycle graph:
//
//	pending -> processing -> ready -> shared -> archived
//	                      \> failed  \> archived
//
// failed and archived are terminal. Anything not listed here is rejected
// wherever a transition is attempted, which is what makes duplicate and late
// events safe to replay.
var transitions = map[string][]string{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusReady, StatusFailed},
	StatusReady:      {StatusShared, StatusArchived},
	StatusShared:     {StatusArchived},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing edges.
func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}

// Transition advances the job to the target status if the edge is legal and
// applies the side effects tied to the target state: ready_at and shared_at
// are stamped exactly once, and archiving clears the temporary asset URL.
// It reports whether the record was mutated; an illegal edge leaves the job
// untouched.
func (j *Job) Transition(to string, now time.Time) bool {
	if !CanTransition(j.Status, to) {
		return false
	}
	j.Status = to
	switch to {
	case StatusReady:
		if j.ReadyAt == nil {
			t := now.UTC()
			j.ReadyAt = &t
		}
	case StatusShared:
		if j.SharedAt == nil {
			t := now.UTC()
			j.SharedAt = &t
		}
	case StatusArchived:
		j.TempAssetURL = nil
	}
	return true
}
