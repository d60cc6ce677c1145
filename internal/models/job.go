package models

import (
	"time"
)

// JobStatus values persisted on the job record.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusShared     = "shared"
	StatusArchived   = "archived"
	StatusFailed     = "failed"
)

// Job represents one render-and-publish unit of work. It is the only
// persistent entity; every component reads and writes the full record.
type Job struct {
	ID                string     `json:"id"`
	OwnerFID          int64      `json:"owner_fid"`
	Prompt            string     `json:"prompt"`
	InputRef          string     `json:"input_ref,omitempty"`
	Status            string     `json:"status"`
	TempAssetURL      *string    `json:"temp_asset_url,omitempty"`
	PermanentAssetURL *string    `json:"permanent_asset_url,omitempty"`
	ShareRef          *string    `json:"share_ref,omitempty"`
	LastError         *string    `json:"last_error,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ReadyAt           *time.Time `json:"ready_at,omitempty"`
	SharedAt          *time.Time `json:"shared_at,omitempty"`
}
