package models

// SyncState tags a locally mutated entity with how far its change got.
type SyncState string

const (
	SyncConfirmed SyncState = "confirmed"
	SyncTentative SyncState = "tentative"
	SyncFailed    SyncState = "failed"
)
