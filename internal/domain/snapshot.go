package domain

import "time"

// SyncStatus describes the engine's relationship to the upstream record.
// Exactly one value is active at a time.
type SyncStatus string

const (
	StatusSynced  SyncStatus = "synced"
	StatusSyncing SyncStatus = "syncing"
	StatusError   SyncStatus = "error"
)

// Snapshot is an immutable point-in-time copy of engine state, taken before
// each optimistic mutation so a failed upstream call can be reverted exactly.
// The rollback controller owns a single slot; a snapshot is discarded as soon
// as its operation resolves.
type Snapshot struct {
	Wishlist Wishlist
	ErrorMsg string
	Status   SyncStatus
	TakenAt  time.Time
}

// NewSnapshot captures the given state. The wishlist is deep-copied so later
// mutations cannot leak into the snapshot.
func NewSnapshot(w Wishlist, errMsg string, status SyncStatus) Snapshot {
	return Snapshot{
		Wishlist: w.Clone(),
		ErrorMsg: errMsg,
		Status:   status,
		TakenAt:  time.Now().UTC(),
	}
}
