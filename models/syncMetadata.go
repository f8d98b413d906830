package models

import "time"

// Named sync types. Each owns one sync_metadata document.
const (
	SyncTypeQuantity        = "sql_qty_sync"
	SyncTypeChangeDetection = "change_detection_sync"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredSystem = "system"
)

// QuantitySyncStats is the aggregate result of one quantity sync cycle.
// Per-item failures are counted under Errors; they never abort the cycle.
type QuantitySyncStats struct {
	ItemsChecked       int   `bson:"items_checked" json:"items_checked"`
	ItemsCreated       int   `bson:"items_created" json:"items_created"`
	QtyUpdated         int   `bson:"qty_updated" json:"qty_updated"`
	QtyChangesDetected int   `bson:"qty_changes_detected" json:"qty_changes_detected"`
	FieldsBackfilled   int   `bson:"fields_backfilled" json:"fields_backfilled"`
	Errors             int   `bson:"errors" json:"errors"`
	DurationMs         int64 `bson:"duration_ms" json:"duration_ms"`
}

// ChangeSyncStats is the aggregate result of one change-detection cycle.
// A cycle is all-or-nothing: on failure nothing here is persisted and the
// watermark does not advance.
type ChangeSyncStats struct {
	ItemsChecked int   `bson:"items_checked" json:"items_checked"`
	Skipped      int   `bson:"skipped" json:"skipped"`
	Matched      int64 `bson:"matched" json:"matched"`
	Modified     int64 `bson:"modified" json:"modified"`
	Upserted     int64 `bson:"upserted" json:"upserted"`
	DurationMs   int64 `bson:"duration_ms" json:"duration_ms"`
}

// SyncMetadata is the persisted state of one named sync type, one document per
// sync type in the sync_metadata collection. Updates are upserts with
// $set/$inc so replays are idempotent.
type SyncMetadata struct {
	SyncType   string      `bson:"sync_type" json:"sync_type"`
	LastSync   *time.Time  `bson:"last_sync,omitempty" json:"last_sync,omitempty"`
	Stats      interface{} `bson:"stats,omitempty" json:"stats,omitempty"`
	TotalSyncs int64       `bson:"total_syncs" json:"total_syncs"`
	UpdatedAt  time.Time   `bson:"updated_at" json:"updated_at"`
}
