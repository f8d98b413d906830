package stocksync

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/stockverify_backend/models"
	"github.com/shopspring/decimal"
)

// ErpSource is the read-only view of the ERP system. All calls are fallible;
// the ERP may be unavailable at any time.
type ErpSource interface {
	TestConnection(ctx context.Context) bool
	GetAllItems(ctx context.Context) ([]models.ErpItem, error)
	GetItemQuantitiesOnly(ctx context.Context) (map[string]decimal.Decimal, error)
	GetItemByCode(ctx context.Context, code string) (*models.ErpItem, error)
	GetChangedItems(ctx context.Context, since *time.Time) ([]models.ErpItem, error)
	ChangeTrackingConfigured() bool
}

// ItemStore is the operational document store for items.
type ItemStore interface {
	// FindByCode returns nil, nil when no document exists.
	FindByCode(ctx context.Context, code string) (*models.OperationalItem, error)
	Insert(ctx context.Context, item *models.OperationalItem) error
	// ApplyQuantity atomically overwrites the quantity fields iff the stored
	// stock_qty differs from qty, maintaining qty_changed_at, qty_change_delta,
	// sql_server_qty and last_synced in the same store operation. Reports
	// whether a write happened. The compare and the write are one atomic store
	// operation, never a read followed by a write.
	ApplyQuantity(ctx context.Context, code string, qty decimal.Decimal, now time.Time) (bool, error)
	// BackfillEmptyFields applies each field only while its stored slot is
	// still empty (zero for decimals). The emptiness check and the write are
	// one atomic update, so an enrichment landing after the caller's read is
	// never overwritten.
	BackfillEmptyFields(ctx context.Context, code string, fields map[string]any) error
	TouchLastChecked(ctx context.Context, code string, now time.Time) error
	// BulkSetByBarcode applies every update in one bulk round trip with
	// upsert disabled; only the quantity engine creates documents.
	BulkSetByBarcode(ctx context.Context, updates []BarcodeUpdate) (matched, modified, upserted int64, err error)
}

type BarcodeUpdate struct {
	Barcode string
	Fields  map[string]any
}

// MetaStore persists per-sync-type state in sync_metadata.
type MetaStore interface {
	// Get returns nil, nil when the sync type has never run.
	Get(ctx context.Context, syncType string) (*models.SyncMetadata, error)
	// Record upserts the document with $set last_sync/stats and $inc total_syncs.
	Record(ctx context.Context, syncType string, lastSync time.Time, stats any) error
}

// StockSyncEvent is published after a batch cycle that changed anything.
type StockSyncEvent struct {
	SyncType      string      `json:"sync_type"`
	TriggeredBy   string      `json:"triggered_by"`
	Stats         interface{} `json:"stats"`
	CorrelationId string      `json:"correlation_id,omitempty"`
	FinishedAt    time.Time   `json:"finished_at"`
}

// EventPublisher pushes cycle events to downstream consumers (dashboards,
// risk scoring). Publish failures never fail a cycle.
type EventPublisher interface {
	PublishSyncEvent(ctx context.Context, ev StockSyncEvent) error
}

// CycleLocker serializes batch cycles across service replicas. Obtain reports
// obtained=false without error when another replica holds the lock.
type CycleLocker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(), obtained bool, err error)
}

// RefreshResult is the outcome of a real-time single-item quantity check.
type RefreshResult struct {
	ItemCode  string           `json:"item_code"`
	Updated   bool             `json:"updated"`
	Source    string           `json:"source"`
	StockQty  decimal.Decimal  `json:"stock_qty"`
	OldQty    *decimal.Decimal `json:"old_qty,omitempty"`
	Delta     *decimal.Decimal `json:"qty_change_delta,omitempty"`
	CheckedAt time.Time        `json:"checked_at"`
}

// LoopStatus is the operator-facing snapshot of one sync loop.
type LoopStatus struct {
	Enabled         bool       `json:"enabled"`
	IntervalSeconds int        `json:"interval_seconds"`
	LastSync        *time.Time `json:"last_sync,omitempty"`
	NextSyncInSecs  int        `json:"next_sync_in_seconds"`
	TotalSyncs      int64      `json:"total_syncs"`
	SuccessfulSyncs int64      `json:"successful_syncs"`
	FailedSyncs     int64      `json:"failed_syncs"`
	ItemsChecked    int64      `json:"items_checked"`
	ItemsUpdated    int64      `json:"items_updated"`
	AvgCycleMs      float64    `json:"avg_cycle_ms"`
	LastError       string     `json:"last_error,omitempty"`
}

// EngineStatus aggregates both loops.
type EngineStatus struct {
	Running         bool       `json:"running"`
	ChangeTracking  bool       `json:"change_tracking_configured"`
	Quantity        LoopStatus `json:"quantity"`
	ChangeDetection LoopStatus `json:"change_detection"`
}
