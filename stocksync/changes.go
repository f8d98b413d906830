package stocksync

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/stockverify_backend/models"
	"bitbucket.org/mmdatafocus/stockverify_backend/syncerr"
	"github.com/sirupsen/logrus"
)

// syncChanges reconciles the ERP-authoritative metadata fields (item_name,
// alt_barcode, mrp) for records modified since the last successful cycle.
//
// Unlike the quantity engine this cycle is all-or-nothing: the last_sync
// watermark narrows the next query, so a partially applied cycle that advanced
// the watermark would silently drop the unapplied changes forever. On any
// failure the watermark stays where it was and the next cycle retries the same
// window.
func (e *Engine) syncChanges(ctx context.Context) (models.ChangeSyncStats, error) {
	start := time.Now()
	stats := models.ChangeSyncStats{}

	if !e.source.TestConnection(ctx) {
		return stats, syncerr.Wrap(syncerr.ErrConnection, "change detection", fmt.Errorf("erp unreachable"))
	}

	var since *time.Time
	prev, err := e.meta.Get(ctx, models.SyncTypeChangeDetection)
	if err != nil {
		return stats, syncerr.Wrap(syncerr.ErrDatabase, "load change-detection watermark", err)
	}
	if prev != nil {
		since = prev.LastSync
	}
	if since == nil || !e.source.ChangeTrackingConfigured() {
		e.logger.WithFields(logrus.Fields{
			"module":   "stocksync",
			"funcName": "syncChanges",
		}).Info("no usable watermark; scanning all items")
	}

	// The new watermark is the cycle start, captured before the query, so
	// records modified mid-query land in the next window instead of a gap.
	watermark := start

	candidates, err := e.source.GetChangedItems(ctx, since)
	if err != nil {
		return stats, err
	}

	updates := make([]BarcodeUpdate, 0, len(candidates))
	now := time.Now()
	for _, src := range candidates {
		if src.Barcode == "" {
			// Barcode is the join key for this engine; without it there is no
			// document to target.
			stats.Skipped++
			e.logger.WithFields(logrus.Fields{
				"module":    "stocksync",
				"funcName":  "syncChanges",
				"item_code": src.ItemCode,
			}).Warn("changed candidate has no barcode; skipping")
			continue
		}
		updates = append(updates, BarcodeUpdate{
			Barcode: src.Barcode,
			Fields:  ChangeDetectionFields(src, now),
		})
	}
	stats.ItemsChecked = len(candidates)

	if len(updates) > 0 {
		matched, modified, upserted, err := e.items.BulkSetByBarcode(ctx, updates)
		if err != nil {
			return stats, syncerr.Wrap(syncerr.ErrDatabase, "bulk metadata update", err)
		}
		stats.Matched = matched
		stats.Modified = modified
		stats.Upserted = upserted
	}

	stats.DurationMs = time.Since(start).Milliseconds()
	if err := e.meta.Record(ctx, models.SyncTypeChangeDetection, watermark, stats); err != nil {
		return stats, syncerr.Wrap(syncerr.ErrDatabase, "record change-detection metadata", err)
	}
	return stats, nil
}
