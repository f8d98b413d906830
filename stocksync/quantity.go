package stocksync

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/stockverify_backend/models"
	"bitbucket.org/mmdatafocus/stockverify_backend/syncerr"
	"github.com/sirupsen/logrus"
)

// syncQuantities reconciles stock_qty for every ERP item, creating missing
// documents and repairing empty metadata slots along the way. Per-item errors
// are counted and skipped; a single bad record never aborts the batch. Running
// twice against an unchanged ERP snapshot produces zero further item writes.
func (e *Engine) syncQuantities(ctx context.Context) (models.QuantitySyncStats, error) {
	start := time.Now()
	stats := models.QuantitySyncStats{}

	if !e.source.TestConnection(ctx) {
		return stats, syncerr.Wrap(syncerr.ErrConnection, "quantity sync", fmt.Errorf("erp unreachable"))
	}

	items, err := e.source.GetAllItems(ctx)
	if err != nil {
		return stats, err
	}

	now := time.Now()
	for _, batch := range partition(items, e.batchSize) {
		for _, src := range batch {
			if err := e.syncOneQuantity(ctx, src, now, &stats); err != nil {
				stats.Errors++
				e.logger.WithFields(logrus.Fields{
					"module":    "stocksync",
					"funcName":  "syncQuantities",
					"item_code": src.ItemCode,
				}).Warn(err.Error())
				continue
			}
			stats.ItemsChecked++
		}
	}

	stats.DurationMs = time.Since(start).Milliseconds()
	if err := e.meta.Record(ctx, models.SyncTypeQuantity, now, stats); err != nil {
		return stats, syncerr.Wrap(syncerr.ErrDatabase, "record quantity sync metadata", err)
	}
	return stats, nil
}

func (e *Engine) syncOneQuantity(ctx context.Context, src models.ErpItem, now time.Time, stats *models.QuantitySyncStats) error {
	if src.ItemCode == "" {
		return syncerr.Wrap(syncerr.ErrValidation, "sync item", fmt.Errorf("item code is empty"))
	}

	existing, err := e.items.FindByCode(ctx, src.ItemCode)
	if err != nil {
		return err
	}

	if existing == nil {
		doc := NewOperationalItem(src, now)
		if err := e.items.Insert(ctx, doc); err != nil {
			return err
		}
		stats.ItemsCreated++
		return nil
	}

	// The store's compare-and-set decides whether the quantity actually moved;
	// the filter and write are one atomic operation.
	if QuantityChanged(*existing, src.StockQty) {
		changed, err := e.items.ApplyQuantity(ctx, src.ItemCode, src.StockQty, now)
		if err != nil {
			return err
		}
		if changed {
			stats.QtyUpdated++
			stats.QtyChangesDetected++
		}
	}

	// Repair metadata slots that are still empty, independent of the quantity
	// outcome. This fixes items created before a given field existed. The
	// store re-checks emptiness inside the write itself.
	if fields := BackfillFields(existing, src); len(fields) > 0 {
		if err := e.items.BackfillEmptyFields(ctx, src.ItemCode, fields); err != nil {
			return err
		}
		stats.FieldsBackfilled += len(fields)
	}

	return nil
}

// partition splits items into fixed-size batches to bound per-step work.
func partition(items []models.ErpItem, size int) [][]models.ErpItem {
	if size <= 0 {
		size = defaultBatchSize
	}
	var out [][]models.ErpItem
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
