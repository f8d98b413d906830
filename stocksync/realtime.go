package stocksync

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/stockverify_backend/models"
	"bitbucket.org/mmdatafocus/stockverify_backend/syncerr"
)

// CheckItemQuantityRealtime checks one item against the ERP on the request
// path, so a count about to start reflects the freshest known quantity.
//
// Degradation is explicit, never silent: if the ERP cannot be reached the
// cached document is returned tagged with its source and nothing is written.
// Document creation stays the quantity engine's exclusive job, so an item the
// store has never seen is reported but not created here.
func (e *Engine) CheckItemQuantityRealtime(ctx context.Context, itemCode string) (RefreshResult, error) {
	if itemCode == "" {
		return RefreshResult{}, syncerr.Wrap(syncerr.ErrValidation, "realtime check", fmt.Errorf("item code is empty"))
	}

	if e.cache != nil {
		if res, ok := e.cache.Get(itemCode); ok {
			return *res, nil
		}
	}

	now := time.Now()
	existing, err := e.items.FindByCode(ctx, itemCode)
	if err != nil {
		return RefreshResult{}, err
	}

	src, srcErr := e.fetchSourceItem(ctx, itemCode)
	if srcErr != nil || src == nil {
		// ERP unreachable or the ERP does not know the item: fall back to the
		// cached document.
		if existing == nil {
			if srcErr != nil {
				return RefreshResult{}, srcErr
			}
			return RefreshResult{}, syncerr.Wrap(syncerr.ErrValidation, "realtime check", fmt.Errorf("item %s not found", itemCode))
		}
		return RefreshResult{
			ItemCode:  itemCode,
			Updated:   false,
			Source:    models.SourceMongoCache,
			StockQty:  existing.StockQty,
			CheckedAt: now,
		}, nil
	}

	if existing == nil {
		return RefreshResult{
			ItemCode:  itemCode,
			Updated:   false,
			Source:    models.SourceSQLServer,
			StockQty:  src.StockQty,
			CheckedAt: now,
		}, nil
	}

	res := RefreshResult{
		ItemCode:  itemCode,
		Source:    models.SourceSQLServer,
		StockQty:  src.StockQty,
		CheckedAt: now,
	}

	// Same comparison and field-touch rules as the batch engine; the store's
	// atomic compare-and-set means an interleaved batch cycle cannot produce a
	// lost update.
	changed, err := e.items.ApplyQuantity(ctx, itemCode, src.StockQty, now)
	if err != nil {
		return RefreshResult{}, err
	}
	if changed {
		old := existing.StockQty
		delta := src.StockQty.Sub(old)
		res.Updated = true
		res.OldQty = &old
		res.Delta = &delta
	} else {
		res.StockQty = existing.StockQty
		if err := e.items.TouchLastChecked(ctx, itemCode, now); err != nil {
			return RefreshResult{}, err
		}
	}

	if e.cache != nil {
		e.cache.Set(itemCode, &res)
	}
	return res, nil
}

// fetchSourceItem treats any ERP failure as unreachability; the caller decides
// how to degrade.
func (e *Engine) fetchSourceItem(ctx context.Context, itemCode string) (*models.ErpItem, error) {
	if !e.source.TestConnection(ctx) {
		return nil, syncerr.Wrap(syncerr.ErrConnection, "realtime check", fmt.Errorf("erp unreachable"))
	}
	src, err := e.source.GetItemByCode(ctx, itemCode)
	if err != nil {
		return nil, err
	}
	return src, nil
}
