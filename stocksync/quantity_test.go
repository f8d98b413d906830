package stocksync

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/stockverify_backend/models"
	"bitbucket.org/mmdatafocus/stockverify_backend/syncerr"
)

func TestSyncQuantitiesCreatesUnknownItems(t *testing.T) {
	src := newFakeSource(
		models.ErpItem{ItemCode: "ITEM001", ItemName: "Blue Widget", StockQty: dec("42.5"), Barcode: "890111", Mrp: dec("199.99")},
		models.ErpItem{ItemCode: "ITEM002", ItemName: "Red Widget", StockQty: dec("7"), Barcode: "890222"},
	)
	items := newFakeItemStore()
	meta := newFakeMetaStore()
	e := newTestEngine(src, items, meta)

	stats, err := e.syncQuantities(context.Background())
	if err != nil {
		t.Fatalf("syncQuantities: %v", err)
	}
	if stats.ItemsChecked != 2 || stats.ItemsCreated != 2 || stats.Errors != 0 {
		t.Fatalf("stats = %+v, want 2 checked, 2 created, 0 errors", stats)
	}

	doc := items.docs["ITEM001"]
	if doc == nil {
		t.Fatalf("ITEM001 was not created")
	}
	if !doc.StockQty.Equal(dec("42.5")) || !doc.SqlServerQty.Equal(dec("42.5")) {
		t.Fatalf("created quantities wrong: %+v", doc)
	}
	if !doc.SyncedFromSql || doc.LastSynced == nil {
		t.Fatalf("created document missing sync markers: %+v", doc)
	}

	rec := meta.docs[models.SyncTypeQuantity]
	if rec == nil || rec.TotalSyncs != 1 || rec.LastSync == nil {
		t.Fatalf("sync metadata not recorded: %+v", rec)
	}
}

func TestSyncQuantitiesIsIdempotent(t *testing.T) {
	src := newFakeSource(
		models.ErpItem{ItemCode: "ITEM001", ItemName: "Blue Widget", StockQty: dec("42.5"), Barcode: "890111"},
	)
	items := newFakeItemStore()
	meta := newFakeMetaStore()
	e := newTestEngine(src, items, meta)

	if _, err := e.syncQuantities(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	writesAfterFirst := items.writes

	stats, err := e.syncQuantities(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.QtyUpdated != 0 || stats.ItemsCreated != 0 || stats.FieldsBackfilled != 0 {
		t.Fatalf("second run against unchanged ERP wrote something: %+v", stats)
	}
	if items.writes != writesAfterFirst {
		t.Fatalf("item writes went %d -> %d on an unchanged snapshot", writesAfterFirst, items.writes)
	}
}

func TestSyncQuantitiesDetectsQuantityChange(t *testing.T) {
	src := newFakeSource(
		models.ErpItem{ItemCode: "ITEM001", StockQty: dec("42.5")},
	)
	items := newFakeItemStore()
	meta := newFakeMetaStore()
	e := newTestEngine(src, items, meta)

	if _, err := e.syncQuantities(context.Background()); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	src.mu.Lock()
	src.items[0].StockQty = dec("40")
	src.mu.Unlock()

	stats, err := e.syncQuantities(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.QtyUpdated != 1 || stats.QtyChangesDetected != 1 {
		t.Fatalf("stats = %+v, want one quantity update", stats)
	}

	doc := items.docs["ITEM001"]
	if !doc.StockQty.Equal(dec("40")) {
		t.Fatalf("stock_qty = %s, want 40", doc.StockQty)
	}
	if !doc.QtyChangeDelta.Equal(dec("-2.5")) {
		t.Fatalf("qty_change_delta = %s, want -2.5", doc.QtyChangeDelta)
	}
	if doc.QtyChangedAt == nil {
		t.Fatalf("qty_changed_at not stamped")
	}
}

func TestSyncQuantitiesPreservesEnrichment(t *testing.T) {
	src := newFakeSource(
		models.ErpItem{ItemCode: "ITEM001", ItemName: "Erp Name", StockQty: dec("10"), HsnCode: "8471"},
	)
	items := newFakeItemStore()
	now := time.Now()
	items.docs["ITEM001"] = &models.OperationalItem{
		ItemCode:     "ITEM001",
		ItemName:     "Operator Name",
		StockQty:     dec("5"),
		SerialNumber: "SN-1",
		Location:     "Aisle 4",
		HsnCode:      "4444",
		LastSynced:   &now,
	}
	meta := newFakeMetaStore()
	e := newTestEngine(src, items, meta)

	if _, err := e.syncQuantities(context.Background()); err != nil {
		t.Fatalf("syncQuantities: %v", err)
	}

	doc := items.docs["ITEM001"]
	if !doc.StockQty.Equal(dec("10")) {
		t.Fatalf("quantity must be overwritten, got %s", doc.StockQty)
	}
	if doc.SerialNumber != "SN-1" || doc.Location != "Aisle 4" {
		t.Fatalf("enrichment fields were clobbered: %+v", doc)
	}
	if doc.HsnCode != "4444" {
		t.Fatalf("non-empty hsn_code was overwritten to %s", doc.HsnCode)
	}
	if doc.ItemName != "Operator Name" {
		t.Fatalf("quantity engine overwrote item_name to %s", doc.ItemName)
	}
}

func TestSyncQuantitiesBackfillsEmptySlots(t *testing.T) {
	src := newFakeSource(
		models.ErpItem{ItemCode: "ITEM001", StockQty: dec("10"), Brand: "Acme", HsnCode: "8471", Mrp: dec("150")},
	)
	items := newFakeItemStore()
	items.docs["ITEM001"] = &models.OperationalItem{ItemCode: "ITEM001", StockQty: dec("10")}
	meta := newFakeMetaStore()
	e := newTestEngine(src, items, meta)

	stats, err := e.syncQuantities(context.Background())
	if err != nil {
		t.Fatalf("syncQuantities: %v", err)
	}
	if stats.FieldsBackfilled != 3 {
		t.Fatalf("fields backfilled = %d, want 3 (brand, hsn_code, mrp)", stats.FieldsBackfilled)
	}
	doc := items.docs["ITEM001"]
	if doc.Brand != "Acme" || doc.HsnCode != "8471" || !doc.Mrp.Equal(dec("150")) {
		t.Fatalf("backfill not applied: %+v", doc)
	}
}

func TestBackfillSkipsSlotFilledBetweenReadAndWrite(t *testing.T) {
	src := newFakeSource(
		models.ErpItem{ItemCode: "ITEM001", StockQty: dec("10"), Brand: "ErpBrand"},
	)
	items := newFakeItemStore()
	items.docs["ITEM001"] = &models.OperationalItem{ItemCode: "ITEM001", StockQty: dec("10")}
	meta := newFakeMetaStore()
	e := newTestEngine(src, items, meta)

	// A user enrichment fills the brand slot after the engine's read but
	// before the backfill write lands.
	items.afterFind = func(code string) {
		items.mu.Lock()
		items.docs[code].Brand = "UserBrand"
		items.afterFind = nil
		items.mu.Unlock()
	}

	if _, err := e.syncQuantities(context.Background()); err != nil {
		t.Fatalf("syncQuantities: %v", err)
	}
	if got := items.docs["ITEM001"].Brand; got != "UserBrand" {
		t.Fatalf("brand = %q, want the concurrent enrichment to win over the backfill", got)
	}
}

func TestSyncQuantitiesIsolatesPerItemFailures(t *testing.T) {
	src := newFakeSource(
		models.ErpItem{ItemCode: "ITEM001", StockQty: dec("1")},
		models.ErpItem{ItemCode: "ITEM002", StockQty: dec("2")},
		models.ErpItem{ItemCode: "ITEM003", StockQty: dec("3")},
	)
	items := newFakeItemStore()
	items.insertErrFor["ITEM002"] = errors.New("write conflict")
	meta := newFakeMetaStore()
	e := newTestEngine(src, items, meta)

	stats, err := e.syncQuantities(context.Background())
	if err != nil {
		t.Fatalf("a per-item failure must not fail the cycle: %v", err)
	}
	if stats.Errors != 1 || stats.ItemsChecked != 2 {
		t.Fatalf("stats = %+v, want errors=1 checked=2", stats)
	}
	if items.docs["ITEM001"] == nil || items.docs["ITEM003"] == nil {
		t.Fatalf("items after the failing one were not processed")
	}
}

func TestSyncQuantitiesCountsEmptyItemCodeAsError(t *testing.T) {
	src := newFakeSource(
		models.ErpItem{ItemCode: "", StockQty: dec("1")},
		models.ErpItem{ItemCode: "ITEM002", StockQty: dec("2")},
	)
	items := newFakeItemStore()
	meta := newFakeMetaStore()
	e := newTestEngine(src, items, meta)

	stats, err := e.syncQuantities(context.Background())
	if err != nil {
		t.Fatalf("syncQuantities: %v", err)
	}
	if stats.Errors != 1 || stats.ItemsChecked != 1 {
		t.Fatalf("stats = %+v, want errors=1 checked=1", stats)
	}
}

func TestSyncQuantitiesFailsFastWhenErpUnreachable(t *testing.T) {
	src := newFakeSource(models.ErpItem{ItemCode: "ITEM001", StockQty: dec("1")})
	src.connected = false
	items := newFakeItemStore()
	meta := newFakeMetaStore()
	e := newTestEngine(src, items, meta)

	_, err := e.syncQuantities(context.Background())
	if !errors.Is(err, syncerr.ErrConnection) {
		t.Fatalf("err = %v, want connection error", err)
	}
	if items.writes != 0 {
		t.Fatalf("no writes may happen when the ERP is down")
	}
	if meta.records != 0 {
		t.Fatalf("a failed cycle must not record sync metadata")
	}
}
