package stocksync

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/stockverify_backend/models"
	"github.com/shopspring/decimal"
)

func TestQuantityChangedExactComparison(t *testing.T) {
	stored := models.OperationalItem{StockQty: dec("10.000")}
	if QuantityChanged(stored, dec("10")) {
		t.Fatalf("10.000 and 10 must compare equal")
	}
	if !QuantityChanged(stored, dec("10.001")) {
		t.Fatalf("10.000 and 10.001 must compare different")
	}
}

func TestNewOperationalItemCarriesErpFields(t *testing.T) {
	now := time.Now()
	src := models.ErpItem{
		ItemCode:  "ITEM001",
		ItemName:  "Blue Widget",
		StockQty:  dec("42.5"),
		Mrp:       dec("199.99"),
		Barcode:   "8901234567890",
		Category:  "Widgets",
		Warehouse: "WH1",
		Brand:     "Acme",
		HsnCode:   "8471",
	}

	doc := NewOperationalItem(src, now)

	if doc.ItemCode != "ITEM001" || doc.ItemName != "Blue Widget" {
		t.Fatalf("identity fields not carried: %+v", doc)
	}
	if !doc.StockQty.Equal(dec("42.5")) || !doc.SqlServerQty.Equal(dec("42.5")) {
		t.Fatalf("quantity fields not carried: stock=%s sql=%s", doc.StockQty, doc.SqlServerQty)
	}
	if !doc.SyncedFromSql {
		t.Fatalf("new document must be marked synced from sql")
	}
	if doc.LastSynced == nil || !doc.LastSynced.Equal(now) {
		t.Fatalf("last_synced not set to sync time")
	}
	if doc.DataComplete {
		t.Fatalf("new document cannot be data complete")
	}
	if len(doc.MissingFields) != 1 || doc.MissingFields[0] != "serial_number" {
		t.Fatalf("missing_fields = %v, want [serial_number]", doc.MissingFields)
	}
	if doc.SerialNumber != "" || doc.Location != "" {
		t.Fatalf("enrichment fields must start empty")
	}
}

func TestBackfillFieldsOnlyFillsEmptySlots(t *testing.T) {
	stored := &models.OperationalItem{
		ItemCode: "ITEM001",
		ItemName: "Edited By Operator",
		Brand:    "",
		HsnCode:  "  ",
		Mrp:      dec("0"),
	}
	src := models.ErpItem{
		ItemCode: "ITEM001",
		ItemName: "Erp Name",
		Brand:    " Acme ",
		HsnCode:  "8471",
		Mrp:      dec("150"),
	}

	fields := BackfillFields(stored, src)

	if _, ok := fields["item_name"]; ok {
		t.Fatalf("non-empty item_name must never be overwritten by backfill")
	}
	if got := fields["brand"]; got != "Acme" {
		t.Fatalf("brand = %v, want trimmed Acme", got)
	}
	if got := fields["hsn_code"]; got != "8471" {
		t.Fatalf("whitespace-only hsn_code counts as empty, got %v", got)
	}
	mrp, ok := fields["mrp"]
	if !ok {
		t.Fatalf("zero mrp slot must be backfilled")
	}
	if !mrp.(decimal.Decimal).Equal(dec("150")) {
		t.Fatalf("mrp = %v, want 150", mrp)
	}
}

func TestBackfillFieldsHappensAtMostOnce(t *testing.T) {
	stored := &models.OperationalItem{ItemCode: "ITEM001"}
	src := models.ErpItem{ItemCode: "ITEM001", Brand: "Acme", Mrp: dec("150")}

	first := BackfillFields(stored, src)
	if len(first) == 0 {
		t.Fatalf("first pass must backfill something")
	}

	// Apply the backfill, then run again with the ERP now supplying different
	// values. The filled slots must not move.
	stored.Brand = "Acme"
	stored.Mrp = dec("150")
	src2 := models.ErpItem{ItemCode: "ITEM001", Brand: "OtherBrand", Mrp: dec("200")}
	second := BackfillFields(stored, src2)
	if len(second) != 0 {
		t.Fatalf("second pass must be empty, got %v", second)
	}
}

func TestBackfillNeverProposesEnrichmentOverwrite(t *testing.T) {
	stored := &models.OperationalItem{
		ItemCode:     "ITEM001",
		SerialNumber: "SN-123",
		Location:     "Aisle 4",
		HsnCode:      "9999",
	}
	src := models.ErpItem{ItemCode: "ITEM001", HsnCode: "8471"}

	fields := BackfillFields(stored, src)
	for _, k := range []string{"serial_number", "location", "floor", "rack", "condition", "hsn_code"} {
		if _, ok := fields[k]; ok {
			t.Fatalf("backfill proposed overwrite of %s", k)
		}
	}
}

func TestChangeDetectionFieldsAreErpAuthoritativeOnly(t *testing.T) {
	now := time.Now()
	src := models.ErpItem{
		ItemCode:   "ITEM001",
		ItemName:   "Renamed Widget",
		AltBarcode: "ALT-1",
		Mrp:        dec("175"),
		Barcode:    "8901234567890",
	}

	fields := ChangeDetectionFields(src, now)

	if fields["item_name"] != "Renamed Widget" {
		t.Fatalf("item_name missing from overwrite set")
	}
	if fields["alt_barcode"] != "ALT-1" {
		t.Fatalf("alt_barcode missing from overwrite set")
	}
	if !fields["mrp"].(decimal.Decimal).Equal(dec("175")) {
		t.Fatalf("mrp = %v, want 175", fields["mrp"])
	}
	if _, ok := fields["last_updated"]; !ok {
		t.Fatalf("last_updated must be stamped")
	}
	for _, k := range []string{"stock_qty", "serial_number", "location", "barcode"} {
		if _, ok := fields[k]; ok {
			t.Fatalf("%s must not be in the change-detection overwrite set", k)
		}
	}
}
