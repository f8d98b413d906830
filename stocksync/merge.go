package stocksync

import (
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockverify_backend/models"
	"github.com/shopspring/decimal"
)

// Merge policy: pure decisions about which ERP values may reach a stored item.
//
// Three field classes exist:
//   - quantity fields (stock_qty, sql_server_qty): overwritten whenever the ERP
//     value differs, with qty_changed_at/qty_change_delta maintained by the
//     store's atomic update;
//   - enrichment fields (serial_number, condition, location, floor, rack and
//     the user-entered hsn_code): never overwritten once set, backfilled at
//     most once into an empty slot;
//   - change-detection fields (item_name, alt_barcode, mrp): ERP-authoritative,
//     overwritten unconditionally by the change-detection engine. mrp belongs
//     to this class; the quantity engine only ever backfills it into an empty
//     slot.

// QuantityChanged reports whether the ERP quantity differs from the stored one.
// Exact comparison, no epsilon: quantities are discrete decimal counts.
func QuantityChanged(stored models.OperationalItem, incoming decimal.Decimal) bool {
	return !stored.StockQty.Equal(incoming)
}

// NewOperationalItem builds the document for an item the operational store has
// never seen. All ERP descriptive/pricing/supplier/batch fields carry forward;
// enrichment starts empty with serial_number flagged missing.
func NewOperationalItem(src models.ErpItem, now time.Time) *models.OperationalItem {
	return &models.OperationalItem{
		ItemCode:  src.ItemCode,
		ItemName:  src.ItemName,
		StockQty:  src.StockQty,
		Mrp:       src.Mrp,
		Barcode:   src.Barcode,
		Category:  src.Category,
		Warehouse: src.Warehouse,

		Description: src.Description,
		Brand:       src.Brand,
		ModelNumber: src.ModelNumber,
		Size:        src.Size,
		Color:       src.Color,
		Unit:        src.Unit,
		PackSize:    src.PackSize,
		GroupName:   src.GroupName,
		SubCategory: src.SubCategory,
		AltBarcode:  src.AltBarcode,
		Uom:         src.Uom,
		HsnCode:     src.HsnCode,

		PurchaseRate:    src.PurchaseRate,
		SellingPrice:    src.SellingPrice,
		WholesalePrice:  src.WholesalePrice,
		DiscountPercent: src.DiscountPercent,
		TaxPercent:      src.TaxPercent,
		CessPercent:     src.CessPercent,

		SupplierCode: src.SupplierCode,
		SupplierName: src.SupplierName,
		Company:      src.Company,
		Division:     src.Division,

		BatchNumber:      src.BatchNumber,
		MfgDate:          src.MfgDate,
		ExpiryDate:       src.ExpiryDate,
		Godown:           src.Godown,
		MinStock:         src.MinStock,
		MaxStock:         src.MaxStock,
		ReorderLevel:     src.ReorderLevel,
		ConversionFactor: src.ConversionFactor,
		LastPurchaseDate: src.LastPurchaseDate,

		DataComplete:  false,
		MissingFields: []string{"serial_number"},

		SqlServerQty:  src.StockQty,
		SyncedFromSql: true,
		LastSynced:    &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// BackfillFields returns the $set document repairing fields that are currently
// empty on the stored item and for which the ERP supplies a value. A non-empty
// stored value is never replaced, so a backfill happens at most once per field.
func BackfillFields(stored *models.OperationalItem, src models.ErpItem) map[string]any {
	out := map[string]any{}

	setIfEmpty := func(field, storedVal, candidate string) {
		if strings.TrimSpace(storedVal) == "" && strings.TrimSpace(candidate) != "" {
			out[field] = strings.TrimSpace(candidate)
		}
	}

	setIfEmpty("item_name", stored.ItemName, src.ItemName)
	setIfEmpty("barcode", stored.Barcode, src.Barcode)
	setIfEmpty("category", stored.Category, src.Category)
	setIfEmpty("warehouse", stored.Warehouse, src.Warehouse)
	setIfEmpty("description", stored.Description, src.Description)
	setIfEmpty("brand", stored.Brand, src.Brand)
	setIfEmpty("model_number", stored.ModelNumber, src.ModelNumber)
	setIfEmpty("size", stored.Size, src.Size)
	setIfEmpty("color", stored.Color, src.Color)
	setIfEmpty("unit", stored.Unit, src.Unit)
	setIfEmpty("pack_size", stored.PackSize, src.PackSize)
	setIfEmpty("group_name", stored.GroupName, src.GroupName)
	setIfEmpty("sub_category", stored.SubCategory, src.SubCategory)
	setIfEmpty("alt_barcode", stored.AltBarcode, src.AltBarcode)
	setIfEmpty("uom", stored.Uom, src.Uom)
	setIfEmpty("supplier_code", stored.SupplierCode, src.SupplierCode)
	setIfEmpty("supplier_name", stored.SupplierName, src.SupplierName)
	setIfEmpty("company", stored.Company, src.Company)
	setIfEmpty("division", stored.Division, src.Division)
	setIfEmpty("batch_number", stored.BatchNumber, src.BatchNumber)
	setIfEmpty("godown", stored.Godown, src.Godown)

	// hsn_code is user-enrichable; the ERP value fills the slot only while it
	// is still empty.
	setIfEmpty("hsn_code", stored.HsnCode, src.HsnCode)

	if stored.Mrp.IsZero() && !src.Mrp.IsZero() {
		out["mrp"] = src.Mrp
	}

	return out
}

// ChangeDetectionFields returns the unconditional overwrite set for one
// changed-candidate record. Only ERP-authoritative fields appear here, keyed
// by barcode at the store layer; enrichment fields never do.
func ChangeDetectionFields(src models.ErpItem, now time.Time) map[string]any {
	return map[string]any{
		"item_name":    src.ItemName,
		"alt_barcode":  src.AltBarcode,
		"mrp":          src.Mrp,
		"last_updated": now,
	}
}
