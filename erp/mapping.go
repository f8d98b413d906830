package erp

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"bitbucket.org/mmdatafocus/stockverify_backend/syncerr"
)

// TableMapping maps the logical item fields onto the customer's ERP schema.
// Column names default to the logical names; deployments override them with
// ERP_COLUMN_* env vars. The items table itself has no default: without it no
// query can be built.
type TableMapping struct {
	ItemsTable string

	ItemCode  string
	ItemName  string
	StockQty  string
	Mrp       string
	Barcode   string
	Category  string
	Warehouse string

	Description string
	Brand       string
	ModelNumber string
	Size        string
	Color       string
	Unit        string
	PackSize    string
	GroupName   string
	SubCategory string
	AltBarcode  string
	Uom         string
	HsnCode     string

	PurchaseRate    string
	SellingPrice    string
	WholesalePrice  string
	DiscountPercent string
	TaxPercent      string
	CessPercent     string

	SupplierCode string
	SupplierName string
	Company      string
	Division     string

	BatchNumber      string
	MfgDate          string
	ExpiryDate       string
	Godown           string
	MinStock         string
	MaxStock         string
	ReorderLevel     string
	ConversionFactor string
	LastPurchaseDate string

	// ModifiedCol is the "modified since" column used by change detection.
	// Optional; when empty the change-detection engine falls back to a full scan.
	ModifiedCol string
}

// MappingFromEnv builds the mapping from the environment. It never fails:
// validation happens in Validate so callers decide when a missing table is an
// error (quantity sync and change detection both require it; TestConnection
// does not).
func MappingFromEnv() TableMapping {
	m := defaultMapping()
	m.ItemsTable = strings.TrimSpace(os.Getenv("ERP_ITEMS_TABLE"))
	m.ModifiedCol = strings.TrimSpace(os.Getenv("ERP_MODIFIED_COLUMN"))

	for i := range m.columns() {
		spec := m.columns()[i]
		if v := strings.TrimSpace(os.Getenv("ERP_COLUMN_" + strings.ToUpper(spec.logical))); v != "" {
			*spec.col = v
		}
	}
	return m
}

func defaultMapping() TableMapping {
	return TableMapping{
		ItemCode:  "item_code",
		ItemName:  "item_name",
		StockQty:  "stock_qty",
		Mrp:       "mrp",
		Barcode:   "barcode",
		Category:  "category",
		Warehouse: "warehouse",

		Description: "description",
		Brand:       "brand",
		ModelNumber: "model_number",
		Size:        "size",
		Color:       "color",
		Unit:        "unit",
		PackSize:    "pack_size",
		GroupName:   "group_name",
		SubCategory: "sub_category",
		AltBarcode:  "alt_barcode",
		Uom:         "uom",
		HsnCode:     "hsn_code",

		PurchaseRate:    "purchase_rate",
		SellingPrice:    "selling_price",
		WholesalePrice:  "wholesale_price",
		DiscountPercent: "discount_percent",
		TaxPercent:      "tax_percent",
		CessPercent:     "cess_percent",

		SupplierCode: "supplier_code",
		SupplierName: "supplier_name",
		Company:      "company",
		Division:     "division",

		BatchNumber:      "batch_number",
		MfgDate:          "mfg_date",
		ExpiryDate:       "expiry_date",
		Godown:           "godown",
		MinStock:         "min_stock",
		MaxStock:         "max_stock",
		ReorderLevel:     "reorder_level",
		ConversionFactor: "conversion_factor",
		LastPurchaseDate: "last_purchase_date",
	}
}

type columnSpec struct {
	logical string
	col     *string
}

// columns lists every mapped column with its logical name. The logical name is
// both the env override suffix and the SELECT alias the row scanner reads.
func (m *TableMapping) columns() []columnSpec {
	return []columnSpec{
		{"item_code", &m.ItemCode},
		{"item_name", &m.ItemName},
		{"stock_qty", &m.StockQty},
		{"mrp", &m.Mrp},
		{"barcode", &m.Barcode},
		{"category", &m.Category},
		{"warehouse", &m.Warehouse},
		{"description", &m.Description},
		{"brand", &m.Brand},
		{"model_number", &m.ModelNumber},
		{"size", &m.Size},
		{"color", &m.Color},
		{"unit", &m.Unit},
		{"pack_size", &m.PackSize},
		{"group_name", &m.GroupName},
		{"sub_category", &m.SubCategory},
		{"alt_barcode", &m.AltBarcode},
		{"uom", &m.Uom},
		{"hsn_code", &m.HsnCode},
		{"purchase_rate", &m.PurchaseRate},
		{"selling_price", &m.SellingPrice},
		{"wholesale_price", &m.WholesalePrice},
		{"discount_percent", &m.DiscountPercent},
		{"tax_percent", &m.TaxPercent},
		{"cess_percent", &m.CessPercent},
		{"supplier_code", &m.SupplierCode},
		{"supplier_name", &m.SupplierName},
		{"company", &m.Company},
		{"division", &m.Division},
		{"batch_number", &m.BatchNumber},
		{"mfg_date", &m.MfgDate},
		{"expiry_date", &m.ExpiryDate},
		{"godown", &m.Godown},
		{"min_stock", &m.MinStock},
		{"max_stock", &m.MaxStock},
		{"reorder_level", &m.ReorderLevel},
		{"conversion_factor", &m.ConversionFactor},
		{"last_purchase_date", &m.LastPurchaseDate},
	}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate rejects a missing items table and any identifier that cannot be
// safely interpolated into a query.
func (m TableMapping) Validate() error {
	if m.ItemsTable == "" {
		return syncerr.Wrap(syncerr.ErrSyncConfig, "validate mapping", fmt.Errorf("ERP_ITEMS_TABLE is not set"))
	}
	if !identPattern.MatchString(m.ItemsTable) {
		return syncerr.Wrap(syncerr.ErrSyncConfig, "validate mapping", fmt.Errorf("invalid items table %q", m.ItemsTable))
	}
	if m.ModifiedCol != "" && !identPattern.MatchString(m.ModifiedCol) {
		return syncerr.Wrap(syncerr.ErrSyncConfig, "validate mapping", fmt.Errorf("invalid modified column %q", m.ModifiedCol))
	}
	for _, spec := range m.columns() {
		if *spec.col == "" || !identPattern.MatchString(*spec.col) {
			return syncerr.Wrap(syncerr.ErrSyncConfig, "validate mapping", fmt.Errorf("invalid column for %s: %q", spec.logical, *spec.col))
		}
	}
	return nil
}

// selectExprs builds the aliased select list so row scanning always sees the
// logical names regardless of the customer's column names.
func (m *TableMapping) selectExprs() []string {
	specs := m.columns()
	out := make([]string, 0, len(specs))
	for _, spec := range specs {
		if *spec.col == spec.logical {
			out = append(out, *spec.col)
			continue
		}
		out = append(out, fmt.Sprintf("%s AS %s", *spec.col, spec.logical))
	}
	return out
}
