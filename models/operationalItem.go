package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Source tags returned by the real-time refresh path.
const (
	SourceSQLServer  = "sql_server"
	SourceMongoCache = "mongodb_cache"
)

// EnrichmentEntry is one append-only record of a user enrichment action.
// The sync engines never write to this log.
type EnrichmentEntry struct {
	Field     string    `bson:"field" json:"field"`
	Value     string    `bson:"value" json:"value"`
	Username  string    `bson:"username" json:"username"`
	EnteredAt time.Time `bson:"entered_at" json:"entered_at"`
}

// OperationalItem is the working copy of an ERP item in the erp_items
// collection. It carries everything the ERP knows plus the enrichment fields
// only warehouse users populate. Enrichment fields are written by the sync
// engines in exactly one case: backfill into a currently empty slot when the
// document is created or repaired.
type OperationalItem struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ItemCode  string             `bson:"item_code" json:"item_code"`
	ItemName  string             `bson:"item_name" json:"item_name"`
	StockQty  decimal.Decimal    `bson:"stock_qty" json:"stock_qty"`
	Mrp       decimal.Decimal    `bson:"mrp" json:"mrp"`
	Barcode   string             `bson:"barcode" json:"barcode"`
	Category  string             `bson:"category" json:"category"`
	Warehouse string             `bson:"warehouse" json:"warehouse"`

	Description string `bson:"description,omitempty" json:"description,omitempty"`
	Brand       string `bson:"brand,omitempty" json:"brand,omitempty"`
	ModelNumber string `bson:"model_number,omitempty" json:"model_number,omitempty"`
	Size        string `bson:"size,omitempty" json:"size,omitempty"`
	Color       string `bson:"color,omitempty" json:"color,omitempty"`
	Unit        string `bson:"unit,omitempty" json:"unit,omitempty"`
	PackSize    string `bson:"pack_size,omitempty" json:"pack_size,omitempty"`
	GroupName   string `bson:"group_name,omitempty" json:"group_name,omitempty"`
	SubCategory string `bson:"sub_category,omitempty" json:"sub_category,omitempty"`
	AltBarcode  string `bson:"alt_barcode,omitempty" json:"alt_barcode,omitempty"`
	Uom         string `bson:"uom,omitempty" json:"uom,omitempty"`

	PurchaseRate    decimal.Decimal `bson:"purchase_rate,omitempty" json:"purchase_rate,omitempty"`
	SellingPrice    decimal.Decimal `bson:"selling_price,omitempty" json:"selling_price,omitempty"`
	WholesalePrice  decimal.Decimal `bson:"wholesale_price,omitempty" json:"wholesale_price,omitempty"`
	DiscountPercent decimal.Decimal `bson:"discount_percent,omitempty" json:"discount_percent,omitempty"`
	TaxPercent      decimal.Decimal `bson:"tax_percent,omitempty" json:"tax_percent,omitempty"`
	CessPercent     decimal.Decimal `bson:"cess_percent,omitempty" json:"cess_percent,omitempty"`

	SupplierCode string `bson:"supplier_code,omitempty" json:"supplier_code,omitempty"`
	SupplierName string `bson:"supplier_name,omitempty" json:"supplier_name,omitempty"`
	Company      string `bson:"company,omitempty" json:"company,omitempty"`
	Division     string `bson:"division,omitempty" json:"division,omitempty"`

	BatchNumber      string          `bson:"batch_number,omitempty" json:"batch_number,omitempty"`
	MfgDate          *time.Time      `bson:"mfg_date,omitempty" json:"mfg_date,omitempty"`
	ExpiryDate       *time.Time      `bson:"expiry_date,omitempty" json:"expiry_date,omitempty"`
	Godown           string          `bson:"godown,omitempty" json:"godown,omitempty"`
	MinStock         decimal.Decimal `bson:"min_stock,omitempty" json:"min_stock,omitempty"`
	MaxStock         decimal.Decimal `bson:"max_stock,omitempty" json:"max_stock,omitempty"`
	ReorderLevel     decimal.Decimal `bson:"reorder_level,omitempty" json:"reorder_level,omitempty"`
	ConversionFactor decimal.Decimal `bson:"conversion_factor,omitempty" json:"conversion_factor,omitempty"`
	LastPurchaseDate *time.Time      `bson:"last_purchase_date,omitempty" json:"last_purchase_date,omitempty"`

	// Enrichment fields. User-owned once set.
	SerialNumber      string            `bson:"serial_number,omitempty" json:"serial_number,omitempty"`
	HsnCode           string            `bson:"hsn_code,omitempty" json:"hsn_code,omitempty"`
	Condition         string            `bson:"condition,omitempty" json:"condition,omitempty"`
	Location          string            `bson:"location,omitempty" json:"location,omitempty"`
	Floor             string            `bson:"floor,omitempty" json:"floor,omitempty"`
	Rack              string            `bson:"rack,omitempty" json:"rack,omitempty"`
	EnrichmentHistory []EnrichmentEntry `bson:"enrichment_history,omitempty" json:"enrichment_history,omitempty"`

	DataComplete         bool     `bson:"data_complete" json:"data_complete"`
	CompletionPercentage float64  `bson:"completion_percentage" json:"completion_percentage"`
	MissingFields        []string `bson:"missing_fields,omitempty" json:"missing_fields,omitempty"`

	// Sync-owned fields.
	SqlServerQty   decimal.Decimal `bson:"sql_server_qty" json:"sql_server_qty"`
	QtyChangedAt   *time.Time      `bson:"qty_changed_at,omitempty" json:"qty_changed_at,omitempty"`
	QtyChangeDelta decimal.Decimal `bson:"qty_change_delta,omitempty" json:"qty_change_delta,omitempty"`
	LastSynced     *time.Time      `bson:"last_synced,omitempty" json:"last_synced,omitempty"`
	LastChecked    *time.Time      `bson:"last_checked,omitempty" json:"last_checked,omitempty"`
	LastUpdated    *time.Time      `bson:"last_updated,omitempty" json:"last_updated,omitempty"`
	SyncedFromSql  bool            `bson:"synced_from_sql" json:"synced_from_sql"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
