package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ErpItem is one item row read from the ERP reporting replica. It is immutable
// once read; the sync engines decide what, if anything, reaches the
// operational store.
type ErpItem struct {
	ItemCode  string          `json:"item_code"`
	ItemName  string          `json:"item_name"`
	StockQty  decimal.Decimal `json:"stock_qty"`
	Mrp       decimal.Decimal `json:"mrp"`
	Barcode   string          `json:"barcode"`
	Category  string          `json:"category"`
	Warehouse string          `json:"warehouse"`

	// Descriptive
	Description string `json:"description"`
	Brand       string `json:"brand"`
	ModelNumber string `json:"model_number"`
	Size        string `json:"size"`
	Color       string `json:"color"`
	Unit        string `json:"unit"`
	PackSize    string `json:"pack_size"`
	GroupName   string `json:"group_name"`
	SubCategory string `json:"sub_category"`
	AltBarcode  string `json:"alt_barcode"`
	Uom         string `json:"uom"`
	HsnCode     string `json:"hsn_code"`

	// Pricing
	PurchaseRate    decimal.Decimal `json:"purchase_rate"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	WholesalePrice  decimal.Decimal `json:"wholesale_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
	CessPercent     decimal.Decimal `json:"cess_percent"`

	// Supplier
	SupplierCode string `json:"supplier_code"`
	SupplierName string `json:"supplier_name"`
	Company      string `json:"company"`
	Division     string `json:"division"`

	// Batch / stock control
	BatchNumber      string          `json:"batch_number"`
	MfgDate          *time.Time      `json:"mfg_date"`
	ExpiryDate       *time.Time      `json:"expiry_date"`
	Godown           string          `json:"godown"`
	MinStock         decimal.Decimal `json:"min_stock"`
	MaxStock         decimal.Decimal `json:"max_stock"`
	ReorderLevel     decimal.Decimal `json:"reorder_level"`
	ConversionFactor decimal.Decimal `json:"conversion_factor"`
	LastPurchaseDate *time.Time      `json:"last_purchase_date"`

	ModifiedAt *time.Time `json:"modified_at"`
}
