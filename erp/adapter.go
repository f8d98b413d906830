package erp

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockverify_backend/models"
	"bitbucket.org/mmdatafocus/stockverify_backend/syncerr"
	"bitbucket.org/mmdatafocus/stockverify_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Adapter reads items from the ERP reporting replica. The ERP is the source of
// truth for quantities and select metadata; every method here is read-only and
// every call carries an explicit timeout.
type Adapter struct {
	db      *gorm.DB
	mapping TableMapping
	retry   utils.RetryPolicy
	timeout time.Duration
}

func NewAdapter(db *gorm.DB, mapping TableMapping, retry utils.RetryPolicy, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Adapter{db: db, mapping: mapping, retry: retry, timeout: timeout}
}

// ChangeTrackingConfigured reports whether the ERP mapping names a
// "modified since" column. Without one, change detection scans the full set.
func (a *Adapter) ChangeTrackingConfigured() bool {
	return a.mapping.ModifiedCol != ""
}

// TestConnection pings the ERP replica. Any failure, including a timeout,
// means the source is unavailable for this cycle.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	if a.db == nil {
		return false
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return sqlDB.PingContext(ctx) == nil
}

// GetAllItems fetches the full item list.
func (a *Adapter) GetAllItems(ctx context.Context) ([]models.ErpItem, error) {
	if err := a.mapping.Validate(); err != nil {
		return nil, err
	}
	return a.fetchItems(ctx, nil)
}

// GetItemQuantitiesOnly fetches only item_code -> stock_qty, the narrow read
// used when the caller does not need descriptive fields.
func (a *Adapter) GetItemQuantitiesOnly(ctx context.Context) (map[string]decimal.Decimal, error) {
	if err := a.mapping.Validate(); err != nil {
		return nil, err
	}

	type qtyRow struct {
		ItemCode string         `gorm:"column:item_code"`
		StockQty sql.NullString `gorm:"column:stock_qty"`
	}

	sel := fmt.Sprintf("%s AS item_code, %s AS stock_qty", a.mapping.ItemCode, a.mapping.StockQty)
	var rows []qtyRow
	err := a.retry.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		rows = rows[:0]
		return a.db.WithContext(ctx).Table(a.mapping.ItemsTable).Select(sel).Scan(&rows).Error
	})
	if err != nil {
		return nil, syncerr.Wrap(syncerr.ErrConnection, "fetch quantities", err)
	}

	out := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		code := strings.TrimSpace(r.ItemCode)
		if code == "" {
			continue
		}
		qty, _ := utils.DecimalFromAny(r.StockQty)
		out[code] = qty
	}
	return out, nil
}

// GetItemByCode fetches a single item, used by the real-time refresh path.
func (a *Adapter) GetItemByCode(ctx context.Context, code string) (*models.ErpItem, error) {
	if err := a.mapping.Validate(); err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, syncerr.Wrap(syncerr.ErrValidation, "get item", fmt.Errorf("item code is empty"))
	}

	items, err := a.fetchItems(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where(fmt.Sprintf("%s = ?", a.mapping.ItemCode), code).Limit(1)
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// GetChangedItems fetches items modified since the given watermark. A nil
// since, or a mapping without a modified column, falls back to the full scan.
func (a *Adapter) GetChangedItems(ctx context.Context, since *time.Time) ([]models.ErpItem, error) {
	if err := a.mapping.Validate(); err != nil {
		return nil, err
	}
	if since == nil || a.mapping.ModifiedCol == "" {
		return a.fetchItems(ctx, nil)
	}
	return a.fetchItems(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where(fmt.Sprintf("%s > ?", a.mapping.ModifiedCol), *since)
	})
}

// rawErpItem is the scan target for the aliased select list. Quantities scan
// as strings so decimals survive the driver exactly; malformed values classify
// as missing downstream.
type rawErpItem struct {
	ItemCode  string         `gorm:"column:item_code"`
	ItemName  sql.NullString `gorm:"column:item_name"`
	StockQty  sql.NullString `gorm:"column:stock_qty"`
	Mrp       sql.NullString `gorm:"column:mrp"`
	Barcode   sql.NullString `gorm:"column:barcode"`
	Category  sql.NullString `gorm:"column:category"`
	Warehouse sql.NullString `gorm:"column:warehouse"`

	Description sql.NullString `gorm:"column:description"`
	Brand       sql.NullString `gorm:"column:brand"`
	ModelNumber sql.NullString `gorm:"column:model_number"`
	Size        sql.NullString `gorm:"column:size"`
	Color       sql.NullString `gorm:"column:color"`
	Unit        sql.NullString `gorm:"column:unit"`
	PackSize    sql.NullString `gorm:"column:pack_size"`
	GroupName   sql.NullString `gorm:"column:group_name"`
	SubCategory sql.NullString `gorm:"column:sub_category"`
	AltBarcode  sql.NullString `gorm:"column:alt_barcode"`
	Uom         sql.NullString `gorm:"column:uom"`
	HsnCode     sql.NullString `gorm:"column:hsn_code"`

	PurchaseRate    sql.NullString `gorm:"column:purchase_rate"`
	SellingPrice    sql.NullString `gorm:"column:selling_price"`
	WholesalePrice  sql.NullString `gorm:"column:wholesale_price"`
	DiscountPercent sql.NullString `gorm:"column:discount_percent"`
	TaxPercent      sql.NullString `gorm:"column:tax_percent"`
	CessPercent     sql.NullString `gorm:"column:cess_percent"`

	SupplierCode sql.NullString `gorm:"column:supplier_code"`
	SupplierName sql.NullString `gorm:"column:supplier_name"`
	Company      sql.NullString `gorm:"column:company"`
	Division     sql.NullString `gorm:"column:division"`

	BatchNumber      sql.NullString `gorm:"column:batch_number"`
	MfgDate          sql.NullTime   `gorm:"column:mfg_date"`
	ExpiryDate       sql.NullTime   `gorm:"column:expiry_date"`
	Godown           sql.NullString `gorm:"column:godown"`
	MinStock         sql.NullString `gorm:"column:min_stock"`
	MaxStock         sql.NullString `gorm:"column:max_stock"`
	ReorderLevel     sql.NullString `gorm:"column:reorder_level"`
	ConversionFactor sql.NullString `gorm:"column:conversion_factor"`
	LastPurchaseDate sql.NullTime   `gorm:"column:last_purchase_date"`
}

func (a *Adapter) fetchItems(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]models.ErpItem, error) {
	sel := strings.Join(a.mapping.selectExprs(), ", ")
	if a.mapping.ModifiedCol != "" {
		sel = sel + fmt.Sprintf(", %s AS modified_at", a.mapping.ModifiedCol)
	}

	var raw []struct {
		rawErpItem
		ModifiedAt sql.NullTime `gorm:"column:modified_at"`
	}
	err := a.retry.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		tx := a.db.WithContext(ctx).Table(a.mapping.ItemsTable).Select(sel)
		if scope != nil {
			tx = scope(tx)
		}
		raw = raw[:0]
		return tx.Scan(&raw).Error
	})
	if err != nil {
		return nil, syncerr.Wrap(syncerr.ErrConnection, "fetch items", err)
	}

	items := make([]models.ErpItem, 0, len(raw))
	for _, r := range raw {
		item := r.rawErpItem.toItem()
		if r.ModifiedAt.Valid {
			t := r.ModifiedAt.Time
			item.ModifiedAt = &t
		}
		items = append(items, item)
	}
	return items, nil
}

func (r rawErpItem) toItem() models.ErpItem {
	qty, _ := utils.DecimalFromAny(r.StockQty)
	mrp, _ := utils.DecimalFromAny(r.Mrp)
	purchaseRate, _ := utils.DecimalFromAny(r.PurchaseRate)
	sellingPrice, _ := utils.DecimalFromAny(r.SellingPrice)
	wholesalePrice, _ := utils.DecimalFromAny(r.WholesalePrice)
	discountPercent, _ := utils.DecimalFromAny(r.DiscountPercent)
	taxPercent, _ := utils.DecimalFromAny(r.TaxPercent)
	cessPercent, _ := utils.DecimalFromAny(r.CessPercent)
	minStock, _ := utils.DecimalFromAny(r.MinStock)
	maxStock, _ := utils.DecimalFromAny(r.MaxStock)
	reorderLevel, _ := utils.DecimalFromAny(r.ReorderLevel)
	conversionFactor, _ := utils.DecimalFromAny(r.ConversionFactor)

	return models.ErpItem{
		ItemCode:  strings.TrimSpace(r.ItemCode),
		ItemName:  strings.TrimSpace(r.ItemName.String),
		StockQty:  qty,
		Mrp:       mrp,
		Barcode:   strings.TrimSpace(r.Barcode.String),
		Category:  strings.TrimSpace(r.Category.String),
		Warehouse: strings.TrimSpace(r.Warehouse.String),

		Description: strings.TrimSpace(r.Description.String),
		Brand:       strings.TrimSpace(r.Brand.String),
		ModelNumber: strings.TrimSpace(r.ModelNumber.String),
		Size:        strings.TrimSpace(r.Size.String),
		Color:       strings.TrimSpace(r.Color.String),
		Unit:        strings.TrimSpace(r.Unit.String),
		PackSize:    strings.TrimSpace(r.PackSize.String),
		GroupName:   strings.TrimSpace(r.GroupName.String),
		SubCategory: strings.TrimSpace(r.SubCategory.String),
		AltBarcode:  strings.TrimSpace(r.AltBarcode.String),
		Uom:         strings.TrimSpace(r.Uom.String),
		HsnCode:     strings.TrimSpace(r.HsnCode.String),

		PurchaseRate:    purchaseRate,
		SellingPrice:    sellingPrice,
		WholesalePrice:  wholesalePrice,
		DiscountPercent: discountPercent,
		TaxPercent:      taxPercent,
		CessPercent:     cessPercent,

		SupplierCode: strings.TrimSpace(r.SupplierCode.String),
		SupplierName: strings.TrimSpace(r.SupplierName.String),
		Company:      strings.TrimSpace(r.Company.String),
		Division:     strings.TrimSpace(r.Division.String),

		BatchNumber:      strings.TrimSpace(r.BatchNumber.String),
		MfgDate:          timePtr(r.MfgDate),
		ExpiryDate:       timePtr(r.ExpiryDate),
		Godown:           strings.TrimSpace(r.Godown.String),
		MinStock:         minStock,
		MaxStock:         maxStock,
		ReorderLevel:     reorderLevel,
		ConversionFactor: conversionFactor,
		LastPurchaseDate: timePtr(r.LastPurchaseDate),
	}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
