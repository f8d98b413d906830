package stocksync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/stockverify_backend/models"
	"github.com/shopspring/decimal"
)

type fakeSource struct {
	mu        sync.Mutex
	connected bool
	items     []models.ErpItem
	itemsErr  error

	changed       []models.ErpItem
	changedErr    error
	lastSinceArg  *time.Time
	changeTracked bool

	byCodeErr error
}

func newFakeSource(items ...models.ErpItem) *fakeSource {
	return &fakeSource{connected: true, items: items, changeTracked: true}
}

func (f *fakeSource) TestConnection(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSource) GetAllItems(ctx context.Context) ([]models.ErpItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	return append([]models.ErpItem(nil), f.items...), nil
}

func (f *fakeSource) GetItemQuantitiesOnly(ctx context.Context) (map[string]decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	out := make(map[string]decimal.Decimal, len(f.items))
	for _, it := range f.items {
		out[it.ItemCode] = it.StockQty
	}
	return out, nil
}

func (f *fakeSource) GetItemByCode(ctx context.Context, code string) (*models.ErpItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byCodeErr != nil {
		return nil, f.byCodeErr
	}
	for i := range f.items {
		if f.items[i].ItemCode == code {
			item := f.items[i]
			return &item, nil
		}
	}
	return nil, nil
}

func (f *fakeSource) GetChangedItems(ctx context.Context, since *time.Time) ([]models.ErpItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSinceArg = since
	if f.changedErr != nil {
		return nil, f.changedErr
	}
	return append([]models.ErpItem(nil), f.changed...), nil
}

func (f *fakeSource) ChangeTrackingConfigured() bool {
	return f.changeTracked
}

// fakeItemStore mirrors the atomic compare-and-set semantics of the Mongo
// store so write counting in the tests matches real behavior.
type fakeItemStore struct {
	mu   sync.Mutex
	docs map[string]*models.OperationalItem

	writes    int
	bulkCalls int

	findErrFor   map[string]error
	insertErrFor map[string]error
	bulkErr      error
	lastBulk     []BarcodeUpdate

	// afterFind runs after a FindByCode snapshot is taken, outside the store
	// lock, letting a test interleave a competing write between the engine's
	// read and its following store write.
	afterFind func(code string)
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{
		docs:         map[string]*models.OperationalItem{},
		findErrFor:   map[string]error{},
		insertErrFor: map[string]error{},
	}
}

func (f *fakeItemStore) FindByCode(ctx context.Context, code string) (*models.OperationalItem, error) {
	f.mu.Lock()
	if err := f.findErrFor[code]; err != nil {
		f.mu.Unlock()
		return nil, err
	}
	doc, ok := f.docs[code]
	if !ok {
		f.mu.Unlock()
		return nil, nil
	}
	cp := *doc
	hook := f.afterFind
	f.mu.Unlock()
	if hook != nil {
		hook(code)
	}
	return &cp, nil
}

func (f *fakeItemStore) Insert(ctx context.Context, item *models.OperationalItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.insertErrFor[item.ItemCode]; err != nil {
		return err
	}
	if _, exists := f.docs[item.ItemCode]; exists {
		return errors.New("duplicate key")
	}
	cp := *item
	f.docs[item.ItemCode] = &cp
	f.writes++
	return nil
}

func (f *fakeItemStore) ApplyQuantity(ctx context.Context, code string, qty decimal.Decimal, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[code]
	if !ok {
		return false, nil
	}
	if doc.StockQty.Equal(qty) {
		return false, nil
	}
	delta := qty.Sub(doc.StockQty)
	doc.StockQty = qty
	doc.SqlServerQty = qty
	doc.QtyChangeDelta = delta
	doc.QtyChangedAt = &now
	doc.LastSynced = &now
	f.writes++
	return true, nil
}

// BackfillEmptyFields mirrors the store's in-write emptiness guard: a slot
// that filled up after the caller's read keeps its value.
func (f *fakeItemStore) BackfillEmptyFields(ctx context.Context, code string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[code]
	if !ok {
		return fmt.Errorf("no document for %s", code)
	}
	fillIfEmpty := func(slot *string, v any) {
		if strings.TrimSpace(*slot) == "" {
			*slot = v.(string)
		}
	}
	for k, v := range fields {
		switch k {
		case "item_name":
			fillIfEmpty(&doc.ItemName, v)
		case "barcode":
			fillIfEmpty(&doc.Barcode, v)
		case "category":
			fillIfEmpty(&doc.Category, v)
		case "warehouse":
			fillIfEmpty(&doc.Warehouse, v)
		case "description":
			fillIfEmpty(&doc.Description, v)
		case "brand":
			fillIfEmpty(&doc.Brand, v)
		case "hsn_code":
			fillIfEmpty(&doc.HsnCode, v)
		case "alt_barcode":
			fillIfEmpty(&doc.AltBarcode, v)
		case "mrp":
			if doc.Mrp.IsZero() {
				doc.Mrp = v.(decimal.Decimal)
			}
		}
	}
	f.writes++
	return nil
}

func (f *fakeItemStore) TouchLastChecked(ctx context.Context, code string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc, ok := f.docs[code]; ok {
		doc.LastChecked = &now
	}
	return nil
}

func (f *fakeItemStore) BulkSetByBarcode(ctx context.Context, updates []BarcodeUpdate) (int64, int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCalls++
	f.lastBulk = append([]BarcodeUpdate(nil), updates...)
	if f.bulkErr != nil {
		return 0, 0, 0, f.bulkErr
	}
	var matched, modified int64
	for _, u := range updates {
		for _, doc := range f.docs {
			if doc.Barcode != u.Barcode {
				continue
			}
			matched++
			modified++
			if v, ok := u.Fields["item_name"]; ok {
				doc.ItemName = v.(string)
			}
			if v, ok := u.Fields["alt_barcode"]; ok {
				doc.AltBarcode = v.(string)
			}
			if v, ok := u.Fields["mrp"]; ok {
				doc.Mrp = v.(decimal.Decimal)
			}
			if v, ok := u.Fields["last_updated"]; ok {
				t := v.(time.Time)
				doc.LastUpdated = &t
			}
		}
	}
	return matched, modified, 0, nil
}

type fakeMetaStore struct {
	mu        sync.Mutex
	docs      map[string]*models.SyncMetadata
	recordErr error
	records   int
}

func newFakeMetaStore() *fakeMetaStore {
	return &fakeMetaStore{docs: map[string]*models.SyncMetadata{}}
}

func (f *fakeMetaStore) Get(ctx context.Context, syncType string) (*models.SyncMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[syncType]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeMetaStore) Record(ctx context.Context, syncType string, lastSync time.Time, stats any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	doc, ok := f.docs[syncType]
	if !ok {
		doc = &models.SyncMetadata{SyncType: syncType}
		f.docs[syncType] = doc
	}
	ls := lastSync
	doc.LastSync = &ls
	doc.Stats = stats
	doc.TotalSyncs++
	doc.UpdatedAt = time.Now()
	f.records++
	return nil
}

func newTestEngine(src ErpSource, items ItemStore, meta MetaStore) *Engine {
	return NewEngine(Config{
		Source: src,
		Items:  items,
		Meta:   meta,
	})
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
