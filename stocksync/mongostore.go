package stocksync

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/stockverify_backend/config"
	"bitbucket.org/mmdatafocus/stockverify_backend/models"
	"bitbucket.org/mmdatafocus/stockverify_backend/syncerr"
	"bitbucket.org/mmdatafocus/stockverify_backend/utils"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoItemStore is the ItemStore over the erp_items collection.
type MongoItemStore struct {
	db      *mongo.Database
	timeout time.Duration
}

func NewMongoItemStore(db *mongo.Database, timeout time.Duration) *MongoItemStore {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &MongoItemStore{db: db, timeout: timeout}
}

func (s *MongoItemStore) items() *mongo.Collection {
	return s.db.Collection(config.ItemsCollection)
}

func (s *MongoItemStore) FindByCode(ctx context.Context, code string) (*models.OperationalItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var item models.OperationalItem
	err := s.items().FindOne(ctx, bson.M{"item_code": code}).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, syncerr.Wrap(syncerr.ErrDatabase, "find item", err)
	}
	return &item, nil
}

func (s *MongoItemStore) Insert(ctx context.Context, item *models.OperationalItem) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.items().InsertOne(ctx, item); err != nil {
		return syncerr.Wrap(syncerr.ErrDatabase, "insert item", err)
	}
	return nil
}

// ApplyQuantity is the one write both the batch engine and the real-time path
// use for quantities. The $ne filter and the pipeline update make the
// compare-old-vs-new and the write a single atomic document operation, so
// interleaving the two paths cannot lose an update. The delta is computed
// server-side from the pre-update stock_qty.
func (s *MongoItemStore) ApplyQuantity(ctx context.Context, code string, qty decimal.Decimal, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q := utils.Dec128(qty)
	filter := bson.M{
		"item_code": code,
		"stock_qty": bson.M{"$ne": q},
	}
	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "qty_change_delta", Value: bson.D{{Key: "$subtract", Value: bson.A{q, "$stock_qty"}}}},
			{Key: "stock_qty", Value: q},
			{Key: "sql_server_qty", Value: q},
			{Key: "qty_changed_at", Value: now},
			{Key: "last_synced", Value: now},
			{Key: "updated_at", Value: now},
		}}},
	}

	res, err := s.items().UpdateOne(ctx, filter, update)
	if err != nil {
		return false, syncerr.Wrap(syncerr.ErrDatabase, "apply quantity", err)
	}
	return res.ModifiedCount > 0, nil
}

// BackfillEmptyFields writes each field through a per-field $cond that keeps
// the stored value unless the slot is still empty, so the emptiness check and
// the write are one atomic document operation. An enrichment write landing
// between the caller's read and this update wins.
func (s *MongoItemStore) BackfillEmptyFields(ctx context.Context, code string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	set := bson.D{}
	for k, v := range fields {
		cur := "$" + k
		switch val := v.(type) {
		case decimal.Decimal:
			zeroOrUnset := bson.D{{Key: "$eq", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{cur, 0}}}, 0,
			}}}
			set = append(set, bson.E{Key: k, Value: bson.D{{Key: "$cond", Value: bson.A{
				zeroOrUnset, utils.Dec128(val), cur,
			}}}})
		case string:
			blankOrUnset := bson.D{{Key: "$eq", Value: bson.A{
				bson.D{{Key: "$trim", Value: bson.D{{Key: "input", Value: bson.D{{Key: "$ifNull", Value: bson.A{cur, ""}}}}}}}, "",
			}}}
			set = append(set, bson.E{Key: k, Value: bson.D{{Key: "$cond", Value: bson.A{
				blankOrUnset, val, cur,
			}}}})
		default:
			set = append(set, bson.E{Key: k, Value: v})
		}
	}
	set = append(set, bson.E{Key: "updated_at", Value: time.Now()})

	update := mongo.Pipeline{bson.D{{Key: "$set", Value: set}}}
	if _, err := s.items().UpdateOne(ctx, bson.M{"item_code": code}, update); err != nil {
		return syncerr.Wrap(syncerr.ErrDatabase, "backfill fields", err)
	}
	return nil
}

func (s *MongoItemStore) TouchLastChecked(ctx context.Context, code string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.items().UpdateOne(ctx,
		bson.M{"item_code": code},
		bson.M{"$set": bson.M{"last_checked": now}},
	)
	if err != nil {
		return syncerr.Wrap(syncerr.ErrDatabase, "touch last_checked", err)
	}
	return nil
}

// BulkSetByBarcode applies all change-detection updates in one unordered bulk
// round trip. Upserts stay disabled: only the quantity engine creates items.
func (s *MongoItemStore) BulkSetByBarcode(ctx context.Context, updates []BarcodeUpdate) (int64, int64, int64, error) {
	if len(updates) == 0 {
		return 0, 0, 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	writeModels := make([]mongo.WriteModel, 0, len(updates))
	for _, u := range updates {
		set := bson.M{}
		for k, v := range u.Fields {
			set[k] = v
		}
		writeModels = append(writeModels, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"barcode": u.Barcode}).
			SetUpdate(bson.M{"$set": set}).
			SetUpsert(false))
	}

	res, err := s.items().BulkWrite(ctx, writeModels, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, 0, 0, syncerr.Wrap(syncerr.ErrDatabase, "bulk update by barcode", err)
	}
	return res.MatchedCount, res.ModifiedCount, res.UpsertedCount, nil
}

// MongoMetaStore is the MetaStore over sync_metadata, one document per sync
// type.
type MongoMetaStore struct {
	db      *mongo.Database
	timeout time.Duration
}

func NewMongoMetaStore(db *mongo.Database, timeout time.Duration) *MongoMetaStore {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &MongoMetaStore{db: db, timeout: timeout}
}

func (s *MongoMetaStore) meta() *mongo.Collection {
	return s.db.Collection(config.SyncMetadataCollection)
}

func (s *MongoMetaStore) Get(ctx context.Context, syncType string) (*models.SyncMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var meta models.SyncMetadata
	err := s.meta().FindOne(ctx, bson.M{"sync_type": syncType}).Decode(&meta)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, syncerr.Wrap(syncerr.ErrDatabase, "load sync metadata", err)
	}
	return &meta, nil
}

// Record upserts with $set/$inc so a replayed update reaches the same terminal
// state no matter how many times it applies.
func (s *MongoMetaStore) Record(ctx context.Context, syncType string, lastSync time.Time, stats any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.meta().UpdateOne(ctx,
		bson.M{"sync_type": syncType},
		bson.M{
			"$set": bson.M{
				"last_sync":  lastSync,
				"stats":      stats,
				"updated_at": time.Now(),
			},
			"$inc": bson.M{"total_syncs": 1},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return syncerr.Wrap(syncerr.ErrDatabase, "record sync metadata", err)
	}
	return nil
}
