package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	ItemsCollection        = "erp_items"
	SyncMetadataCollection = "sync_metadata"
)

var (
	mongoClient *mongo.Client
	mongoDB     *mongo.Database
)

// GetMongoDB returns the operational document store. Items live in erp_items
// keyed by item_code; persisted sync state lives in sync_metadata.
func GetMongoDB() *mongo.Database {
	return mongoDB
}

func GetItemsCollection() *mongo.Collection {
	if mongoDB == nil {
		return nil
	}
	return mongoDB.Collection(ItemsCollection)
}

func GetSyncMetadataCollection() *mongo.Collection {
	if mongoDB == nil {
		return nil
	}
	return mongoDB.Collection(SyncMetadataCollection)
}

func init() {
	// Load env from .env
	godotenv.Load()
	// Do NOT block startup in init() waiting for Mongo.
}

// ConnectMongoWithRetry connects and sets the operational store handles.
// Call this from main() AFTER the HTTP server is listening.
func ConnectMongoWithRetry() {
	uri := strings.TrimSpace(os.Getenv("MONGO_URI"))
	if uri == "" {
		uri = "mongodb://localhost:27017"
		log.Printf("MONGO_URI not set; defaulting to %s", uri)
	}
	dbName := strings.TrimSpace(os.Getenv("MONGO_DB_NAME"))
	if dbName == "" {
		dbName = "stockverify"
	}

	opts := options.Client().
		ApplyURI(uri).
		SetRegistry(newDecimalRegistry()).
		SetMaxPoolSize(uint64(intFromEnv("MONGO_MAX_POOL_SIZE", 50))).
		SetServerSelectionTimeout(10 * time.Second)

	var attempt int
	for {
		attempt++
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		client, err := mongo.Connect(ctx, opts)
		if err == nil {
			err = client.Ping(ctx, readpref.Primary())
		}
		cancel()
		if err == nil {
			mongoClient = client
			mongoDB = client.Database(dbName)
			log.Printf("connected to mongodb (attempt=%d db=%s)", attempt, dbName)
			ensureItemIndexes()
			return
		}

		sleep := time.Second * time.Duration(1<<minInt(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect mongodb (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

func DisconnectMongo() {
	if mongoClient == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = mongoClient.Disconnect(ctx)
}

// ensureItemIndexes creates the unique item_code index and the barcode index
// used by the change-detection bulk updates. Index creation is idempotent.
func ensureItemIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	items := GetItemsCollection()
	_, err := items.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "item_code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "barcode", Value: 1}},
		},
	})
	if err != nil {
		log.Printf("failed to ensure erp_items indexes: %v", err)
	}

	meta := GetSyncMetadataCollection()
	_, err = meta.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sync_type", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		log.Printf("failed to ensure sync_metadata index: %v", err)
	}
}

var tDecimal = reflect.TypeOf(decimal.Decimal{})

// newDecimalRegistry wires shopspring decimals to BSON Decimal128 so quantity
// and price fields round-trip exactly instead of going through float64.
func newDecimalRegistry() *bsoncodec.Registry {
	reg := bson.NewRegistry()
	reg.RegisterTypeEncoder(tDecimal, decimalCodec{})
	reg.RegisterTypeDecoder(tDecimal, decimalCodec{})
	return reg
}

type decimalCodec struct{}

func (decimalCodec) EncodeValue(ec bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	if !val.IsValid() || val.Type() != tDecimal {
		return bsoncodec.ValueEncoderError{Name: "decimalCodec", Types: []reflect.Type{tDecimal}, Received: val}
	}
	dec := val.Interface().(decimal.Decimal)
	d128, err := primitive.ParseDecimal128(dec.String())
	if err != nil {
		return err
	}
	return vw.WriteDecimal128(d128)
}

func (decimalCodec) DecodeValue(dc bsoncodec.DecodeContext, vr bsonrw.ValueReader, val reflect.Value) error {
	if !val.CanSet() || val.Type() != tDecimal {
		return bsoncodec.ValueDecoderError{Name: "decimalCodec", Types: []reflect.Type{tDecimal}, Received: val}
	}

	var out decimal.Decimal
	switch vr.Type() {
	case bsontype.Decimal128:
		d128, err := vr.ReadDecimal128()
		if err != nil {
			return err
		}
		parsed, err := decimal.NewFromString(d128.String())
		if err != nil {
			return err
		}
		out = parsed
	case bsontype.Double:
		f, err := vr.ReadDouble()
		if err != nil {
			return err
		}
		out = decimal.NewFromFloat(f)
	case bsontype.Int32:
		i, err := vr.ReadInt32()
		if err != nil {
			return err
		}
		out = decimal.NewFromInt(int64(i))
	case bsontype.Int64:
		i, err := vr.ReadInt64()
		if err != nil {
			return err
		}
		out = decimal.NewFromInt(i)
	case bsontype.String:
		s, err := vr.ReadString()
		if err != nil {
			return err
		}
		// Malformed numeric strings decode as zero rather than failing the read.
		if parsed, perr := decimal.NewFromString(strings.TrimSpace(s)); perr == nil {
			out = parsed
		}
	case bsontype.Null:
		if err := vr.ReadNull(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("cannot decode %v into decimal.Decimal", vr.Type())
	}

	val.Set(reflect.ValueOf(out))
	return nil
}
