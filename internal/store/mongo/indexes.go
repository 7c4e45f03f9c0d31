package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if err := ensureProductsIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure products indexes: %w", err)
	}
	if err := ensureRateBandsIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure rate_bands indexes: %w", err)
	}
	return nil
}

func ensureProductsIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ColProducts)
	models := []mongo.IndexModel{
		newIndex("policy_type", 1, "products_policy_type", false),
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

func ensureRateBandsIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ColRateBands)
	models := []mongo.IndexModel{
		// Two bands may not start at the same point of one table; overlap
		// beyond that is checked before insert.
		{
			Keys:    bson.D{{Key: "table", Value: 1}, {Key: "key", Value: 1}, {Key: "min", Value: 1}},
			Options: options.Index().SetName("rate_bands_table_key_min_unique").SetUnique(true),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

func newIndex(field string, asc int32, name string, unique bool) mongo.IndexModel {
	opts := options.Index().SetName(name)
	if unique {
		opts = opts.SetUnique(true)
	}
	return mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: asc}},
		Options: opts,
	}
}
