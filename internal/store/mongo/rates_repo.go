package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

type RateRepoMongo struct {
	products  *mongodrv.Collection
	bands     *mongodrv.Collection
	opTimeout time.Duration
}

var _ core.RateTableRepo = (*RateRepoMongo)(nil)

func NewRateRepo(db *mongodrv.Database, opTimeout time.Duration) *RateRepoMongo {
	return &RateRepoMongo{
		products:  db.Collection(ColProducts),
		bands:     db.Collection(ColRateBands),
		opTimeout: opTimeout,
	}
}

// Lists all products sorted by ID. Returns an empty slice if none found.
func (r *RateRepoMongo) ListProducts(ctx context.Context) ([]core.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	cur, err := r.products.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("products.find: %w", err)
	}
	defer cur.Close(ctx)

	products := []core.Product{}
	for cur.Next(ctx) {
		var doc ProductDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("products.decode: %w", err)
		}
		p, err := fromProductDoc(doc)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("products.cursor: %w", err)
	}
	return products, nil
}

func (r *RateRepoMongo) GetProduct(ctx context.Context, id string) (core.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	var doc ProductDoc
	err := r.products.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.Product{}, core.ErrProductNotFound
		}
		return core.Product{}, fmt.Errorf("products.findOne: %w", err)
	}
	return fromProductDoc(doc)
}

// Upserts a product by ID, replacing every field.
func (r *RateRepoMongo) UpsertProduct(ctx context.Context, p core.Product) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	doc, err := toProductDoc(p)
	if err != nil {
		return err
	}
	_, err = r.products.ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("products.replace: %w", err)
	}
	return nil
}

func (r *RateRepoMongo) ListBands(ctx context.Context, table core.RateTable) ([]core.RateBand, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	filter := bson.M{}
	if table != "" {
		filter["table"] = string(table)
	}
	sort := bson.D{{Key: "table", Value: 1}, {Key: "key", Value: 1}, {Key: "min", Value: 1}}
	cur, err := r.bands.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("rate_bands.find: %w", err)
	}
	defer cur.Close(ctx)

	var docs []RateBandDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("rate_bands.decode: %w", err)
	}
	bands := make([]core.RateBand, 0, len(docs))
	for _, d := range docs {
		b, err := fromRateBandDoc(d)
		if err != nil {
			return nil, err
		}
		bands = append(bands, b)
	}
	return bands, nil
}

func (r *RateRepoMongo) CreateBand(ctx context.Context, b core.RateBand) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	doc, err := toRateBandDoc(b)
	if err != nil {
		return err
	}
	if _, err := r.bands.InsertOne(ctx, doc); err != nil {
		if mongodrv.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: rate band %s overlaps an existing band", core.ErrConflict, b.ID)
		}
		return fmt.Errorf("rate_bands.insert: %w", err)
	}
	return nil
}

func (r *RateRepoMongo) DeleteBand(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	res, err := r.bands.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("rate_bands.delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return core.ErrRateBandNotFound
	}
	return nil
}
