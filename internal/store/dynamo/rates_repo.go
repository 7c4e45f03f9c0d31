package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

// Decimals are kept as strings; attributevalue would otherwise marshal the
// struct's unexported fields to an empty map.
type ProductItem struct {
	ID             string `dynamodbav:"id"`
	Name           string `dynamodbav:"name"`
	PolicyType     string `dynamodbav:"policy_type"`
	BaseMultiplier string `dynamodbav:"base_multiplier"`
	MinSumAssured  string `dynamodbav:"min_sum_assured"`
	MaxSumAssured  string `dynamodbav:"max_sum_assured"`
	IncludeADB     bool   `dynamodbav:"include_adb"`
	ADBPercent     string `dynamodbav:"adb_percent"`
	IncludePTD     bool   `dynamodbav:"include_ptd"`
	PTDPercent     string `dynamodbav:"ptd_percent"`
}

func (i ProductItem) ToCore() (core.Product, error) {
	p := core.Product{
		ID:         i.ID,
		Name:       i.Name,
		PolicyType: core.PolicyType(i.PolicyType),
		IncludeADB: i.IncludeADB,
		IncludePTD: i.IncludePTD,
	}
	var err error
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&p.BaseMultiplier, i.BaseMultiplier},
		{&p.MinSumAssured, i.MinSumAssured},
		{&p.MaxSumAssured, i.MaxSumAssured},
		{&p.ADBPercent, i.ADBPercent},
		{&p.PTDPercent, i.PTDPercent},
	} {
		if *f.dst, err = parseDecimal(f.src); err != nil {
			return core.Product{}, fmt.Errorf("product %s: %w", i.ID, err)
		}
	}
	return p, nil
}

func productItemFromCore(p core.Product) ProductItem {
	return ProductItem{
		ID:             p.ID,
		Name:           p.Name,
		PolicyType:     string(p.PolicyType),
		BaseMultiplier: p.BaseMultiplier.String(),
		MinSumAssured:  p.MinSumAssured.String(),
		MaxSumAssured:  p.MaxSumAssured.String(),
		IncludeADB:     p.IncludeADB,
		ADBPercent:     p.ADBPercent.String(),
		IncludePTD:     p.IncludePTD,
		PTDPercent:     p.PTDPercent.String(),
	}
}

type RateBandItem struct {
	ID               string `dynamodbav:"id"`
	Table            string `dynamodbav:"rate_table"`
	SortKey          string `dynamodbav:"sort_key"` // key#min, zero padded
	Key              string `dynamodbav:"band_key"`
	Min              int    `dynamodbav:"min"`
	Max              int    `dynamodbav:"max"`
	Value            string `dynamodbav:"value"`
	EligibilityYears int    `dynamodbav:"eligibility_years,omitempty"`
}

func (i RateBandItem) ToCore() (core.RateBand, error) {
	v, err := parseDecimal(i.Value)
	if err != nil {
		return core.RateBand{}, fmt.Errorf("rate band %s: %w", i.ID, err)
	}
	return core.RateBand{
		ID:               i.ID,
		Table:            core.RateTable(i.Table),
		Key:              i.Key,
		Min:              i.Min,
		Max:              i.Max,
		Value:            v,
		EligibilityYears: i.EligibilityYears,
	}, nil
}

func rateBandItemFromCore(b core.RateBand) RateBandItem {
	return RateBandItem{
		ID:               b.ID,
		Table:            string(b.Table),
		SortKey:          fmt.Sprintf("%s#%06d", b.Key, b.Min),
		Key:              b.Key,
		Min:              b.Min,
		Max:              b.Max,
		Value:            b.Value.String(),
		EligibilityYears: b.EligibilityYears,
	}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

type RateRepo struct {
	client *dynamodb.Client
	tables Tables
}

var _ core.RateTableRepo = (*RateRepo)(nil)

func NewRateRepo(client *dynamodb.Client, tables Tables) *RateRepo {
	return &RateRepo{client: client, tables: tables}
}

func (r *RateRepo) ListProducts(ctx context.Context) ([]core.Product, error) {
	var items []ProductItem
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.tables.Products),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("products.scan: %w", err)
		}
		var batch []ProductItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("products.unmarshal: %w", err)
		}
		items = append(items, batch...)
	}

	products := make([]core.Product, 0, len(items))
	for _, item := range items {
		prod, err := item.ToCore()
		if err != nil {
			return nil, err
		}
		products = append(products, prod)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (r *RateRepo) GetProduct(ctx context.Context, id string) (core.Product, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tables.Products),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return core.Product{}, fmt.Errorf("products.getItem: %w", err)
	}

	if out.Item == nil {
		return core.Product{}, core.ErrProductNotFound
	}

	var item ProductItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return core.Product{}, fmt.Errorf("products.unmarshal: %w", err)
	}

	return item.ToCore()
}

func (r *RateRepo) UpsertProduct(ctx context.Context, p core.Product) error {
	av, err := attributevalue.MarshalMap(productItemFromCore(p))
	if err != nil {
		return fmt.Errorf("products.marshal: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tables.Products),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("products.putItem: %w", err)
	}
	return nil
}

func (r *RateRepo) ListBands(ctx context.Context, table core.RateTable) ([]core.RateBand, error) {
	var pages []map[string]types.AttributeValue
	if table == "" {
		p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
			TableName: aws.String(r.tables.RateBands),
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("rate_bands.scan: %w", err)
			}
			pages = append(pages, page.Items...)
		}
	} else {
		keyCond := expression.Key("rate_table").Equal(expression.Value(string(table)))
		expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
		if err != nil {
			return nil, fmt.Errorf("rate_bands.buildExpr: %w", err)
		}
		p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tables.RateBands),
			IndexName:                 aws.String(GSIRateBandsTable),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("rate_bands.query: %w", err)
			}
			pages = append(pages, page.Items...)
		}
	}

	var items []RateBandItem
	if err := attributevalue.UnmarshalListOfMaps(pages, &items); err != nil {
		return nil, fmt.Errorf("rate_bands.unmarshal: %w", err)
	}
	bands := make([]core.RateBand, 0, len(items))
	for _, item := range items {
		b, err := item.ToCore()
		if err != nil {
			return nil, err
		}
		bands = append(bands, b)
	}
	sort.Slice(bands, func(i, j int) bool {
		if bands[i].Table != bands[j].Table {
			return bands[i].Table < bands[j].Table
		}
		if bands[i].Key != bands[j].Key {
			return bands[i].Key < bands[j].Key
		}
		return bands[i].Min < bands[j].Min
	})
	return bands, nil
}

func (r *RateRepo) CreateBand(ctx context.Context, b core.RateBand) error {
	av, err := attributevalue.MarshalMap(rateBandItemFromCore(b))
	if err != nil {
		return fmt.Errorf("rate_bands.marshal: %w", err)
	}

	// Use condition to prevent overwriting
	cond := expression.AttributeNotExists(expression.Name("id"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("rate_bands.buildExpr: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tables.RateBands),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: rate band %s exists", core.ErrConflict, b.ID)
		}
		return fmt.Errorf("rate_bands.putItem: %w", err)
	}
	return nil
}

func (r *RateRepo) DeleteBand(ctx context.Context, id string) error {
	cond := expression.AttributeExists(expression.Name("id"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("rate_bands.buildExpr: %w", err)
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tables.RateBands),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return core.ErrRateBandNotFound
		}
		return fmt.Errorf("rate_bands.deleteItem: %w", err)
	}
	return nil
}
