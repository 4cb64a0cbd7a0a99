package dynamo

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/store-rating-api/internal/domain"
)

// StoreRepo provides typed DynamoDB operations for the stores table.
// PK: store_id (N)
type StoreRepo struct {
	client    API
	tableName string
}

func NewStoreRepo(client API, tableName string) *StoreRepo {
	return &StoreRepo{client: client, tableName: tableName}
}

func (r *StoreRepo) Put(ctx context.Context, s *domain.Store) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *StoreRepo) Get(ctx context.Context, storeID int64) (*domain.Store, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       numKey(fieldStoreID, storeID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("store %d: %w", storeID, domain.ErrNotFound)
	}
	var s domain.Store
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns every store, newest first.
func (r *StoreRepo) List(ctx context.Context) ([]domain.Store, error) {
	stores, err := scanAll[domain.Store](ctx, r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})
	if err != nil {
		return nil, err
	}
	sortStores(stores)
	return stores, nil
}

// ListByOwner returns the stores owned by ownerID.
func (r *StoreRepo) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Store, error) {
	stores, err := scanAll[domain.Store](ctx, r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          aws.String("#o = :o"),
		ExpressionAttributeNames:  map[string]string{"#o": fieldOwnerID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":o": numAttr(ownerID)},
	})
	if err != nil {
		return nil, err
	}
	sortStores(stores)
	return stores, nil
}

// UpdateRating overwrites the cached average rating of a store.
func (r *StoreRepo) UpdateRating(ctx context.Context, storeID int64, average float64) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldRating: average})
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldStoreID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       numKey(fieldStoreID, storeID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("store %d: %w", storeID, domain.ErrNotFound)
	}
	return err
}

func (r *StoreRepo) Delete(ctx context.Context, storeID int64) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      numKey(fieldStoreID, storeID),
		ConditionExpression:      aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": fieldStoreID},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("store %d: %w", storeID, domain.ErrNotFound)
	}
	return err
}

func sortStores(stores []domain.Store) {
	sort.SliceStable(stores, func(i, j int) bool {
		return stores[i].CreatedAt.After(stores[j].CreatedAt)
	})
}
