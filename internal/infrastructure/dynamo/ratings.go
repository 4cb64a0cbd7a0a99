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

// RatingRepo provides typed DynamoDB operations for the ratings table.
// PK: store_id (N), SK: rating_key (S). GSI: user_id-index.
type RatingRepo struct {
	client    API
	tableName string
}

func NewRatingRepo(client API, tableName string) *RatingRepo {
	return &RatingRepo{client: client, tableName: tableName}
}

// Put creates or replaces a rating. A user's rating for a store always has the same
// key, so rating again overwrites the previous score.
func (r *RatingRepo) Put(ctx context.Context, rt *domain.Rating) error {
	item, err := attributevalue.MarshalMap(rt)
	if err != nil {
		return fmt.Errorf("marshal rating: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// ListByStore returns the ratings of a store, newest first.
func (r *RatingRepo) ListByStore(ctx context.Context, storeID int64) ([]domain.Rating, error) {
	ratings, err := queryAll[domain.Rating](ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    aws.String("#s = :s"),
		ExpressionAttributeNames:  map[string]string{"#s": fieldStoreID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":s": numAttr(storeID)},
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ratings, func(i, j int) bool {
		return ratings[i].CreatedAt.After(ratings[j].CreatedAt)
	})
	return ratings, nil
}

// ListByUser returns every rating left by userID across all stores.
func (r *RatingRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Rating, error) {
	return queryAll[domain.Rating](ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexRatingBy),
		KeyConditionExpression:    aws.String("#u = :u"),
		ExpressionAttributeNames:  map[string]string{"#u": fieldUserID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":u": numAttr(userID)},
	})
}

func (r *RatingRepo) Delete(ctx context.Context, storeID int64, ratingKey string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey(fieldStoreID, storeID, fieldRatingKey, ratingKey),
	})
	return err
}

// DeleteByStore removes every rating of a store.
func (r *RatingRepo) DeleteByStore(ctx context.Context, storeID int64) error {
	ratings, err := r.ListByStore(ctx, storeID)
	if err != nil {
		return err
	}
	for _, rt := range ratings {
		if err := r.Delete(ctx, storeID, rt.RatingKey); err != nil {
			return err
		}
	}
	return nil
}
