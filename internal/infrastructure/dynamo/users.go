package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/store-rating-api/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table.
// PK: user_id (N). GSIs: email-index, username-index.
//
// Email and username uniqueness is enforced through the keys table: every user owns
// one "email#<email>" and one "username#<username>" item, written in the same
// transaction as the user itself.
type UserRepo struct {
	client    API
	tableName string
	keysTable string
}

func NewUserRepo(client API, tableName, keysTable string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, keysTable: keysTable}
}

func emailKey(email string) string       { return "email#" + email }
func usernameKey(username string) string { return "username#" + username }

// Create stores a new user together with its email and username claims. It fails
// with ErrEmailTaken or ErrUsernameTaken when another user holds either, and with
// ErrConflict when the id is already in use.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                aws.String(r.tableName),
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
				ExpressionAttributeNames: map[string]string{"#pk": fieldUserID},
			}},
			r.claim(emailKey(u.Email), u.ID),
			r.claim(usernameKey(u.Username), u.ID),
		},
	})
	if failed := cancelledAt(err); failed != nil {
		switch {
		case failed[1]:
			return fmt.Errorf("user email %s: %w", u.Email, domain.ErrEmailTaken)
		case failed[2]:
			return fmt.Errorf("user username %s: %w", u.Username, domain.ErrUsernameTaken)
		case failed[0]:
			return fmt.Errorf("user %d: %w", u.ID, domain.ErrConflict)
		}
	}
	return err
}

func (r *UserRepo) Get(ctx context.Context, userID int64) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       numKey(fieldUserID, userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.queryGSI(ctx, indexUsername, fieldUsername, username)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.queryGSI(ctx, indexEmail, fieldEmail, email)
}

// List returns every user, newest first.
func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	users, err := scanAll[domain.User](ctx, r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

// Update applies a partial update. It fails with ErrNotFound when the user is gone.
// A username change moves the username claim in the same transaction and fails with
// ErrUsernameTaken when the new name is held by someone else.
func (r *UserRepo) Update(ctx context.Context, userID int64, updates map[string]interface{}) error {
	if username, ok := updates[fieldUsername].(string); ok {
		current, err := r.Get(ctx, userID)
		if err != nil {
			return err
		}
		if current.Username != username {
			return r.rename(ctx, current, updates, username)
		}
	}

	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldUserID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       numKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	return err
}

func (r *UserRepo) rename(ctx context.Context, current *domain.User, updates map[string]interface{}, username string) error {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldUserID
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:                 aws.String(r.tableName),
				Key:                       numKey(fieldUserID, current.ID),
				UpdateExpression:          aws.String(ue.Expr),
				ConditionExpression:       aws.String("attribute_exists(#pk)"),
				ExpressionAttributeNames:  ue.Names,
				ExpressionAttributeValues: ue.Values,
			}},
			r.release(usernameKey(current.Username)),
			r.claim(usernameKey(username), current.ID),
		},
	})
	if failed := cancelledAt(err); failed != nil {
		if failed[2] {
			return fmt.Errorf("user username %s: %w", username, domain.ErrUsernameTaken)
		}
		if failed[0] {
			return fmt.Errorf("user %d: %w", current.ID, domain.ErrNotFound)
		}
	}
	return err
}

// Delete removes the user and releases its email and username claims.
func (r *UserRepo) Delete(ctx context.Context, userID int64) error {
	u, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:                aws.String(r.tableName),
				Key:                      numKey(fieldUserID, userID),
				ConditionExpression:      aws.String("attribute_exists(#pk)"),
				ExpressionAttributeNames: map[string]string{"#pk": fieldUserID},
			}},
			r.release(emailKey(u.Email)),
			r.release(usernameKey(u.Username)),
		},
	})
	if failed := cancelledAt(err); failed != nil && failed[0] {
		return fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	return err
}

// claim writes key to the keys table unless another user already holds it.
func (r *UserRepo) claim(key string, userID int64) types.TransactWriteItem {
	return types.TransactWriteItem{Put: &types.Put{
		TableName: aws.String(r.keysTable),
		Item: map[string]types.AttributeValue{
			fieldUniqueKey: &types.AttributeValueMemberS{Value: key},
			fieldUserID:    numAttr(userID),
		},
		ConditionExpression:      aws.String("attribute_not_exists(#k)"),
		ExpressionAttributeNames: map[string]string{"#k": fieldUniqueKey},
	}}
}

func (r *UserRepo) release(key string) types.TransactWriteItem {
	return types.TransactWriteItem{Delete: &types.Delete{
		TableName: aws.String(r.keysTable),
		Key:       strKey(fieldUniqueKey, key),
	}}
}

func (r *UserRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user %s=%s: %w", attr, value, domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// cancelledAt reports, per transaction item, whether it lost to existing or concurrently
// written data. It returns nil unless err is a cancelled transaction.
func cancelledAt(err error) []bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil
	}
	failed := make([]bool, 3)
	for i, reason := range tce.CancellationReasons {
		if i >= len(failed) {
			break
		}
		switch aws.ToString(reason.Code) {
		case "ConditionalCheckFailed", "TransactionConflict":
			failed[i] = true
		}
	}
	return failed
}
