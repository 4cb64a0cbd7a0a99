package dynamo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Sequence names.
const (
	SeqUsers  = "users"
	SeqStores = "stores"
)

// CounterRepo hands out monotonically increasing integer ids, one sequence per name.
// PK: name
type CounterRepo struct {
	client    API
	tableName string
}

func NewCounterRepo(client API, tableName string) *CounterRepo {
	return &CounterRepo{client: client, tableName: tableName}
}

// Next atomically increments the named sequence and returns the new value. The first
// call for a name returns 1.
func (r *CounterRepo) Next(ctx context.Context, name string) (int64, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(fieldName, name),
		UpdateExpression:         aws.String("ADD #s :one"),
		ExpressionAttributeNames: map[string]string{"#s": fieldSeq},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": numAttr(1),
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	n, ok := out.Attributes[fieldSeq].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("next %s id: counter attribute missing", name)
	}
	return strconv.ParseInt(n.Value, 10, 64)
}
