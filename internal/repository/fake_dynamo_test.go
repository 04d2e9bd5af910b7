package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo understands exactly the expressions the repositories emit.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	err   error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func boolean(av types.AttributeValue) bool {
	if b, ok := av.(*types.AttributeValueMemberBOOL); ok {
		return b.Value
	}
	return false
}

func keyOf(item map[string]types.AttributeValue) string {
	return str(item["PK"]) + "|" + str(item["SK"])
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func (f *fakeDynamo) check(expr *string, existing map[string]types.AttributeValue) bool {
	if expr == nil {
		return true
	}
	exists := existing != nil
	switch *expr {
	case "attribute_not_exists(PK)":
		return !exists
	case "attribute_exists(PK)":
		return exists
	case "attribute_not_exists(PK) OR is_activated = :false":
		return !exists || !boolean(existing["is_activated"])
	case "attribute_exists(PK) AND is_activated = :false":
		return exists && !boolean(existing["is_activated"])
	default:
		panic(fmt.Sprintf("fakeDynamo: unsupported condition %q", *expr))
	}
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	k := keyOf(in.Item)
	if !f.check(in.ConditionExpression, f.items[k]) {
		return nil, conditionFailed()
	}
	f.items[k] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	k := keyOf(in.Key)
	existing := f.items[k]
	if !f.check(in.ConditionExpression, existing) {
		return nil, conditionFailed()
	}

	updated := make(map[string]types.AttributeValue, len(existing))
	for name, v := range existing {
		updated[name] = v
	}
	for _, assignment := range strings.Split(strings.TrimPrefix(*in.UpdateExpression, "SET "), ", ") {
		parts := strings.SplitN(assignment, " = ", 2)
		name := parts[0]
		if strings.HasPrefix(name, "#") {
			name = in.ExpressionAttributeNames[name]
		}
		updated[name] = in.ExpressionAttributeValues[parts[1]]
	}
	f.items[k] = updated
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	k := keyOf(in.Key)
	if !f.check(in.ConditionExpression, f.items[k]) {
		return nil, conditionFailed()
	}
	delete(f.items, k)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	pk := str(in.ExpressionAttributeValues[":gsi1pk"])
	skPrefix, hasSK := in.ExpressionAttributeValues[":gsi1sk"]

	var out []map[string]types.AttributeValue
	for _, item := range f.items {
		if str(item["GSI1PK"]) != pk {
			continue
		}
		if hasSK && !strings.HasPrefix(str(item["GSI1SK"]), str(skPrefix)) {
			continue
		}
		out = append(out, item)
		if in.Limit != nil && int32(len(out)) >= *in.Limit {
			break
		}
	}
	return &dynamodb.QueryOutput{Items: out}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	prefix := str(in.ExpressionAttributeValues[":pk_prefix"])
	sk := str(in.ExpressionAttributeValues[":sk"])
	userID, filterUser := in.ExpressionAttributeValues[":user_id"]

	var out []map[string]types.AttributeValue
	for _, item := range f.items {
		if !strings.HasPrefix(str(item["PK"]), prefix) || str(item["SK"]) != sk {
			continue
		}
		if filterUser && !listContains(item["participants"], str(userID)) {
			continue
		}
		out = append(out, item)
	}
	return &dynamodb.ScanOutput{Items: out}, nil
}

func listContains(av types.AttributeValue, want string) bool {
	l, ok := av.(*types.AttributeValueMemberL)
	if !ok {
		return false
	}
	for _, v := range l.Value {
		if str(v) == want {
			return true
		}
	}
	return false
}
