package shared

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory single-table DynamoDB covering the calls the
// shader store makes.
type fakeDynamo struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	order    map[string]int
	seq      int
	queryErr error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		items: make(map[string]map[string]types.AttributeValue),
		order: make(map[string]int),
	}
}

func stringAttr(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func numberAttr(av types.AttributeValue) int64 {
	if n, ok := av.(*types.AttributeValueMemberN); ok {
		v, _ := strconv.ParseInt(n.Value, 10, 64)
		return v
	}
	return 0
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[stringAttr(in.Key["id"])]}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := stringAttr(in.Item["id"])
	if aws.ToString(in.ConditionExpression) == "attribute_not_exists(id)" {
		if _, exists := f.items[id]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
	}
	f.items[id] = in.Item
	f.seq++
	f.order[id] = f.seq
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queryErr != nil {
		return nil, f.queryErr
	}

	var attr, want string
	switch aws.ToString(in.IndexName) {
	case CreatorIndex:
		attr, want = "creatorId", stringAttr(in.ExpressionAttributeValues[":creatorId"])
	case FeedIndex:
		attr, want = "feed", stringAttr(in.ExpressionAttributeValues[":feed"])
	}

	var matched []map[string]types.AttributeValue
	for _, item := range f.items {
		if stringAttr(item[attr]) == want {
			matched = append(matched, item)
		}
	}

	forward := in.ScanIndexForward == nil || *in.ScanIndexForward
	sort.Slice(matched, func(i, j int) bool {
		a, b := numberAttr(matched[i]["createdAtMs"]), numberAttr(matched[j]["createdAtMs"])
		if a == b {
			a = int64(f.order[stringAttr(matched[i]["id"])])
			b = int64(f.order[stringAttr(matched[j]["id"])])
		}
		if forward {
			return a < b
		}
		return a > b
	})

	if in.Limit != nil && int(*in.Limit) < len(matched) {
		matched = matched[:*in.Limit]
	}
	return &dynamodb.QueryOutput{Items: matched, Count: int32(len(matched))}, nil
}
