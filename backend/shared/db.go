package shared

import (
	"context"
	"errors"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

var (
	dynamoClient *dynamodb.Client
	dynamoMu     sync.Mutex
)

// InitDynamoDB returns the process-wide DynamoDB client, creating it on first use.
func InitDynamoDB(ctx context.Context) (*dynamodb.Client, error) {
	dynamoMu.Lock()
	defer dynamoMu.Unlock()

	if dynamoClient != nil {
		return dynamoClient, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	dynamoClient = dynamodb.NewFromConfig(cfg)
	return dynamoClient, nil
}

// DynamoAPI is the subset of the DynamoDB client the shader store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Secondary indexes of the shaders table. Both sort on createdAtMs.
const (
	CreatorIndex = "creatorId-createdAtMs-index"
	FeedIndex    = "feed-createdAtMs-index"

	// every row carries the same feed key so the feed index spans the table
	feedAll = "all"
)

// shaderItem is the stored row: the shader plus the index keys.
type shaderItem struct {
	Shader
	Feed        string `dynamodbav:"feed"`
	CreatedAtMs int64  `dynamodbav:"createdAtMs"`
}

// DynamoShaderStore keeps shaders in a single DynamoDB table keyed by id.
type DynamoShaderStore struct {
	client DynamoAPI
	table  string
	log    *zap.Logger
}

func NewDynamoShaderStore(client DynamoAPI, table string, logger *zap.Logger) *DynamoShaderStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DynamoShaderStore{client: client, table: table, log: logger.Named("db")}
}

func (s *DynamoShaderStore) Insert(ctx context.Context, shader *Shader) error {
	s.log.Debug("PutItem", zap.String("table", s.table), zap.String("id", shader.ID))

	av, err := attributevalue.MarshalMap(shaderItem{
		Shader:      *shader,
		Feed:        feedAll,
		CreatedAtMs: shader.CreatedAt.UnixMilli(),
	})
	if err != nil {
		s.log.Error("PutItem marshal failed", zap.String("id", shader.ID), zap.Error(err))
		return &StorageError{Op: "insert", Err: err}
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var conflict *types.ConditionalCheckFailedException
		if errors.As(err, &conflict) {
			s.log.Error("PutItem duplicate id", zap.String("id", shader.ID))
		} else {
			s.log.Error("PutItem failed", zap.String("table", s.table), zap.Error(err))
		}
		return &StorageError{Op: "insert", Err: err}
	}

	s.log.Info("PutItem ok", zap.String("id", shader.ID), zap.String("lineage_id", shader.LineageID))
	return nil
}

func (s *DynamoShaderStore) GetByID(ctx context.Context, id string) (*Shader, error) {
	s.log.Debug("GetItem", zap.String("table", s.table), zap.String("id", id))

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		s.log.Error("GetItem failed", zap.String("id", id), zap.Error(err))
		return nil, &StorageError{Op: "get", Err: err}
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var item shaderItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		s.log.Error("GetItem unmarshal failed", zap.String("id", id), zap.Error(err))
		return nil, &StorageError{Op: "get", Err: err}
	}
	return &item.Shader, nil
}

func (s *DynamoShaderStore) Recent(ctx context.Context, f RecentFilter) ([]Shader, error) {
	limit := f.ClampLimit()

	input := &dynamodb.QueryInput{
		TableName:        aws.String(s.table),
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}
	if f.CreatorID != "" {
		input.IndexName = aws.String(CreatorIndex)
		input.KeyConditionExpression = aws.String("creatorId = :creatorId")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":creatorId": &types.AttributeValueMemberS{Value: f.CreatorID},
		}
	} else {
		input.IndexName = aws.String(FeedIndex)
		input.KeyConditionExpression = aws.String("feed = :feed")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":feed": &types.AttributeValueMemberS{Value: feedAll},
		}
	}

	s.log.Debug("Query", zap.String("index", *input.IndexName), zap.Int("limit", limit))

	out, err := s.client.Query(ctx, input)
	if err != nil {
		s.log.Error("Query failed", zap.String("index", *input.IndexName), zap.Error(err))
		return nil, &StorageError{Op: "recent", Err: err}
	}

	var items []shaderItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		s.log.Error("Query unmarshal failed", zap.Error(err))
		return nil, &StorageError{Op: "recent", Err: err}
	}

	shaders := make([]Shader, 0, len(items))
	for _, it := range items {
		shaders = append(shaders, it.Shader)
	}
	s.log.Debug("Query ok", zap.Int("count", len(shaders)))
	return shaders, nil
}
