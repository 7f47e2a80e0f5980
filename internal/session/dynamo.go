package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

// DynamoDBAPI is the subset of the DynamoDB client the store needs.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

var _ DynamoDBAPI = (*dynamodb.Client)(nil)

// DynamoStore persists sessions in a single DynamoDB table keyed by sessionId.
type DynamoStore struct {
	client DynamoDBAPI
	table  string
	logger zerolog.Logger
}

// NewDynamoStore creates a store backed by the given table.
func NewDynamoStore(client DynamoDBAPI, table string, logger zerolog.Logger) *DynamoStore {
	return &DynamoStore{client: client, table: table, logger: logger}
}

// dynamoItem is the wire shape of a session row. Timestamps are RFC3339
// strings; additionalData is an opaque serialized map.
type dynamoItem struct {
	SessionID       string `dynamodbav:"sessionId"`
	AccessKeyID     string `dynamodbav:"accessKeyId"`
	SecretAccessKey string `dynamodbav:"secretAccessKey"`
	SessionToken    string `dynamodbav:"sessionToken,omitempty"`
	Expiry          string `dynamodbav:"expiry,omitempty"`
	CreatedAt       string `dynamodbav:"createdAt"`
	AdditionalData  string `dynamodbav:"additionalData,omitempty"`
}

// Put writes a session row. Write failures propagate so that session
// issuance fails atomically.
func (s *DynamoStore) Put(ctx context.Context, rec Record) error {
	item := dynamoItem{
		SessionID:       rec.SessionID,
		AccessKeyID:     rec.AccessKeyID,
		SecretAccessKey: rec.SecretAccessKey,
		SessionToken:    rec.SessionToken,
		CreatedAt:       rec.CreatedAt.UTC().Format(time.RFC3339),
	}
	if rec.Expiry != nil {
		item.Expiry = rec.Expiry.UTC().Format(time.RFC3339)
	}
	if len(rec.AdditionalData) > 0 {
		data, err := json.Marshal(rec.AdditionalData)
		if err != nil {
			return fmt.Errorf("marshaling additional data: %w", err)
		}
		item.AdditionalData = string(data)
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling session item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("writing session %s: %w", rec.SessionID, err)
	}
	return nil
}

// Get reads a session row. Every failure mode collapses into ErrNotFound;
// the underlying cause is logged, not surfaced.
func (s *DynamoStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"sessionId": &types.AttributeValueMemberS{Value: sessionID},
		},
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("session lookup failed")
		return nil, ErrNotFound
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("malformed session item")
		return nil, ErrNotFound
	}

	return item.toRecord(), nil
}

func (it *dynamoItem) toRecord() *Record {
	rec := &Record{
		SessionID:       it.SessionID,
		AccessKeyID:     it.AccessKeyID,
		SecretAccessKey: it.SecretAccessKey,
		SessionToken:    it.SessionToken,
	}
	// Malformed timestamps and additionalData are treated as absent.
	if it.Expiry != "" {
		if t, err := time.Parse(time.RFC3339, it.Expiry); err == nil {
			rec.Expiry = &t
		}
	}
	if it.CreatedAt != "" {
		rec.CreatedAt, _ = time.Parse(time.RFC3339, it.CreatedAt)
	}
	if it.AdditionalData != "" {
		var data map[string]string
		if err := json.Unmarshal([]byte(it.AdditionalData), &data); err == nil {
			rec.AdditionalData = data
		}
	}
	return rec
}
