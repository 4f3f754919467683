package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"clancha/internal/domain"
)

const (
	pkPrefixRate = "RATE#"
	skWindow     = "WINDOW#"
	// Expired windows are equivalent to missing records, so DynamoDB may
	// reap them any time after this grace period.
	ttlGrace = time.Hour
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client stores rate records in a DynamoDB table so every instance of the
// service shares one admission state per key.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// ratePK returns the partition key for a client key.
func ratePK(key string) string {
	return pkPrefixRate + key
}

// ttlValue returns the Unix timestamp after which the record may be reaped.
func ttlValue(reset time.Time) int64 {
	return reset.Add(ttlGrace).Unix()
}

// Load reads the record for key with a strongly consistent read.
func (c *Client) Load(ctx context.Context, key string) (domain.RateRecord, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            recordKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.RateRecord{}, false, fmt.Errorf("repository: Load get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.RateRecord{}, false, nil
	}
	rec, err := itemToRecord(key, out.Item)
	if err != nil {
		return domain.RateRecord{}, false, fmt.Errorf("repository: Load decode: %w", err)
	}
	return rec, true, nil
}

// CompareAndSwap writes next only if the stored record still matches prev.
// A failed condition is reported as (false, nil).
func (c *Client) CompareAndSwap(ctx context.Context, prev *domain.RateRecord, next domain.RateRecord) (bool, error) {
	if strings.TrimSpace(next.Key) == "" {
		return false, errors.New("repository: CompareAndSwap: key is required")
	}
	in := &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      recordItem(next),
	}
	if prev == nil {
		in.ConditionExpression = aws.String("attribute_not_exists(PK)")
	} else {
		in.ConditionExpression = aws.String("#count = :prevCount AND resetAt = :prevReset")
		in.ExpressionAttributeNames = map[string]string{"#count": "count"}
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":prevCount": numAttr(int64(prev.Count)),
			":prevReset": numAttr(prev.WindowResetTime.UnixMilli()),
		}
	}

	_, err := c.api.PutItem(ctx, in)
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return false, nil
		}
		return false, fmt.Errorf("repository: CompareAndSwap: %w", err)
	}
	return true, nil
}

func recordKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: ratePK(key)},
		"SK": &types.AttributeValueMemberS{Value: skWindow},
	}
}

func recordItem(rec domain.RateRecord) map[string]types.AttributeValue {
	item := recordKey(rec.Key)
	item["count"] = numAttr(int64(rec.Count))
	item["resetAt"] = numAttr(rec.WindowResetTime.UnixMilli())
	item["ttl"] = numAttr(ttlValue(rec.WindowResetTime))
	return item
}

// itemToRecord converts a DynamoDB attribute map to a RateRecord.
func itemToRecord(key string, item map[string]types.AttributeValue) (domain.RateRecord, error) {
	count, err := intAttr(item, "count")
	if err != nil {
		return domain.RateRecord{}, err
	}
	resetMillis, err := intAttr(item, "resetAt")
	if err != nil {
		return domain.RateRecord{}, err
	}
	return domain.RateRecord{
		Key:             key,
		Count:           int(count),
		WindowResetTime: time.UnixMilli(resetMillis).UTC(),
	}, nil
}

func numAttr(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
