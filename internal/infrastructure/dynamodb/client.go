package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsv2dynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	awsv2xray "github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/aws/aws-xray-sdk-go/xray"
	"smart-factory/internal/domain"
)

// API is the subset of the DynamoDB client the repositories call.
type API interface {
	GetItem(ctx context.Context, in *awsv2dynamodb.GetItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *awsv2dynamodb.PutItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *awsv2dynamodb.UpdateItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *awsv2dynamodb.DeleteItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *awsv2dynamodb.QueryInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *awsv2dynamodb.TransactWriteItemsInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.TransactWriteItemsOutput, error)
	BatchWriteItem(ctx context.Context, in *awsv2dynamodb.BatchWriteItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.BatchWriteItemOutput, error)
}

type Client struct {
	db        API
	tableName string
}

func NewClient(ctx context.Context, region, tableName string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	awsv2xray.AWSV2Instrumentor(&cfg.APIOptions)
	client := awsv2dynamodb.NewFromConfig(cfg)
	return &Client{db: client, tableName: tableName}, nil
}

func NewClientWithAPI(db API, tableName string) *Client {
	return &Client{db: db, tableName: tableName}
}

// Every collection lives under one fixed partition so a list is a single
// Query. Per-device command history gets its own partition.
const (
	metaSK     = "META"
	rolesPK    = "ROLES"
	usersPK    = "USERS"
	devicesPK  = "DEVICES"
	alertsPK   = "ALERTS"
	rulesPK    = "RULES"
	auditPK    = "AUDIT"
	sortLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

func roleSK(roleID string) string              { return "ROLE#" + roleID }
func grantPrefix(roleID string) string         { return "GRANT#" + roleID + "#" }
func grantSK(roleID, permID string) string     { return grantPrefix(roleID) + permID }
func roleNamePK(name domain.RoleName) string   { return "ROLENAME#" + string(name) }
func userSK(userID string) string              { return "USER#" + userID }
func emailPK(email string) string              { return "EMAIL#" + email }
func deviceSK(deviceID string) string          { return "DEVICE#" + deviceID }
func commandPK(deviceID string) string         { return "DEVICE#" + deviceID }
func commandSK(at time.Time, id string) string { return "CMD#" + at.UTC().Format(sortLayout) + "#" + id }
func alertSK(alertID string) string            { return "ALERT#" + alertID }
func ruleSK(ruleID string) string              { return "RULE#" + ruleID }
func auditSK(at time.Time, id string) string   { return "LOG#" + at.UTC().Format(sortLayout) + "#" + id }

func key(pk, sk string) map[string]awsv2types.AttributeValue {
	return map[string]awsv2types.AttributeValue{
		"PK": &awsv2types.AttributeValueMemberS{Value: pk},
		"SK": &awsv2types.AttributeValueMemberS{Value: sk},
	}
}

func str(v string) *awsv2types.AttributeValueMemberS { return &awsv2types.AttributeValueMemberS{Value: v} }

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseTime(s)
	return &t
}

func isConditionalCheckFailure(err error) bool {
	var condErr *awsv2types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return true
	}
	var txErr *awsv2types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for _, reason := range txErr.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}

func (c *Client) putItem(ctx context.Context, segment string, record any, condition string) error {
	av, err := attributevalue.MarshalMap(record)
	if err != nil {
		return err
	}
	return xray.Capture(ctx, segment, func(ctx context.Context) error {
		in := &awsv2dynamodb.PutItemInput{
			TableName: aws.String(c.tableName),
			Item:      av,
		}
		if condition != "" {
			in.ConditionExpression = aws.String(condition)
		}
		_, err := c.db.PutItem(ctx, in)
		return err
	})
}

func (c *Client) getItem(ctx context.Context, segment, pk, sk string, out any) error {
	var res *awsv2dynamodb.GetItemOutput
	err := xray.Capture(ctx, segment, func(ctx context.Context) error {
		var e error
		res, e = c.db.GetItem(ctx, &awsv2dynamodb.GetItemInput{
			TableName: aws.String(c.tableName),
			Key:       key(pk, sk),
		})
		return e
	})
	if err != nil {
		return err
	}
	if res.Item == nil {
		return domain.ErrNotFound
	}
	return attributevalue.UnmarshalMap(res.Item, out)
}

func (c *Client) deleteItem(ctx context.Context, segment, pk, sk string) error {
	return xray.Capture(ctx, segment, func(ctx context.Context) error {
		_, err := c.db.DeleteItem(ctx, &awsv2dynamodb.DeleteItemInput{
			TableName:           aws.String(c.tableName),
			Key:                 key(pk, sk),
			ConditionExpression: aws.String("attribute_exists(PK)"),
		})
		if isConditionalCheckFailure(err) {
			return domain.ErrNotFound
		}
		return err
	})
}

// query pages through every item under pk whose sort key starts with prefix.
func (c *Client) query(ctx context.Context, segment, pk, prefix string, forward bool) ([]map[string]awsv2types.AttributeValue, error) {
	var items []map[string]awsv2types.AttributeValue
	err := xray.Capture(ctx, segment, func(ctx context.Context) error {
		var startKey map[string]awsv2types.AttributeValue
		for {
			out, err := c.db.Query(ctx, &awsv2dynamodb.QueryInput{
				TableName:              aws.String(c.tableName),
				KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
				ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
					":pk": str(pk),
					":sk": str(prefix),
				},
				ScanIndexForward:  aws.Bool(forward),
				ExclusiveStartKey: startKey,
			})
			if err != nil {
				return err
			}
			items = append(items, out.Items...)
			if len(out.LastEvaluatedKey) == 0 {
				return nil
			}
			startKey = out.LastEvaluatedKey
		}
	})
	return items, err
}

func (c *Client) transact(ctx context.Context, segment string, items []awsv2types.TransactWriteItem) error {
	return xray.Capture(ctx, segment, func(ctx context.Context) error {
		_, err := c.db.TransactWriteItems(ctx, &awsv2dynamodb.TransactWriteItemsInput{TransactItems: items})
		return err
	})
}

// batchDelete removes keys 25 at a time, the BatchWriteItem limit.
func (c *Client) batchDelete(ctx context.Context, segment string, keys []map[string]awsv2types.AttributeValue) error {
	for start := 0; start < len(keys); start += 25 {
		end := min(start+25, len(keys))
		requests := make([]awsv2types.WriteRequest, 0, end-start)
		for _, k := range keys[start:end] {
			requests = append(requests, awsv2types.WriteRequest{DeleteRequest: &awsv2types.DeleteRequest{Key: k}})
		}
		err := xray.Capture(ctx, segment, func(ctx context.Context) error {
			pending := map[string][]awsv2types.WriteRequest{c.tableName: requests}
			for len(pending) > 0 {
				out, err := c.db.BatchWriteItem(ctx, &awsv2dynamodb.BatchWriteItemInput{RequestItems: pending})
				if err != nil {
					return err
				}
				pending = out.UnprocessedItems
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("batch delete: %w", err)
		}
	}
	return nil
}

func keyOf(item map[string]awsv2types.AttributeValue) map[string]awsv2types.AttributeValue {
	return map[string]awsv2types.AttributeValue{"PK": item["PK"], "SK": item["SK"]}
}

func unmarshalAll[T any](items []map[string]awsv2types.AttributeValue) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		var rec T
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
