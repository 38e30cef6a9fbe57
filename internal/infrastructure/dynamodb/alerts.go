package dynamodb

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsv2dynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-xray-sdk-go/xray"
	"smart-factory/internal/domain"
)

type AlertRepository struct{ client *Client }

func NewAlertRepository(client *Client) *AlertRepository {
	return &AlertRepository{client: client}
}

type alertRecord struct {
	PK             string  `dynamodbav:"PK"`
	SK             string  `dynamodbav:"SK"`
	EntityType     string  `dynamodbav:"EntityType"`
	ID             string  `dynamodbav:"ID"`
	RuleID         string  `dynamodbav:"RuleID,omitempty"`
	DeviceID       string  `dynamodbav:"DeviceID"`
	DeviceName     string  `dynamodbav:"DeviceName"`
	Metric         string  `dynamodbav:"Metric"`
	Value          float64 `dynamodbav:"Value"`
	Severity       string  `dynamodbav:"Severity"`
	Status         string  `dynamodbav:"Status"`
	Message        string  `dynamodbav:"Message"`
	TriggeredAt    string  `dynamodbav:"TriggeredAt"`
	AcknowledgedAt string  `dynamodbav:"AcknowledgedAt,omitempty"`
	AcknowledgedBy string  `dynamodbav:"AcknowledgedBy,omitempty"`
	ResolvedAt     string  `dynamodbav:"ResolvedAt,omitempty"`
	ResolvedBy     string  `dynamodbav:"ResolvedBy,omitempty"`
}

func toAlertRecord(a domain.Alert) alertRecord {
	return alertRecord{
		PK:             alertsPK,
		SK:             alertSK(a.ID),
		EntityType:     "ALERT",
		ID:             a.ID,
		RuleID:         a.RuleID,
		DeviceID:       a.DeviceID,
		DeviceName:     a.DeviceName,
		Metric:         a.Metric,
		Value:          a.Value,
		Severity:       string(a.Severity),
		Status:         string(a.Status),
		Message:        a.Message,
		TriggeredAt:    formatTime(a.TriggeredAt),
		AcknowledgedAt: formatTimePtr(a.AcknowledgedAt),
		AcknowledgedBy: a.AcknowledgedBy,
		ResolvedAt:     formatTimePtr(a.ResolvedAt),
		ResolvedBy:     a.ResolvedBy,
	}
}

func (r alertRecord) toDomain() domain.Alert {
	return domain.Alert{
		ID:             r.ID,
		RuleID:         r.RuleID,
		DeviceID:       r.DeviceID,
		DeviceName:     r.DeviceName,
		Metric:         r.Metric,
		Value:          r.Value,
		Severity:       domain.Severity(r.Severity),
		Status:         domain.AlertStatus(r.Status),
		Message:        r.Message,
		TriggeredAt:    parseTime(r.TriggeredAt),
		AcknowledgedAt: parseTimePtr(r.AcknowledgedAt),
		AcknowledgedBy: r.AcknowledgedBy,
		ResolvedAt:     parseTimePtr(r.ResolvedAt),
		ResolvedBy:     r.ResolvedBy,
	}
}

func (r *AlertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	items, err := r.client.query(ctx, "DynamoDB.QueryAlerts", alertsPK, "ALERT#", false)
	if err != nil {
		return nil, err
	}
	records, err := unmarshalAll[alertRecord](items)
	if err != nil {
		return nil, err
	}
	alerts := []domain.Alert{}
	for _, rec := range records {
		if a := rec.toDomain(); filter.Match(a) {
			alerts = append(alerts, a)
		}
	}
	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].TriggeredAt.After(alerts[j].TriggeredAt) })
	return alerts, nil
}

func (r *AlertRepository) GetByID(ctx context.Context, alertID string) (domain.Alert, error) {
	var rec alertRecord
	if err := r.client.getItem(ctx, "DynamoDB.GetAlert", alertsPK, alertSK(alertID), &rec); err != nil {
		return domain.Alert{}, err
	}
	return rec.toDomain(), nil
}

func (r *AlertRepository) Create(ctx context.Context, alert domain.Alert) error {
	err := r.client.putItem(ctx, "DynamoDB.PutAlert", toAlertRecord(alert), "attribute_not_exists(PK)")
	if isConditionalCheckFailure(err) {
		return fmt.Errorf("%w: alert %s already exists", domain.ErrConflict, alert.ID)
	}
	return err
}

// Transition writes the lifecycle fields only while the stored status still
// equals from, so two concurrent transitions cannot both succeed.
func (r *AlertRepository) Transition(ctx context.Context, next domain.Alert, from domain.AlertStatus) error {
	rec := toAlertRecord(next)
	return xray.Capture(ctx, "DynamoDB.TransitionAlert", func(ctx context.Context) error {
		_, err := r.client.db.UpdateItem(ctx, &awsv2dynamodb.UpdateItemInput{
			TableName:        aws.String(r.client.tableName),
			Key:              key(alertsPK, alertSK(next.ID)),
			UpdateExpression: aws.String("SET #s = :to, AcknowledgedAt = :aa, AcknowledgedBy = :ab, ResolvedAt = :ra, ResolvedBy = :rb"),
			ExpressionAttributeNames: map[string]string{
				"#s": "Status",
			},
			ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
				":to":   str(rec.Status),
				":from": str(string(from)),
				":aa":   str(rec.AcknowledgedAt),
				":ab":   str(rec.AcknowledgedBy),
				":ra":   str(rec.ResolvedAt),
				":rb":   str(rec.ResolvedBy),
			},
			ConditionExpression: aws.String("attribute_exists(PK) AND #s = :from"),
		})
		if isConditionalCheckFailure(err) {
			if _, getErr := r.GetByID(ctx, next.ID); getErr != nil {
				return getErr
			}
			return fmt.Errorf("%w: alert %s is no longer %s", domain.ErrIllegalTransition, next.ID, from)
		}
		return err
	})
}
