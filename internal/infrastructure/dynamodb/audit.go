package dynamodb

import (
	"context"
	"fmt"

	"smart-factory/internal/domain"
)

type AuditLogRepository struct{ client *Client }

func NewAuditLogRepository(client *Client) *AuditLogRepository {
	return &AuditLogRepository{client: client}
}

type auditRecord struct {
	PK         string         `dynamodbav:"PK"`
	SK         string         `dynamodbav:"SK"`
	EntityType string         `dynamodbav:"EntityType"`
	ID         string         `dynamodbav:"ID"`
	UserID     string         `dynamodbav:"UserID"`
	UserName   string         `dynamodbav:"UserName"`
	Action     string         `dynamodbav:"Action"`
	Resource   string         `dynamodbav:"Resource"`
	ResourceID string         `dynamodbav:"ResourceID,omitempty"`
	Details    map[string]any `dynamodbav:"Details,omitempty"`
	Result     string         `dynamodbav:"Result"`
	IPAddress  string         `dynamodbav:"IPAddress"`
	UserAgent  string         `dynamodbav:"UserAgent"`
	Timestamp  string         `dynamodbav:"Timestamp"`
}

// Append never overwrites: the sort key embeds the timestamp and id, and the
// write is conditional on the key being unused.
func (r *AuditLogRepository) Append(ctx context.Context, entry domain.AuditLog) error {
	rec := auditRecord{
		PK:         auditPK,
		SK:         auditSK(entry.Timestamp, entry.ID),
		EntityType: "AUDIT_LOG",
		ID:         entry.ID,
		UserID:     entry.UserID,
		UserName:   entry.UserName,
		Action:     string(entry.Action),
		Resource:   string(entry.Resource),
		ResourceID: entry.ResourceID,
		Details:    entry.Details,
		Result:     string(entry.Result),
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		Timestamp:  formatTime(entry.Timestamp),
	}
	err := r.client.putItem(ctx, "DynamoDB.PutAuditLog", rec, "attribute_not_exists(PK)")
	if isConditionalCheckFailure(err) {
		return fmt.Errorf("%w: audit entry %s already written", domain.ErrConflict, entry.ID)
	}
	return err
}

func (r *AuditLogRepository) List(ctx context.Context, filter domain.AuditLogFilter) ([]domain.AuditLog, error) {
	items, err := r.client.query(ctx, "DynamoDB.QueryAuditLogs", auditPK, "LOG#", false)
	if err != nil {
		return nil, err
	}
	records, err := unmarshalAll[auditRecord](items)
	if err != nil {
		return nil, err
	}
	logs := []domain.AuditLog{}
	for _, rec := range records {
		entry := domain.AuditLog{
			ID:         rec.ID,
			UserID:     rec.UserID,
			UserName:   rec.UserName,
			Action:     domain.AuditAction(rec.Action),
			Resource:   domain.Resource(rec.Resource),
			ResourceID: rec.ResourceID,
			Details:    rec.Details,
			Result:     domain.AuditResult(rec.Result),
			IPAddress:  rec.IPAddress,
			UserAgent:  rec.UserAgent,
			Timestamp:  parseTime(rec.Timestamp),
		}
		if filter.Match(entry) {
			logs = append(logs, entry)
		}
	}
	return logs, nil
}
