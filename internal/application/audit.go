package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"smart-factory/internal/domain"
	"smart-factory/internal/ids"
	"smart-factory/internal/ports"
)

type AuditEntry struct {
	Action     domain.AuditAction
	Resource   domain.Resource
	ResourceID string
	Details    map[string]any
	Result     domain.AuditResult
}

type AuditService struct {
	repo     ports.AuditLogRepository
	authz    *AuthorizationService
	exporter ports.AuditExporter
	metrics  ports.Metrics
	logger   ports.Logger
	now      func() time.Time
}

func NewAuditService(repo ports.AuditLogRepository, authz *AuthorizationService, exporter ports.AuditExporter, metrics ports.Metrics, logger ports.Logger) *AuditService {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &AuditService{repo: repo, authz: authz, exporter: exporter, metrics: metrics, logger: logger, now: utcNow}
}

// Record appends one entry stamped with a server-side id and timestamp.
func (s *AuditService) Record(ctx context.Context, actor domain.Actor, e AuditEntry) (domain.AuditLog, error) {
	if !e.Action.Valid() || e.Resource == "" {
		return domain.AuditLog{}, fmt.Errorf("%w: audit entry needs a known action and a resource", domain.ErrInvalidInput)
	}
	if e.Result != domain.AuditSuccess && e.Result != domain.AuditFailure {
		return domain.AuditLog{}, fmt.Errorf("%w: audit result %q", domain.ErrInvalidInput, e.Result)
	}
	entry := domain.AuditLog{
		ID:         ids.New(ids.PrefixAudit),
		UserID:     actor.UserID,
		UserName:   actor.UserName,
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		Details:    e.Details,
		Result:     e.Result,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		Timestamp:  s.now(),
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Error(ctx, "audit append failed", "error", err, "action", e.Action, "resource", e.Resource, "resource_id", e.ResourceID)
		return domain.AuditLog{}, err
	}
	s.metrics.AuditRecorded(e.Result)
	return entry, nil
}

// RecordOutcome audits an operation that has already run. A nil opErr is a
// success; otherwise the entry is a failure carrying the error text. Append
// errors are logged, never returned, because the audited mutation has
// already been committed or rejected.
func (s *AuditService) RecordOutcome(ctx context.Context, actor domain.Actor, e AuditEntry, opErr error) {
	e.Result = domain.AuditSuccess
	if opErr != nil {
		e.Result = domain.AuditFailure
		details := make(map[string]any, len(e.Details)+1)
		for k, v := range e.Details {
			details[k] = v
		}
		details["error"] = opErr.Error()
		e.Details = details
	}
	_, _ = s.Record(ctx, actor, e)
}

func (s *AuditService) List(ctx context.Context, actor domain.Actor, filter domain.AuditLogFilter, page, pageSize int) (domain.Page[domain.AuditLog], error) {
	if err := s.authz.Require(actor, domain.ResourceLog, domain.ActionView); err != nil {
		return domain.Page[domain.AuditLog]{}, err
	}
	if filter.Start != nil && filter.End != nil && filter.End.Before(*filter.Start) {
		return domain.Page[domain.AuditLog]{}, fmt.Errorf("%w: end is before start", domain.ErrInvalidInput)
	}
	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.Page[domain.AuditLog]{}, err
	}
	page, pageSize = domain.NormalizePage(page, pageSize)
	return domain.Paginate(logs, page, pageSize), nil
}

type ExportResult struct {
	Count       int
	ContentType string
	FileName    string
}

// Export writes every entry matching filter to w. The export itself is
// audited, including denied attempts.
func (s *AuditService) Export(ctx context.Context, actor domain.Actor, filter domain.AuditLogFilter, w io.Writer) (ExportResult, error) {
	entry := AuditEntry{Action: domain.AuditExport, Resource: domain.ResourceLog}
	res, err := s.export(ctx, actor, filter, w)
	if err == nil {
		entry.Details = map[string]any{"count": res.Count, "format": s.exporter.FileExtension()}
	}
	s.RecordOutcome(ctx, actor, entry, err)
	return res, err
}

func (s *AuditService) export(ctx context.Context, actor domain.Actor, filter domain.AuditLogFilter, w io.Writer) (ExportResult, error) {
	if err := s.authz.Require(actor, domain.ResourceLog, domain.ActionExport); err != nil {
		return ExportResult{}, err
	}
	if s.exporter == nil {
		return ExportResult{}, errors.New("audit exporter not configured")
	}
	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		return ExportResult{}, err
	}
	if err := s.exporter.Export(w, logs); err != nil {
		return ExportResult{}, err
	}
	return ExportResult{
		Count:       len(logs),
		ContentType: s.exporter.ContentType(),
		FileName:    "audit-logs-" + s.now().Format("20060102-150405") + "." + s.exporter.FileExtension(),
	}, nil
}

func utcNow() time.Time { return time.Now().UTC() }
