package ports

import (
	"io"

	"smart-factory/internal/domain"
)

type Metrics interface {
	AlertTransition(transition string, result string)
	AlertFired(severity domain.Severity)
	AuditRecorded(result domain.AuditResult)
}

type NopMetrics struct{}

func (NopMetrics) AlertTransition(string, string)   {}
func (NopMetrics) AlertFired(domain.Severity)       {}
func (NopMetrics) AuditRecorded(domain.AuditResult) {}

// AuditExporter renders audit entries into a downloadable document.
type AuditExporter interface {
	Export(w io.Writer, logs []domain.AuditLog) error
	ContentType() string
	FileExtension() string
}
