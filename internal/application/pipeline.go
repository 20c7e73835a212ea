package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"threatgate/internal/domain"
	"threatgate/internal/ports"
)

const noResultsAnswer = "I couldn't find relevant information to answer your question."

// QueryResult is the outcome of a plain question-answering request.
type QueryResult struct {
	Answer  string              `json:"answer"`
	Sources []string            `json:"sources"`
	Masked  []domain.MaskedItem `json:"masked_items,omitempty"`
}

// ThreatModelResult is the outcome of a structured threat-model request.
type ThreatModelResult struct {
	ID       string                             `json:"threat_model_id"`
	Report   domain.ThreatModelReport           `json:"report"`
	Mappings map[string]domain.FrameworkMapping `json:"framework_mappings,omitempty"`
}

// RequestPipeline runs every request through the security layers in a fixed
// order. A denied or flagged request never reaches the generation
// collaborator, and the audit write happens before the result is returned;
// an audit failure rejects the request.
type RequestPipeline struct {
	gate       *PermissionGate
	guard      *InjectionGuard
	privacy    *PrivacyFilter
	audit      *AuditTrail
	classifier *FrameworkClassifier
	validator  *ReportValidator
	retriever  ports.Retriever
	generator  ports.Generator
	logger     ports.Logger
}

func NewRequestPipeline(
	gate *PermissionGate,
	guard *InjectionGuard,
	privacy *PrivacyFilter,
	audit *AuditTrail,
	classifier *FrameworkClassifier,
	validator *ReportValidator,
	retriever ports.Retriever,
	generator ports.Generator,
	logger ports.Logger,
) *RequestPipeline {
	return &RequestPipeline{
		gate:       gate,
		guard:      guard,
		privacy:    privacy,
		audit:      audit,
		classifier: classifier,
		validator:  validator,
		retriever:  retriever,
		generator:  generator,
		logger:     logger,
	}
}

// admit runs the permission and injection gates shared by both request
// kinds and returns the sanitized query on success.
func (p *RequestPipeline) admit(ctx context.Context, userID, query string, permission domain.Permission, resource string) (string, error) {
	if !p.gate.HasPermission(userID, permission) {
		if err := p.audit.LogAccessDenied(userID, resource, permission, "missing permission"); err != nil {
			return "", fmt.Errorf("audit access denial: %w", err)
		}
		p.logger.Warn(ctx, "request denied", "user_id", userID, "permission", string(permission))
		return "", domain.ErrPermissionDeny
	}

	if category, found := p.guard.DetectInjection(query); found {
		if err := p.audit.LogInjectionDetected(userID, category, query); err != nil {
			return "", fmt.Errorf("audit injection detection: %w", err)
		}
		p.logger.Warn(ctx, "injection attempt blocked", "user_id", userID, "category", string(category))
		return "", domain.ErrInjectionDetected
	}

	return p.guard.SanitizeQuery(query), nil
}

func sourceIDs(docs []domain.Document) []string {
	sources := make([]string, 0, len(docs))
	for _, doc := range docs {
		if src, ok := doc.Metadata["source"].(string); ok && src != "" {
			sources = append(sources, src)
		}
	}
	return sources
}

// maskDocuments masks PII in retrieved content so the generation
// collaborator never sees it raw. Metadata is passed through untouched.
func (p *RequestPipeline) maskDocuments(docs []domain.Document) []domain.Document {
	masked := make([]domain.Document, len(docs))
	for i, doc := range docs {
		content, _ := p.privacy.MaskText(doc.Content)
		masked[i] = domain.Document{Content: content, Metadata: doc.Metadata}
	}
	return masked
}

// ProcessQuery answers a free-text question over the document corpus.
func (p *RequestPipeline) ProcessQuery(ctx context.Context, userID, query string) (*QueryResult, error) {
	sanitized, err := p.admit(ctx, userID, query, domain.PermissionReadDocuments, "documents")
	if err != nil {
		return nil, err
	}
	if p.retriever == nil || p.generator == nil {
		return nil, domain.ErrUnavailable
	}

	docs, err := p.retriever.Search(ctx, sanitized)
	if err != nil {
		return nil, fmt.Errorf("retrieve documents: %w", err)
	}

	if findings := p.guard.CheckDataPoisoning(docs); len(findings) > 0 {
		p.logger.Warn(ctx, "retrieved documents flagged", "user_id", userID, "findings", len(findings))
	}

	result := &QueryResult{Sources: sourceIDs(docs)}
	if len(docs) == 0 {
		result.Answer = noResultsAnswer
	} else {
		answer, err := p.generator.Answer(ctx, sanitized, p.maskDocuments(docs))
		if err != nil {
			return nil, fmt.Errorf("generate answer: %w", err)
		}
		result.Answer, result.Masked = p.privacy.MaskText(answer)
	}

	if err := p.audit.LogQuery(userID, sanitized, len(result.Answer), result.Sources, false); err != nil {
		return nil, fmt.Errorf("audit query: %w", err)
	}
	return result, nil
}

// ProcessThreatModel produces a schema-validated threat-model report with
// framework classifications for each identified risk.
func (p *RequestPipeline) ProcessThreatModel(ctx context.Context, userID, query string) (*ThreatModelResult, error) {
	sanitized, err := p.admit(ctx, userID, query, domain.PermissionWriteThreatModels, "threat_models")
	if err != nil {
		return nil, err
	}
	if p.retriever == nil || p.generator == nil {
		return nil, domain.ErrUnavailable
	}

	docs, err := p.retriever.Search(ctx, sanitized)
	if err != nil {
		return nil, fmt.Errorf("retrieve documents: %w", err)
	}

	raw, err := p.generator.ThreatModel(ctx, sanitized, p.maskDocuments(docs))
	if err != nil {
		return nil, fmt.Errorf("generate threat model: %w", err)
	}
	if err := p.validator.Validate(raw); err != nil {
		return nil, err
	}

	var report domain.ThreatModelReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("%w: decode report: %v", domain.ErrInvalidInput, err)
	}
	report.Sources = sourceIDs(docs)

	result := &ThreatModelResult{
		ID:       "tm_" + uuid.NewString(),
		Report:   report,
		Mappings: p.classifyReport(report),
	}

	risks := countRisks(report)
	if err := p.audit.LogThreatModel(userID, result.ID, report.ScopeSummary, risks); err != nil {
		return nil, fmt.Errorf("audit threat model: %w", err)
	}
	if err := p.audit.LogQuery(userID, sanitized, len(raw), result.Report.Sources, true); err != nil {
		return nil, fmt.Errorf("audit query: %w", err)
	}
	return result, nil
}

// classifyReport maps every named risk in the report onto the supported
// taxonomies, keyed by risk text.
func (p *RequestPipeline) classifyReport(report domain.ThreatModelReport) map[string]domain.FrameworkMapping {
	mappings := make(map[string]domain.FrameworkMapping)
	for _, items := range [][]domain.RiskItem{
		report.CIA.Confidentiality, report.CIA.Integrity, report.CIA.Availability,
		report.AAA.Authentication, report.AAA.Authorization, report.AAA.Accounting,
	} {
		for _, item := range items {
			if _, seen := mappings[item.Risk]; seen {
				continue
			}
			mappings[item.Risk] = p.classifier.MapThreat(domain.ThreatNode{
				Name:        item.Risk,
				Description: item.Impact,
			})
		}
	}
	return mappings
}

func countRisks(report domain.ThreatModelReport) int {
	return len(report.CIA.Confidentiality) + len(report.CIA.Integrity) + len(report.CIA.Availability) +
		len(report.AAA.Authentication) + len(report.AAA.Authorization) + len(report.AAA.Accounting)
}
