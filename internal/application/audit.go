package application

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"threatgate/internal/domain"
	"threatgate/internal/infrastructure/fsperm"
	"threatgate/internal/ports"
)

const (
	auditFilePrefix = "audit_"
	auditFileSuffix = ".jsonl"

	maxLoggedQueryLen = 500
	maxLoggedSources  = 10
)

// redaction rules applied to free text before it is persisted
var logRedactions = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`), "[EMAIL_REDACTED]"},
	{regexp.MustCompile(`\b(sk-|ls-|pk-|ak-)[A-Za-z0-9_-]{20,}\b`), "[API_KEY_REDACTED]"},
	{regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|token|key)\s*[:=]\s*[^\s]{8,}`), "$1=[REDACTED]"},
	{regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`), "[CARD_REDACTED]"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN_REDACTED]"},
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "[IP_REDACTED]"},
}

// AuditTrail is an append-only, permission-hardened JSONL event log,
// partitioned one file per UTC day. Write failures propagate to the caller;
// the trail makes no retry attempt, so the integrator decides fail-open or
// fail-closed for the enclosing request.
type AuditTrail struct {
	dir    string
	logger ports.Logger
	now    func() time.Time
}

// NewAuditTrail creates the log directory (0700) if needed.
func NewAuditTrail(dir string, logger ports.Logger) (*AuditTrail, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return &AuditTrail{dir: dir, logger: logger, now: time.Now}, nil
}

// EventFilter narrows a GetEvents scan. Zero values mean "no filter";
// Limit <= 0 defaults to 100.
type EventFilter struct {
	UserID    string
	EventType domain.AuditEventType
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}

// LogEvent appends one event to the current UTC day file and re-hardens the
// directory and file permissions after the write. resourceID may be empty.
func (a *AuditTrail) LogEvent(eventType domain.AuditEventType, userID string, details map[string]any, resourceID string, success bool) error {
	event := domain.AuditEvent{
		Timestamp: a.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Success:   success,
		Details:   details,
	}
	if resourceID != "" {
		event.ResourceID = &resourceID
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	path := filepath.Join(a.dir, auditFilePrefix+event.Timestamp.Format("2006-01-02")+auditFileSuffix)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	// one Write call per line so O_APPEND keeps concurrent writers whole
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("append audit event: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close audit file: %w", err)
	}

	if err := fsperm.SecureDir(a.dir); err != nil {
		return fmt.Errorf("harden audit dir: %w", err)
	}
	if err := fsperm.SecureFile(path); err != nil {
		return fmt.Errorf("harden audit file: %w", err)
	}

	if success {
		a.logger.Info(context.Background(), "audit event", "event_type", string(eventType), "user_id", userID)
	} else {
		a.logger.Warn(context.Background(), "audit event", "event_type", string(eventType), "user_id", userID)
	}
	return nil
}

// LogQuery records a query event; the stored query text is redacted and
// truncated, with the original length kept alongside.
func (a *AuditTrail) LogQuery(userID, query string, responseLength int, sources []string, structured bool) error {
	if len(sources) > maxLoggedSources {
		sources = sources[:maxLoggedSources]
	}
	return a.LogEvent(domain.AuditEventQuery, userID, map[string]any{
		"query":           RedactForLog(truncate(query, maxLoggedQueryLen)),
		"query_length":    len(query),
		"response_length": responseLength,
		"sources_count":   len(sources),
		"sources":         sources,
		"structured":      structured,
	}, "", true)
}

// LogThreatModel records the creation of a threat-model report.
func (a *AuditTrail) LogThreatModel(userID, threatModelID, scope string, risksIdentified int) error {
	return a.LogEvent(domain.AuditEventThreatModel, userID, map[string]any{
		"scope":            RedactForLog(truncate(scope, maxLoggedQueryLen)),
		"risks_identified": risksIdentified,
	}, threatModelID, true)
}

// LogAccessDenied records a denied request.
func (a *AuditTrail) LogAccessDenied(userID, resourceID string, permission domain.Permission, reason string) error {
	return a.LogEvent(domain.AuditEventAccessDenied, userID, map[string]any{
		"permission": string(permission),
		"reason":     reason,
	}, resourceID, false)
}

// LogInjectionDetected records a rejected query; the offending text is
// redacted and truncated before persistence.
func (a *AuditTrail) LogInjectionDetected(userID string, category domain.InjectionCategory, query string) error {
	return a.LogEvent(domain.AuditEventInjectionDetected, userID, map[string]any{
		"injection_type": string(category),
		"query":          RedactForLog(truncate(query, 200)),
		"query_length":   len(query),
	}, "", false)
}

// GetEvents scans the day files in chronological order and returns at most
// filter.Limit matching events. Malformed lines are logged and skipped; they
// never abort the read.
func (a *AuditTrail) GetEvents(filter EventFilter) ([]domain.AuditEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	paths, err := filepath.Glob(filepath.Join(a.dir, auditFilePrefix+"*"+auditFileSuffix))
	if err != nil {
		return nil, fmt.Errorf("list audit files: %w", err)
	}
	sort.Strings(paths)

	events := make([]domain.AuditEvent, 0, limit)
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open audit file: %w", err)
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var event domain.AuditEvent
			if err := json.Unmarshal(line, &event); err != nil {
				a.logger.Error(context.Background(), "skipping malformed audit line", "file", path, "error", err)
				continue
			}
			if filter.UserID != "" && event.UserID != filter.UserID {
				continue
			}
			if filter.EventType != "" && event.EventType != filter.EventType {
				continue
			}
			if !filter.StartDate.IsZero() && event.Timestamp.Before(filter.StartDate) {
				continue
			}
			if !filter.EndDate.IsZero() && event.Timestamp.After(filter.EndDate) {
				continue
			}
			events = append(events, event)
			if len(events) >= limit {
				f.Close()
				return events, nil
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return nil, fmt.Errorf("read audit file: %w", err)
		}
		f.Close()
	}
	return events, nil
}

// RedactForLog strips emails, API-key-shaped tokens, password-like
// key=value pairs, card numbers, SSNs and IPv4 addresses from text bound
// for the audit log.
func RedactForLog(text string) string {
	for _, r := range logRedactions {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	return text
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
