package application

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"threatgate/internal/domain"
	"threatgate/internal/ports"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

type injectionCategory struct {
	name     domain.InjectionCategory
	patterns []*regexp.Regexp
}

// InjectionGuard detects prompt, SQL, command and path-traversal injection in
// free text and strips suspicious constructs from queries. Detection is pure
// except for logging and safe for concurrent use.
type InjectionGuard struct {
	categories []injectionCategory // fixed precedence order
	sanitizers []*regexp.Regexp    // ordered removal rules
	logger     ports.Logger
}

// NewInjectionGuard compiles the guard from the built-in tables.
func NewInjectionGuard(logger ports.Logger) *InjectionGuard {
	g, err := NewInjectionGuardWithRules(DefaultInjectionTables(), DefaultSanitizerRules(), logger)
	if err != nil {
		// the built-in tables are compile-checked by tests
		panic(err)
	}
	return g
}

// NewInjectionGuardWithRules compiles the guard from caller-supplied tables,
// keeping table order as detection precedence.
func NewInjectionGuardWithRules(tables []domain.PatternTable, sanitizers []string, logger ports.Logger) (*InjectionGuard, error) {
	guard := &InjectionGuard{logger: logger}
	for _, table := range tables {
		cat := injectionCategory{name: table.Category}
		for _, expr := range table.Patterns {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("%w: pattern %q for %s: %v", domain.ErrInvalidInput, expr, table.Category, err)
			}
			cat.patterns = append(cat.patterns, re)
		}
		guard.categories = append(guard.categories, cat)
	}
	for _, expr := range sanitizers {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: sanitizer %q: %v", domain.ErrInvalidInput, expr, err)
		}
		guard.sanitizers = append(guard.sanitizers, re)
	}
	return guard, nil
}

// DetectCategory reports whether any pattern in the named category matches.
func (g *InjectionGuard) DetectCategory(text string, category domain.InjectionCategory) bool {
	for _, cat := range g.categories {
		if cat.name != category {
			continue
		}
		for _, re := range cat.patterns {
			if re.MatchString(text) {
				g.logger.Warn(context.Background(), "injection pattern matched",
					"category", string(category), "pattern", re.String())
				return true
			}
		}
	}
	return false
}

// DetectInjection evaluates categories in precedence order and returns the
// first that matches.
func (g *InjectionGuard) DetectInjection(text string) (domain.InjectionCategory, bool) {
	for _, cat := range g.categories {
		if g.DetectCategory(text, cat.name) {
			return cat.name, true
		}
	}
	return "", false
}

// SanitizeQuery strips suspicious constructs and collapses whitespace. The
// rules only ever remove characters; re-sanitizing sanitized text yields the
// same text. A warning is logged when more than 30% of the input was removed,
// a heuristic for a likely attack.
func (g *InjectionGuard) SanitizeQuery(text string) string {
	sanitized := text
	for _, re := range g.sanitizers {
		sanitized = re.ReplaceAllString(sanitized, "")
	}
	sanitized = strings.TrimSpace(whitespaceRun.ReplaceAllString(sanitized, " "))

	if sanitized != text {
		removed := len(text) - len(sanitized)
		g.logger.Info(context.Background(), "sanitized query", "removed_bytes", removed)
		if float64(removed) > float64(len(text))*0.3 {
			g.logger.Warn(context.Background(), "extensive sanitization required, possible attack",
				"removed_bytes", removed, "original_length", len(text))
		}
	}
	return sanitized
}

// CheckDataPoisoning flags retrieved documents that carry injection patterns
// (high severity) or lack a source in their metadata (medium severity). A
// single document can produce both findings.
func (g *InjectionGuard) CheckDataPoisoning(documents []domain.Document) []domain.PoisonFinding {
	var suspicious []domain.PoisonFinding
	for _, doc := range documents {
		if _, found := g.DetectInjection(doc.Content); found {
			suspicious = append(suspicious, domain.PoisonFinding{
				Document: doc,
				Reason:   "contains injection patterns",
				Severity: domain.PoisonSeverityHigh,
			})
		}
		if source, ok := doc.Metadata["source"]; !ok || source == "" || source == nil {
			suspicious = append(suspicious, domain.PoisonFinding{
				Document: doc,
				Reason:   "missing source information",
				Severity: domain.PoisonSeverityMedium,
			})
		}
	}
	if len(suspicious) > 0 {
		g.logger.Warn(context.Background(), "potentially poisoned documents detected", "count", len(suspicious))
	}
	return suspicious
}
