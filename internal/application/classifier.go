package application

import (
	"strings"

	"threatgate/internal/domain"
	"threatgate/internal/ports"
)

// DefaultClassifierTables is the built-in keyword configuration. Rows are
// ordered; OWASP mapping returns the first matching row.
func DefaultClassifierTables() domain.ClassifierTables {
	return domain.ClassifierTables{
		CIA: []domain.KeywordRow{
			{Category: string(domain.CIAConfidentiality), Keywords: []string{
				"data breach", "leak", "exposure", "unauthorized access",
				"encryption", "privacy", "confidential", "secret", "pii", "phi",
			}},
			{Category: string(domain.CIAIntegrity), Keywords: []string{
				"tamper", "modify", "alter", "corrupt", "unauthorized change",
				"data integrity", "validation", "checksum", "hash",
			}},
			{Category: string(domain.CIAAvailability), Keywords: []string{
				"denial of service", "dos", "ddos", "downtime", "outage",
				"unavailable", "service disruption", "resource exhaustion",
			}},
		},
		AAA: []domain.KeywordRow{
			{Category: string(domain.AAAAuthentication), Keywords: []string{
				"authentication", "login", "credential", "password", "mfa",
				"identity", "user verification", "session", "token",
			}},
			{Category: string(domain.AAAAuthorization), Keywords: []string{
				"authorization", "permission", "access control", "rbac",
				"privilege", "role", "policy", "acl",
			}},
			{Category: string(domain.AAAAccounting), Keywords: []string{
				"audit", "logging", "accounting", "tracking", "monitoring",
				"compliance", "forensics", "audit trail",
			}},
		},
		STRIDE: []domain.KeywordRow{
			{Category: string(domain.STRIDESpoofing), Keywords: []string{
				"spoof", "impersonate", "fake", "masquerade", "identity theft",
			}},
			{Category: string(domain.STRIDETampering), Keywords: []string{
				"tamper", "modify", "alter", "manipulate", "change",
			}},
			{Category: string(domain.STRIDERepudiation), Keywords: []string{
				"repudiate", "deny", "non-repudiation", "audit", "proof",
			}},
			{Category: string(domain.STRIDEInformationDisclosure), Keywords: []string{
				"disclosure", "leak", "expose", "reveal", "information leak",
			}},
			{Category: string(domain.STRIDEDenialOfService), Keywords: []string{
				"dos", "ddos", "denial", "unavailable", "outage",
			}},
			{Category: string(domain.STRIDEElevationOfPrivilege), Keywords: []string{
				"privilege escalation", "elevation", "unauthorized access",
				"root", "admin", "sudo",
			}},
		},
		OWASP: []domain.KeywordRow{
			{Category: "A01:2021-Broken Access Control", Keywords: []string{
				"access control", "authorization", "permission", "rbac", "privilege",
			}},
			{Category: "A02:2021-Cryptographic Failures", Keywords: []string{
				"encryption", "cryptographic", "ssl", "tls", "cipher", "hash",
			}},
			{Category: "A03:2021-Injection", Keywords: []string{
				"injection", "sql injection", "xss", "command injection", "code injection",
			}},
			{Category: "A04:2021-Insecure Design", Keywords: []string{
				"design", "architecture", "insecure", "flawed",
			}},
			{Category: "A05:2021-Security Misconfiguration", Keywords: []string{
				"misconfiguration", "configuration", "default", "weak",
			}},
			{Category: "A06:2021-Vulnerable Components", Keywords: []string{
				"vulnerable", "component", "dependency", "library", "outdated",
			}},
			{Category: "A07:2021-Authentication Failures", Keywords: []string{
				"authentication", "login", "credential", "password", "session",
			}},
			{Category: "A08:2021-Software and Data Integrity", Keywords: []string{
				"integrity", "ci/cd", "supply chain", "update", "patch",
			}},
			{Category: "A09:2021-Security Logging Failures", Keywords: []string{
				"logging", "audit", "monitoring", "detection", "forensics",
			}},
			{Category: "A10:2021-Server-Side Request Forgery", Keywords: []string{
				"ssrf", "server-side request", "internal", "local",
			}},
		},
	}
}

// FrameworkClassifier maps a threat description onto CIA, AAA, STRIDE and
// OWASP Top 10 categories through case-insensitive substring matching over
// the keyword tables. Pure; safe for concurrent use.
type FrameworkClassifier struct {
	tables domain.ClassifierTables
	logger ports.Logger
}

func NewFrameworkClassifier(logger ports.Logger) *FrameworkClassifier {
	return NewFrameworkClassifierWithTables(DefaultClassifierTables(), logger)
}

func NewFrameworkClassifierWithTables(tables domain.ClassifierTables, logger ports.Logger) *FrameworkClassifier {
	return &FrameworkClassifier{tables: tables, logger: logger}
}

func threatText(threat domain.ThreatNode) string {
	return strings.ToLower(threat.Name + " " + threat.Description)
}

func matchRows(rows []domain.KeywordRow, text string) []string {
	var matched []string
	for _, row := range rows {
		for _, kw := range row.Keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, row.Category)
				break
			}
		}
	}
	return matched
}

// MapToCIA returns every CIA category whose keywords match. When nothing
// matches it returns [confidentiality]: a documented default bias of the
// rule set, not an error.
func (c *FrameworkClassifier) MapToCIA(threat domain.ThreatNode) []domain.CIACategory {
	matched := matchRows(c.tables.CIA, threatText(threat))
	if len(matched) == 0 {
		return []domain.CIACategory{domain.CIAConfidentiality}
	}
	categories := make([]domain.CIACategory, len(matched))
	for i, m := range matched {
		categories[i] = domain.CIACategory(m)
	}
	return categories
}

// MapToAAA returns every AAA category whose keywords match; categories are
// not mutually exclusive.
func (c *FrameworkClassifier) MapToAAA(threat domain.ThreatNode) []domain.AAACategory {
	matched := matchRows(c.tables.AAA, threatText(threat))
	categories := make([]domain.AAACategory, len(matched))
	for i, m := range matched {
		categories[i] = domain.AAACategory(m)
	}
	return categories
}

// MapToSTRIDE returns every STRIDE category whose keywords match.
func (c *FrameworkClassifier) MapToSTRIDE(threat domain.ThreatNode) []domain.STRIDECategory {
	matched := matchRows(c.tables.STRIDE, threatText(threat))
	categories := make([]domain.STRIDECategory, len(matched))
	for i, m := range matched {
		categories[i] = domain.STRIDECategory(m)
	}
	return categories
}

// MapToOWASP returns the first OWASP Top 10 row that matches, in table
// declaration order, or "" when none does.
func (c *FrameworkClassifier) MapToOWASP(threat domain.ThreatNode) string {
	text := threatText(threat)
	for _, row := range c.tables.OWASP {
		for _, kw := range row.Keywords {
			if strings.Contains(text, kw) {
				return row.Category
			}
		}
	}
	return ""
}

// MapThreat aggregates all four taxonomies into one record.
func (c *FrameworkClassifier) MapThreat(threat domain.ThreatNode) domain.FrameworkMapping {
	return domain.FrameworkMapping{
		CIA:    c.MapToCIA(threat),
		AAA:    c.MapToAAA(threat),
		STRIDE: c.MapToSTRIDE(threat),
		OWASP:  c.MapToOWASP(threat),
	}
}
