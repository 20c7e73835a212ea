package domain

import "time"

// Permission values are stable string identifiers. The HTTP boundary maps
// denials on these onto 403 responses, so the strings must not change.
type Permission string

const (
	PermissionReadDocuments     Permission = "read_documents"
	PermissionWriteDocuments    Permission = "write_documents"
	PermissionDeleteDocuments   Permission = "delete_documents"
	PermissionReadThreatModels  Permission = "read_threat_models"
	PermissionWriteThreatModels Permission = "write_threat_models"
	PermissionAdmin             Permission = "admin"
)

// AllPermissions returns the closed permission set.
func AllPermissions() []Permission {
	return []Permission{
		PermissionReadDocuments,
		PermissionWriteDocuments,
		PermissionDeleteDocuments,
		PermissionReadThreatModels,
		PermissionWriteThreatModels,
		PermissionAdmin,
	}
}

type Role struct {
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
	Description string       `json:"description"`
}

type AuditEventType string

const (
	AuditEventQuery             AuditEventType = "query"
	AuditEventThreatModel       AuditEventType = "threat_model"
	AuditEventDocumentAccess    AuditEventType = "document_access"
	AuditEventDocumentIngest    AuditEventType = "document_ingest"
	AuditEventAccessDenied      AuditEventType = "access_denied"
	AuditEventInjectionDetected AuditEventType = "injection_detected"
	AuditEventConfigChange      AuditEventType = "config_change"
)

// AuditEvent is one line of the JSONL audit log. ResourceID is a pointer so
// events without a resource serialize as null rather than "".
type AuditEvent struct {
	Timestamp  time.Time      `json:"timestamp"`
	EventType  AuditEventType `json:"event_type"`
	UserID     string         `json:"user_id"`
	ResourceID *string        `json:"resource_id"`
	Success    bool           `json:"success"`
	Details    map[string]any `json:"details"`
}

type InjectionCategory string

const (
	InjectionPrompt        InjectionCategory = "prompt_injection"
	InjectionSQL           InjectionCategory = "sql_injection"
	InjectionCommand       InjectionCategory = "command_injection"
	InjectionPathTraversal InjectionCategory = "path_traversal"
)

// PatternTable is one ordered category of injection detection patterns.
// Tables are data, not control flow; they can be replaced at startup.
type PatternTable struct {
	Category InjectionCategory `yaml:"category"`
	Patterns []string          `yaml:"patterns"`
}

// Document is the shape exchanged with the retrieval collaborator.
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

type PoisonSeverity string

const (
	PoisonSeverityHigh   PoisonSeverity = "high"
	PoisonSeverityMedium PoisonSeverity = "medium"
)

// PoisonFinding flags a retrieved document as a data-poisoning suspect.
type PoisonFinding struct {
	Document Document       `json:"document"`
	Reason   string         `json:"reason"`
	Severity PoisonSeverity `json:"severity"`
}

type PIIType string

const (
	PIIEmail       PIIType = "email"
	PIIPhone       PIIType = "phone"
	PIISSN         PIIType = "ssn"
	PIICreditCard  PIIType = "credit_card"
	PIIIPAddress   PIIType = "ip_address"
	PIIMACAddress  PIIType = "mac_address"
	PIIDateOfBirth PIIType = "date_of_birth"
)

// PIIMatch is a detected value and its type, de-duplicated on both fields.
type PIIMatch struct {
	Value string  `json:"value"`
	Type  PIIType `json:"type"`
}

// MaskedItem records one substitution performed while masking text.
type MaskedItem struct {
	Original string  `json:"original"`
	Masked   string  `json:"masked"`
	Type     PIIType `json:"type"`
}

type NodeType string

const (
	NodeThreat        NodeType = "threat"
	NodeAsset         NodeType = "asset"
	NodeControl       NodeType = "control"
	NodeVulnerability NodeType = "vulnerability"
	NodeTechnique     NodeType = "technique"
	NodeCVE           NodeType = "cve"
	NodeCWE           NodeType = "cwe"
)

type EdgeType string

const (
	EdgeExploits  EdgeType = "exploits"
	EdgeMitigates EdgeType = "mitigates"
	EdgeAffects   EdgeType = "affects"
	EdgeRelatedTo EdgeType = "related_to"
	EdgePrecedes  EdgeType = "precedes"
	EdgeCauses    EdgeType = "causes"
)

// ThreatNode is a node in the threat intelligence graph. RiskScore is a
// pointer: nodes without a score are excluded from path-risk averages, not
// treated as zero.
type ThreatNode struct {
	ID          string         `json:"node_id"`
	Type        NodeType       `json:"node_type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	RiskScore   *float64       `json:"risk_score,omitempty"`
}

type ThreatEdge struct {
	ID       string         `json:"edge_id"`
	SourceID string         `json:"source_id"`
	TargetID string         `json:"target_id"`
	Type     EdgeType       `json:"edge_type"`
	Weight   float64        `json:"weight"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AttackPath is an ordered node/edge chain through the graph. TotalRisk is
// the mean of the risk scores defined along the path's nodes.
type AttackPath struct {
	ID        string   `json:"path_id"`
	Nodes     []string `json:"nodes"`
	Edges     []string `json:"edges"`
	TotalRisk float64  `json:"total_risk"`
}

type CIACategory string

const (
	CIAConfidentiality CIACategory = "confidentiality"
	CIAIntegrity       CIACategory = "integrity"
	CIAAvailability    CIACategory = "availability"
)

type AAACategory string

const (
	AAAAuthentication AAACategory = "authentication"
	AAAAuthorization  AAACategory = "authorization"
	AAAAccounting     AAACategory = "accounting"
)

type STRIDECategory string

const (
	STRIDESpoofing              STRIDECategory = "spoofing"
	STRIDETampering             STRIDECategory = "tampering"
	STRIDERepudiation           STRIDECategory = "repudiation"
	STRIDEInformationDisclosure STRIDECategory = "information_disclosure"
	STRIDEDenialOfService       STRIDECategory = "denial_of_service"
	STRIDEElevationOfPrivilege  STRIDECategory = "elevation_of_privilege"
)

// KeywordRow maps one taxonomy category to its keyword list. Row order is
// significant for single-valued mappings (OWASP).
type KeywordRow struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// ClassifierTables holds the keyword tables for all four taxonomies.
type ClassifierTables struct {
	CIA    []KeywordRow `yaml:"cia"`
	AAA    []KeywordRow `yaml:"aaa"`
	STRIDE []KeywordRow `yaml:"stride"`
	OWASP  []KeywordRow `yaml:"owasp"`
}

// FrameworkMapping aggregates the classification of one threat across all
// supported taxonomies. OWASP is single-valued and may be empty.
type FrameworkMapping struct {
	CIA    []CIACategory    `json:"cia"`
	AAA    []AAACategory    `json:"aaa"`
	STRIDE []STRIDECategory `json:"stride"`
	OWASP  string           `json:"owasp_top10,omitempty"`
}

// RiskItem is one identified risk in a threat-model report.
type RiskItem struct {
	Risk        string   `json:"risk"`
	Impact      string   `json:"impact"`
	Likelihood  string   `json:"likelihood"`
	Mitigations []string `json:"mitigations"`
}

type CIASection struct {
	Confidentiality []RiskItem `json:"confidentiality"`
	Integrity       []RiskItem `json:"integrity"`
	Availability    []RiskItem `json:"availability"`
}

type AAASection struct {
	Authentication []RiskItem `json:"authentication"`
	Authorization  []RiskItem `json:"authorization"`
	Accounting     []RiskItem `json:"accounting"`
}

// ThreatModelReport is the structured object produced by the generation
// collaborator, schema-validated before it leaves the pipeline.
type ThreatModelReport struct {
	ScopeSummary       string     `json:"scope_summary"`
	CIA                CIASection `json:"cia"`
	AAA                AAASection `json:"aaa"`
	KeyControls        []string   `json:"key_controls"`
	ResidualRiskRating string     `json:"residual_risk_rating"`
	Assumptions        []string   `json:"assumptions"`
	Sources            []string   `json:"sources"`
}
