package application

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"threatgate/internal/domain"
	"threatgate/internal/ports"
)

// DefaultRedactionThreshold is the number of distinct PII findings at which
// whole-response redaction is recommended.
const DefaultRedactionThreshold = 3

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`),
		regexp.MustCompile(`\(\d{3}\)\s*\d{3}-\d{4}`),
		regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{4}\b`),
		regexp.MustCompile(`\b\d{10}\b`),
	}

	ssnPattern        = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	creditCardPattern = regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`)
	ipPattern         = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	macPattern        = regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}\b`)

	dobPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`),
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	}
)

// PrivacyFilter detects and masks personally identifiable information in
// free text. Detection is pure except for logging and safe for concurrent
// use.
type PrivacyFilter struct {
	logger ports.Logger
}

func NewPrivacyFilter(logger ports.Logger) *PrivacyFilter {
	return &PrivacyFilter{logger: logger}
}

func (f *PrivacyFilter) DetectEmail(text string) []domain.PIIMatch {
	return collect(emailPattern.FindAllString(text, -1), domain.PIIEmail)
}

func (f *PrivacyFilter) DetectPhone(text string) []domain.PIIMatch {
	var matches []domain.PIIMatch
	for _, re := range phonePatterns {
		matches = append(matches, collect(re.FindAllString(text, -1), domain.PIIPhone)...)
	}
	return matches
}

func (f *PrivacyFilter) DetectSSN(text string) []domain.PIIMatch {
	return collect(ssnPattern.FindAllString(text, -1), domain.PIISSN)
}

// DetectCreditCard keeps only candidates whose digit count is exactly 16.
func (f *PrivacyFilter) DetectCreditCard(text string) []domain.PIIMatch {
	var matches []domain.PIIMatch
	for _, raw := range creditCardPattern.FindAllString(text, -1) {
		digits := strings.NewReplacer("-", "", " ", "").Replace(raw)
		if len(digits) == 16 {
			matches = append(matches, domain.PIIMatch{Value: raw, Type: domain.PIICreditCard})
		}
	}
	return matches
}

// DetectIP keeps only candidates whose octets are all in 0-255.
func (f *PrivacyFilter) DetectIP(text string) []domain.PIIMatch {
	var matches []domain.PIIMatch
	for _, raw := range ipPattern.FindAllString(text, -1) {
		valid := true
		for _, part := range strings.Split(raw, ".") {
			n, err := strconv.Atoi(part)
			if err != nil || n > 255 {
				valid = false
				break
			}
		}
		if valid {
			matches = append(matches, domain.PIIMatch{Value: raw, Type: domain.PIIIPAddress})
		}
	}
	return matches
}

func (f *PrivacyFilter) DetectMAC(text string) []domain.PIIMatch {
	return collect(macPattern.FindAllString(text, -1), domain.PIIMACAddress)
}

func (f *PrivacyFilter) DetectDOB(text string) []domain.PIIMatch {
	var matches []domain.PIIMatch
	for _, re := range dobPatterns {
		matches = append(matches, collect(re.FindAllString(text, -1), domain.PIIDateOfBirth)...)
	}
	return matches
}

// DetectAll unions every detector, de-duplicated on (value, type) in first-
// seen order.
func (f *PrivacyFilter) DetectAll(text string) []domain.PIIMatch {
	var all []domain.PIIMatch
	all = append(all, f.DetectEmail(text)...)
	all = append(all, f.DetectPhone(text)...)
	all = append(all, f.DetectSSN(text)...)
	all = append(all, f.DetectCreditCard(text)...)
	all = append(all, f.DetectIP(text)...)
	all = append(all, f.DetectMAC(text)...)
	all = append(all, f.DetectDOB(text)...)

	seen := make(map[domain.PIIMatch]bool, len(all))
	unique := make([]domain.PIIMatch, 0, len(all))
	for _, m := range all {
		if seen[m] {
			continue
		}
		seen[m] = true
		unique = append(unique, m)
	}
	return unique
}

// MaskText replaces every occurrence of each detected value with a
// type-specific mask and reports the substitutions performed.
func (f *PrivacyFilter) MaskText(text string) (string, []domain.MaskedItem) {
	matches := f.DetectAll(text)
	masked := text
	items := make([]domain.MaskedItem, 0, len(matches))

	for _, m := range matches {
		replacement := maskValue(m.Value, m.Type)
		masked = strings.ReplaceAll(masked, m.Value, replacement)
		items = append(items, domain.MaskedItem{Original: m.Value, Masked: replacement, Type: m.Type})
	}

	if len(items) > 0 {
		f.logger.Info(context.Background(), "masked pii items in text", "count", len(items))
	}
	return masked, items
}

// ShouldRedact is a coarse signal for whole-response redaction: true when
// the number of distinct findings meets or exceeds the threshold.
func (f *PrivacyFilter) ShouldRedact(text string, threshold int) bool {
	return len(f.DetectAll(text)) >= threshold
}

func maskValue(value string, piiType domain.PIIType) string {
	switch piiType {
	case domain.PIIEmail:
		local, rest, ok := strings.Cut(value, "@")
		if !ok || local == "" {
			return strings.Repeat("*", len(value))
		}
		return local[:1] + strings.Repeat("*", len(local)-1) + "@" + rest
	case domain.PIISSN:
		return "XXX-XX-" + value[len(value)-4:]
	case domain.PIICreditCard:
		return "****-****-****-" + value[len(value)-4:]
	case domain.PIIPhone:
		return "XXX-XXX-" + value[len(value)-4:]
	default:
		return strings.Repeat("*", len(value))
	}
}

func collect(values []string, piiType domain.PIIType) []domain.PIIMatch {
	if len(values) == 0 {
		return nil
	}
	matches := make([]domain.PIIMatch, 0, len(values))
	for _, v := range values {
		matches = append(matches, domain.PIIMatch{Value: v, Type: piiType})
	}
	return matches
}
