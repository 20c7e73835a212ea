package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatgate/internal/domain"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	f, err := Load("")
	require.NoError(t, err)

	assert.Len(t, f.Injection.Tables, 4)
	assert.NotEmpty(t, f.Injection.Sanitizers)
	assert.NotEmpty(t, f.Classifier.OWASP)
}

func TestLoad_OverridesInjectionTablesOnly(t *testing.T) {
	path := writeRules(t, `
injection:
  tables:
    - category: prompt_injection
      patterns:
        - "(?i)forget\\s+everything"
`)

	f, err := Load(path)
	require.NoError(t, err)

	require.Len(t, f.Injection.Tables, 1)
	assert.Equal(t, domain.InjectionPrompt, f.Injection.Tables[0].Category)
	// Omitted sections keep the defaults.
	assert.NotEmpty(t, f.Injection.Sanitizers)
	assert.NotEmpty(t, f.Classifier.CIA)
}

func TestLoad_OverridesClassifierSection(t *testing.T) {
	path := writeRules(t, `
classifier:
  owasp:
    - category: "A99:custom"
      keywords: ["meltdown"]
`)

	f, err := Load(path)
	require.NoError(t, err)

	require.Len(t, f.Classifier.OWASP, 1)
	assert.Equal(t, "A99:custom", f.Classifier.OWASP[0].Category)
	assert.NotEmpty(t, f.Classifier.STRIDE)
	assert.Len(t, f.Injection.Tables, 4)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeRules(t, "injection: [not: a: map")
	_, err := Load(path)
	assert.Error(t, err)
}
