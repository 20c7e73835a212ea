package application

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatgate/internal/domain"
)

func newTestTrail(t *testing.T) *AuditTrail {
	t.Helper()
	trail, err := NewAuditTrail(t.TempDir(), nopLogger{})
	require.NoError(t, err)
	return trail
}

func TestAuditTrail_LogAndGetRoundtrip(t *testing.T) {
	trail := newTestTrail(t)

	err := trail.LogEvent(domain.AuditEventQuery, "u1", map[string]any{"action": "ask"}, "doc-1", true)
	require.NoError(t, err)

	events, err := trail.GetEvents(EventFilter{UserID: "u1", EventType: domain.AuditEventQuery})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "u1", events[0].UserID)
	assert.Equal(t, domain.AuditEventQuery, events[0].EventType)
	assert.True(t, events[0].Success)
	require.NotNil(t, events[0].ResourceID)
	assert.Equal(t, "doc-1", *events[0].ResourceID)
}

func TestAuditTrail_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX permission bits unavailable")
	}
	dir := t.TempDir()
	trail, err := NewAuditTrail(dir, nopLogger{})
	require.NoError(t, err)
	require.NoError(t, trail.LogEvent(domain.AuditEventQuery, "u1", nil, "", true))

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())

	paths, err := filepath.Glob(filepath.Join(dir, "audit_*.jsonl"))
	require.NoError(t, err)
	require.Len(t, paths, 1)
	fileInfo, err := os.Stat(paths[0])
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fileInfo.Mode().Perm())
}

func TestAuditTrail_DayPartitionedFileName(t *testing.T) {
	dir := t.TempDir()
	trail, err := NewAuditTrail(dir, nopLogger{})
	require.NoError(t, err)
	trail.now = func() time.Time {
		return time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)
	}
	require.NoError(t, trail.LogEvent(domain.AuditEventQuery, "u1", nil, "", true))

	_, err = os.Stat(filepath.Join(dir, "audit_2024-03-09.jsonl"))
	assert.NoError(t, err)
}

func TestAuditTrail_QueryRedaction(t *testing.T) {
	trail := newTestTrail(t)

	query := "find alice@example.com with password: hunter2secret from 10.1.2.3"
	require.NoError(t, trail.LogQuery("u1", query, 42, []string{"s1", "s2"}, false))

	events, err := trail.GetEvents(EventFilter{EventType: domain.AuditEventQuery})
	require.NoError(t, err)
	require.Len(t, events, 1)

	stored, _ := events[0].Details["query"].(string)
	assert.NotContains(t, stored, "alice@example.com")
	assert.NotContains(t, stored, "hunter2secret")
	assert.NotContains(t, stored, "10.1.2.3")
	assert.Contains(t, stored, "[EMAIL_REDACTED]")
	assert.Contains(t, stored, "[IP_REDACTED]")
	assert.EqualValues(t, len(query), events[0].Details["query_length"])
}

func TestAuditTrail_MalformedLineSkipped(t *testing.T) {
	dir := t.TempDir()
	trail, err := NewAuditTrail(dir, nopLogger{})
	require.NoError(t, err)
	require.NoError(t, trail.LogEvent(domain.AuditEventQuery, "u1", nil, "", true))

	paths, err := filepath.Glob(filepath.Join(dir, "audit_*.jsonl"))
	require.NoError(t, err)
	require.Len(t, paths, 1)
	f, err := os.OpenFile(paths[0], os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("{this is not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, trail.LogEvent(domain.AuditEventQuery, "u2", nil, "", true))

	events, err := trail.GetEvents(EventFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 2, "corrupt line must not abort the read")
}

func TestAuditTrail_FiltersAndLimit(t *testing.T) {
	trail := newTestTrail(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, trail.LogEvent(domain.AuditEventQuery, "u1", nil, "", true))
	}
	require.NoError(t, trail.LogAccessDenied("u2", "doc-1", domain.PermissionAdmin, "no role"))

	events, err := trail.GetEvents(EventFilter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, events, 3)

	denied, err := trail.GetEvents(EventFilter{EventType: domain.AuditEventAccessDenied})
	require.NoError(t, err)
	require.Len(t, denied, 1)
	assert.Equal(t, "u2", denied[0].UserID)
	assert.False(t, denied[0].Success)
}

func TestAuditTrail_DateRangeFilter(t *testing.T) {
	trail := newTestTrail(t)
	require.NoError(t, trail.LogEvent(domain.AuditEventQuery, "u1", nil, "", true))

	future := time.Now().UTC().Add(time.Hour)
	events, err := trail.GetEvents(EventFilter{StartDate: future})
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = trail.GetEvents(EventFilter{EndDate: future})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestAuditTrail_InjectionEventTruncatesQuery(t *testing.T) {
	trail := newTestTrail(t)

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	require.NoError(t, trail.LogInjectionDetected("u1", domain.InjectionPrompt, string(long)))

	events, err := trail.GetEvents(EventFilter{EventType: domain.AuditEventInjectionDetected})
	require.NoError(t, err)
	require.Len(t, events, 1)
	stored, _ := events[0].Details["query"].(string)
	assert.Len(t, stored, 200)
	assert.EqualValues(t, 500, events[0].Details["query_length"])
}
