package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPolicyEmptyPathUsesDefaults(t *testing.T) {
	p, err := LoadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, 30, p.SlotMinutes)
	assert.Equal(t, 2*time.Second, p.Executor.RetryBackoff)
	assert.Equal(t, []string{"Tuesday", "Thursday"}, p.InsuranceDay)
}

func TestLoadPolicyParsesDurationString(t *testing.T) {
	path := writePolicyFile(t, `
executor:
  retry_attempts: 3
  retry_backoff: 500ms
`)
	p, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Executor.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, p.Executor.RetryBackoff)
}

func TestLoadPolicyRejectsBadDuration(t *testing.T) {
	path := writePolicyFile(t, `
executor:
  retry_backoff: soon
`)
	_, err := LoadPolicy(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry_backoff")
}

func TestLoadPolicyRejectsUnknownInsuranceDay(t *testing.T) {
	path := writePolicyFile(t, `
insurance_weekdays: [Tuesday, Someday]
`)
	_, err := LoadPolicy(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Someday")
}

func TestLoadPolicyOverridesShifts(t *testing.T) {
	path := writePolicyFile(t, `
timezone: UTC
slot_minutes: 20
shifts:
  - start: "08:00"
    end: "12:00"
`)
	p, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, 20, p.SlotMinutes)
	require.Len(t, p.Shifts, 1)
	assert.Equal(t, "08:00", p.Shifts[0].Start)
	assert.Equal(t, time.UTC, p.Location())
}
