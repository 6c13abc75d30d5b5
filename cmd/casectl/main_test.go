package main

import (
	"bytes"
	"context"
	"database/sql"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const claimsYAML = `
version: 1
cases:
  - id: claims
    name: Claims
    version: "2"
    external_sources: [clerk]
    activities:
      - id: Review
        kind: task
        manual_activation: true
      - id: Pay
        kind: task
        entry_criteria:
          - id: approved
            on:
              - source: Review
                event: complete
            if: approved == true
      - id: Escalated
        kind: milestone
        entry_criteria:
          - id: by_clerk
            on:
              - source: clerk
                event: occur
`

var claimsLog = strings.Join([]string{
	"() -create(claims)-> active",
	"() -create(Review)-> available",
	"() -create(Pay)-> available",
	"() -create(Escalated)-> available",
	"available -enable(Review)-> enabled",
	"enabled -manualStart(Review)-> active",
	"active -complete(Review)-> completed",
	"available -start(Pay)-> active",
	"available -occur(Escalated)-> completed",
	"active -complete(Pay)-> completed",
	"active -complete(claims)-> completed",
}, "\n")

var claimsSteps = []string{
	"--step", "Review:manualStart",
	"--step", "$approved=true",
	"--step", "Review:complete",
	"--step", "@clerk:occur",
	"--step", "Pay:complete",
}

func writeDefinition(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claims.yaml")
	require.NoError(t, os.WriteFile(path, []byte(claimsYAML), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), args, &stdout, &stderr, func(int) {})
	return stdout.String(), err
}

func textCode(err error) string {
	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		return appErr.TextCode
	}
	return ""
}

func TestValidateListsCases(t *testing.T) {
	path := writeDefinition(t)
	out, err := runCLI(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "claims")
	assert.Contains(t, out, "Claims")
	assert.Contains(t, out, "clerk")
}

func TestValidateRejectsBrokenDefinition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: 1
cases:
  - id: broken
    activities:
      - id: A
        kind: task
        entry_criteria:
          - id: s
            on:
              - source: Ghost
                event: complete
`), 0o600))

	_, err := runCLI(t, "check", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Ghost")
}

func TestRunPrintsTransitionLog(t *testing.T) {
	path := writeDefinition(t)
	args := append([]string{"run", path}, claimsSteps...)
	out, err := runCLI(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, claimsLog)
	assert.Contains(t, out, "completed")
}

func TestRunWithSQLiteHistory(t *testing.T) {
	path := writeDefinition(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")
	args := append([]string{"run", path, "--history", "sqlite:" + dbPath, "--format", "table"}, claimsSteps...)
	out, err := runCLI(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "manualStart")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM case_transitions`).Scan(&count))
	assert.Equal(t, 11, count)
}

func TestRunWithRedisHistory(t *testing.T) {
	mr := miniredis.RunT(t)
	path := writeDefinition(t)
	args := append([]string{"replay", path, "--history", "redis:" + mr.Addr(), "--format", "json"}, claimsSteps...)
	out, err := runCLI(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, `"activity_id": "Pay"`)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "cmmn:history:"))
}

func TestRunSeedsVariables(t *testing.T) {
	path := writeDefinition(t)
	out, err := runCLI(t, "run", path, "--var", "approved=true",
		"--step", "Review:manualStart", "--step", "Review:complete")
	require.NoError(t, err)
	assert.Contains(t, out, "available -start(Pay)-> active")
}

func TestRunStopsOnRejectedStep(t *testing.T) {
	path := writeDefinition(t)
	_, err := runCLI(t, "run", path, "--step", "Review:complete")
	require.Error(t, err)
	assert.Equal(t, "CASECTL_STEP_FAILED", textCode(err))

	out, err := runCLI(t, "run", path, "--keep-going", "--step", "Review:complete", "--step", "Review:manualStart")
	require.NoError(t, err)
	assert.Contains(t, out, "step 1 (Review:complete) rejected")
	assert.Contains(t, out, "enabled -manualStart(Review)-> active")
}

func TestRunRejectsMalformedInput(t *testing.T) {
	path := writeDefinition(t)

	_, err := runCLI(t, "run", path, "--step", "nonsense")
	assert.Equal(t, "CASECTL_STEP_FAILED", textCode(err))

	_, err = runCLI(t, "run", path, "--case", "missing")
	assert.Equal(t, "CASECTL_CASE_NOT_FOUND", textCode(err))

	_, err = runCLI(t, "run", path, "--history", "ftp:somewhere")
	assert.Equal(t, "CASECTL_INVALID_HISTORY", textCode(err))

	_, err = runCLI(t, "run", path, "--var", "=1")
	assert.Equal(t, "CASECTL_INVALID_STEP", textCode(err))
}

func TestStatesPrintsLifecycleTable(t *testing.T) {
	out, err := runCLI(t, "states")
	require.NoError(t, err)
	assert.Contains(t, out, "manualStart")
	assert.Contains(t, out, "(prior state)")

	out, err = runCLI(t, "states", "--from", "suspended")
	require.NoError(t, err)
	assert.Contains(t, out, "resume")
	assert.NotContains(t, out, "manualStart")
}
