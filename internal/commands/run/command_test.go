package run

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenzahq/cadenza/internal/commands/shared"
	"github.com/cadenzahq/cadenza/pkg/capability"
	"github.com/cadenzahq/cadenza/pkg/workflow"
)

const marginManifest = `
id: math.margin
name: Compute Margin
category: finance
version: 1.0.0
description: Computes margin and margin rate.
inputs:
  price:
    type: number
    required: true
  cost:
    type: number
    required: true
outputs:
  margin:
    type: number
  marginRate:
    type: number
side_effects: false
idempotent: true
no_code_compatible: true
runtime: builtin
`

func setupCapabilities(t *testing.T) {
	t.Helper()
	capsDir := t.TempDir()
	pkgDir := filepath.Join(capsDir, "margin")
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, capability.ManifestFileName), []byte(marginManifest), 0o644))
	t.Setenv("CADENZA_CAPABILITIES", capsDir)
}

func TestRunEmitsSerializableResult(t *testing.T) {
	setupCapabilities(t)
	wfPath := filepath.Join(t.TempDir(), "wf.yaml")
	require.NoError(t, os.WriteFile(wfPath, []byte(`
moduleId: pricing
steps:
  - id: computeMargin
    use: math.margin
    inputs:
      price: 1000
      cost: 800
  - id: alert
    use: math.margin
    condition: "{{computeMargin.marginRate}} < 0.2"
`), 0o644))

	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{wfPath, "--json"})

	require.NoError(t, cmd.Execute())

	var result workflow.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, workflow.RunCompleted, result.Status)
	assert.Equal(t, "pricing", result.ModuleID)
	assert.Equal(t, workflow.StepCompleted, result.Steps["computeMargin"].Status)
	assert.Equal(t, workflow.StepSkipped, result.Steps["alert"].Status)
	assert.InDelta(t, 200.0, result.Steps["computeMargin"].Output["margin"], 1e-9)
}

func TestRunFailureCarriesExitCode(t *testing.T) {
	setupCapabilities(t)
	wfPath := filepath.Join(t.TempDir(), "wf.yaml")
	require.NoError(t, os.WriteFile(wfPath, []byte(`
moduleId: pricing
steps:
  - id: s
    use: ghost.cap
`), 0o644))

	cmd := NewCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{wfPath})

	err := cmd.Execute()
	var exitErr *shared.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, shared.ExitExecutionFailed, exitErr.Code)
}

func TestBuildInitialContext(t *testing.T) {
	ctxPath := filepath.Join(t.TempDir(), "ctx.yaml")
	require.NoError(t, os.WriteFile(ctxPath, []byte("customer:\n  tier: silver\n"), 0o644))

	initial, err := buildInitialContext(ctxPath, []string{"customer.tier=gold", "limit=10"})
	require.NoError(t, err)

	customer := initial["customer"].(map[string]any)
	// --set overrides the context file
	assert.Equal(t, "gold", customer["tier"])
	assert.Equal(t, 10, initial["limit"])

	_, err = buildInitialContext("", []string{"novalue"})
	assert.Error(t, err)
}
