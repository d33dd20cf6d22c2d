package validate

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenzahq/cadenza/internal/commands/shared"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateAcceptsWellFormedDocument(t *testing.T) {
	path := writeFile(t, "wf.yaml", `
moduleId: pricing
steps:
  - id: computeMargin
    use: math.margin
`)

	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "valid (1 steps)")
}

func TestValidateRejectsStructuralErrors(t *testing.T) {
	path := writeFile(t, "wf.yaml", `
moduleId: pricing
steps:
  - id: a
    use: math.margin
  - id: a
    use: math.margin
`)

	cmd := NewCommand()
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	var exitErr *shared.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, shared.ExitInvalidWorkflow, exitErr.Code)
	assert.Contains(t, exitErr.Message, "duplicate step id")
}

func TestValidateChecksCapabilityReferences(t *testing.T) {
	capsDir := t.TempDir()
	t.Setenv("CADENZA_CAPABILITIES", capsDir)

	path := writeFile(t, "wf.yaml", `
moduleId: pricing
steps:
  - id: s
    use: ghost.cap
`)

	cmd := NewCommand()
	cmd.SetArgs([]string{path, "--check-capabilities"})

	err := cmd.Execute()
	var exitErr *shared.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Contains(t, exitErr.Message, `step "s"`)
}
