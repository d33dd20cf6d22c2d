package capability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validManifestYAML = `
id: margin.compute
name: Compute Margin
category: finance
version: 1.2.0
description: Computes margin and margin rate from price and cost.
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
`

func TestParseManifestValid(t *testing.T) {
	m, result := ParseManifest([]byte(validManifestYAML), nil)
	require.True(t, result.Valid, "reasons: %v", result.Reasons)
	require.NotNil(t, m)

	assert.Equal(t, "margin.compute", m.ID)
	assert.Equal(t, "margin.compute@1.2.0", m.Ref())
	assert.Equal(t, RuntimeSource, m.Runtime)
	assert.Equal(t, DefaultImplementationFile, m.Implementation)
	assert.ElementsMatch(t, []string{"price", "cost"}, m.RequiredInputs())
}

func TestParseManifestRejections(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		reason string
	}{
		{
			name:   "not yaml",
			yaml:   "id: [unclosed",
			reason: "not valid YAML",
		},
		{
			name:   "empty document",
			yaml:   "",
			reason: "manifest is empty",
		},
		{
			name: "missing side_effects",
			yaml: `
id: a.b
name: A
category: c
version: 1.0.0
description: d
inputs: {}
outputs: {}
idempotent: true
no_code_compatible: false
`,
			reason: `missing required field "side_effects"`,
		},
		{
			name: "side_effects wrong type",
			yaml: `
id: a.b
name: A
category: c
version: 1.0.0
description: d
inputs: {}
outputs: {}
side_effects: "no"
idempotent: true
no_code_compatible: false
`,
			reason: `field "side_effects" must be a boolean`,
		},
		{
			name: "partial version",
			yaml: `
id: a.b
name: A
category: c
version: "1.0"
description: d
inputs: {}
outputs: {}
side_effects: false
idempotent: true
no_code_compatible: false
`,
			reason: "not a full semantic version",
		},
		{
			name: "input without type",
			yaml: `
id: a.b
name: A
category: c
version: 1.0.0
description: d
inputs:
  price:
    required: true
outputs: {}
side_effects: false
idempotent: true
no_code_compatible: false
`,
			reason: "inputs.price is missing a type",
		},
		{
			name: "bad digest",
			yaml: `
id: a.b
name: A
category: c
version: 1.0.0
description: d
inputs: {}
outputs: {}
side_effects: false
idempotent: true
no_code_compatible: false
impl_hash: not-a-digest
`,
			reason: `field "impl_hash" must be a sha256 hex digest`,
		},
		{
			name: "unknown runtime",
			yaml: `
id: a.b
name: A
category: c
version: 1.0.0
description: d
inputs: {}
outputs: {}
side_effects: false
idempotent: true
no_code_compatible: false
runtime: wasm
`,
			reason: `field "runtime" must be "source" or "builtin"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, result := ParseManifest([]byte(tt.yaml), nil)
			assert.Nil(t, m)
			require.False(t, result.Valid)
			found := false
			for _, r := range result.Reasons {
				if strings.Contains(r, tt.reason) {
					found = true
				}
			}
			assert.True(t, found, "want reason containing %q, got %v", tt.reason, result.Reasons)
		})
	}
}

func TestParseManifestCollectsAllReasons(t *testing.T) {
	m, result := ParseManifest([]byte(`name: A`), nil)
	assert.Nil(t, m)
	require.False(t, result.Valid)
	// validation is total: every missing field is reported in one pass
	assert.GreaterOrEqual(t, len(result.Reasons), 7)
}

type rejectAllValidator struct{}

func (rejectAllValidator) ValidateManifest(map[string]any) []string {
	return []string{"rejected by policy"}
}

func TestParseManifestCustomValidator(t *testing.T) {
	m, result := ParseManifest([]byte(validManifestYAML), rejectAllValidator{})
	assert.Nil(t, m)
	require.False(t, result.Valid)
	assert.Equal(t, []string{"rejected by policy"}, result.Reasons)
}

func TestParseReference(t *testing.T) {
	id, version, err := ParseReference("margin.compute")
	require.NoError(t, err)
	assert.Equal(t, "margin.compute", id)
	assert.Empty(t, version)

	id, version, err = ParseReference("margin.compute@1.2.0")
	require.NoError(t, err)
	assert.Equal(t, "margin.compute", id)
	assert.Equal(t, "1.2.0", version)

	// range syntax parses lexically; refusing it is the resolver's job
	_, version, err = ParseReference("margin.compute@^1.0")
	require.NoError(t, err)
	assert.Equal(t, "^1.0", version)

	for _, bad := range []string{"", "@1.0.0", "margin.compute@", "  "} {
		_, _, err := ParseReference(bad)
		assert.Error(t, err, "reference %q", bad)
	}
}
