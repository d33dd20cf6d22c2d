// Copyright 2026 The Cadenza Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package capability

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFileName is the file that marks a directory as a capability package.
const ManifestFileName = "capability.yaml"

// DefaultImplementationFile is used when a manifest does not name its
// implementation unit explicitly.
const DefaultImplementationFile = "capability.go"

// Runtime selects how a capability implementation is loaded.
type Runtime string

const (
	// RuntimeSource interprets the implementation file at load time.
	RuntimeSource Runtime = "source"

	// RuntimeBuiltin resolves a compile-time registered implementation.
	RuntimeBuiltin Runtime = "builtin"
)

// Manifest is the declarative, validated contract describing a capability.
// The manifest is the source of truth: when in doubt, reject.
type Manifest struct {
	// ID is the capability identifier (e.g. "margin.compute")
	ID string `yaml:"id" json:"id"`

	// Name is the human-readable capability name
	Name string `yaml:"name" json:"name"`

	// Category groups capabilities for discovery (e.g. "finance", "transform")
	Category string `yaml:"category" json:"category"`

	// Version is a full semantic version, X.Y.Z
	Version string `yaml:"version" json:"version"`

	// Description explains what the capability does
	Description string `yaml:"description" json:"description"`

	// Inputs declares the typed input contract
	Inputs map[string]FieldSpec `yaml:"inputs" json:"inputs"`

	// Outputs declares the typed output contract
	Outputs map[string]FieldSpec `yaml:"outputs" json:"outputs"`

	// SideEffects is true when invoking the capability touches the outside world
	SideEffects bool `yaml:"side_effects" json:"side_effects"`

	// Idempotent is true when repeated invocation with equal inputs is safe
	Idempotent bool `yaml:"idempotent" json:"idempotent"`

	// NoCodeCompatible is true when the capability may be wired from the
	// no-code workflow designer
	NoCodeCompatible bool `yaml:"no_code_compatible" json:"no_code_compatible"`

	// Tags are optional free-form labels
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// ImplHash is the optional sha256 hex digest of the implementation file.
	// When declared, the registry refuses to load an implementation whose
	// recomputed digest differs.
	ImplHash string `yaml:"impl_hash,omitempty" json:"impl_hash,omitempty"`

	// Implementation names the implementation unit inside the package
	// directory. Defaults to DefaultImplementationFile.
	Implementation string `yaml:"implementation,omitempty" json:"implementation,omitempty"`

	// Runtime selects the loader. Defaults to RuntimeSource.
	Runtime Runtime `yaml:"runtime,omitempty" json:"runtime,omitempty"`
}

// FieldSpec is one typed input or output declaration.
type FieldSpec struct {
	// Type is the declared data type (string, number, boolean, object, array)
	Type string `yaml:"type" json:"type"`

	// Required marks an input that must be present at invocation time
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`

	// Description explains the field
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Ref returns the canonical "id@version" reference for this manifest.
func (m *Manifest) Ref() string {
	return m.ID + "@" + m.Version
}

// RequiredInputs returns the names of inputs flagged required, sorted order
// not guaranteed.
func (m *Manifest) RequiredInputs() []string {
	var names []string
	for name, spec := range m.Inputs {
		if spec.Required {
			names = append(names, name)
		}
	}
	return names
}

// ValidationResult is the outcome of a total, side-effect-free manifest
// validation pass. Validation never mutates registry state; registration
// happens only for Valid results.
type ValidationResult struct {
	// Valid is true when the manifest satisfies the structural contract
	Valid bool

	// Reasons lists every detected problem when Valid is false
	Reasons []string
}

// ManifestValidator performs a full structural validation of a raw manifest
// document. When the registry is constructed without one, a minimal
// presence/type check runs instead.
type ManifestValidator interface {
	// ValidateManifest inspects the raw decoded document and returns the
	// complete list of problems, empty for a valid manifest.
	ValidateManifest(raw map[string]any) []string
}

// versionPattern matches full semantic versions; partials and ranges are not
// valid manifest versions.
var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// idPattern keeps capability ids unambiguous in "id@version" references.
var idPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]*$`)

// hashPattern matches a sha256 hex digest.
var hashPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// ParseManifest decodes and validates a manifest document. The returned
// result is Valid(manifest) or Invalid(reasons); a manifest is rejected
// wholesale, never partially accepted.
func ParseManifest(data []byte, validator ManifestValidator) (*Manifest, *ValidationResult) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationResult{Reasons: []string{fmt.Sprintf("manifest is not valid YAML: %v", err)}}
	}
	if raw == nil {
		return nil, &ValidationResult{Reasons: []string{"manifest is empty"}}
	}

	var reasons []string
	if validator != nil {
		reasons = validator.ValidateManifest(raw)
	} else {
		reasons = structuralCheck(raw)
	}
	if len(reasons) > 0 {
		return nil, &ValidationResult{Reasons: reasons}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ValidationResult{Reasons: []string{fmt.Sprintf("manifest does not decode: %v", err)}}
	}
	if m.Implementation == "" {
		m.Implementation = DefaultImplementationFile
	}
	if m.Runtime == "" {
		m.Runtime = RuntimeSource
	}
	return &m, &ValidationResult{Valid: true}
}

// structuralCheck is the minimal presence/type validation used when no full
// ManifestValidator is configured.
func structuralCheck(raw map[string]any) []string {
	var reasons []string

	requireString := func(key string) string {
		v, ok := raw[key]
		if !ok {
			reasons = append(reasons, fmt.Sprintf("missing required field %q", key))
			return ""
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			reasons = append(reasons, fmt.Sprintf("field %q must be a non-empty string", key))
			return ""
		}
		return s
	}

	requireBool := func(key string) {
		v, ok := raw[key]
		if !ok {
			reasons = append(reasons, fmt.Sprintf("missing required field %q", key))
			return
		}
		if _, ok := v.(bool); !ok {
			reasons = append(reasons, fmt.Sprintf("field %q must be a boolean", key))
		}
	}

	if id := requireString("id"); id != "" && !idPattern.MatchString(id) {
		reasons = append(reasons, fmt.Sprintf("field \"id\" %q contains invalid characters", id))
	}
	requireString("name")
	requireString("category")
	requireString("description")
	if version := requireString("version"); version != "" && !versionPattern.MatchString(version) {
		reasons = append(reasons, fmt.Sprintf("field \"version\" %q is not a full semantic version (X.Y.Z)", version))
	}

	for _, key := range []string{"inputs", "outputs"} {
		v, ok := raw[key]
		if !ok {
			reasons = append(reasons, fmt.Sprintf("missing required field %q", key))
			continue
		}
		decls, ok := v.(map[string]any)
		if !ok {
			// explicit empty mapping is allowed; anything else is a type error
			if v == nil {
				continue
			}
			reasons = append(reasons, fmt.Sprintf("field %q must be a mapping of typed declarations", key))
			continue
		}
		for name, decl := range decls {
			spec, ok := decl.(map[string]any)
			if !ok {
				reasons = append(reasons, fmt.Sprintf("%s.%s must be a typed declaration", key, name))
				continue
			}
			if t, ok := spec["type"].(string); !ok || t == "" {
				reasons = append(reasons, fmt.Sprintf("%s.%s is missing a type", key, name))
			}
		}
	}

	requireBool("side_effects")
	requireBool("idempotent")
	requireBool("no_code_compatible")

	if v, ok := raw["impl_hash"]; ok {
		s, isString := v.(string)
		if !isString || !hashPattern.MatchString(s) {
			reasons = append(reasons, "field \"impl_hash\" must be a sha256 hex digest")
		}
	}
	if v, ok := raw["runtime"]; ok {
		s, isString := v.(string)
		if !isString || (Runtime(s) != RuntimeSource && Runtime(s) != RuntimeBuiltin) {
			reasons = append(reasons, "field \"runtime\" must be \"source\" or \"builtin\"")
		}
	}

	return reasons
}

// ParseReference splits a capability reference into id and version parts.
// "id" yields an empty version; "id@version" yields both. Range syntax in
// the version part ("^1.0", "~2", "1.x") is accepted lexically here; it is
// the resolver that refuses to treat it as a range.
func ParseReference(ref string) (id, version string, err error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", fmt.Errorf("capability reference is empty")
	}
	at := strings.IndexByte(ref, '@')
	if at < 0 {
		return ref, "", nil
	}
	if at == 0 || at == len(ref)-1 {
		return "", "", fmt.Errorf("malformed capability reference %q", ref)
	}
	return ref[:at], ref[at+1:], nil
}
