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

// Package workflow defines the declarative workflow document and the engine
// that executes it: ordered steps, template substitution over an accumulated
// context, guard conditions, and centralized retry/fallback policy so that
// capability implementations stay free of error handling.
package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cadenzahq/cadenza/pkg/capability"
	"github.com/cadenzahq/cadenza/pkg/errors"
)

// Definition is one workflow document: an ordered list of steps describing
// what to invoke, with what inputs, under what condition, and with what
// resilience policy.
type Definition struct {
	// ModuleID identifies the workflow module this document belongs to
	ModuleID string `yaml:"moduleId" json:"moduleId"`

	// Version is the document version, informational only
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// Steps execute strictly in declared order
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step is one declared workflow step.
type Step struct {
	// ID is the step identifier, unique within the workflow. The step's
	// output is merged into the execution context under this key.
	ID string `yaml:"id" json:"id"`

	// Use references the capability to invoke, "id" or "id@version"
	Use string `yaml:"use" json:"use"`

	// Inputs is the templated input mapping. String values may embed
	// {{a.b.c}} placeholders resolved against the execution context.
	Inputs map[string]any `yaml:"inputs,omitempty" json:"inputs,omitempty"`

	// Condition is an optional guard expression, evaluated after template
	// substitution. False skips the step.
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`

	// Retry is the number of additional attempts after the first failure
	Retry int `yaml:"retry,omitempty" json:"retry,omitempty"`

	// TimeoutMS bounds one step's wall time, in milliseconds. Zero means
	// unbounded.
	TimeoutMS int `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Fallback is an optional alternate capability reference, invoked
	// exactly once after retries on Use are exhausted
	Fallback string `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

// Parse decodes a workflow document from YAML (JSON is a YAML subset) and
// validates it.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, &errors.ValidationError{
			Field:   "document",
			Message: fmt.Sprintf("workflow document is not valid YAML: %v", err),
		}
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the document's structural contract. The first violation is
// returned; a document either executes whole or not at all.
func (d *Definition) Validate() error {
	if d.ModuleID == "" {
		return &errors.ValidationError{
			Field:      "moduleId",
			Message:    "workflow document must declare a module id",
			Suggestion: "add a top-level moduleId field",
		}
	}
	if len(d.Steps) == 0 {
		return &errors.ValidationError{
			Field:   "steps",
			Message: "workflow document declares no steps",
		}
	}

	seen := make(map[string]bool, len(d.Steps))
	for i, step := range d.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		if step.ID == "" {
			return &errors.ValidationError{Field: field + ".id", Message: "step id is required"}
		}
		if seen[step.ID] {
			return &errors.ValidationError{
				Field:      field + ".id",
				Message:    fmt.Sprintf("duplicate step id %q", step.ID),
				Suggestion: "step ids must be unique within a workflow",
			}
		}
		seen[step.ID] = true

		if step.Use == "" {
			return &errors.ValidationError{Field: field + ".use", Message: "step must reference a capability"}
		}
		if _, _, err := capability.ParseReference(step.Use); err != nil {
			return &errors.ValidationError{Field: field + ".use", Message: err.Error()}
		}
		if step.Fallback != "" {
			if _, _, err := capability.ParseReference(step.Fallback); err != nil {
				return &errors.ValidationError{Field: field + ".fallback", Message: err.Error()}
			}
		}
		if step.Retry < 0 {
			return &errors.ValidationError{Field: field + ".retry", Message: "retry count cannot be negative"}
		}
		if step.TimeoutMS < 0 {
			return &errors.ValidationError{Field: field + ".timeout", Message: "timeout cannot be negative"}
		}
	}
	return nil
}
