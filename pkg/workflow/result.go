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

package workflow

import "time"

// StepResult records one step's outcome. It is a plain serializable value
// with no behavior; the API layer returns it as-is.
type StepResult struct {
	// Status is the step's terminal (or last observed) status
	Status StepStatus `json:"status"`

	// Output is the capability output merged into the context, nil for
	// skipped or failed steps
	Output map[string]any `json:"output,omitempty"`

	// Error is the rendered failure cause, including any fallback failure
	// concatenated for full diagnostic context
	Error string `json:"error,omitempty"`

	// ResolvedRef is the exact "id@version" the step's reference resolved
	// to, empty when resolution never happened
	ResolvedRef string `json:"resolvedRef,omitempty"`

	// Attempts counts every invocation, including the fallback call
	Attempts int `json:"attempts"`

	StartedAt   time.Time `json:"startedAt,omitzero"`
	CompletedAt time.Time `json:"completedAt,omitzero"`

	// DurationMS is wall time from first attempt to terminal status
	DurationMS int64 `json:"durationMs"`
}

// Result is the aggregate outcome of one workflow run.
type Result struct {
	// RunID uniquely identifies this run across the process
	RunID string `json:"runId"`

	// ModuleID echoes the executed document's module id
	ModuleID string `json:"moduleId"`

	// Status is the definitive overall status
	Status RunStatus `json:"status"`

	// Steps maps step id to its result; steps never reached are absent
	Steps map[string]*StepResult `json:"steps"`

	// Context is the final execution context snapshot
	Context map[string]any `json:"context"`

	// Error names the failing step and cause when Status is RunFailed
	Error string `json:"error,omitempty"`

	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`

	// DurationMS is total run wall time
	DurationMS int64 `json:"durationMs"`
}
