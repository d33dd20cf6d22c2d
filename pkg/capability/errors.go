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

import "fmt"

// RegistryError represents an invocation-contract failure inside the
// registry: a missing required input, a broken loader, or an implementation
// unit that does not expose the expected entry point.
type RegistryError struct {
	// Capability is the "id@version" reference of the affected capability
	Capability string

	// Op identifies the failing operation ("execute", "load")
	Op string

	// Message describes the failure
	Message string

	// Cause is the underlying error, if any
	Cause error
}

// Error implements the error interface.
func (e *RegistryError) Error() string {
	msg := fmt.Sprintf("registry %s failed for %s: %s", e.Op, e.Capability, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *RegistryError) Unwrap() error {
	return e.Cause
}

// ErrorType implements errors.ErrorClassifier.
func (e *RegistryError) ErrorType() string { return "registry" }

// IsRetryable implements errors.ErrorClassifier. Contract failures do not
// heal on retry.
func (e *RegistryError) IsRetryable() bool { return false }
