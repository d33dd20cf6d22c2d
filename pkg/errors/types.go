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

package errors

import (
	"fmt"
)

// ValidationError represents user input validation failures.
// Use this for invalid workflow documents, malformed manifests, or
// constraint violations.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// ErrorType implements ErrorClassifier.
func (e *ValidationError) ErrorType() string { return "validation" }

// IsRetryable implements ErrorClassifier. Validation failures are permanent.
func (e *ValidationError) IsRetryable() bool { return false }

// NotFoundError represents a resource not found error.
// Use this when a requested capability, workflow, or file does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "capability", "workflow")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrorType implements ErrorClassifier.
func (e *NotFoundError) ErrorType() string { return "not_found" }

// IsRetryable implements ErrorClassifier. A missing resource is not transient.
func (e *NotFoundError) IsRetryable() bool { return false }

// VersionError represents an unresolvable capability version reference.
// Raised when an exact "id@version" lookup finds the capability id but not
// the requested version, or when a range reference is used (ranges are
// accepted lexically but never resolved as ranges).
type VersionError struct {
	// ID is the capability identifier
	ID string

	// Requested is the version reference that could not be resolved
	Requested string

	// Available lists the versions known for this capability id
	Available []string
}

// Error implements the error interface.
func (e *VersionError) Error() string {
	if len(e.Available) > 0 {
		return fmt.Sprintf("capability %s has no version %s (available: %v)", e.ID, e.Requested, e.Available)
	}
	return fmt.Sprintf("capability %s has no version %s", e.ID, e.Requested)
}

// ErrorType implements ErrorClassifier.
func (e *VersionError) ErrorType() string { return "version" }

// IsRetryable implements ErrorClassifier. A missing version is not transient.
func (e *VersionError) IsRetryable() bool { return false }

// SecurityError represents a path-containment or content-integrity violation
// while loading a capability implementation. These are surfaced distinctly
// from ordinary step errors and are never retried.
type SecurityError struct {
	// Check identifies the failed gate ("path_containment", "content_hash")
	Check string

	// Path is the offending filesystem location
	Path string

	// Message describes the violation
	Message string
}

// Error implements the error interface.
func (e *SecurityError) Error() string {
	return fmt.Sprintf("security violation (%s) at %s: %s", e.Check, e.Path, e.Message)
}

// ErrorType implements ErrorClassifier.
func (e *SecurityError) ErrorType() string { return "security" }

// IsRetryable implements ErrorClassifier. Security violations are terminal.
func (e *SecurityError) IsRetryable() bool { return false }

// ConfigError represents configuration problems.
// Use this for missing settings or invalid configuration values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "capability_root")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
