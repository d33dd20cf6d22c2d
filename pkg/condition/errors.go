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

package condition

import "fmt"

// EvaluationError represents a malformed or disallowed condition expression.
// The engine treats it as "condition false" (fail closed); it never aborts a
// whole workflow run on its own.
type EvaluationError struct {
	// Message describes what was rejected
	Message string

	// Pos is the byte offset in the expression where the problem was found,
	// or -1 when it applies to the whole input
	Pos int
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("condition error at offset %d: %s", e.Pos, e.Message)
	}
	return fmt.Sprintf("condition error: %s", e.Message)
}

// ErrorType implements errors.ErrorClassifier.
func (e *EvaluationError) ErrorType() string { return "evaluation" }

// IsRetryable implements errors.ErrorClassifier. A rejected expression stays
// rejected.
func (e *EvaluationError) IsRetryable() bool { return false }

func errAt(pos int, format string, args ...any) *EvaluationError {
	return &EvaluationError{Message: fmt.Sprintf(format, args...), Pos: pos}
}
