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

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// contextAlias is the reserved leading path segment that addresses the
// caller-supplied initial values directly, even when a step output would
// shadow them at the root.
const contextAlias = "context"

// placeholderPattern matches one {{ a.b.c }} template placeholder.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// ExecutionContext is the accumulated value space one workflow run resolves
// templates against: the caller's initial values at the root, plus each
// completed step's output mapping under the step id.
//
// A context belongs to exactly one run and is never shared across runs.
type ExecutionContext struct {
	initial map[string]any
	values  map[string]any
	logger  *slog.Logger
}

// NewExecutionContext seeds a context with the caller-supplied initial
// values.
func NewExecutionContext(initial map[string]any, logger *slog.Logger) *ExecutionContext {
	if logger == nil {
		logger = slog.Default()
	}
	values := make(map[string]any, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &ExecutionContext{
		initial: initial,
		values:  values,
		logger:  logger,
	}
}

// MergeStepOutput records a completed step's output under its step id.
func (c *ExecutionContext) MergeStepOutput(stepID string, output map[string]any) {
	c.values[stepID] = output
}

// Snapshot returns the current value space for inclusion in a result.
func (c *ExecutionContext) Snapshot() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Lookup resolves a dotted path against the context. A leading "context"
// segment addresses the caller-supplied initial values; any other leading
// segment resolves at the root. Unresolved paths yield (nil, false).
func (c *ExecutionContext) Lookup(path string) (any, bool) {
	segments := strings.Split(path, ".")

	var current any = c.values
	if segments[0] == contextAlias {
		current = c.initial
		segments = segments[1:]
		if len(segments) == 0 {
			return c.initial, true
		}
	}

	for _, segment := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// SubstituteValue resolves every template placeholder in a value, walking
// nested mappings and lists. A string that is exactly one placeholder yields
// the referenced value with its type preserved; a string with embedded
// placeholders interpolates rendered scalars. Unresolved paths yield null,
// logged at debug level, never an error.
func (c *ExecutionContext) SubstituteValue(v any) any {
	switch val := v.(type) {
	case string:
		return c.substituteString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = c.SubstituteValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = c.SubstituteValue(item)
		}
		return out
	default:
		return v
	}
}

// SubstituteText resolves placeholders in free text, rendering every
// referenced value as an expression literal. This is how guard conditions
// are prepared before evaluation.
func (c *ExecutionContext) SubstituteText(text string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		path := strings.TrimSpace(placeholderPattern.FindStringSubmatch(match)[1])
		value, ok := c.Lookup(path)
		if !ok {
			c.logger.Debug("template path did not resolve", "path", path)
			return renderLiteral(nil)
		}
		return renderLiteral(value)
	})
}

func (c *ExecutionContext) substituteString(s string) any {
	// a pure reference carries the referenced value through with its type
	if match := placeholderPattern.FindStringSubmatch(s); match != nil && match[0] == s {
		path := strings.TrimSpace(match[1])
		value, ok := c.Lookup(path)
		if !ok {
			c.logger.Debug("template path did not resolve", "path", path)
			return nil
		}
		return value
	}
	return c.SubstituteText(s)
}

// renderLiteral renders a context value as a guard-expression literal.
// Strings render raw so that authors control their own quoting.
func renderLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}
		return "False"
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
