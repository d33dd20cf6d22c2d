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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cadenzahq/cadenza/internal/log"
	"github.com/cadenzahq/cadenza/pkg/capability"
	"github.com/cadenzahq/cadenza/pkg/condition"
	"github.com/cadenzahq/cadenza/pkg/errors"
	"github.com/cadenzahq/cadenza/pkg/observability"
)

// DefaultBackoffBase is the unit of the exponential retry backoff: the wait
// before retry n is DefaultBackoffBase * 2^(n-1).
const DefaultBackoffBase = 500 * time.Millisecond

// Engine executes workflow documents. One Engine is safe for concurrent
// Execute calls: each run owns its own context and result, the only shared
// state is the capability registry's load cache.
//
// All retry, fallback and failure policy lives here. Capability
// implementations never see it.
type Engine struct {
	registry    *capability.Registry
	logger      *slog.Logger
	metrics     *observability.Metrics
	backoffBase time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics attaches a metrics handle. Without one, nothing is recorded.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithBackoffBase overrides the retry backoff unit, mainly for tests.
func WithBackoffBase(d time.Duration) EngineOption {
	return func(e *Engine) { e.backoffBase = d }
}

// NewEngine creates an engine over the given capability registry.
func NewEngine(registry *capability.Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry:    registry,
		logger:      slog.Default(),
		backoffBase: DefaultBackoffBase,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs a workflow document against the caller-supplied initial
// context, strictly in declared step order.
//
// The returned Result always carries a definitive status; a run that fails
// inside a step still returns (result, nil). A non-nil error means the run
// could not proceed at all: an invalid document, or cancellation of ctx.
func (e *Engine) Execute(ctx context.Context, def *Definition, initial map[string]any) (*Result, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := log.WithRunContext(e.logger, runID, def.ModuleID)
	execCtx := NewExecutionContext(initial, logger)

	result := &Result{
		RunID:     runID,
		ModuleID:  def.ModuleID,
		Status:    RunRunning,
		Steps:     make(map[string]*StepResult, len(def.Steps)),
		StartedAt: time.Now(),
	}

	logger.Info("workflow run started", "steps", len(def.Steps))

	var runErr error
	for _, step := range def.Steps {
		if err := ctx.Err(); err != nil {
			result.Status = RunFailed
			result.Error = fmt.Sprintf("run cancelled before step %q: %v", step.ID, err)
			runErr = err
			break
		}

		stepResult := e.executeStep(ctx, execCtx, log.WithStepContext(logger, runID, step.ID), step)
		result.Steps[step.ID] = stepResult

		switch stepResult.Status {
		case StepCompleted:
			execCtx.MergeStepOutput(step.ID, stepResult.Output)
		case StepSkipped:
			// context untouched, later steps proceed
		case StepFailed:
			result.Status = RunFailed
			result.Error = fmt.Sprintf("step %q failed: %s", step.ID, stepResult.Error)
		}
		if stepResult.Status == StepFailed {
			// first unrecovered failure aborts the run, remaining steps
			// never execute
			break
		}
	}

	if result.Status == RunRunning {
		result.Status = RunCompleted
	}
	result.Context = execCtx.Snapshot()
	result.CompletedAt = time.Now()
	result.DurationMS = result.CompletedAt.Sub(result.StartedAt).Milliseconds()

	e.metrics.ObserveRun(def.ModuleID, string(result.Status), result.CompletedAt.Sub(result.StartedAt))
	logger.Info("workflow run finished",
		"status", string(result.Status),
		log.DurationKey, result.DurationMS,
	)
	return result, runErr
}

// executeStep runs one step through guard, resolution, retry and fallback.
func (e *Engine) executeStep(ctx context.Context, execCtx *ExecutionContext, logger *slog.Logger, step Step) *StepResult {
	stepResult := &StepResult{Status: StepPending}

	if step.Condition != "" {
		rendered := execCtx.SubstituteText(step.Condition)
		pass, err := condition.EvaluateBool(rendered, condition.DefaultMaxLength)
		if err != nil {
			// fail closed: an unsafe or malformed guard skips the step
			// rather than aborting the run
			logger.Warn("guard condition rejected, skipping step",
				"condition", rendered,
				"error", err,
			)
			pass = false
		}
		if !pass {
			stepResult.Status = StepSkipped
			logger.Info("step skipped by guard condition")
			e.metrics.ObserveStep(step.Use, string(StepSkipped), 0)
			return stepResult
		}
	}

	inputs := e.substituteInputs(execCtx, step.Inputs)

	stepResult.Status = StepRunning
	stepResult.StartedAt = time.Now()

	stepCtx := ctx
	if step.TimeoutMS > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, time.Duration(step.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	output, execErr := e.attemptWithPolicy(stepCtx, logger, step, stepResult, inputs)

	stepResult.CompletedAt = time.Now()
	stepResult.DurationMS = stepResult.CompletedAt.Sub(stepResult.StartedAt).Milliseconds()

	if execErr != nil {
		stepResult.Status = StepFailed
		stepResult.Error = execErr.Error()
		logger.Error("step failed",
			"error", stepResult.Error,
			log.AttemptKey, stepResult.Attempts,
			log.DurationKey, stepResult.DurationMS,
		)
	} else {
		stepResult.Status = StepCompleted
		stepResult.Output = output
		logger.Info("step completed",
			log.AttemptKey, stepResult.Attempts,
			log.DurationKey, stepResult.DurationMS,
		)
	}
	e.metrics.ObserveStep(step.Use, string(stepResult.Status), stepResult.CompletedAt.Sub(stepResult.StartedAt))
	return stepResult
}

// attemptWithPolicy applies the centralized resilience policy: up to
// retry+1 attempts on the primary capability with exponential backoff, then
// exactly one fallback attempt.
//
// Resolution failures consume a single attempt and are never retried; only
// invocation failures enter the retry loop.
func (e *Engine) attemptWithPolicy(ctx context.Context, logger *slog.Logger, step Step, stepResult *StepResult, inputs map[string]any) (map[string]any, error) {
	primary, resolveErr := e.registry.Resolve(step.Use)

	var lastErr error
	if resolveErr != nil {
		stepResult.Attempts++
		lastErr = resolveErr
		logger.Warn("capability resolution failed",
			log.CapabilityKey, step.Use,
			"error", resolveErr,
		)
	} else {
		stepResult.ResolvedRef = primary.Manifest.Ref()

		maxAttempts := step.Retry + 1
		for attempt := 0; attempt < maxAttempts; attempt++ {
			if attempt > 0 {
				stepResult.Status = StepRetrying
				e.metrics.RecordRetry(step.Use)
				if err := e.waitBackoff(ctx, attempt-1); err != nil {
					lastErr = err
					break
				}
				stepResult.Status = StepRunning
			}

			stepResult.Attempts++
			output, err := primary.Execute(ctx, inputs)
			if err == nil {
				return output, nil
			}
			lastErr = err
			logger.Warn("capability invocation failed",
				log.CapabilityKey, stepResult.ResolvedRef,
				log.AttemptKey, stepResult.Attempts,
				"error", err,
			)
			if !errors.IsRetryable(err) || ctx.Err() != nil {
				break
			}
		}
	}

	if step.Fallback == "" {
		return nil, lastErr
	}

	fallback, err := e.registry.Resolve(step.Fallback)
	if err != nil {
		e.metrics.RecordFallback(step.Use, "resolution_failed")
		return nil, fmt.Errorf("%v; fallback %q could not be resolved: %v", lastErr, step.Fallback, err)
	}

	logger.Info("invoking fallback capability", log.CapabilityKey, fallback.Manifest.Ref())
	stepResult.Attempts++
	output, fallbackErr := fallback.Execute(ctx, inputs)
	if fallbackErr != nil {
		e.metrics.RecordFallback(step.Use, "failed")
		// concatenate for full diagnostic context
		return nil, fmt.Errorf("%v; fallback %q failed: %v", lastErr, step.Fallback, fallbackErr)
	}
	e.metrics.RecordFallback(step.Use, "succeeded")
	stepResult.ResolvedRef = fallback.Manifest.Ref()
	return output, nil
}

// waitBackoff blocks for backoffBase * 2^attemptIndex or until the context
// is done, whichever comes first.
func (e *Engine) waitBackoff(ctx context.Context, attemptIndex int) error {
	backoff := e.backoffBase * (1 << attemptIndex)
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) substituteInputs(execCtx *ExecutionContext, raw map[string]any) map[string]any {
	if raw == nil {
		return map[string]any{}
	}
	substituted, ok := execCtx.SubstituteValue(raw).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return substituted
}
