package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenzahq/cadenza/pkg/capability"
	"github.com/cadenzahq/cadenza/pkg/capability/builtin"
)

// newTestRegistry builds a registry whose capabilities are all builtin
// runtime, so tests exercise the engine without the interpreter.
func newTestRegistry(t *testing.T, caps map[string]capability.ExecFunc) *capability.Registry {
	t.Helper()
	root := t.TempDir()
	reg := capability.NewRegistry(root)
	for id, fn := range caps {
		dir := filepath.Join(root, strings.ReplaceAll(id, ".", "_"))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		manifest := fmt.Sprintf(`
id: %s
name: %s
category: test
version: 1.0.0
description: test capability
inputs: {}
outputs: {}
side_effects: false
idempotent: true
no_code_compatible: true
runtime: builtin
`, id, id)
		require.NoError(t, os.WriteFile(filepath.Join(dir, capability.ManifestFileName), []byte(manifest), 0o644))
		reg.RegisterBuiltin(id, fn)
	}
	require.NoError(t, reg.Discover(context.Background()))
	return reg
}

func newTestEngine(t *testing.T, caps map[string]capability.ExecFunc) *Engine {
	t.Helper()
	return NewEngine(newTestRegistry(t, caps), WithBackoffBase(time.Millisecond))
}

func echoCap(_ context.Context, inputs map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(inputs))
	for k, v := range inputs {
		out[k] = v
	}
	return out, nil
}

func failCap(_ context.Context, _ map[string]any) (map[string]any, error) {
	return nil, fmt.Errorf("boom")
}

func TestExecuteTwoStepTemplateFlow(t *testing.T) {
	engine := newTestEngine(t, map[string]capability.ExecFunc{
		"produce.value": func(_ context.Context, _ map[string]any) (map[string]any, error) {
			return map[string]any{"field": 42}, nil
		},
		"consume.value": echoCap,
	})

	def := &Definition{
		ModuleID: "m",
		Steps: []Step{
			{ID: "A", Use: "produce.value"},
			{ID: "B", Use: "consume.value", Inputs: map[string]any{"got": "{{A.field}}"}},
		},
	}

	result, err := engine.Execute(context.Background(), def, nil)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, result.Status)
	assert.NotEmpty(t, result.RunID)

	require.Contains(t, result.Steps, "B")
	assert.Equal(t, StepCompleted, result.Steps["B"].Status)
	// the pure reference carried the value through with its type intact
	assert.Equal(t, 42, result.Steps["B"].Output["got"])
	assert.Equal(t, map[string]any{"field": 42}, result.Context["A"])
}

func TestRetryCountIsExact(t *testing.T) {
	var calls atomic.Int64
	engine := newTestEngine(t, map[string]capability.ExecFunc{
		"always.fails": func(_ context.Context, _ map[string]any) (map[string]any, error) {
			calls.Add(1)
			return nil, fmt.Errorf("boom")
		},
	})

	def := &Definition{ModuleID: "m", Steps: []Step{{ID: "s", Use: "always.fails", Retry: 2}}}
	result, err := engine.Execute(context.Background(), def, nil)
	require.NoError(t, err)

	assert.Equal(t, RunFailed, result.Status)
	assert.Contains(t, result.Error, `step "s" failed`)
	// retry=2 means exactly 3 attempts, no more, no fewer
	assert.Equal(t, int64(3), calls.Load())
	assert.Equal(t, 3, result.Steps["s"].Attempts)
	assert.Equal(t, StepFailed, result.Steps["s"].Status)
}

func TestRetrySucceedsMidSequence(t *testing.T) {
	var calls atomic.Int64
	engine := newTestEngine(t, map[string]capability.ExecFunc{
		"flaky.cap": func(_ context.Context, _ map[string]any) (map[string]any, error) {
			if calls.Add(1) < 3 {
				return nil, fmt.Errorf("transient")
			}
			return map[string]any{"ok": true}, nil
		},
	})

	def := &Definition{ModuleID: "m", Steps: []Step{{ID: "s", Use: "flaky.cap", Retry: 5}}}
	result, err := engine.Execute(context.Background(), def, nil)
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.Status)
	assert.Equal(t, 3, result.Steps["s"].Attempts)
}

func TestFalseGuardSkipsStep(t *testing.T) {
	engine := newTestEngine(t, map[string]capability.ExecFunc{
		"skipped.cap": failCap,
		"later.cap":   echoCap,
	})

	def := &Definition{
		ModuleID: "m",
		Steps: []Step{
			{ID: "guarded", Use: "skipped.cap", Condition: "1 > 2"},
			{ID: "later", Use: "later.cap"},
		},
	}
	result, err := engine.Execute(context.Background(), def, nil)
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.Status)
	assert.Equal(t, StepSkipped, result.Steps["guarded"].Status)
	// a skipped step leaves no trace in the context and does not block
	// later steps
	assert.NotContains(t, result.Context, "guarded")
	assert.Equal(t, StepCompleted, result.Steps["later"].Status)
}

func TestUnsafeGuardSkipsInsteadOfAborting(t *testing.T) {
	engine := newTestEngine(t, map[string]capability.ExecFunc{
		"guarded.cap": failCap,
		"later.cap":   echoCap,
	})

	def := &Definition{
		ModuleID: "m",
		Steps: []Step{
			{ID: "guarded", Use: "guarded.cap", Condition: "len('abc') > 1"},
			{ID: "later", Use: "later.cap"},
		},
	}
	result, err := engine.Execute(context.Background(), def, nil)
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.Status)
	assert.Equal(t, StepSkipped, result.Steps["guarded"].Status)
}

func TestMarginEndToEnd(t *testing.T) {
	engine := newTestEngine(t, map[string]capability.ExecFunc{
		"math.margin": builtin.Margin,
		"notify.cap":  echoCap,
	})

	def := &Definition{
		ModuleID: "pricing",
		Steps: []Step{
			{ID: "computeMargin", Use: "math.margin", Inputs: map[string]any{"price": 1000.0, "cost": 800.0}},
			{ID: "alert", Use: "notify.cap", Condition: "{{computeMargin.marginRate}} < 0.2"},
		},
	}
	result, err := engine.Execute(context.Background(), def, nil)
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.Status)
	margin := result.Steps["computeMargin"].Output
	assert.InDelta(t, 200.0, margin["margin"], 1e-9)
	assert.InDelta(t, 0.2, margin["marginRate"], 1e-9)
	// 0.2 is not < 0.2
	assert.Equal(t, StepSkipped, result.Steps["alert"].Status)
}

func TestMissingCapabilityIsNotRetried(t *testing.T) {
	engine := newTestEngine(t, map[string]capability.ExecFunc{})

	def := &Definition{ModuleID: "m", Steps: []Step{{ID: "s", Use: "nope.missing", Retry: 2}}}
	result, err := engine.Execute(context.Background(), def, nil)
	require.NoError(t, err)

	assert.Equal(t, RunFailed, result.Status)
	// resolution failures consume exactly one attempt regardless of retry
	assert.Equal(t, 1, result.Steps["s"].Attempts)
	assert.Empty(t, result.Steps["s"].ResolvedRef)
}

func TestFallbackAfterExhaustedRetries(t *testing.T) {
	var primaryCalls, fallbackCalls atomic.Int64
	engine := newTestEngine(t, map[string]capability.ExecFunc{
		"primary.cap": func(_ context.Context, _ map[string]any) (map[string]any, error) {
			primaryCalls.Add(1)
			return nil, fmt.Errorf("primary down")
		},
		"backup.cap": func(_ context.Context, _ map[string]any) (map[string]any, error) {
			fallbackCalls.Add(1)
			return map[string]any{"via": "fallback"}, nil
		},
	})

	def := &Definition{ModuleID: "m", Steps: []Step{
		{ID: "s", Use: "primary.cap", Retry: 1, Fallback: "backup.cap"},
	}}
	result, err := engine.Execute(context.Background(), def, nil)
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.Status)
	assert.Equal(t, int64(2), primaryCalls.Load())
	assert.Equal(t, int64(1), fallbackCalls.Load())
	// attempt count includes the fallback call
	assert.Equal(t, 3, result.Steps["s"].Attempts)
	assert.Equal(t, "backup.cap@1.0.0", result.Steps["s"].ResolvedRef)
	assert.Equal(t, "fallback", result.Steps["s"].Output["via"])
}

func TestFallbackFailureConcatenatesErrors(t *testing.T) {
	engine := newTestEngine(t, map[string]capability.ExecFunc{
		"primary.cap": func(_ context.Context, _ map[string]any) (map[string]any, error) {
			return nil, fmt.Errorf("primary down")
		},
		"backup.cap": func(_ context.Context, _ map[string]any) (map[string]any, error) {
			return nil, fmt.Errorf("backup also down")
		},
	})

	def := &Definition{ModuleID: "m", Steps: []Step{
		{ID: "s", Use: "primary.cap", Fallback: "backup.cap"},
	}}
	result, err := engine.Execute(context.Background(), def, nil)
	require.NoError(t, err)

	assert.Equal(t, RunFailed, result.Status)
	assert.Contains(t, result.Steps["s"].Error, "primary down")
	assert.Contains(t, result.Steps["s"].Error, "backup also down")
	assert.Equal(t, 2, result.Steps["s"].Attempts)
}

func TestFailureAbortsRemainingSteps(t *testing.T) {
	var laterRan atomic.Bool
	engine := newTestEngine(t, map[string]capability.ExecFunc{
		"failing.cap": failCap,
		"later.cap": func(_ context.Context, _ map[string]any) (map[string]any, error) {
			laterRan.Store(true)
			return nil, nil
		},
	})

	def := &Definition{ModuleID: "m", Steps: []Step{
		{ID: "first", Use: "failing.cap"},
		{ID: "second", Use: "later.cap"},
	}}
	result, err := engine.Execute(context.Background(), def, nil)
	require.NoError(t, err)

	assert.Equal(t, RunFailed, result.Status)
	assert.False(t, laterRan.Load())
	// steps never reached are absent from the result
	assert.NotContains(t, result.Steps, "second")
}

func TestCancellationStopsTheRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	engine := newTestEngine(t, map[string]capability.ExecFunc{
		"first.cap": func(_ context.Context, _ map[string]any) (map[string]any, error) {
			cancel()
			return map[string]any{}, nil
		},
		"second.cap": echoCap,
	})

	def := &Definition{ModuleID: "m", Steps: []Step{
		{ID: "first", Use: "first.cap"},
		{ID: "second", Use: "second.cap"},
	}}
	result, err := engine.Execute(ctx, def, nil)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, RunFailed, result.Status)
	assert.Equal(t, StepCompleted, result.Steps["first"].Status)
	assert.NotContains(t, result.Steps, "second")
}

func TestStepTimeoutIsEnforced(t *testing.T) {
	engine := newTestEngine(t, map[string]capability.ExecFunc{
		"slow.cap": func(ctx context.Context, _ map[string]any) (map[string]any, error) {
			select {
			case <-time.After(5 * time.Second):
				return map[string]any{}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})

	def := &Definition{ModuleID: "m", Steps: []Step{
		{ID: "slow", Use: "slow.cap", TimeoutMS: 20},
	}}

	start := time.Now()
	result, err := engine.Execute(context.Background(), def, nil)
	require.NoError(t, err)

	assert.Equal(t, RunFailed, result.Status)
	assert.Contains(t, result.Steps["slow"].Error, context.DeadlineExceeded.Error())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestInvalidDocumentNeverStartsARun(t *testing.T) {
	engine := newTestEngine(t, map[string]capability.ExecFunc{})

	result, err := engine.Execute(context.Background(), &Definition{}, nil)
	assert.Nil(t, result)
	assert.Error(t, err)
}

func TestInitialContextFlowsIntoInputs(t *testing.T) {
	engine := newTestEngine(t, map[string]capability.ExecFunc{
		"echo.cap": echoCap,
	})

	def := &Definition{ModuleID: "m", Steps: []Step{
		{ID: "s", Use: "echo.cap", Inputs: map[string]any{
			"tier":     "{{context.customer.tier}}",
			"greeting": "hello {{customer.name}}",
		}},
	}}
	initial := map[string]any{"customer": map[string]any{"tier": "gold", "name": "acme"}}
	result, err := engine.Execute(context.Background(), def, initial)
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.Status)
	assert.Equal(t, "gold", result.Steps["s"].Output["tier"])
	assert.Equal(t, "hello acme", result.Steps["s"].Output["greeting"])
}
