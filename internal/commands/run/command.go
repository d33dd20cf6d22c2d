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

// Package run implements the "cadenza run" command.
package run

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cadenzahq/cadenza/internal/commands/shared"
	"github.com/cadenzahq/cadenza/pkg/capability"
	"github.com/cadenzahq/cadenza/pkg/capability/builtin"
	"github.com/cadenzahq/cadenza/pkg/observability"
	"github.com/cadenzahq/cadenza/pkg/workflow"
)

// engineMetrics registers the engine collectors on the process registry
// exactly once, however many runs this process performs.
var engineMetrics = sync.OnceValue(func() *observability.Metrics {
	return observability.NewMetrics(prometheus.DefaultRegisterer)
})

// NewCommand creates the run command.
func NewCommand() *cobra.Command {
	var (
		contextFile string
		contextKVs  []string
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Execute a workflow document",
		Long: `Run parses a workflow document, resolves each step's capability from the
capability directory and executes the steps strictly in declared order,
applying the document's retry and fallback policy.

The run's initial context may be supplied inline (--set key=value) or from a
YAML/JSON file (--context). Step outputs accumulate under their step ids and
are addressable from later steps as {{stepId.field}} template references.`,
		Example: `  # Execute a workflow
  cadenza run pricing.yaml

  # Supply initial context values
  cadenza run pricing.yaml --set customer.tier=gold

  # Machine-readable result
  cadenza run pricing.yaml --json | jq '.status'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, args[0], contextFile, contextKVs, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&contextFile, "context", "", "Path to a YAML/JSON file with initial context values")
	cmd.Flags().StringArrayVar(&contextKVs, "set", nil, "Initial context value as dotted.path=value (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the full result as JSON")

	return cmd
}

func runWorkflow(cmd *cobra.Command, workflowPath, contextFile string, contextKVs []string, jsonOutput bool) error {
	data, err := os.ReadFile(workflowPath)
	if err != nil {
		return fmt.Errorf("cannot read workflow file: %w", err)
	}
	def, err := workflow.Parse(data)
	if err != nil {
		return err
	}

	initial, err := buildInitialContext(contextFile, contextKVs)
	if err != nil {
		return err
	}

	logger := shared.Logger()
	registry := capability.NewRegistry(shared.CapabilityRoot(), capability.WithLogger(logger))
	for id, fn := range builtin.All() {
		registry.RegisterBuiltin(id, fn)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := registry.Discover(ctx); err != nil {
		return err
	}

	engine := workflow.NewEngine(registry,
		workflow.WithLogger(logger),
		workflow.WithMetrics(engineMetrics()),
	)

	result, err := engine.Execute(ctx, def, initial)
	if err != nil && result == nil {
		return err
	}

	if jsonOutput {
		encoded, encErr := json.MarshalIndent(result, "", "  ")
		if encErr != nil {
			return encErr
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	} else {
		printSummary(cmd, result)
	}

	if result.Status != workflow.RunCompleted {
		return &shared.ExitError{Code: 1, Message: ""}
	}
	return nil
}

func printSummary(cmd *cobra.Command, result *workflow.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s (%s): %s in %dms\n", result.RunID, result.ModuleID, result.Status, result.DurationMS)
	for id, step := range result.Steps {
		line := fmt.Sprintf("  %-20s %-10s attempts=%d", id, step.Status, step.Attempts)
		if step.Error != "" {
			line += "  " + step.Error
		}
		fmt.Fprintln(out, line)
	}
	if result.Error != "" {
		fmt.Fprintf(out, "error: %s\n", result.Error)
	}
}

// buildInitialContext merges --context file values with --set overrides,
// the latter winning.
func buildInitialContext(contextFile string, kvs []string) (map[string]any, error) {
	initial := map[string]any{}

	if contextFile != "" {
		data, err := os.ReadFile(contextFile)
		if err != nil {
			return nil, fmt.Errorf("cannot read context file: %w", err)
		}
		if err := yaml.Unmarshal(data, &initial); err != nil {
			return nil, fmt.Errorf("context file is not a valid mapping: %w", err)
		}
	}

	for _, kv := range kvs {
		key, value, found := strings.Cut(kv, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("--set expects dotted.path=value, got %q", kv)
		}
		setPath(initial, strings.Split(key, "."), parseScalar(value))
	}
	return initial, nil
}

func setPath(m map[string]any, segments []string, value any) {
	for len(segments) > 1 {
		child, ok := m[segments[0]].(map[string]any)
		if !ok {
			child = map[string]any{}
			m[segments[0]] = child
		}
		m = child
		segments = segments[1:]
	}
	m[segments[0]] = value
}

// parseScalar gives --set values the same scalar types a YAML document
// would produce.
func parseScalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
