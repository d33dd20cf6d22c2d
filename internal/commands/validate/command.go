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

// Package validate implements the "cadenza validate" command.
package validate

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cadenzahq/cadenza/internal/commands/shared"
	"github.com/cadenzahq/cadenza/pkg/capability"
	"github.com/cadenzahq/cadenza/pkg/workflow"
)

func capabilityRegistry() *capability.Registry {
	return capability.NewRegistry(shared.CapabilityRoot(), capability.WithLogger(shared.Logger()))
}

// NewCommand creates the validate command.
func NewCommand() *cobra.Command {
	var checkRefs bool

	cmd := &cobra.Command{
		Use:   "validate <workflow>",
		Short: "Validate a workflow document",
		Long: `Validate checks that a workflow document parses and satisfies the
structural contract: a module id, uniquely identified steps and well-formed
capability references.

With --check-capabilities the declared capability references are also
resolved against the capability directory, without executing anything.`,
		Example: `  cadenza validate pricing.yaml
  cadenza validate pricing.yaml --check-capabilities`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0], checkRefs)
		},
	}

	cmd.Flags().BoolVar(&checkRefs, "check-capabilities", false, "Resolve capability references against the capability directory")
	return cmd
}

func runValidate(cmd *cobra.Command, path string, checkRefs bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &shared.ExitError{Code: shared.ExitInvalidWorkflow, Message: fmt.Sprintf("cannot read workflow file: %v", err)}
	}

	def, err := workflow.Parse(data)
	if err != nil {
		return &shared.ExitError{Code: shared.ExitInvalidWorkflow, Message: err.Error()}
	}

	if checkRefs {
		registry := capabilityRegistry()
		if err := registry.Discover(cmd.Context()); err != nil {
			return err
		}
		for _, step := range def.Steps {
			if _, err := registry.Lookup(step.Use); err != nil {
				return &shared.ExitError{
					Code:    shared.ExitInvalidWorkflow,
					Message: fmt.Sprintf("step %q: %v", step.ID, err),
				}
			}
			if step.Fallback != "" {
				if _, err := registry.Lookup(step.Fallback); err != nil {
					return &shared.ExitError{
						Code:    shared.ExitInvalidWorkflow,
						Message: fmt.Sprintf("step %q fallback: %v", step.ID, err),
					}
				}
			}
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d steps)\n", path, len(def.Steps))
	return nil
}
