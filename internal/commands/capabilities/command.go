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

// Package capabilities implements the "cadenza capabilities" command group.
package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cadenzahq/cadenza/internal/commands/shared"
	"github.com/cadenzahq/cadenza/pkg/capability"
)

// NewCommand creates the capabilities command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Inspect the capability registry",
	}
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newShowCommand())
	return cmd
}

func newListCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered capabilities",
		Example: `  # All capabilities in the default directory
  cadenza capabilities list

  # From an explicit directory, as JSON
  cadenza --capabilities ./caps capabilities list --json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := discover(cmd.Context())
			if err != nil {
				return err
			}

			regs := registry.List()
			sort.Slice(regs, func(i, j int) bool {
				return regs[i].Manifest.Ref() < regs[j].Manifest.Ref()
			})

			if jsonOutput {
				manifests := make([]*capability.Manifest, len(regs))
				for i, reg := range regs {
					manifests[i] = reg.Manifest
				}
				encoded, err := json.MarshalIndent(manifests, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REF\tCATEGORY\tRUNTIME\tDESCRIPTION")
			for _, reg := range regs {
				m := reg.Manifest
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Ref(), m.Category, m.Runtime, m.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit manifests as JSON")
	return cmd
}

func newShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id[@version]>",
		Short: "Show one capability's manifest",
		Example: `  cadenza capabilities show math.margin
  cadenza capabilities show math.margin@1.0.0`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := discover(cmd.Context())
			if err != nil {
				return err
			}
			reg, err := registry.Lookup(args[0])
			if err != nil {
				return err
			}
			encoded, err := yaml.Marshal(reg.Manifest)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}
	return cmd
}

func discover(ctx context.Context) (*capability.Registry, error) {
	registry := capability.NewRegistry(shared.CapabilityRoot(), capability.WithLogger(shared.Logger()))
	if err := registry.Discover(ctx); err != nil {
		return nil, err
	}
	return registry, nil
}
