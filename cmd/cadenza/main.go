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

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cadenzahq/cadenza/internal/commands/capabilities"
	"github.com/cadenzahq/cadenza/internal/commands/run"
	"github.com/cadenzahq/cadenza/internal/commands/shared"
	"github.com/cadenzahq/cadenza/internal/commands/validate"
	versioncmd "github.com/cadenzahq/cadenza/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:   "cadenza",
		Short: "Declarative workflow orchestration over versioned capabilities",
		Long: `Cadenza executes declarative workflow documents: ordered steps that
invoke versioned capabilities discovered from a capability directory, guarded
by safe conditions and governed by centralized retry and fallback policy.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	capabilityRoot, debug := shared.RegisterFlagPointers()
	root.PersistentFlags().StringVar(capabilityRoot, "capabilities", "", "Capability directory (default $CADENZA_CAPABILITIES or ./capabilities)")
	root.PersistentFlags().BoolVar(debug, "debug", false, "Enable debug logging")

	root.AddCommand(run.NewCommand())
	root.AddCommand(capabilities.NewCommand())
	root.AddCommand(validate.NewCommand())
	root.AddCommand(versioncmd.NewCommand(version, commit, buildDate))

	if err := root.Execute(); err != nil {
		var exitErr *shared.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, "Error:", exitErr.Error())
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
