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

// Package shared holds state common to the cadenza commands: global flag
// values bound by the root command and the process logger.
package shared

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cadenzahq/cadenza/internal/log"
)

// Exit codes for the cadenza commands.
const (
	ExitSuccess         = 0
	ExitExecutionFailed = 1
	ExitInvalidWorkflow = 2
)

// Global flag values, bound by the root command.
var (
	capabilityRootFlag string
	debugFlag          bool

	logger *slog.Logger
)

// RegisterFlagPointers returns pointers to the global flag variables for
// binding on the root command.
func RegisterFlagPointers() (capabilityRoot *string, debug *bool) {
	return &capabilityRootFlag, &debugFlag
}

// CapabilityRoot returns the directory capability packages are discovered
// in: the --capabilities flag, CADENZA_CAPABILITIES, or ./capabilities.
func CapabilityRoot() string {
	if capabilityRootFlag != "" {
		return capabilityRootFlag
	}
	if env := os.Getenv("CADENZA_CAPABILITIES"); env != "" {
		return env
	}
	return "capabilities"
}

// Logger returns the process logger, constructing it on first use.
func Logger() *slog.Logger {
	if logger == nil {
		cfg := log.FromEnv()
		if debugFlag {
			cfg.Level = "debug"
		}
		logger = log.New(cfg)
	}
	return logger
}

// ExitError is an error that carries an exit code.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}
