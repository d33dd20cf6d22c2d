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

// StepStatus tracks one step through its attempt sequence. Transitions are
// monotonic within a run: a step never reverts to an earlier status.
//
//	PENDING -> SKIPPED                      guard false, terminal
//	PENDING -> RUNNING -> COMPLETED         terminal
//	RUNNING -> RETRYING -> RUNNING ...      up to the declared retry count
//	exhausted -> one fallback attempt -> COMPLETED | FAILED
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepRetrying  StepStatus = "retrying"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// Terminal reports whether the status admits no further transition.
func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepSkipped
}

// RunStatus is the overall status of one workflow run.
//
// RunPartial exists in the serialized contract for API compatibility but the
// engine never produces it: the first unrecovered step failure aborts the
// whole run as RunFailed. Continue-on-error would have to be an explicit
// product decision before any code path emits RunPartial.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunPartial   RunStatus = "partial"
)
