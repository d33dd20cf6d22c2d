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

// Package condition implements the restricted guard-expression evaluator.
//
// The evaluator is a pure function over its input text. The grammar is closed
// by construction: the parser only produces literal, unary, binary, comparison
// and conditional nodes, so calls, attribute access, subscripting, name lookup
// and every other construct are syntax errors rather than blacklisted names.
// Adding a construct to the language means adding a grammar production here,
// which keeps the allow-list auditable.
//
// Accepted grammar:
//
//	literals     numbers, 'single' / "double" quoted strings,
//	             True/False/None (and true/false/null), [list], {mapping}
//	comparison   == != < <= > >= in "not in", chained left-to-right
//	boolean      and, or, not (short-circuiting)
//	arithmetic   + - * / %, unary + -
//	conditional  a if cond else b
//
// All variable substitution happens before this package is invoked; any bare
// identifier is rejected with an EvaluationError.
package condition
