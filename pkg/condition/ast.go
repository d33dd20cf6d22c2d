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

package condition

// The node set below is the entire language. The parser can only construct
// these shapes, which is what makes the allow-list total: there is no node
// for calls, attribute access, subscripting or name references.

type node interface {
	nodePos() int
}

// literalNode holds a scalar constant: int64, float64, string, bool or nil.
type literalNode struct {
	pos   int
	value any
}

// listNode is a [a, b, c] literal.
type listNode struct {
	pos   int
	elems []node
}

// mapNode is a {k: v} literal. Keys are full expressions, as in Python.
type mapNode struct {
	pos    int
	keys   []node
	values []node
}

// unaryNode is `not x`, `-x` or `+x`.
type unaryNode struct {
	pos     int
	op      string
	operand node
}

// binaryNode covers `and`, `or` and arithmetic. Boolean operators
// short-circuit during evaluation.
type binaryNode struct {
	pos         int
	op          string
	left, right node
}

// compareNode is a chain `left op0 rest0 op1 rest1 ...` evaluated
// left-to-right with short-circuiting, exactly as (a<b) and (b<c).
type compareNode struct {
	pos  int
	left node
	ops  []string // "==" "!=" "<" "<=" ">" ">=" "in" "not in"
	rest []node
}

// conditionalNode is the Python conditional `body if test else orelse`.
type conditionalNode struct {
	pos    int
	test   node
	body   node
	orelse node
}

func (n *literalNode) nodePos() int     { return n.pos }
func (n *listNode) nodePos() int        { return n.pos }
func (n *mapNode) nodePos() int         { return n.pos }
func (n *unaryNode) nodePos() int       { return n.pos }
func (n *binaryNode) nodePos() int      { return n.pos }
func (n *compareNode) nodePos() int     { return n.pos }
func (n *conditionalNode) nodePos() int { return n.pos }
