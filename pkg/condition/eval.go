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

import (
	"math"
	"strings"
)

// DefaultMaxLength bounds guard-expression length when the caller passes a
// non-positive limit. A guard longer than this is almost certainly not a
// guard.
const DefaultMaxLength = 10000

// Evaluate parses and evaluates a guard expression, returning its value:
// bool, int64, float64, string, nil, []any or map[any]any.
//
// maxLength is a denial-of-service guard on input size; pass 0 for
// DefaultMaxLength. Empty input, oversized input, syntax errors and any
// construct outside the grammar fail with *EvaluationError. The result for
// a given input never changes: the evaluator has no environment and no side
// effects.
func Evaluate(expression string, maxLength int) (any, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if strings.TrimSpace(expression) == "" {
		return nil, &EvaluationError{Message: "expression is empty", Pos: -1}
	}
	if len(expression) > maxLength {
		return nil, errAt(-1, "expression length %d exceeds limit %d", len(expression), maxLength)
	}
	root, err := parse(expression)
	if err != nil {
		return nil, err
	}
	return eval(root)
}

// EvaluateBool evaluates an expression and reduces the result to a boolean
// using Python-style truthiness.
func EvaluateBool(expression string, maxLength int) (bool, error) {
	value, err := Evaluate(expression, maxLength)
	if err != nil {
		return false, err
	}
	return Truthy(value), nil
}

// Truthy reports whether a value is considered true: false for False/None,
// zero numbers, empty strings, empty lists and empty mappings.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case int64:
		return val != 0
	case int:
		return val != 0
	case float64:
		return val != 0
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[any]any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

func eval(n node) (any, error) {
	switch node := n.(type) {
	case *literalNode:
		return node.value, nil

	case *listNode:
		out := make([]any, 0, len(node.elems))
		for _, elem := range node.elems {
			v, err := eval(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case *mapNode:
		out := make(map[any]any, len(node.keys))
		for i := range node.keys {
			k, err := eval(node.keys[i])
			if err != nil {
				return nil, err
			}
			if !hashable(k) {
				return nil, errAt(node.keys[i].nodePos(), "unhashable mapping key")
			}
			v, err := eval(node.values[i])
			if err != nil {
				return nil, err
			}
			out[normalizeKey(k)] = v
		}
		return out, nil

	case *unaryNode:
		return evalUnary(node)

	case *binaryNode:
		return evalBinary(node)

	case *compareNode:
		return evalCompare(node)

	case *conditionalNode:
		test, err := eval(node.test)
		if err != nil {
			return nil, err
		}
		if Truthy(test) {
			return eval(node.body)
		}
		return eval(node.orelse)
	}
	return nil, errAt(n.nodePos(), "unsupported construct")
}

func evalUnary(n *unaryNode) (any, error) {
	operand, err := eval(n.operand)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "not":
		return !Truthy(operand), nil
	case "-":
		switch v := operand.(type) {
		case int64:
			return -v, nil
		case float64:
			return -v, nil
		}
		return nil, errAt(n.pos, "unary - requires a number")
	case "+":
		switch operand.(type) {
		case int64, float64:
			return operand, nil
		}
		return nil, errAt(n.pos, "unary + requires a number")
	}
	return nil, errAt(n.pos, "unknown unary operator %q", n.op)
}

func evalBinary(n *binaryNode) (any, error) {
	// boolean operators short-circuit and return the deciding operand,
	// as Python does
	switch n.op {
	case "and":
		left, err := eval(n.left)
		if err != nil {
			return nil, err
		}
		if !Truthy(left) {
			return left, nil
		}
		return eval(n.right)
	case "or":
		left, err := eval(n.left)
		if err != nil {
			return nil, err
		}
		if Truthy(left) {
			return left, nil
		}
		return eval(n.right)
	}

	left, err := eval(n.left)
	if err != nil {
		return nil, err
	}
	right, err := eval(n.right)
	if err != nil {
		return nil, err
	}
	return arithmetic(n.pos, n.op, left, right)
}

func arithmetic(pos int, op string, left, right any) (any, error) {
	// string concatenation and list concatenation keep their Python meaning
	if op == "+" {
		if ls, ok := left.(string); ok {
			if rs, ok := right.(string); ok {
				return ls + rs, nil
			}
			return nil, errAt(pos, "cannot add string and non-string")
		}
		if ll, ok := left.([]any); ok {
			if rl, ok := right.([]any); ok {
				return append(append([]any{}, ll...), rl...), nil
			}
			return nil, errAt(pos, "cannot add list and non-list")
		}
	}

	li, lInt := asInt(left)
	ri, rInt := asInt(right)
	if lInt && rInt && op != "/" {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		case "%":
			if ri == 0 {
				return nil, errAt(pos, "modulo by zero")
			}
			// Python modulo: result takes the sign of the divisor
			m := li % ri
			if m != 0 && (m < 0) != (ri < 0) {
				m += ri
			}
			return m, nil
		}
	}

	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if !lok || !rok {
		return nil, errAt(pos, "operator %q requires numbers", op)
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, errAt(pos, "division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, errAt(pos, "modulo by zero")
		}
		m := math.Mod(lf, rf)
		if m != 0 && (m < 0) != (rf < 0) {
			m += rf
		}
		return m, nil
	}
	return nil, errAt(pos, "unknown operator %q", op)
}

// evalCompare walks a comparison chain left-to-right, short-circuiting on
// the first false link.
func evalCompare(n *compareNode) (any, error) {
	left, err := eval(n.left)
	if err != nil {
		return nil, err
	}
	for i, op := range n.ops {
		right, err := eval(n.rest[i])
		if err != nil {
			return nil, err
		}
		ok, err := compare(n.pos, op, left, right)
		if err != nil {
			return nil, err
		}
		if !ok {
			return false, nil
		}
		left = right
	}
	return true, nil
}

func compare(pos int, op string, left, right any) (bool, error) {
	switch op {
	case "==":
		return equal(left, right), nil
	case "!=":
		return !equal(left, right), nil
	case "in":
		return contains(pos, right, left)
	case "not in":
		ok, err := contains(pos, right, left)
		return !ok, err
	}

	// ordering: numbers with each other, strings with each other
	if lf, ok := asFloat(left); ok {
		rf, ok := asFloat(right)
		if !ok {
			return false, errAt(pos, "cannot order number against %T", right)
		}
		switch op {
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		}
	}
	if ls, ok := left.(string); ok {
		rs, ok := right.(string)
		if !ok {
			return false, errAt(pos, "cannot order string against %T", right)
		}
		switch op {
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	return false, errAt(pos, "operator %q not supported for %T", op, left)
}

func contains(pos int, container, item any) (bool, error) {
	switch c := container.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			return false, errAt(pos, "'in <string>' requires a string operand")
		}
		return strings.Contains(c, s), nil
	case []any:
		for _, elem := range c {
			if equal(elem, item) {
				return true, nil
			}
		}
		return false, nil
	case map[any]any:
		if !hashable(item) {
			return false, errAt(pos, "unhashable mapping key")
		}
		_, ok := c[normalizeKey(item)]
		return ok, nil
	}
	return false, errAt(pos, "'in' requires a string, list or mapping")
}

// equal compares values with numeric coercion (1 == 1.0) and structural
// equality for lists and mappings.
func equal(a, b any) bool {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}
		return false
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[any]any:
		bv, ok := b.(map[any]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, ok := bv[k]
			if !ok || !equal(v, other) {
				return false
			}
		}
		return true
	}
	return false
}

// asInt reports a value as int64 when it is integral. Bools are not numbers
// here, unlike Python.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func hashable(v any) bool {
	switch v.(type) {
	case nil, bool, int64, int, float64, string:
		return true
	}
	return false
}

// normalizeKey folds integral floats onto int64 so 1 and 1.0 address the
// same mapping slot.
func normalizeKey(v any) any {
	if f, ok := v.(float64); ok && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return int64(f)
	}
	if i, ok := v.(int); ok {
		return int64(i)
	}
	return v
}
