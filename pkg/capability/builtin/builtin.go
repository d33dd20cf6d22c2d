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

// Package builtin holds the compile-time capability implementations shipped
// with the engine. Each one still needs a RuntimeBuiltin manifest on disk;
// this package only supplies the executable units that the CLI wires into
// the registry at startup.
package builtin

import (
	"context"
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/cadenzahq/cadenza/pkg/capability"
)

// All returns every builtin implementation keyed by capability id.
func All() map[string]capability.ExecFunc {
	return map[string]capability.ExecFunc{
		"math.margin":   Margin,
		"transform.jq":  JQ,
		"string.format": Format,
	}
}

// Margin computes absolute margin and margin rate from price and cost.
func Margin(_ context.Context, inputs map[string]any) (map[string]any, error) {
	price, err := asFloat(inputs, "price")
	if err != nil {
		return nil, err
	}
	cost, err := asFloat(inputs, "cost")
	if err != nil {
		return nil, err
	}
	if price == 0 {
		return nil, fmt.Errorf("price must be non-zero")
	}
	margin := price - cost
	return map[string]any{
		"margin":     margin,
		"marginRate": margin / price,
	}, nil
}

// JQ applies a jq expression to an input document.
func JQ(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	expr, ok := inputs["query"].(string)
	if !ok {
		return nil, fmt.Errorf("query must be a string")
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq query: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("cannot compile jq query: %w", err)
	}

	iter := code.RunWithContext(ctx, inputs["input"])
	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("jq evaluation: %w", err)
		}
		results = append(results, v)
	}

	out := map[string]any{"results": results}
	if len(results) == 1 {
		out["result"] = results[0]
	}
	return out, nil
}

// Format renders a fmt-style template over positional args.
func Format(_ context.Context, inputs map[string]any) (map[string]any, error) {
	tmpl, ok := inputs["template"].(string)
	if !ok {
		return nil, fmt.Errorf("template must be a string")
	}
	args, _ := inputs["args"].([]any)
	return map[string]any{"text": fmt.Sprintf(tmpl, args...)}, nil
}

func asFloat(inputs map[string]any, key string) (float64, error) {
	switch v := inputs[key].(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, inputs[key])
	}
}
