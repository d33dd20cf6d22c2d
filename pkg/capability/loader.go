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

package capability

import (
	"context"
	"fmt"
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// ExecFunc is a loaded capability entry point. Implementations are expected
// to be pure functions of their inputs; the context is provided so builtin
// capabilities can honor cancellation, interpreted ones ignore it.
type ExecFunc func(ctx context.Context, inputs map[string]any) (map[string]any, error)

// entryPointName is the symbol every source-runtime implementation file must
// define: func Execute(inputs map[string]any) (map[string]any, error).
const entryPointName = "Execute"

// Loader turns an implementation file into an ExecFunc. The registry runs
// the path-containment and content-hash gates before calling a Loader, so
// loaders only deal with interpretation.
type Loader interface {
	// Load interprets the implementation unit at path and extracts its
	// entry point.
	Load(path string) (ExecFunc, error)
}

// sourceLoader interprets Go source implementation files with yaegi.
type sourceLoader struct{}

// NewSourceLoader returns the default Loader for RuntimeSource
// capabilities.
func NewSourceLoader() Loader {
	return &sourceLoader{}
}

// Load evaluates the file and extracts the Execute symbol. The symbol is
// invoked through reflection because interpreted functions do not always
// assert cleanly to a native function type.
func (l *sourceLoader) Load(path string) (ExecFunc, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("initialize interpreter: %w", err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("interpret %s: %w", path, err)
	}
	fnValue, err := i.Eval(entryPointName)
	if err != nil {
		return nil, fmt.Errorf("%s must define %s(inputs map[string]any) (map[string]any, error): %w", path, entryPointName, err)
	}
	if !fnValue.IsValid() || fnValue.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s: %s is not a function", path, entryPointName)
	}

	// fast path: the interpreted value asserts directly
	if fn, ok := fnValue.Interface().(func(map[string]any) (map[string]any, error)); ok {
		return func(_ context.Context, inputs map[string]any) (map[string]any, error) {
			return fn(inputs)
		}, nil
	}

	fnType := fnValue.Type()
	if fnType.NumIn() != 1 || fnType.NumOut() != 2 {
		return nil, fmt.Errorf("%s: %s must take one inputs mapping and return (outputs, error)", path, entryPointName)
	}

	return func(_ context.Context, inputs map[string]any) (map[string]any, error) {
		results := fnValue.Call([]reflect.Value{reflect.ValueOf(inputs)})
		if errVal := results[1]; !errVal.IsNil() {
			if e, ok := errVal.Interface().(error); ok {
				return nil, e
			}
			return nil, fmt.Errorf("%s returned a non-error second value", entryPointName)
		}
		outputs, ok := results[0].Interface().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s must return map[string]any outputs, got %T", entryPointName, results[0].Interface())
		}
		return outputs, nil
	}, nil
}
