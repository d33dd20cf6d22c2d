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

// Package capability discovers, validates, resolves and loads versioned
// capability packages from a root directory.
//
// A capability package is a directory holding a capability.yaml manifest and
// one implementation unit. Discovery registers every structurally valid
// manifest; loading is lazy and gated by path containment and an optional
// content digest. The registry applies no retry or fallback policy; that
// belongs to the orchestration engine.
package capability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cadenzahq/cadenza/pkg/errors"
)

// VersionsSegment is the reserved path segment skipped during discovery,
// held back for a future multi-version package layout.
const VersionsSegment = "versions"

// Registration is one discovered, validated capability package.
type Registration struct {
	// Manifest is the validated capability contract
	Manifest *Manifest

	// Dir is the absolute package directory the manifest was found in
	Dir string
}

// LoadedCapability is a validated manifest plus its lazily loaded,
// cached executable unit.
type LoadedCapability struct {
	// Manifest is the validated capability contract
	Manifest *Manifest

	// Dir is the package directory
	Dir string

	exec ExecFunc
}

// Execute verifies every manifest-required input is present, then delegates
// to the implementation's entry point. Implementation failures propagate
// unwrapped; retry and fallback policy live in the engine.
func (c *LoadedCapability) Execute(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	if inputs == nil {
		inputs = map[string]any{}
	}
	for name, spec := range c.Manifest.Inputs {
		if !spec.Required {
			continue
		}
		if _, ok := inputs[name]; !ok {
			return nil, &RegistryError{
				Capability: c.Manifest.Ref(),
				Op:         "execute",
				Message:    fmt.Sprintf("required input %q is missing", name),
			}
		}
	}
	return c.exec(ctx, inputs)
}

// Registry holds every discovered capability and the process-wide cache of
// loaded implementations. Construct it explicitly and inject it into the
// engine; there is no ambient global instance.
//
// The cache is append-only for the registry's lifetime; there is no
// invalidation and no hot reload of already-loaded capabilities.
type Registry struct {
	root      string
	logger    *slog.Logger
	validator ManifestValidator
	loader    Loader

	mu       sync.RWMutex
	byExact  map[string]*Registration // "id@version"
	latest   map[string]*Registration // bare id -> most recently discovered
	versions map[string][]string      // id -> known versions, discovery order
	builtins map[string]ExecFunc
	loaded   map[string]*LoadedCapability // "id@version"
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithValidator installs a full structural-schema validator. Without one,
// the minimal presence/type check runs.
func WithValidator(v ManifestValidator) Option {
	return func(r *Registry) { r.validator = v }
}

// WithLoader replaces the source loader, mainly for tests.
func WithLoader(l Loader) Option {
	return func(r *Registry) { r.loader = l }
}

// NewRegistry creates a registry rooted at the given capability directory.
func NewRegistry(root string, opts ...Option) *Registry {
	r := &Registry{
		root:     root,
		logger:   slog.Default(),
		loader:   NewSourceLoader(),
		byExact:  make(map[string]*Registration),
		latest:   make(map[string]*Registration),
		versions: make(map[string][]string),
		builtins: make(map[string]ExecFunc),
		loaded:   make(map[string]*LoadedCapability),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterBuiltin installs a compile-time implementation for a
// RuntimeBuiltin manifest. The manifest on disk remains the source of truth
// for the contract; this only provides the executable unit.
func (r *Registry) RegisterBuiltin(id string, fn ExecFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtins[id] = fn
}

// Discover recursively scans the root for capability manifests. A manifest
// that fails validation rejects only that candidate: the scan continues and
// nothing partially registers. Paths under a "versions" segment are skipped.
func (r *Registry) Discover(ctx context.Context) error {
	info, err := os.Stat(r.root)
	if err != nil {
		return &errors.ConfigError{Key: "capability_root", Reason: "cannot read capability root", Cause: err}
	}
	if !info.IsDir() {
		return &errors.ConfigError{Key: "capability_root", Reason: fmt.Sprintf("%s is not a directory", r.root)}
	}

	count := 0
	walkErr := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.logger.Warn("skipping unreadable path during discovery", "path", path, "error", err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == VersionsSegment {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != ManifestFileName {
			return nil
		}
		if r.register(path) {
			count++
		}
		return nil
	})
	if walkErr != nil {
		return walkErr
	}

	r.logger.Info("capability discovery completed", "root", r.root, "registered", count)
	return nil
}

// register validates and registers a single manifest candidate. Returns true
// when the candidate was accepted.
func (r *Registry) register(manifestPath string) bool {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		r.logger.Warn("cannot read manifest", "path", manifestPath, "error", err)
		return false
	}

	manifest, result := ParseManifest(data, r.validator)
	if !result.Valid {
		r.logger.Warn("rejecting capability manifest",
			"path", manifestPath,
			"reasons", strings.Join(result.Reasons, "; "),
		)
		return false
	}

	dir, err := filepath.Abs(filepath.Dir(manifestPath))
	if err != nil {
		r.logger.Warn("cannot resolve package directory", "path", manifestPath, "error", err)
		return false
	}

	reg := &Registration{Manifest: manifest, Dir: dir}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byExact[manifest.Ref()]; exists {
		r.logger.Warn("duplicate capability registration ignored", "ref", manifest.Ref(), "dir", dir)
		return false
	}
	r.byExact[manifest.Ref()] = reg
	// bare-id lookups resolve to the most recently discovered registration
	r.latest[manifest.ID] = reg
	r.versions[manifest.ID] = append(r.versions[manifest.ID], manifest.Version)

	r.logger.Debug("registered capability",
		"ref", manifest.Ref(),
		"category", manifest.Category,
		"runtime", string(manifest.Runtime),
	)
	return true
}

// List returns every registration, one per exact "id@version".
func (r *Registry) List() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Registration, 0, len(r.byExact))
	for _, reg := range r.byExact {
		out = append(out, reg)
	}
	return out
}

// Lookup resolves a reference to its registration without loading the
// implementation. Resolution rules match Resolve.
func (r *Registry) Lookup(ref string) (*Registration, error) {
	reg, err := r.find(ref)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Resolve resolves a capability reference to a loaded capability.
//
// A bare "id" resolves to the latest-discovered registration. "id@version"
// requires an exact version match: range syntax such as "^1.0" is accepted
// lexically but never resolved as a range, so it fails with a VersionError.
// The implementation is loaded on first use and cached for the registry's
// lifetime.
func (r *Registry) Resolve(ref string) (*LoadedCapability, error) {
	reg, err := r.find(ref)
	if err != nil {
		return nil, err
	}
	return r.load(reg)
}

func (r *Registry) find(ref string) (*Registration, error) {
	id, version, err := ParseReference(ref)
	if err != nil {
		return nil, &errors.NotFoundError{Resource: "capability", ID: ref}
	}

	r.mu.RLock()
	var reg *Registration
	if version == "" {
		reg = r.latest[id]
	} else {
		reg = r.byExact[id+"@"+version]
	}
	known := r.versions[id]
	r.mu.RUnlock()

	if reg == nil {
		if version != "" && len(known) > 0 {
			return nil, &errors.VersionError{ID: id, Requested: version, Available: append([]string(nil), known...)}
		}
		return nil, &errors.NotFoundError{Resource: "capability", ID: ref}
	}
	return reg, nil
}

// load returns the cached executable for a registration, loading it through
// the security gates on first use.
func (r *Registry) load(reg *Registration) (*LoadedCapability, error) {
	key := reg.Manifest.Ref()

	r.mu.RLock()
	cached := r.loaded[key]
	r.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	exec, err := r.loadExec(reg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// a concurrent loader may have won the race; keep the first entry so
	// repeated resolution always yields the same implementation
	if existing := r.loaded[key]; existing != nil {
		return existing, nil
	}
	loadedCap := &LoadedCapability{Manifest: reg.Manifest, Dir: reg.Dir, exec: exec}
	r.loaded[key] = loadedCap
	return loadedCap, nil
}

func (r *Registry) loadExec(reg *Registration) (ExecFunc, error) {
	manifest := reg.Manifest

	if manifest.Runtime == RuntimeBuiltin {
		r.mu.RLock()
		fn := r.builtins[manifest.ID]
		r.mu.RUnlock()
		if fn == nil {
			return nil, &RegistryError{
				Capability: manifest.Ref(),
				Op:         "load",
				Message:    "no builtin implementation registered",
			}
		}
		return fn, nil
	}

	implPath := filepath.Join(reg.Dir, manifest.Implementation)

	// gate (a): path containment, including symlink targets
	resolved, err := r.checkContainment(reg.Dir, implPath)
	if err != nil {
		return nil, err
	}

	// gate (b): content integrity against the declared digest
	if err := r.checkDigest(manifest, resolved); err != nil {
		return nil, err
	}

	exec, err := r.loader.Load(resolved)
	if err != nil {
		return nil, &RegistryError{
			Capability: manifest.Ref(),
			Op:         "load",
			Message:    "implementation failed to load",
			Cause:      err,
		}
	}
	return exec, nil
}

// checkContainment verifies the implementation file (and, for symlinks, its
// resolved target) is a descendant of the package directory. This defends
// against path traversal in the manifest and malicious symlinks in the
// package.
func (r *Registry) checkContainment(pkgDir, implPath string) (string, error) {
	realDir, err := filepath.EvalSymlinks(pkgDir)
	if err != nil {
		return "", &errors.SecurityError{
			Check:   "path_containment",
			Path:    pkgDir,
			Message: fmt.Sprintf("cannot resolve package directory: %v", err),
		}
	}
	abs, err := filepath.Abs(implPath)
	if err != nil {
		return "", &errors.SecurityError{
			Check:   "path_containment",
			Path:    implPath,
			Message: fmt.Sprintf("cannot resolve implementation path: %v", err),
		}
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", &errors.SecurityError{
			Check:   "path_containment",
			Path:    implPath,
			Message: fmt.Sprintf("cannot resolve implementation file: %v", err),
		}
	}
	if !isWithin(realDir, real) {
		return "", &errors.SecurityError{
			Check:   "path_containment",
			Path:    implPath,
			Message: fmt.Sprintf("implementation resolves outside its package directory (%s)", real),
		}
	}
	return real, nil
}

// checkDigest recomputes the implementation digest when the manifest
// declares one. Absence of a declared digest is a soft trust gap: logged,
// not refused.
func (r *Registry) checkDigest(manifest *Manifest, implPath string) error {
	if manifest.ImplHash == "" {
		r.logger.Warn("capability declares no implementation digest; integrity is unverified",
			"ref", manifest.Ref(),
		)
		return nil
	}
	data, err := os.ReadFile(implPath)
	if err != nil {
		return &errors.SecurityError{
			Check:   "content_hash",
			Path:    implPath,
			Message: fmt.Sprintf("cannot read implementation for digest check: %v", err),
		}
	}
	sum := sha256.Sum256(data)
	actual := hex.EncodeToString(sum[:])
	if !strings.EqualFold(actual, manifest.ImplHash) {
		return &errors.SecurityError{
			Check:   "content_hash",
			Path:    implPath,
			Message: fmt.Sprintf("implementation digest %s does not match declared %s", actual, strings.ToLower(manifest.ImplHash)),
		}
	}
	return nil
}

// isWithin reports whether path is dir or a descendant of dir.
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
