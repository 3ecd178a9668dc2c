// Package modules implements path resolution and result caching for the
// register VM's IMPORT and REQUIRE opcodes. It knows nothing about
// Values or Chunks — regvm supplies a compile/run callback and this
// package only resolves specifiers to source bytes and caches by the
// resolved absolute path, the way the teacher's pkg/modules separates
// resolution/registry concerns from compilation.
package modules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver resolves an import/require specifier to a resolved path and
// its source bytes. fromDir is the directory of the chunk that issued
// the import (the "script directory" spec.md §6 falls back to).
type Resolver interface {
	Resolve(specifier, fromDir string) (resolvedPath string, source []byte, err error)
}

// Extension is the canonical source file extension consulted by
// FileResolver per spec.md §6 step 1 ("if the path ends in the canonical
// file extension, use as-is; otherwise append it").
const Extension = ".phase"

// FileResolver resolves specifiers against the OS filesystem: current
// working directory first, then the importing script's directory,
// mirroring the teacher's FileSystemResolver two-base-directory search
// (pkg/modules/resolver_fs.go), trimmed of the TS/JS extension list down
// to this language's single canonical extension.
type FileResolver struct {
	// WorkingDir overrides os.Getwd() for tests; empty means use it.
	WorkingDir string
}

func (r *FileResolver) cwd() string {
	if r.WorkingDir != "" {
		return r.WorkingDir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func withExtension(path string) string {
	if strings.HasSuffix(path, Extension) {
		return path
	}
	return path + Extension
}

func (r *FileResolver) Resolve(specifier, fromDir string) (string, []byte, error) {
	candidate := withExtension(specifier)

	bases := []string{r.cwd()}
	if fromDir != "" {
		bases = append(bases, fromDir)
	}

	for _, base := range bases {
		p := candidate
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, candidate)
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(abs)
		if err == nil {
			return abs, data, nil
		}
	}
	return "", nil, fmt.Errorf("import/require: cannot find '%s'", specifier)
}

// MemoryResolver resolves specifiers from an in-memory table, used for
// tests and for hosts that embed scripts without a filesystem — grounded
// in the teacher's MemoryResolver (pkg/modules/resolver_memory.go).
type MemoryResolver struct {
	Sources map[string]string // resolved-path -> source
}

func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{Sources: make(map[string]string)}
}

func (r *MemoryResolver) Add(path, source string) {
	r.Sources[path] = source
}

func (r *MemoryResolver) Resolve(specifier, fromDir string) (string, []byte, error) {
	candidates := []string{specifier, withExtension(specifier)}
	if fromDir != "" {
		joined := filepath.Join(fromDir, specifier)
		candidates = append(candidates, joined, withExtension(joined))
	}
	for _, c := range candidates {
		if src, ok := r.Sources[c]; ok {
			return c, []byte(src), nil
		}
	}
	return "", nil, fmt.Errorf("import/require: cannot find '%s'", specifier)
}

// ChainResolver tries each resolver in order, returning the first success —
// the teacher composes resolvers by priority (pkg/modules/registry.go
// ModuleLoader.resolvers); a simple ordered chain captures the same idea
// without the priority-number bookkeeping this core doesn't need.
type ChainResolver []Resolver

func (c ChainResolver) Resolve(specifier, fromDir string) (string, []byte, error) {
	var lastErr error
	for _, r := range c {
		path, src, err := r.Resolve(specifier, fromDir)
		if err == nil {
			return path, src, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("import/require: cannot find '%s'", specifier)
	}
	return "", nil, lastErr
}
