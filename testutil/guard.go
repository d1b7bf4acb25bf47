// Package testutil provides reusable testing helpers for enforcing architectural
// and API boundary invariants across the repository.
package testutil

import (
	"fmt"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// AssertNoTransitiveDependency loads the packages matching pattern (e.g. ./... or .)
// and fails the test if any transitive dependency satisfies the forbidden predicate.
// The reason string is appended to the failure for clarity.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	deps, err := loadDeps(pattern)
	if err != nil {
		t.Fatalf("load %s: %v", pattern, err)
	}
	failIfViolations(t, "forbidden transitive dependency", reason, matching(deps, forbidden))
}

// AssertNoDirectImports scans all non-test .go files in dir (typically "." from within the package)
// and fails if any import path satisfies the forbidden predicate. It does not follow build tags.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	failIfViolations(t, "forbidden direct imports", reason, viols)
}

// AssertNoExportedNames fails if any exported package-level name or exported
// method of a named type in the packages matching pattern satisfies forbidden.
func AssertNoExportedNames(t testing.TB, pattern string, forbidden func(name string) bool, reason string) {
	t.Helper()
	names, err := exportedNames(pattern)
	if err != nil {
		t.Fatalf("load %s: %v", pattern, err)
	}
	failIfViolations(t, "forbidden exported names", reason, matching(names, func(qualified string) bool {
		return forbidden(qualified[strings.LastIndex(qualified, ".")+1:])
	}))
}

// PortalImportForbidden matches the portal package.
func PortalImportForbidden(path string) bool {
	return strings.HasSuffix(path, "/pkg/portal") || strings.Contains(path, "/pkg/portal@")
}

// InternalImportForbidden matches the module's internal packages.
func InternalImportForbidden(path string) bool {
	return path == "bizcore/internal" || strings.HasPrefix(path, "bizcore/internal/")
}

// StateTransitionExported matches exported names of the object state
// transitions, which only the portal runtime may drive.
func StateTransitionExported(name string) bool {
	switch name {
	case "MarkNew", "MarkOld", "MarkDeleted", "MarkClean", "MarkDirty", "MarkAsChild":
		return true
	}
	return false
}

const loadMode = packages.NeedName | packages.NeedImports | packages.NeedDeps

func loadDeps(pattern string) ([]string, error) {
	pkgs, err := packages.Load(&packages.Config{Mode: loadMode}, pattern)
	if err != nil {
		return nil, err
	}
	if err := packageErrors(pkgs); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		seen[p.PkgPath] = true
	})
	return sortedKeys(seen), nil
}

func exportedNames(pattern string) ([]string, error) {
	pkgs, err := packages.Load(&packages.Config{Mode: packages.NeedName | packages.NeedTypes}, pattern)
	if err != nil {
		return nil, err
	}
	if err := packageErrors(pkgs); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, p := range pkgs {
		scope := p.Types.Scope()
		for _, name := range scope.Names() {
			obj := scope.Lookup(name)
			if obj.Exported() {
				seen[p.PkgPath+"."+name] = true
			}
			tn, ok := obj.(*types.TypeName)
			if !ok {
				continue
			}
			named, ok := tn.Type().(*types.Named)
			if !ok {
				continue
			}
			for i := 0; i < named.NumMethods(); i++ {
				if m := named.Method(i); m.Exported() {
					seen[p.PkgPath+"."+name+"."+m.Name()] = true
				}
			}
		}
	}
	return sortedKeys(seen), nil
}

func packageErrors(pkgs []*packages.Package) error {
	var msgs []string
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			msgs = append(msgs, e.Error())
		}
	})
	if len(msgs) > 0 {
		return fmt.Errorf("package errors:\n%s", strings.Join(msgs, "\n"))
	}
	return nil
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		fileAst, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range fileAst.Imports {
			ip := strings.Trim(imp.Path.Value, "\"")
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

func matching(items []string, pred func(string) bool) []string {
	var out []string
	for _, it := range items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, what, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("%s detected (%s):\n%s", what, reason, strings.Join(viols, "\n"))
	}
}
