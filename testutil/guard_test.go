package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPortalImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"bizcore/pkg/portal", true},
		{"example.com/mod/pkg/portal@v1", true},
		{"bizcore/pkg/portalx", false},
		{"bizcore/pkg/domain", false},
	}
	for _, c := range cases {
		if got := PortalImportForbidden(c.in); got != c.want {
			t.Fatalf("PortalImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestInternalImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"bizcore/internal/router", true},
		{"bizcore/pkg/portal", false},
		{"internal/abi", false},
		{"golang.org/x/tools/internal/event", false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.want {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestStateTransitionExported(t *testing.T) {
	for _, name := range []string{"MarkNew", "MarkOld", "MarkDeleted", "MarkClean", "MarkDirty", "MarkAsChild"} {
		if !StateTransitionExported(name) {
			t.Errorf("expected %s to be flagged", name)
		}
	}
	for _, name := range []string{"MarkBusy", "markNew", "Delete", "IsNew"} {
		if StateTransitionExported(name) {
			t.Errorf("did not expect %s to be flagged", name)
		}
	}
}

func writeFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package tmp\nimport (\n\t\"fmt\"\n\t\"bizcore/internal/router\"\n)\nvar _ = fmt.Sprint\n")
	writeFile(t, dir, "a_test.go", "package tmp\nimport \"bizcore/internal/transport\"\n")
	writeFile(t, dir, "notes.txt", "import \"bizcore/internal/dispatch\"")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(dir, "sub"), "b.go", "package sub\nimport \"bizcore/internal/archive\"\n")

	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "bizcore/internal/router (in a.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}
}

func TestDirectImportViolationsParseError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.go", "package tmp\nimport (\n")
	if _, err := directImportViolations(dir, InternalImportForbidden); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestAssertNoDirectImportsAllowsClean(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.go", "package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	AssertNoDirectImports(t, dir, InternalImportForbidden, "none")
}

func TestMatchingAndSortedKeys(t *testing.T) {
	got := sortedKeys(map[string]bool{"b": true, "a": true, "c": true})
	if strings.Join(got, ",") != "a,b,c" {
		t.Fatalf("unexpected order %v", got)
	}
	if m := matching(got, func(s string) bool { return s != "b" }); strings.Join(m, ",") != "a,c" {
		t.Fatalf("unexpected match %v", m)
	}
}

type recorder struct{ msg string }

func (r *recorder) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestFailIfViolations(t *testing.T) {
	r := &recorder{}
	failIfViolations(r, "forbidden direct imports", "reason", nil)
	if r.msg != "" {
		t.Fatalf("unexpected failure %q", r.msg)
	}
	failIfViolations(r, "forbidden direct imports", "reason", []string{"x", "y"})
	if r.msg != "forbidden direct imports detected (reason):\nx\ny" {
		t.Fatalf("unexpected message %q", r.msg)
	}
}

func TestAssertNoTransitiveDependencyOnSelf(t *testing.T) {
	AssertNoTransitiveDependency(t, ".", InternalImportForbidden, "testutil stays standalone")
}
