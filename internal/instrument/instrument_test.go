package instrument

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/aardwolf-sfl/aardwolf/internal/detect"
	"github.com/aardwolf-sfl/aardwolf/internal/repo"
)

// t.X is a field store through a pointer parameter, so Go's SSA builder
// cannot lift it to register form — it stays a genuine *ssa.Store, which is
// what this test needs to exercise the "after" data call (a plain local var
// here would be lifted to a register and produce no Store statement at all).
const sampleSrc = `package p

type T struct{ X int }

func F(t *T, a int) int {
	t.X = a
	return t.X
}
`

func writeSample(t *testing.T) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.go")
	if err := os.WriteFile(path, []byte(sampleSrc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func buildRepoFromFile(t *testing.T, path string) *repo.Repository {
	src, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		t.Fatal(err)
	}
	pkg := types.NewPackage("p", "p")
	tc := &types.Config{Importer: importer.Default()}
	ssaPkg, _, err := ssautil.BuildPackage(tc, fset, pkg, []*ast.File{f}, ssa.GlobalDebug|ssa.SanityCheckFunctions)
	if err != nil {
		t.Fatal(err)
	}

	r := repo.New()
	fn := ssaPkg.Members["F"].(*ssa.Function)
	detect.Function(r, fn)
	return r
}

func TestApplyInjectsMarkerAndDataCallsAroundTheAssignment(t *testing.T) {
	path := writeSample(t)
	r := buildRepoFromFile(t, path)

	rewritten, err := Apply(r, RuntimeImportPath)
	if err != nil {
		t.Fatal(err)
	}
	out, ok := rewritten[path]
	if !ok {
		t.Fatalf("expected %s to be rewritten", path)
	}

	src := string(out)
	if !strings.Contains(src, RuntimeImportPath) {
		t.Fatal("expected rewritten source to import the runtime package")
	}
	if !strings.Contains(src, "aardwolfrt.WriteStatement(") {
		t.Fatal("expected a statement marker call")
	}
	if !strings.Contains(src, "aardwolfrt.WriteDataI") {
		t.Fatalf("expected an integer data call, got:\n%s", src)
	}

	// The rewritten source must still parse.
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, path, out, parser.ParseComments); err != nil {
		t.Fatalf("rewritten source does not parse: %v\n%s", err, src)
	}
}

func TestApplySkipsFilesWithNoRegisteredStatements(t *testing.T) {
	r := repo.New()
	out, err := Apply(r, RuntimeImportPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no rewritten files, got %d", len(out))
	}
}

func TestDispatchKindMapsBasicTypes(t *testing.T) {
	cases := []struct {
		kind types.BasicKind
		want string
	}{
		{types.Int32, "I32"},
		{types.Uint8, "I8"},
		{types.Float64, "F64"},
		{types.Bool, "Bool"},
		{types.String, "Unsupported"},
	}
	for _, c := range cases {
		got := dispatchKind(types.Typ[c.kind])
		if got != c.want {
			t.Errorf("dispatchKind(%v) = %q, want %q", c.kind, got, c.want)
		}
	}
}
