package static

import (
	"go/token"
	"go/types"
	"path/filepath"
	"testing"

	"golang.org/x/tools/go/ssa"

	"github.com/aardwolf-sfl/aardwolf/internal/access"
	"github.com/aardwolf-sfl/aardwolf/internal/repo"
)

type fakeInstr struct {
	ssa.Jump
	name string
}

func (f *fakeInstr) String() string                           { return f.name }
func (f *fakeInstr) Parent() *ssa.Function                    { return nil }
func (f *fakeInstr) Block() *ssa.BasicBlock                   { return nil }
func (f *fakeInstr) Pos() token.Pos                           { return token.NoPos }
func (f *fakeInstr) Operands(rands []*ssa.Value) []*ssa.Value { return rands }

type fakeValue struct{ name string }

func (f *fakeValue) Name() string                  { return f.name }
func (f *fakeValue) String() string                { return f.name }
func (f *fakeValue) Type() types.Type              { return types.Typ[types.Int] }
func (f *fakeValue) Pos() token.Pos                { return token.NoPos }
func (f *fakeValue) Parent() *ssa.Function         { return nil }
func (f *fakeValue) Referrers() *[]ssa.Instruction { return nil }

func buildSampleRepo() *repo.Repository {
	r := repo.New()
	fn := &ssa.Function{}

	x := &fakeValue{name: "x"}
	y := &fakeValue{name: "y"}
	idx := &fakeValue{name: "i"}

	a := &repo.Statement{
		Instr: &fakeInstr{name: "a"},
		Loc:   repo.Location{File: "/tmp/sample.go", BeginLine: 1, BeginCol: 1, EndLine: 1, EndCol: 5},
		Out:   access.NewScalar(x),
		In:    []*access.Access{access.NewArrayLike(access.NewScalar(y), []*access.Access{access.NewScalar(idx)})},
		Flags: repo.Flags{IsArg: true},
	}
	b := &repo.Statement{
		Instr: &fakeInstr{name: "b"},
		Loc:   repo.Location{File: "/tmp/sample.go", BeginLine: 2, BeginCol: 1, EndLine: 2, EndCol: 5},
		Flags: repo.Flags{IsRet: true, IsCall: true},
	}

	r.Register(fn, a)
	r.Register(fn, b)
	r.AddSuccessor(a.Instr, b.Instr)

	return r
}

func TestWriteThenReadRoundTripsStatementsAndSuccessors(t *testing.T) {
	r := buildSampleRepo()
	dir := t.TempDir()

	path, err := Write(r, dir, "sample")
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "sample.aard") {
		t.Fatalf("unexpected path %q", path)
	}

	art, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(art.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(art.Functions))
	}
	stmts := art.Functions[0].Statements
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}

	first := stmts[0]
	if first.ID.Stmt != 1 {
		t.Fatalf("expected first statement id 1, got %d", first.ID.Stmt)
	}
	if len(first.Successors) != 1 || first.Successors[0].Stmt != 2 {
		t.Fatalf("expected first statement to succeed into stmt 2, got %v", first.Successors)
	}
	if !first.Flags.IsArg {
		t.Fatal("expected IsArg flag to round-trip")
	}
	if first.Out == nil || first.Out.Kind != access.Scalar {
		t.Fatalf("expected scalar out access, got %v", first.Out)
	}
	if len(first.In) != 1 || first.In[0].Kind != access.ArrayLike {
		t.Fatalf("expected array-like in access, got %v", first.In)
	}
	if len(first.In[0].Indices) != 1 {
		t.Fatalf("expected 1 index, got %d", len(first.In[0].Indices))
	}

	second := stmts[1]
	if !second.Flags.IsRet || !second.Flags.IsCall {
		t.Fatal("expected IsRet and IsCall flags to round-trip")
	}
	if second.Out != nil {
		t.Fatal("expected no out access on second statement")
	}

	if art.Files[first.ID.File] != "/tmp/sample.go" {
		t.Fatalf("expected filename to round-trip, got %q", art.Files[first.ID.File])
	}
}

func TestWriteProducesRecognizableHeader(t *testing.T) {
	r := buildSampleRepo()
	dir := t.TempDir()

	path, err := Write(r, dir, "hdr")
	if err != nil {
		t.Fatal(err)
	}

	art, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(art.Functions) == 0 {
		t.Fatal("expected at least one function decoded")
	}
}
