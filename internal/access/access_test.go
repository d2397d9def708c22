package access

import (
	"go/token"
	"go/types"
	"testing"

	"golang.org/x/tools/go/ssa"
)

// fakeValue is a minimal ssa.Value double used to exercise the Access
// algebra without building a real SSA program.
type fakeValue struct {
	name string
}

func (f *fakeValue) Name() string                  { return f.name }
func (f *fakeValue) String() string                { return f.name }
func (f *fakeValue) Type() types.Type              { return types.Typ[types.Int] }
func (f *fakeValue) Pos() token.Pos                { return token.NoPos }
func (f *fakeValue) Parent() *ssa.Function         { return nil }
func (f *fakeValue) Referrers() *[]ssa.Instruction { return nil }

func TestScalarEqualityByHandleIdentity(t *testing.T) {
	x := &fakeValue{name: "x"}
	y := &fakeValue{name: "x"} // same name, different handle

	if !NewScalar(x).Equal(NewScalar(x)) {
		t.Fatal("expected same handle to be equal")
	}
	if NewScalar(x).Equal(NewScalar(y)) {
		t.Fatal("expected distinct handles to be unequal despite equal names")
	}
}

func TestStructuralEquality(t *testing.T) {
	p := NewScalar(&fakeValue{name: "p"})
	bar := NewScalar(&fakeValue{name: "bar"})
	baz := NewScalar(&fakeValue{name: "baz"})

	a := NewStructural(p, bar)
	b := NewStructural(p, bar)
	c := NewStructural(p, baz)

	if !a.Equal(b) {
		t.Fatal("expected structurally identical accesses to be equal")
	}
	if a.Equal(c) {
		t.Fatal("expected different field accessors to be unequal")
	}
	if a.Hash() != b.Hash() {
		t.Fatal("expected equal accesses to hash the same")
	}
}

func TestArrayLikeEmptyIndices(t *testing.T) {
	base := NewScalar(&fakeValue{name: "a"})
	deref := NewArrayLike(base, nil)

	if deref.Kind() != ArrayLike {
		t.Fatalf("expected ArrayLike, got %s", deref.Kind())
	}
	if len(deref.Accessors()) != 0 {
		t.Fatalf("expected no indices, got %d", len(deref.Accessors()))
	}
	if deref.RootValue() != base.Value() {
		t.Fatal("expected root value to be the scalar base")
	}
}

func TestRootValueUnwrapsNestedAccess(t *testing.T) {
	root := &fakeValue{name: "root"}
	idx := NewScalar(&fakeValue{name: "i"})
	arr := NewArrayLike(NewScalar(root), []*Access{idx})
	field := NewStructural(arr, NewScalar(&fakeValue{name: "f"}))

	if field.RootValue() != root {
		t.Fatal("expected RootValue to unwrap through ArrayLike and Structural layers")
	}
}

func TestArrayLikeIndicesOrderMatters(t *testing.T) {
	base := NewScalar(&fakeValue{name: "a"})
	i := NewScalar(&fakeValue{name: "i"})
	j := NewScalar(&fakeValue{name: "j"})

	ij := NewArrayLike(base, []*Access{i, j})
	ji := NewArrayLike(base, []*Access{j, i})

	if ij.Equal(ji) {
		t.Fatal("expected index order to matter for equality")
	}
}
