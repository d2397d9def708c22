// Package access implements the algebraic description of what a statement
// reads or writes (spec §3/§4.1): a Scalar is a bare IR value, Structural is
// field selection within a composite, and ArrayLike is a pointer/array
// subscript. The three variants share children by value, never by pointer
// identity, so equality and hashing are always structural.
package access

import (
	"fmt"
	"hash/fnv"
	"reflect"

	"golang.org/x/tools/go/ssa"
)

// Kind identifies which of the three Access variants a value holds.
type Kind int

const (
	Scalar Kind = iota
	Structural
	ArrayLike
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "Scalar"
	case Structural:
		return "Structural"
	case ArrayLike:
		return "ArrayLike"
	default:
		return "Unknown"
	}
}

// Access is a recursive, tagged-variant value describing a read/write
// target. The zero value is not valid; use the New* constructors.
type Access struct {
	kind    Kind
	value   ssa.Value // populated iff kind == Scalar
	base    *Access   // populated iff kind != Scalar
	field   *Access   // populated iff kind == Structural
	indices []*Access // populated iff kind == ArrayLike
}

// NewScalar wraps a bare IR value handle.
func NewScalar(v ssa.Value) *Access {
	return &Access{kind: Scalar, value: v}
}

// NewStructural builds a field selection within base. field is itself an
// Access, usually a Scalar of a constant field index.
func NewStructural(base, field *Access) *Access {
	return &Access{kind: Structural, base: base, field: field}
}

// NewArrayLike builds a pointer/array subscript of base. indices may be
// empty, representing a degenerate "array[0]" access (e.g. a raw pointer
// dereference where no index is known).
func NewArrayLike(base *Access, indices []*Access) *Access {
	return &Access{kind: ArrayLike, base: base, indices: indices}
}

// Kind reports which variant a holds.
func (a *Access) Kind() Kind { return a.kind }

// Value returns the wrapped IR value handle. Only valid for Scalar access.
func (a *Access) Value() ssa.Value {
	if a.kind != Scalar {
		panic("access: Value called on non-scalar Access")
	}
	return a.value
}

// Base returns the composite base of a Structural or ArrayLike access.
func (a *Access) Base() *Access {
	if a.kind == Scalar {
		panic("access: Base called on scalar Access")
	}
	return a.base
}

// Accessors returns the field (wrapped as a single-element slice) or the
// index sequence of a non-scalar access, in declaration order.
func (a *Access) Accessors() []*Access {
	switch a.kind {
	case Structural:
		return []*Access{a.field}
	case ArrayLike:
		return a.indices
	default:
		panic("access: Accessors called on scalar Access")
	}
}

// RootValue recursively unwraps base until it reaches the Scalar at the
// root of the access chain, per spec §3's invariant that the root base of
// any Access must be Scalar.
func (a *Access) RootValue() ssa.Value {
	for a.kind != Scalar {
		a = a.base
	}
	return a.value
}

// Equal reports whether a and b describe the same access: same variant and
// all components equal, with scalar values compared by handle identity.
func (a *Access) Equal(b *Access) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Scalar:
		return a.value == b.value
	case Structural:
		return a.base.Equal(b.base) && a.field.Equal(b.field)
	case ArrayLike:
		if !a.base.Equal(b.base) || len(a.indices) != len(b.indices) {
			return false
		}
		for i := range a.indices {
			if !a.indices[i].Equal(b.indices[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Hash returns a structural hash consistent with Equal: equal Accesses
// always hash the same.
func (a *Access) Hash() uint64 {
	h := fnv.New64a()
	a.writeHash(h)
	return h.Sum64()
}

func (a *Access) writeHash(h interface{ Write([]byte) (int, error) }) {
	fmt.Fprintf(h, "%d:", a.kind)
	switch a.kind {
	case Scalar:
		fmt.Fprintf(h, "%s", handleKey(a.value))
	case Structural:
		a.base.writeHash(h)
		a.field.writeHash(h)
	case ArrayLike:
		a.base.writeHash(h)
		fmt.Fprintf(h, "[%d]", len(a.indices))
		for _, idx := range a.indices {
			idx.writeHash(h)
		}
	}
}

// handleKey returns a stable textual identity for an ssa.Value handle.
// Every concrete ssa.Value implementation is a pointer type, so the
// underlying pointer is a sound, stable identity for hashing purposes.
func handleKey(v ssa.Value) string {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		return fmt.Sprintf("%d", rv.Pointer())
	}
	return fmt.Sprintf("%v", v)
}

// String renders a debug representation, useful in test failure messages
// and the trace dump tool.
func (a *Access) String() string {
	switch a.kind {
	case Scalar:
		return fmt.Sprintf("Scalar(%s)", a.value.Name())
	case Structural:
		return fmt.Sprintf("Structural(%s :: %s)", a.base, a.field)
	case ArrayLike:
		out := fmt.Sprintf("ArrayLike(%s :: [", a.base)
		for i, idx := range a.indices {
			if i > 0 {
				out += ", "
			}
			out += idx.String()
		}
		return out + "])"
	default:
		return "<invalid access>"
	}
}
