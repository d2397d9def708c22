// Package detect implements the statement detector (spec §4.3): given an
// SSA-form function with debug locations, it decides which instructions
// are "statements", resolves each statement's read/write accesses by a
// backward data-flow walk, and reconstructs the statement-level successor
// graph across basic blocks. Detected statements are registered into an
// internal/repo.Repository, which C4 and C5a then consume read-only.
package detect

import (
	"go/constant"
	"go/token"
	"go/types"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/ssa"

	"github.com/aardwolf-sfl/aardwolf/internal/access"
	"github.com/aardwolf-sfl/aardwolf/internal/repo"
)

// Functions detects and registers statements for every function in fns,
// optionally in parallel: the repository serializes its own writes (spec
// §5 "implementations may parallelize over functions provided repository
// writes are serialized"), so Function bodies can run concurrently.
func Functions(r *repo.Repository, fns []*ssa.Function) error {
	var g errgroup.Group
	for _, fn := range fns {
		fn := fn
		if isSynthetic(fn) {
			continue
		}
		g.Go(func() error {
			Function(r, fn)
			return nil
		})
	}
	return g.Wait()
}

// isSynthetic mirrors the teacher's own exclusion check: functions without
// a source package (compiler-generated wrappers, bound methods, thunks)
// carry no meaningful debug locations.
func isSynthetic(fn *ssa.Function) bool {
	return fn.Pkg == nil || fn.Synthetic != ""
}

type blockBounds struct {
	first, last ssa.Instruction
}

// Function detects statements within fn, registers them, and wires the
// statement-level successor graph (spec §4.3 "Successor reconstruction").
// Bodyless functions (declarations only) are skipped and get no function
// token in the static artifact.
func Function(r *repo.Repository, fn *ssa.Function) {
	if isSynthetic(fn) || fn.Blocks == nil {
		return
	}
	r.RegisterFunction(fn)

	bounds := make(map[*ssa.BasicBlock]*blockBounds)

	for _, b := range fn.Blocks {
		var bb *blockBounds
		for _, instr := range b.Instrs {
			stmt, ok := buildStatement(fn, instr)
			if !ok {
				continue
			}
			r.Register(fn, stmt)

			if bb == nil {
				bb = &blockBounds{first: instr, last: instr}
				bounds[b] = bb
			} else {
				r.AddSuccessor(bb.last, instr)
				bb.last = instr
			}
		}
	}

	for _, b := range fn.Blocks {
		bb, ok := bounds[b]
		if !ok {
			continue
		}
		for _, pred := range nonEmptyPredecessors(b, bounds) {
			r.AddSuccessor(bounds[pred].last, bb.first)
		}
	}
}

// nonEmptyPredecessors walks b's predecessor blocks breadth-first,
// skipping (and recursing past) blocks with no statements, so empty
// blocks stay transparent in the statement-level CFG (spec §4.3).
func nonEmptyPredecessors(b *ssa.BasicBlock, bounds map[*ssa.BasicBlock]*blockBounds) []*ssa.BasicBlock {
	var out []*ssa.BasicBlock
	visited := make(map[*ssa.BasicBlock]bool)
	queue := append([]*ssa.BasicBlock{}, b.Preds...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if p == nil || visited[p] {
			continue
		}
		visited[p] = true
		if _, ok := bounds[p]; ok {
			out = append(out, p)
			continue
		}
		queue = append(queue, p.Preds...)
	}
	return out
}

// buildStatement classifies instr and, if it is statement-producing with a
// resolvable debug location, builds its repo.Statement (spec §4.3 "Per-
// instruction classification"). The LLVM-derived statement kinds this
// system is modeled on (Return, conditional Branch, Switch, Invoke, Store,
// Call) map onto Go SSA's actual instruction set as follows: Switch has no
// Go SSA equivalent (the compiler canonicalizes switches into chains of
// *ssa.If) and Invoke has no equivalent either (Go has no unwinding call
// form distinct from an ordinary call) — both kinds are consequently unused
// here; see DESIGN.md.
func buildStatement(fn *ssa.Function, instr ssa.Instruction) (*repo.Statement, bool) {
	switch v := instr.(type) {
	case *ssa.Return:
		loc, ok := location(fn, instr)
		if !ok {
			return nil, false
		}
		return &repo.Statement{
			Instr: instr,
			In:    findInputs(instr),
			Loc:   loc,
			Flags: repo.Flags{IsRet: true},
		}, true

	case *ssa.If:
		loc, ok := location(fn, instr)
		if !ok {
			return nil, false
		}
		return &repo.Statement{
			Instr: instr,
			In:    findInputs(instr),
			Loc:   loc,
		}, true

	case *ssa.Store:
		loc, ok := location(fn, instr)
		if !ok {
			return nil, false
		}
		out, _ := accessOf(v.Addr)
		in := findInputsFrom(v.Val)
		if out != nil && out.Kind() == access.ArrayLike {
			in = append(in, out.Accessors()...)
		}
		flags := repo.Flags{}
		if _, ok := v.Val.(*ssa.Parameter); ok {
			flags.IsArg = true
		}
		return &repo.Statement{
			Instr: instr,
			In:    in,
			Out:   out,
			Loc:   loc,
			Flags: flags,
		}, true

	case *ssa.Call:
		cc := v.Common()
		if _, ok := cc.Value.(*ssa.Builtin); ok {
			return nil, false
		}
		loc, ok := location(fn, instr)
		if !ok {
			return nil, false
		}
		var out *access.Access
		if sig := cc.Signature(); sig != nil && sig.Results().Len() > 0 {
			out = access.NewScalar(v)
		}
		return &repo.Statement{
			Instr: instr,
			In:    findInputs(instr),
			Out:   out,
			Loc:   loc,
			Flags: repo.Flags{IsCall: true},
		}, true

	default:
		return nil, false
	}
}

// findInputs seeds the backward use-discovery walk (spec §4.3 "Backward
// use discovery") from instr's own operands.
func findInputs(instr ssa.Instruction) []*access.Access {
	return walkInputs(operandsOf(instr))
}

// findInputsFrom seeds the same walk from a single value, used where the
// spec names a specific operand to start from (a Store's value operand, or
// a composite accessor's non-constant index).
func findInputsFrom(v ssa.Value) []*access.Access {
	return walkInputs([]ssa.Value{v})
}

func walkInputs(seeds []ssa.Value) []*access.Access {
	seen := make(map[ssa.Value]bool)
	var out []*access.Access

	queue := append([]ssa.Value{}, seeds...)
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		if v == nil || seen[v] {
			continue
		}
		seen[v] = true

		if acc, ok := accessOf(v); ok {
			out = append(out, acc)
			continue
		}

		if instr, ok := v.(ssa.Instruction); ok {
			queue = append(queue, operandsOf(instr)...)
		}
	}
	return out
}

func operandsOf(instr ssa.Instruction) []ssa.Value {
	var rands [16]*ssa.Value
	ops := instr.Operands(rands[:0])
	out := make([]ssa.Value, 0, len(ops))
	for _, op := range ops {
		if op != nil && *op != nil {
			out = append(out, *op)
		}
	}
	return out
}

// accessOf resolves a value to its Access, per spec §4.3 "Access
// resolution". It returns false for values that describe no meaningful
// read/write target (plain constants, parameters used by value, etc).
//
// The spec excludes "constant globals" from Scalar resolution (LLVM IR has
// addressable read-only globals for string/const literals); Go has no
// equivalent — compile-time constants are never addressable *ssa.Global
// values, only *ssa.Const, which this function already treats as a bare
// literal — so every *ssa.Global reaching here is a genuine package-level
// variable and always resolves to Scalar.
func accessOf(v ssa.Value) (*access.Access, bool) {
	switch t := v.(type) {
	case *ssa.Alloc:
		return access.NewScalar(v), true
	case *ssa.Call:
		return access.NewScalar(v), true
	case *ssa.Global:
		return access.NewScalar(v), true
	case *ssa.FieldAddr:
		base := baseOf(t.X)
		field := access.NewScalar(fieldIndexConst(t.X.Type(), t.Field))
		return access.NewStructural(base, field), true
	case *ssa.IndexAddr:
		base := baseOf(t.X)
		return access.NewArrayLike(base, indexAccessors(t.Index)), true
	case *ssa.UnOp:
		if t.Op != token.MUL {
			return nil, false
		}
		// The ArrayLike(base, nil) "anonymous dereference" rule applies only
		// when the loaded value itself is pointer-typed (a real pointer
		// read, spec's getValueAccess LI->getType()->isPointerTy() check).
		// Loading a non-pointer struct field or array element (p.baz as a
		// value, not p.baz's address) must fall through to false so the
		// backward walk continues into t.X and resolves through the
		// FieldAddr/IndexAddr there instead of double-wrapping it.
		if _, isPtr := t.Type().Underlying().(*types.Pointer); isPtr {
			return access.NewArrayLike(baseOf(t.X), nil), true
		}
		return nil, false
	default:
		return nil, false
	}
}

// fieldIndexKey identifies a struct field by its pointer-to-struct type and
// field index, the same pair LLVM's ConstantInt::get implicitly uniques on
// (type + value) in the original design this mirrors.
type fieldIndexKey struct {
	ptrType types.Type
	field   int
}

var (
	fieldConstMu    sync.Mutex
	fieldConstCache = make(map[fieldIndexKey]*ssa.Const)
)

// fieldIndexConst returns a stable *ssa.Const handle for a given struct
// field, reused across every FieldAddr referencing that field so the
// field's Scalar Access compares and hashes equal by handle identity
// everywhere it's used (spec §3) — Go SSA, unlike LLVM, does not intern
// *ssa.Const values itself, so accessOf must do it.
func fieldIndexConst(ptrType types.Type, field int) *ssa.Const {
	key := fieldIndexKey{ptrType: ptrType, field: field}

	fieldConstMu.Lock()
	defer fieldConstMu.Unlock()

	if c, ok := fieldConstCache[key]; ok {
		return c
	}
	c := &ssa.Const{Value: constant.MakeInt64(int64(field))}
	fieldConstCache[key] = c
	return c
}

// baseOf resolves the composite base of a FieldAddr/IndexAddr's pointer
// operand (spec §4.3's "compute base recursively").
func baseOf(x ssa.Value) *access.Access {
	switch x.(type) {
	case *ssa.FieldAddr, *ssa.IndexAddr:
		if acc, ok := accessOf(x); ok {
			return acc
		}
	case *ssa.Global:
		return access.NewScalar(x)
	}
	if roots := findInputsFrom(x); len(roots) > 0 {
		return roots[0]
	}
	return access.NewScalar(x)
}

// indexAccessors resolves an IndexAddr's index operand into the accessor
// list of an ArrayLike access (spec §4.3): a resolvable Access becomes the
// sole accessor, a constant index is dropped (array/slice offsets are not
// struct field literals and so carry no meaning here), and anything else
// contributes whatever dataflow roots findInputs can find.
func indexAccessors(idx ssa.Value) []*access.Access {
	if acc, ok := accessOf(idx); ok {
		return []*access.Access{acc}
	}
	if _, ok := idx.(*ssa.Const); ok {
		return nil
	}
	return findInputsFrom(idx)
}

// location resolves instr's debug location, with the formal-argument-store
// fallback from spec §4.3 ("Debug-location resolution"). A *ssa.If never
// carries a position of its own in Go SSA, so it takes the position of the
// *ssa.DebugRef that describes its condition within the same block.
func location(fn *ssa.Function, instr ssa.Instruction) (repo.Location, bool) {
	pos := instr.Pos()
	if pos == token.NoPos {
		if store, ok := instr.(*ssa.Store); ok {
			if p, ok := debugRefPos(fn, store.Addr); ok {
				pos = p
			}
		}
		if iff, ok := instr.(*ssa.If); ok && iff.Block() != nil {
			for _, bi := range iff.Block().Instrs {
				if dbg, ok := bi.(*ssa.DebugRef); ok && !dbg.IsAddr && dbg.X == iff.Cond && dbg.Expr != nil {
					pos = dbg.Expr.Pos()
				}
			}
		}
	}
	if pos == token.NoPos {
		log.WithField("instr", instr.String()).Debug("detect: unresolvable location, skipping")
		return repo.Location{}, false
	}

	p := fn.Prog.Fset.Position(pos)
	return repo.Location{
		File:      p.Filename,
		BeginLine: p.Line,
		BeginCol:  p.Column,
		EndLine:   p.Line,
		EndCol:    p.Column,
	}, true
}

// debugRefPos finds a *ssa.DebugRef attached to addr (the Go SSA analogue
// of LLVM's llvm.dbg.declare), used when a parameter-initializing store has
// no debug location of its own.
func debugRefPos(fn *ssa.Function, addr ssa.Value) (token.Pos, bool) {
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			dbg, ok := instr.(*ssa.DebugRef)
			if !ok || !dbg.IsAddr || dbg.X != addr {
				continue
			}
			if dbg.Expr != nil {
				return dbg.Expr.Pos(), true
			}
		}
	}
	return token.NoPos, false
}
