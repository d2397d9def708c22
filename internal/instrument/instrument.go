// Package instrument implements the dynamic instrumenter (spec §4.5): it
// rewrites the Go source files backing a repository's registered
// statements so that, once compiled, the program calls into package
// runtime's trace ABI as each statement executes.
//
// Go's SSA form (golang.org/x/tools/go/ssa) has no code-generation path
// back to an executable, so — unlike the LLVM IR this design is modeled
// on — instrumentation happens at the source (AST) level, the same way
// Go's own `go test -cover` and third-party tracers (e.g. New Relic's
// source-rewriting agent) inject calls: by locating the statement that
// produced each registered instruction and splicing calls around it.
package instrument

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"go/types"
	"os"
	"sort"
	"strconv"

	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/go/ssa"

	"github.com/aardwolf-sfl/aardwolf/internal/repo"
)

// RuntimeImportPath is the package instrumented source files are rewritten
// to call into. Callers that build test binaries with tracing disabled
// instead pass RuntimeNoopImportPath (spec §4.5 "no-op variant").
const RuntimeImportPath = "github.com/aardwolf-sfl/aardwolf/runtime"

// RuntimeNoopImportPath is the no-op twin of RuntimeImportPath (spec §4.5):
// passing it to Apply yields the same call sites under the same alias, and
// only the rewritten import line differs.
const RuntimeNoopImportPath = "github.com/aardwolf-sfl/aardwolf/runtime/noop"

const runtimeAlias = "aardwolfrt"

// unit is one registered statement's instrumentation, reduced to what the
// source rewriter needs: its marker id and, if it has a typed output, the
// runtime write function's suffix (spec §4.5 "type dispatch").
type unit struct {
	id         repo.ID
	dataSuffix string // "" if the statement has no typed output
	isStore    bool
}

// Apply rewrites every source file backing r's registered statements and
// returns the rewritten source, keyed by the original file path. Files
// with no registered statements are not included. The caller is
// responsible for writing the result to disk (or a build overlay).
// importPath is RuntimeImportPath or RuntimeNoopImportPath, selecting which
// ABI implementation the rewritten files call into.
func Apply(r *repo.Repository, importPath string) (map[string][]byte, error) {
	byFile := groupByFile(r)

	out := make(map[string][]byte, len(byFile))
	for path, units := range byFile {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("instrument: read %s: %w", path, err)
		}
		rewritten, err := rewriteFile(path, src, units, importPath)
		if err != nil {
			return nil, fmt.Errorf("instrument: rewrite %s: %w", path, err)
		}
		out[path] = rewritten
	}
	return out, nil
}

func groupByFile(r *repo.Repository) map[string]map[int][]unit {
	byFile := make(map[string]map[int][]unit)

	for _, fn := range r.Functions() {
		for _, instr := range r.FunctionInstructions(fn) {
			stmt, ok := r.Statement(instr)
			if !ok {
				continue
			}
			id, _ := r.StatementID(instr)

			u := unit{id: id}
			if suffix, ok := outSuffix(stmt.Instr); ok {
				u.dataSuffix = suffix
				_, u.isStore = stmt.Instr.(*ssa.Store)
			}

			byLine, ok := byFile[stmt.Loc.File]
			if !ok {
				byLine = make(map[int][]unit)
				byFile[stmt.Loc.File] = byLine
			}
			byLine[stmt.Loc.BeginLine] = append(byLine[stmt.Loc.BeginLine], u)
		}
	}
	return byFile
}

// outSuffix reports the runtime write function suffix for instr's typed
// output, re-deriving it from the instruction itself (go/types.Type)
// rather than from the repository's Access model, which only describes
// *where* a value lives, not its concrete Go type.
func outSuffix(instr ssa.Instruction) (string, bool) {
	switch v := instr.(type) {
	case *ssa.Store:
		return dispatchKind(v.Val.Type()), true
	case *ssa.Call:
		sig := v.Common().Signature()
		if sig == nil || sig.Results().Len() != 1 {
			return "", false
		}
		return dispatchKind(v.Type()), true
	default:
		return "", false
	}
}

func dispatchKind(t types.Type) string {
	basic, ok := t.Underlying().(*types.Basic)
	if !ok {
		return "Unsupported"
	}
	switch basic.Kind() {
	case types.Int8, types.Uint8:
		return "I8"
	case types.Int16, types.Uint16:
		return "I16"
	case types.Int32, types.Uint32:
		return "I32"
	case types.Int64, types.Uint64, types.Int, types.Uint:
		return "I64"
	case types.Float32:
		return "F32"
	case types.Float64:
		return "F64"
	case types.Bool:
		return "Bool"
	default:
		return "Unsupported"
	}
}

func rewriteFile(path string, src []byte, byLine map[int][]unit, importPath string) ([]byte, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	tmpSeq := 0
	matched := make(map[int]bool, len(byLine))

	astutil.Apply(file, func(c *astutil.Cursor) bool {
		stmt, ok := c.Node().(ast.Stmt)
		if !ok {
			return true
		}
		// Calls can only be spliced around statements held in a list; a
		// statement in a single-node field (an else-if's IfStmt, a body
		// block) is passed over, and its line is reported as unmatched.
		if c.Index() < 0 {
			return true
		}
		line := fset.Position(stmt.Pos()).Line
		units, ok := byLine[line]
		if !ok || matched[line] {
			return true
		}
		matched[line] = true

		for _, u := range units {
			c.InsertBefore(markerCall(u.id))
		}

		rep := representative(units)
		if rep == nil {
			return true
		}

		if dataStmt, replacement := dataCall(*rep, stmt, &tmpSeq); dataStmt != nil {
			if replacement != nil {
				c.Replace(replacement)
			}
			c.InsertAfter(dataStmt)
		}
		return true
	}, nil)

	for _, line := range unmatchedLines(byLine, matched) {
		log.WithFields(log.Fields{"file": path, "line": line}).
			Warn("instrument: no matching statement found for registered line")
	}

	astutil.AddNamedImport(fset, file, runtimeAlias, importPath)

	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, file); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmatchedLines(byLine map[int][]unit, matched map[int]bool) []int {
	var missing []int
	for line := range byLine {
		if !matched[line] {
			missing = append(missing, line)
		}
	}
	sort.Ints(missing)
	return missing
}

// representative picks which of a line's registered statements gets the
// "after" data call: a store's destination is always safe to re-read, so
// it wins over a call's result, which requires a name to read back from
// (spec §9 — a documented approximation where Go's per-statement SSA
// lowering produces more instructions than the one source line that
// spawned them).
func representative(units []unit) *unit {
	var fallback *unit
	for i := range units {
		if units[i].dataSuffix == "" {
			continue
		}
		if units[i].isStore {
			return &units[i]
		}
		if fallback == nil {
			fallback = &units[i]
		}
	}
	return fallback
}

// dataCall builds the "after" data-write statement for stmt, and, when
// stmt must be rewritten to capture a value with no name of its own (a
// bare call statement with a discarded result), the replacement statement
// to substitute for it.
func dataCall(u unit, stmt ast.Stmt, tmpSeq *int) (ast.Stmt, ast.Stmt) {
	if u.dataSuffix == "Unsupported" {
		return callStmt("WriteDataUnsupported"), nil
	}

	// The value is converted to the write function's parameter type (int to
	// int64, uint8 to int8, ...), since Go performs no implicit conversion.
	paramType := map[string]string{
		"I8": "int8", "I16": "int16", "I32": "int32", "I64": "int64",
		"F32": "float32", "F64": "float64", "Bool": "bool",
	}[u.dataSuffix]
	convert := func(e ast.Expr) ast.Expr {
		return &ast.CallExpr{Fun: ast.NewIdent(paramType), Args: []ast.Expr{e}}
	}

	switch s := stmt.(type) {
	case *ast.AssignStmt:
		if len(s.Lhs) != 1 || len(s.Rhs) != 1 {
			return nil, nil
		}
		if ident, ok := s.Lhs[0].(*ast.Ident); ok && ident.Name == "_" {
			return nil, nil
		}
		return callStmt("WriteData"+u.dataSuffix, convert(s.Lhs[0])), nil

	case *ast.ExprStmt:
		if _, ok := s.X.(*ast.CallExpr); !ok {
			return nil, nil
		}
		tmp := ast.NewIdent(fmt.Sprintf("__aardwolf_tmp%d", *tmpSeq))
		*tmpSeq++
		assign := &ast.AssignStmt{
			Lhs: []ast.Expr{tmp},
			Tok: token.DEFINE,
			Rhs: []ast.Expr{s.X},
		}
		return callStmt("WriteData"+u.dataSuffix, convert(tmp)), assign

	default:
		return nil, nil
	}
}

func markerCall(id repo.ID) ast.Stmt {
	return callStmt("WriteStatement", uintLit(uint64(id.File)), uintLit(uint64(id.Stmt)))
}

func callStmt(fn string, args ...ast.Expr) ast.Stmt {
	return &ast.ExprStmt{X: &ast.CallExpr{
		Fun:  &ast.SelectorExpr{X: ast.NewIdent(runtimeAlias), Sel: ast.NewIdent(fn)},
		Args: args,
	}}
}

func uintLit(v uint64) ast.Expr {
	return &ast.BasicLit{Kind: token.INT, Value: strconv.FormatUint(v, 10)}
}
