// Package repo implements the statement repository (spec §3/§4.2): the
// registry that assigns stable numeric ids to statements, values and files,
// and that indexes each function's statements and the statement-level
// successor graph. It is populated once by internal/detect and then read
// only by internal/static and internal/instrument (spec §3 "Lifecycle").
package repo

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/twmb/algoimpl/go/graph"
	"golang.org/x/tools/go/ssa"

	"github.com/aardwolf-sfl/aardwolf/internal/access"
	"github.com/aardwolf-sfl/aardwolf/internal/fileid"
)

// FileID identifies a source file. It is seeded from a platform-stable
// identity (internal/fileid), not a dense counter, so the same file gets
// the same id across separate runs over the same project (spec §4.2/§9).
type FileID uint64

// StmtID is dense within a single file, starting at 1 (spec §8 invariant 7).
type StmtID uint64

// ID is a statement's identity: the pair spec.md §9 standardizes the
// successor graph on, in place of the historical single-u64 shape.
type ID struct {
	File FileID
	Stmt StmtID
}

// Flags captures the three statement-kind bits spec §3 calls out.
type Flags struct {
	IsArg  bool
	IsRet  bool
	IsCall bool
}

// Location is a source span, 1-based, begin == end when the IR only
// supplies a point location (spec §3).
type Location struct {
	File      string
	BeginLine int
	BeginCol  int
	EndLine   int
	EndCol    int
}

// Statement is the analyzable unit produced by internal/detect and
// consumed by internal/static and internal/instrument (spec §3).
type Statement struct {
	Instr ssa.Instruction
	In    []*access.Access
	Out   *access.Access
	Loc   Location
	Flags Flags
}

// Repository is the C2 registry. It must be created per module, populated
// single-threaded-per-write (concurrent detection serializes through mu),
// and is read-only once internal/detect has finished (spec §3 Lifecycle,
// §5 concurrency).
type Repository struct {
	mu sync.Mutex

	instrToStmt map[ssa.Instruction]*Statement
	funcOrder   []*ssa.Function
	funcSeen    map[*ssa.Function]bool
	funcInstrs  map[*ssa.Function][]ssa.Instruction

	stmtIDs      map[ssa.Instruction]ID
	perFileCount map[FileID]StmtID
	fileNames    map[FileID]string

	valueIDs map[ssa.Value]uint64
	valueSeq uint64

	succGraph *graph.Graph
	instrNode map[ssa.Instruction]graph.Node
}

// New creates an empty repository.
func New() *Repository {
	return &Repository{
		instrToStmt:  make(map[ssa.Instruction]*Statement),
		funcSeen:     make(map[*ssa.Function]bool),
		funcInstrs:   make(map[*ssa.Function][]ssa.Instruction),
		stmtIDs:      make(map[ssa.Instruction]ID),
		perFileCount: make(map[FileID]StmtID),
		fileNames:    make(map[FileID]string),
		valueIDs:     make(map[ssa.Value]uint64),
		succGraph:    graph.New(graph.Directed),
		instrNode:    make(map[ssa.Instruction]graph.Node),
	}
}

// Register inserts stmt into the instr→stmt map, assigns it an ID (dense
// per file, first-seen order), assigns valueIds to its out/in root values,
// and appends its instruction to fn's ordered instruction list. Re-
// registering the same instruction returns the id already assigned
// (spec §8 invariant 5: register is monotonic).
func (r *Repository) Register(fn *ssa.Function, stmt *Statement) ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.stmtIDs[stmt.Instr]; ok {
		return id
	}

	file := FileID(fileid.Stable(stmt.Loc.File))
	if _, seen := r.fileNames[file]; !seen {
		r.fileNames[file] = stmt.Loc.File
	}
	r.perFileCount[file]++
	id := ID{File: file, Stmt: r.perFileCount[file]}

	r.stmtIDs[stmt.Instr] = id
	r.instrToStmt[stmt.Instr] = stmt

	if stmt.Out != nil {
		r.assignValueID(stmt.Out.RootValue())
	}
	for _, in := range stmt.In {
		r.assignValueID(in.RootValue())
	}

	r.registerFunctionLocked(fn)
	r.funcInstrs[fn] = append(r.funcInstrs[fn], stmt.Instr)

	node := r.succGraph.MakeNode()
	*node.Value = stmt.Instr
	r.instrNode[stmt.Instr] = node

	log.WithFields(log.Fields{"file": file, "stmt": id.Stmt}).Debug("registered statement")

	return id
}

// RegisterFunction records fn as seen even if its body yields no
// registered statements, so internal/static still emits a function token
// for it (spec §4.4 "skipping pure declarations" excludes bodyless
// functions, not functions whose body happened to detect zero statements).
func (r *Repository) RegisterFunction(fn *ssa.Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerFunctionLocked(fn)
}

func (r *Repository) registerFunctionLocked(fn *ssa.Function) {
	if r.funcSeen[fn] {
		return
	}
	r.funcSeen[fn] = true
	r.funcOrder = append(r.funcOrder, fn)
}

func (r *Repository) assignValueID(v ssa.Value) uint64 {
	if id, ok := r.valueIDs[v]; ok {
		return id
	}
	r.valueSeq++
	r.valueIDs[v] = r.valueSeq
	return r.valueSeq
}

// AddSuccessor records succ as a successor of stmt in the statement-level
// CFG. Both must already be registered.
func (r *Repository) AddSuccessor(stmt, succ ssa.Instruction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	from, ok := r.instrNode[stmt]
	if !ok {
		log.WithField("instr", stmt).Warn("addSuccessor: predecessor not registered")
		return
	}
	to, ok := r.instrNode[succ]
	if !ok {
		log.WithField("instr", succ).Warn("addSuccessor: successor not registered")
		return
	}
	if err := r.succGraph.MakeEdge(from, to); err != nil {
		log.WithError(err).Warn("addSuccessor: failed to add edge")
	}
}

// Successors returns instr's successors in the statement-level CFG, in the
// order they were added.
func (r *Repository) Successors(instr ssa.Instruction) []ssa.Instruction {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.instrNode[instr]
	if !ok {
		return nil
	}
	neighbors := r.succGraph.Neighbors(node)
	out := make([]ssa.Instruction, 0, len(neighbors))
	for _, n := range neighbors {
		out = append(out, (*n.Value).(ssa.Instruction))
	}
	return out
}

// StatementID looks up the id of an already-registered instruction.
func (r *Repository) StatementID(instr ssa.Instruction) (ID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.stmtIDs[instr]
	return id, ok
}

// ValueID looks up or assigns a value's numeric id.
func (r *Repository) ValueID(v ssa.Value) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assignValueID(v)
}

// FileID looks up or computes a file's numeric id.
func (r *Repository) FileID(path string) FileID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := FileID(fileid.Stable(path))
	if _, seen := r.fileNames[id]; !seen {
		r.fileNames[id] = path
	}
	return id
}

// Statement returns the registered statement for instr, if any.
func (r *Repository) Statement(instr ssa.Instruction) (*Statement, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stmt, ok := r.instrToStmt[instr]
	return stmt, ok
}

// Functions returns every function registered via Register or
// RegisterFunction, in first-seen order — including functions whose body
// yielded zero statements.
func (r *Repository) Functions() []*ssa.Function {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ssa.Function, len(r.funcOrder))
	copy(out, r.funcOrder)
	return out
}

// FunctionInstructions returns fn's registered instructions in source
// order (registration order, spec §3).
func (r *Repository) FunctionInstructions(fn *ssa.Function) []ssa.Instruction {
	r.mu.Lock()
	defer r.mu.Unlock()
	instrs := r.funcInstrs[fn]
	out := make([]ssa.Instruction, len(instrs))
	copy(out, instrs)
	return out
}

// Files returns the fileId→path map accumulated so far, for the static
// serializer's filenames trailer.
func (r *Repository) Files() map[FileID]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[FileID]string, len(r.fileNames))
	for k, v := range r.fileNames {
		out[k] = v
	}
	return out
}
