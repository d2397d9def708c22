// Package static implements the C4 binary serializer (spec §4.4): it
// writes the statement repository out as a `.aard` artifact, and reads it
// back, so the round-trip invariant in spec §8 ("Write(R) then Read
// yields the same logical statement records and successor edges") is
// exercisable. The wire format is byte-exact and defined entirely by
// spec.md — no third-party serialization library speaks it (see
// DESIGN.md).
package static

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/go/ssa"

	"github.com/aardwolf-sfl/aardwolf/internal/access"
	"github.com/aardwolf-sfl/aardwolf/internal/repo"
)

const (
	headerMagic = "AARD/S1"

	tokenFunction  byte = 0xFE
	tokenStatement byte = 0xFF
	tokenFilenames byte = 0xFD

	accessScalar     byte = 0xE0
	accessStructural byte = 0xE1
	accessArrayLike  byte = 0xE2

	metaArg  byte = 0x61
	metaRet  byte = 0x62
	metaCall byte = 0x64
)

// Write serializes r to "<destDir>/<moduleBasename>.aard" (destDir may be
// empty for the current directory) and returns the path written.
func Write(r *repo.Repository, destDir, moduleBasename string) (string, error) {
	path := filepath.Join(destDir, moduleBasename+".aard")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("static: create artifact: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	if _, err := w.WriteString(headerMagic); err != nil {
		return "", fmt.Errorf("static: write header: %w", err)
	}

	for _, fn := range r.Functions() {
		if err := writeFunction(w, r, fn); err != nil {
			return "", err
		}
	}

	if err := writeFilenames(w, r); err != nil {
		return "", err
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("static: flush artifact: %w", err)
	}

	log.WithField("path", path).Info("wrote static artifact")
	return path, nil
}

func writeFunction(w *bufio.Writer, r *repo.Repository, fn *ssa.Function) error {
	if err := w.WriteByte(tokenFunction); err != nil {
		return err
	}
	if err := writeCString(w, fn.Name()); err != nil {
		return err
	}

	for _, instr := range r.FunctionInstructions(fn) {
		if err := writeStatement(w, r, instr); err != nil {
			return err
		}
	}
	return nil
}

func writeStatement(w *bufio.Writer, r *repo.Repository, instr ssa.Instruction) error {
	stmt, ok := r.Statement(instr)
	if !ok {
		return fmt.Errorf("static: instruction %v is not registered", instr)
	}
	id, _ := r.StatementID(instr)

	if err := w.WriteByte(tokenStatement); err != nil {
		return err
	}
	if err := writeID(w, id); err != nil {
		return err
	}

	succIDs := make([]repo.ID, 0)
	for _, succ := range r.Successors(instr) {
		succID, ok := r.StatementID(succ)
		if !ok {
			continue
		}
		succIDs = append(succIDs, succID)
	}
	if err := w.WriteByte(byte(len(succIDs))); err != nil {
		return err
	}
	for _, sid := range succIDs {
		if err := writeID(w, sid); err != nil {
			return err
		}
	}

	if stmt.Out != nil {
		if err := w.WriteByte(1); err != nil {
			return err
		}
		if err := writeAccess(w, r, stmt.Out); err != nil {
			return err
		}
	} else {
		if err := w.WriteByte(0); err != nil {
			return err
		}
	}

	if err := w.WriteByte(byte(len(stmt.In))); err != nil {
		return err
	}
	for _, in := range stmt.In {
		if err := writeAccess(w, r, in); err != nil {
			return err
		}
	}

	if err := writeUint64(w, uint64(id.File)); err != nil {
		return err
	}
	for _, v := range []int{stmt.Loc.BeginLine, stmt.Loc.BeginCol, stmt.Loc.EndLine, stmt.Loc.EndCol} {
		if err := writeUint32(w, uint32(v)); err != nil {
			return err
		}
	}

	var meta byte
	if stmt.Flags.IsArg {
		meta |= metaArg
	}
	if stmt.Flags.IsRet {
		meta |= metaRet
	}
	if stmt.Flags.IsCall {
		meta |= metaCall
	}
	return w.WriteByte(meta)
}

func writeAccess(w *bufio.Writer, r *repo.Repository, a *access.Access) error {
	switch a.Kind() {
	case access.Scalar:
		if err := w.WriteByte(accessScalar); err != nil {
			return err
		}
		return writeUint64(w, r.ValueID(a.Value()))
	case access.Structural:
		if err := w.WriteByte(accessStructural); err != nil {
			return err
		}
		if err := writeAccess(w, r, a.Base()); err != nil {
			return err
		}
		return writeAccess(w, r, a.Accessors()[0])
	case access.ArrayLike:
		if err := w.WriteByte(accessArrayLike); err != nil {
			return err
		}
		if err := writeAccess(w, r, a.Base()); err != nil {
			return err
		}
		indices := a.Accessors()
		if err := writeUint32(w, uint32(len(indices))); err != nil {
			return err
		}
		for _, idx := range indices {
			if err := writeAccess(w, r, idx); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("static: unknown access kind %v", a.Kind())
	}
}

func writeFilenames(w *bufio.Writer, r *repo.Repository) error {
	files := r.Files()
	if err := w.WriteByte(tokenFilenames); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(files))); err != nil {
		return err
	}
	for id, path := range files {
		if err := writeUint64(w, uint64(id)); err != nil {
			return err
		}
		if err := writeCString(w, path); err != nil {
			return err
		}
	}
	return nil
}

func writeID(w *bufio.Writer, id repo.ID) error {
	if err := writeUint64(w, uint64(id.File)); err != nil {
		return err
	}
	return writeUint64(w, uint64(id.Stmt))
}

func writeCString(w *bufio.Writer, s string) error {
	if _, err := w.WriteString(s); err != nil {
		return err
	}
	return w.WriteByte(0)
}

func writeUint64(w *bufio.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeUint32(w *bufio.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}
