package static

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/aardwolf-sfl/aardwolf/internal/access"
	"github.com/aardwolf-sfl/aardwolf/internal/repo"
)

// DecodedAccess mirrors access.Access, but without an ssa.Value handle:
// once read back from disk a Scalar only has the numeric value id that
// internal/repo minted for it.
type DecodedAccess struct {
	Kind    access.Kind
	ValueID uint64
	Base    *DecodedAccess
	Field   *DecodedAccess
	Indices []*DecodedAccess
}

// DecodedStatement is a statement record as read back from an artifact.
type DecodedStatement struct {
	ID         repo.ID
	Successors []repo.ID
	Out        *DecodedAccess
	In         []*DecodedAccess
	BeginLine  int
	BeginCol   int
	EndLine    int
	EndCol     int
	Flags      repo.Flags
}

// DecodedFunction groups a function's statements in on-disk order.
type DecodedFunction struct {
	Name       string
	Statements []DecodedStatement
}

// Artifact is the fully decoded contents of a `.aard` file.
type Artifact struct {
	Functions []DecodedFunction
	Files     map[repo.FileID]string
}

// Read parses a `.aard` artifact written by Write.
func Read(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("static: open artifact: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	header := make([]byte, len(headerMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("static: read header: %w", err)
	}
	if string(header) != headerMagic {
		return nil, fmt.Errorf("static: bad header %q", header)
	}

	art := &Artifact{Files: make(map[repo.FileID]string)}

	for {
		tok, err := r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("static: read token: %w", err)
		}

		switch tok {
		case tokenFunction:
			name, err := readCString(r)
			if err != nil {
				return nil, fmt.Errorf("static: read function name: %w", err)
			}
			art.Functions = append(art.Functions, DecodedFunction{Name: name})
		case tokenStatement:
			if len(art.Functions) == 0 {
				return nil, fmt.Errorf("static: statement token before any function token")
			}
			stmt, err := readStatement(r)
			if err != nil {
				return nil, fmt.Errorf("static: read statement: %w", err)
			}
			last := len(art.Functions) - 1
			art.Functions[last].Statements = append(art.Functions[last].Statements, stmt)
		case tokenFilenames:
			if err := readFilenames(r, art); err != nil {
				return nil, fmt.Errorf("static: read filenames: %w", err)
			}
			return art, nil
		default:
			return nil, fmt.Errorf("static: unknown token 0x%X", tok)
		}
	}

	return art, nil
}

func readStatement(r *bufio.Reader) (DecodedStatement, error) {
	var stmt DecodedStatement

	id, err := readID(r)
	if err != nil {
		return stmt, err
	}
	stmt.ID = id

	nSucc, err := r.ReadByte()
	if err != nil {
		return stmt, err
	}
	for i := byte(0); i < nSucc; i++ {
		succ, err := readID(r)
		if err != nil {
			return stmt, err
		}
		stmt.Successors = append(stmt.Successors, succ)
	}

	hasOut, err := r.ReadByte()
	if err != nil {
		return stmt, err
	}
	if hasOut == 1 {
		out, err := readAccess(r)
		if err != nil {
			return stmt, err
		}
		stmt.Out = out
	}

	nIn, err := r.ReadByte()
	if err != nil {
		return stmt, err
	}
	for i := byte(0); i < nIn; i++ {
		in, err := readAccess(r)
		if err != nil {
			return stmt, err
		}
		stmt.In = append(stmt.In, in)
	}

	// The file id preceding the location fields duplicates stmt.ID.File
	// (spec §4.4 keeps the location self-describing); discard it here.
	if _, err := readUint64(r); err != nil {
		return stmt, err
	}
	lines := make([]int, 4)
	for i := range lines {
		v, err := readUint32(r)
		if err != nil {
			return stmt, err
		}
		lines[i] = int(v)
	}
	stmt.BeginLine, stmt.BeginCol, stmt.EndLine, stmt.EndCol = lines[0], lines[1], lines[2], lines[3]

	meta, err := r.ReadByte()
	if err != nil {
		return stmt, err
	}
	stmt.Flags = repo.Flags{
		IsArg:  meta&metaArg == metaArg,
		IsRet:  meta&metaRet == metaRet,
		IsCall: meta&metaCall == metaCall,
	}

	return stmt, nil
}

func readAccess(r *bufio.Reader) (*DecodedAccess, error) {
	tok, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tok {
	case accessScalar:
		v, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		return &DecodedAccess{Kind: access.Scalar, ValueID: v}, nil
	case accessStructural:
		base, err := readAccess(r)
		if err != nil {
			return nil, err
		}
		field, err := readAccess(r)
		if err != nil {
			return nil, err
		}
		return &DecodedAccess{Kind: access.Structural, Base: base, Field: field}, nil
	case accessArrayLike:
		base, err := readAccess(r)
		if err != nil {
			return nil, err
		}
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		indices := make([]*DecodedAccess, 0, n)
		for i := uint32(0); i < n; i++ {
			idx, err := readAccess(r)
			if err != nil {
				return nil, err
			}
			indices = append(indices, idx)
		}
		return &DecodedAccess{Kind: access.ArrayLike, Base: base, Indices: indices}, nil
	default:
		return nil, fmt.Errorf("static: unknown access token 0x%X", tok)
	}
}

func readFilenames(r *bufio.Reader, art *Artifact) error {
	n, err := readUint32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		id, err := readUint64(r)
		if err != nil {
			return err
		}
		path, err := readCString(r)
		if err != nil {
			return err
		}
		art.Files[repo.FileID(id)] = path
	}
	return nil
}

func readID(r *bufio.Reader) (repo.ID, error) {
	file, err := readUint64(r)
	if err != nil {
		return repo.ID{}, err
	}
	stmt, err := readUint64(r)
	if err != nil {
		return repo.ID{}, err
	}
	return repo.ID{File: repo.FileID(file), Stmt: repo.StmtID(stmt)}, nil
}

func readCString(r *bufio.Reader) (string, error) {
	s, err := r.ReadString(0)
	if err != nil {
		return "", err
	}
	return s[:len(s)-1], nil
}

func readUint64(r *bufio.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readUint32(r *bufio.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
