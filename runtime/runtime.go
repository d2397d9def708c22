// Package runtime is the Go analogue of the aardwolf C runtime
// (original_source/runtime/runtime.c): a process-wide, lazily-opened,
// append-only binary trace stream that instrumented code calls into at
// execution time (spec §4.5/§6). It is single-threaded by design (spec
// §5) — callers tracing from multiple goroutines must serialize calls
// externally.
package runtime

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/aardwolf-sfl/aardwolf/internal/trace"
)

var (
	fd       *os.File
	filename = trace.DefaultTraceFile
)

// SetFilename overrides the trace file's basename. Must be called before
// the first write; it has no effect once the file has been opened.
// Exposed for module-configurable naming (spec §4.5).
func SetFilename(name string) {
	if fd == nil {
		filename = name
	}
}

func destPath() string {
	dir := os.Getenv(trace.DestDirEnv)
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, filename)
}

// getFD opens the trace file on first use and writes its header. A
// failure to open the output is fatal, per spec §7 — tracing cannot
// silently lose the entire run.
func getFD() *os.File {
	if fd != nil {
		return fd
	}

	f, err := os.Create(destPath())
	if err != nil {
		log.WithError(err).Fatal("aardwolf runtime: failed to open trace output")
	}
	fd = f

	if _, err := fd.WriteString(trace.Magic); err != nil {
		log.WithError(err).Fatal("aardwolf runtime: failed to write trace header")
	}
	if _, err := fd.Write([]byte{trace.FormatVersion}); err != nil {
		log.WithError(err).Fatal("aardwolf runtime: failed to write trace header")
	}

	return fd
}

// WriteHeader explicitly emits the trace header. Bare runtimes that never
// call another write function (e.g. a program that never executes a
// traced statement) can use this to still produce a well-formed, if
// empty, trace file.
func WriteHeader() {
	getFD()
}

func writeTokenAndFlush(token byte, payload []byte) {
	f := getFD()
	_, _ = f.Write([]byte{token})
	if len(payload) > 0 {
		_, _ = f.Write(payload)
	}
	_ = f.Sync()
}

// WriteStatement logs that the statement identified by (fileID, stmtID)
// executed.
func WriteStatement(fileID, stmtID uint64) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], fileID)
	binary.LittleEndian.PutUint64(buf[8:16], stmtID)
	writeTokenAndFlush(trace.TokenStatement, buf)
}

// WriteExternal marks a test-case boundary in the trace.
func WriteExternal(name string) {
	payload := append([]byte(name), 0)
	writeTokenAndFlush(trace.TokenExternal, payload)
}

func WriteDataI8(v int8)    { writeTokenAndFlush(trace.TokenDataI8, []byte{byte(v)}) }
func WriteDataI16(v int16)  { writeIntData(trace.TokenDataI16, uint64(uint16(v)), 2) }
func WriteDataI32(v int32)  { writeIntData(trace.TokenDataI32, uint64(uint32(v)), 4) }
func WriteDataI64(v int64)  { writeIntData(trace.TokenDataI64, uint64(v), 8) }
func WriteDataU8(v uint8)   { writeTokenAndFlush(trace.TokenDataU8, []byte{v}) }
func WriteDataU16(v uint16) { writeIntData(trace.TokenDataU16, uint64(v), 2) }
func WriteDataU32(v uint32) { writeIntData(trace.TokenDataU32, uint64(v), 4) }
func WriteDataU64(v uint64) { writeIntData(trace.TokenDataU64, v, 8) }

func writeIntData(token byte, v uint64, width int) {
	buf := make([]byte, width)
	switch width {
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(buf, v)
	}
	writeTokenAndFlush(token, buf)
}

func WriteDataF32(v float32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
	writeTokenAndFlush(trace.TokenDataF32, buf)
}

func WriteDataF64(v float64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	writeTokenAndFlush(trace.TokenDataF64, buf)
}

func WriteDataBool(v bool) {
	b := byte(0)
	if v {
		b = 1
	}
	writeTokenAndFlush(trace.TokenDataBool, []byte{b})
}

// WriteDataUnsupported records that a value of an unrepresentable type was
// about to be traced.
func WriteDataUnsupported() { writeTokenAndFlush(trace.TokenDataUnsupported, nil) }

// WriteDataNull records a null/None value for dynamically-typed frontends.
func WriteDataNull() { writeTokenAndFlush(trace.TokenDataNull, nil) }

// WriteDataNamed records a named/symbolic value for dynamically-typed
// frontends (e.g. the textual repr of an unsupported composite value).
func WriteDataNamed(name string) {
	payload := append([]byte(name), 0)
	writeTokenAndFlush(trace.TokenDataNamed, payload)
}
