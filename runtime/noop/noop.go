// Package noop implements the same ABI as package runtime with empty
// bodies, so test binaries built with tracing disabled can still link
// against the same call sites without producing a trace artifact (spec
// §4.5).
package noop

func SetFilename(name string) {}

func WriteHeader() {}

func WriteStatement(fileID, stmtID uint64) {}

func WriteExternal(name string) {}

func WriteDataI8(v int8)     {}
func WriteDataI16(v int16)   {}
func WriteDataI32(v int32)   {}
func WriteDataI64(v int64)   {}
func WriteDataU8(v uint8)    {}
func WriteDataU16(v uint16)  {}
func WriteDataU32(v uint32)  {}
func WriteDataU64(v uint64)  {}
func WriteDataF32(v float32) {}
func WriteDataF64(v float64) {}
func WriteDataBool(v bool)   {}

func WriteDataUnsupported()      {}
func WriteDataNull()             {}
func WriteDataNamed(name string) {}
