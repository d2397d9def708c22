package runtime

import (
	"os"
	"path/filepath"
	"testing"
)

// resetForTest clears runtime package state between tests. Production code
// never needs this — the runtime is opened once per process — but tests
// run many "processes" in one binary.
func resetForTest(t *testing.T, dir string) {
	if fd != nil {
		_ = fd.Close()
	}
	fd = nil
	filename = "trace.aard"
	t.Setenv("AARDWOLF_DATA_DEST", dir)
}

func TestWriteExternalThenStatementThenDataProducesExpectedBytes(t *testing.T) {
	dir := t.TempDir()
	resetForTest(t, dir)

	WriteExternal("t1")
	WriteStatement(7, 3)
	WriteDataI32(42)

	got, err := os.ReadFile(filepath.Join(dir, "trace.aard"))
	if err != nil {
		t.Fatal(err)
	}

	want := []byte("AARD/D1")
	want = append(want, 0xFE)
	want = append(want, []byte("t1")...)
	want = append(want, 0)
	want = append(want, 0xFF)
	want = append(want, 7, 0, 0, 0, 0, 0, 0, 0)
	want = append(want, 3, 0, 0, 0, 0, 0, 0, 0)
	want = append(want, 0x13)
	want = append(want, 42, 0, 0, 0)

	if string(got) != string(want) {
		t.Fatalf("unexpected trace bytes:\n got  %x\n want %x", got, want)
	}
}

func TestWriteHeaderAloneProducesJustTheHeader(t *testing.T) {
	dir := t.TempDir()
	resetForTest(t, dir)

	WriteHeader()

	got, err := os.ReadFile(filepath.Join(dir, "trace.aard"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "AARD/D1" {
		t.Fatalf("expected bare header, got %q", got)
	}
}

func TestWriteDataBoolEncoding(t *testing.T) {
	dir := t.TempDir()
	resetForTest(t, dir)

	WriteDataBool(true)
	WriteDataBool(false)

	got, err := os.ReadFile(filepath.Join(dir, "trace.aard"))
	if err != nil {
		t.Fatal(err)
	}
	want := append([]byte("AARD/D1"), 0x21, 1, 0x21, 0)
	if string(got) != string(want) {
		t.Fatalf("got %x want %x", got, want)
	}
}
