package fileid

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStableIsReproducibleForSameFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	if err := os.WriteFile(path, []byte("package a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	a := Stable(path)
	b := Stable(path)
	if a != b {
		t.Fatalf("expected stable id across calls, got %d and %d", a, b)
	}
}

func TestStableDiffersForDifferentFiles(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.go")
	p2 := filepath.Join(dir, "b.go")
	for _, p := range []string{p1, p2} {
		if err := os.WriteFile(p, []byte("package a\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if Stable(p1) == Stable(p2) {
		t.Fatal("expected distinct files to get distinct ids")
	}
}

func TestStableFallsBackForMissingFile(t *testing.T) {
	id := Stable("/does/not/exist/at/all.go")
	if id == 0 {
		t.Fatal("expected a non-zero fallback id for a missing file")
	}
}
