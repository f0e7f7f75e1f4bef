package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	content := []byte("hello world")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	sum, size, err := Checksum(path)
	if err != nil {
		t.Fatal(err)
	}
	want := sha256.Sum256(content)
	if sum != hex.EncodeToString(want[:]) {
		t.Fatalf("checksum = %s", sum)
	}
	if size != int64(len(content)) {
		t.Fatalf("size = %d", size)
	}
	if _, _, err := Checksum(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected missing file to fail")
	}
}

func TestTempPathIsHiddenSibling(t *testing.T) {
	dest := filepath.Join("/data", "out.tif")
	tmp := TempPath(dest)
	if filepath.Dir(tmp) != "/data" {
		t.Fatalf("temp path %q not in destination directory", tmp)
	}
	if !strings.HasPrefix(filepath.Base(tmp), ".out.tif.partial-") {
		t.Fatalf("unexpected temp name %q", tmp)
	}
	if TempPath(dest) == tmp {
		t.Fatal("temp paths should be unique")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")
	if err := WriteFileAtomic(dest, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "data" {
		t.Fatalf("content mismatch: got %q", got)
	}
	assertOnly(t, dir, "out.txt")
}

func TestWriteAtomicRemovesPartialOnFailure(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")
	boom := errors.New("boom")
	err := WriteAtomic(dest, func(tmp string) error {
		if err := os.WriteFile(tmp, []byte("half"), 0o644); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	assertOnly(t, dir)
}

func assertOnly(t *testing.T, dir string, names ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(names) {
		var got []string
		for _, e := range entries {
			got = append(got, e.Name())
		}
		t.Fatalf("directory holds %v, want %v", got, names)
	}
	for i, e := range entries {
		if e.Name() != names[i] {
			t.Fatalf("directory holds %q, want %q", e.Name(), names[i])
		}
	}
}
