package installer

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "mod.zip")
	writeZip(t, archive, map[string]string{
		"meshes/door.nif":   "door",
		"scripts/init.psc":  "init",
		"deep/a/b/c/leaf.x": "leaf",
	})

	dest := filepath.Join(dir, "out")
	if err := extractArchive(archive, dest); err != nil {
		t.Fatalf("extractArchive failed: %v", err)
	}

	for rel, want := range map[string]string{
		"meshes/door.nif":   "door",
		"scripts/init.psc":  "init",
		"deep/a/b/c/leaf.x": "leaf",
	} {
		data, err := os.ReadFile(filepath.Join(dest, rel))
		if err != nil {
			t.Errorf("Missing %s: %v", rel, err)
			continue
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", rel, data, want)
		}
	}
}

func TestExtractZipRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeZip(t, archive, map[string]string{
		"../evil.txt": "pwned",
	})

	dest := filepath.Join(dir, "out")
	if err := extractArchive(archive, dest); err == nil {
		t.Fatal("Expected a traversal entry to be rejected")
	}
	if _, err := os.Stat(filepath.Join(dir, "evil.txt")); !os.IsNotExist(err) {
		t.Error("Traversal entry was written outside the unpack dir")
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "mod.tar.gz")
	if err := os.WriteFile(archive, []byte("not an archive"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := extractArchive(archive, filepath.Join(dir, "out")); err == nil {
		t.Fatal("Expected an unsupported format error")
	}
}

func TestLinkFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}

	dst := filepath.Join(dir, "nested", "dst.txt")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatalf("Failed to create dest dir: %v", err)
	}
	if err := linkFile(src, dst); err != nil {
		t.Fatalf("linkFile failed: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Errorf("Reading through the link = %q, %v", data, err)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Lstat(dst)
		if err != nil {
			t.Fatalf("Lstat failed: %v", err)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			t.Error("Expected a symlink on this platform")
		}
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	if err := os.WriteFile(src, []byte("bytes"), 0o600); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}

	dst := filepath.Join(dir, "dst.bin")
	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copyFile failed: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "bytes" {
		t.Errorf("Copy = %q, %v", data, err)
	}
}

func TestRemoveLink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "link.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if err := removeLink(path); err != nil {
		t.Errorf("removeLink failed: %v", err)
	}
	// Removing it again is fine.
	if err := removeLink(path); err != nil {
		t.Errorf("removeLink on a missing path failed: %v", err)
	}
}
