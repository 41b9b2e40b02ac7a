package installer

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Formats handed to an external 7z binary instead of being unpacked in
// process.
var sevenZipExtensions = map[string]bool{
	".7z":  true,
	".rar": true,
}

// extractArchive unpacks archivePath into destDir, creating destDir
// first. Zip archives are read in process; everything else goes through
// 7z when the extension is known, otherwise the format is rejected.
func extractArchive(archivePath, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create unpack dir %s: %w", destDir, err)
	}

	ext := strings.ToLower(filepath.Ext(archivePath))
	switch {
	case ext == ".zip":
		return extractZip(archivePath, destDir)
	case sevenZipExtensions[ext]:
		return extractWith7z(archivePath, destDir)
	default:
		return fmt.Errorf("unsupported archive format %q", ext)
	}
}

func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer r.Close()

	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("resolve unpack dir %s: %w", destDir, err)
	}

	for _, f := range r.File {
		target, err := filepath.Abs(filepath.Join(absDest, filepath.FromSlash(f.Name)))
		if err != nil {
			return fmt.Errorf("resolve %s: %w", f.Name, err)
		}
		if target != absDest && !strings.HasPrefix(target, absDest+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes the unpack dir", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", target, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", target, err)
		}
		if err := writeZipEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func writeZipEntry(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s in archive: %w", f.Name, err)
	}
	defer rc.Close()

	// Some archivers store no permission bits at all.
	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	_, err = io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

func extractWith7z(archivePath, destDir string) error {
	bin, err := exec.LookPath("7z")
	if err != nil {
		return fmt.Errorf("no 7z binary available for %s: %w", archivePath, err)
	}
	cmd := exec.Command(bin, "x", "-y", "-o"+destDir, archivePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("7z extraction of %s failed: %w: %s",
			archivePath, err, strings.TrimSpace(string(out)))
	}
	return nil
}
