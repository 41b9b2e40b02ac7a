package installer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
)

// linkFile places dst as a reference to src, preferring the cheapest
// mechanism the platform allows: symlink, then hard link, then a plain
// byte copy. Windows flips the first two because creating symlinks
// there usually needs an elevated process.
func linkFile(src, dst string) error {
	mechanisms := []func(string, string) error{os.Symlink, os.Link}
	if runtime.GOOS == "windows" {
		mechanisms = []func(string, string) error{os.Link, os.Symlink}
	}
	for _, mk := range mechanisms {
		if mk(src, dst) == nil {
			return nil
		}
	}
	return copyFile(src, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return nil
}

// removeLink deletes one installed link; a path that is already gone is
// fine.
func removeLink(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
