package fileutil

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// SafeJoin maps an archive entry name onto root, rejecting absolute names
// and names that climb out of root.
func SafeJoin(root, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("absolute entry %q", name)
	}
	cleaned := path.Clean(name)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("entry %q escapes the destination", name)
	}
	if cleaned == "." {
		return root, nil
	}
	return filepath.Join(root, filepath.FromSlash(cleaned)), nil
}

// ValidateZipEntries checks every entry name against root before anything
// is written.
func ValidateZipEntries(root string, files []*zip.File) error {
	for _, f := range files {
		if _, err := SafeJoin(root, f.Name); err != nil {
			return err
		}
	}
	return nil
}

// ExtractZip writes every entry beneath root, keeping archive-relative paths
// and overwriting existing files. It returns the number of files written.
func ExtractZip(root string, files []*zip.File) (int, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", root, err)
	}
	written := 0
	for _, f := range files {
		target, err := SafeJoin(root, f.Name)
		if err != nil {
			return written, err
		}
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, fmt.Errorf("create %s: %w", f.Name, err)
			}
			continue
		}
		if err := extractZipFile(f, target); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func extractZipFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", f.Name, err)
	}
	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode|0o200)
	if err != nil {
		return fmt.Errorf("create %s: %w", f.Name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("write %s: %w", f.Name, err)
	}
	return dst.Close()
}
