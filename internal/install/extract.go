package install

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	macMetadataDir  = "__MACOSX"
	macFinderSuffix = ".DS_Store"
)

// removeMacArtifacts deletes __MACOSX directories and .DS_Store files
// anywhere beneath root.
func removeMacArtifacts(root string) (int, error) {
	removed := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		switch {
		case d.IsDir() && d.Name() == macMetadataDir:
			if err := os.RemoveAll(p); err != nil {
				return err
			}
			removed++
			return fs.SkipDir
		case !d.IsDir() && strings.HasSuffix(d.Name(), macFinderSuffix):
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}
