package catalog

import (
	"os"
	"path/filepath"
)

var screenshotExts = []string{"png", "jpg", "jpeg"}

// AttachImages points each package at its preview image inside imagesDir,
// clearing ImagePath when none exists.
func AttachImages(items []*Package, imagesDir string) {
	if imagesDir == "" {
		return
	}
	if info, err := os.Stat(imagesDir); err != nil || !info.IsDir() {
		return
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		item.ImagePath = ""
		for _, ext := range screenshotExts {
			candidate := filepath.Join(imagesDir, item.Name+".screenshot."+ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				item.ImagePath = candidate
				break
			}
		}
	}
}
