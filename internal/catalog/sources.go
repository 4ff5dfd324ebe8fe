package catalog

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ImagesReleaseTag is the release that carries preview images.
const ImagesReleaseTag = "screenshots-latest"

// Source is one catalog repository.
type Source struct {
	Name         string
	Owner        string
	URL          string
	ImagesDir    string
	ImagesZipURL string
	Ports        []*Package
	Bottles      []*Package
}

// Slug returns "owner/name".
func (s *Source) Slug() string {
	return s.Owner + "/" + s.Name
}

// Items returns the package list for kind.
func (s *Source) Items(kind Kind) []*Package {
	if kind == KindBottle {
		return s.Bottles
	}
	return s.Ports
}

// SetItems replaces the package list for kind.
func (s *Source) SetItems(kind Kind, items []*Package) {
	if kind == KindBottle {
		s.Bottles = items
		return
	}
	s.Ports = items
}

// LoadSources reads the sources file at path.
func LoadSources(path, resourcesDir string) ([]*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources file: %w", err)
	}
	defer f.Close()
	return ParseSources(f, resourcesDir)
}

// ParseSources reads one repository URL per line. Blank lines and lines
// starting with # are ignored, a trailing .git is dropped, and lines without
// an owner/name path are skipped.
func ParseSources(r io.Reader, resourcesDir string) ([]*Source, error) {
	var sources []*Source
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		src, ok := parseSourceLine(line, resourcesDir)
		if !ok {
			continue
		}
		sources = append(sources, src)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return sources, nil
}

func parseSourceLine(line, resourcesDir string) (*Source, bool) {
	parsed, err := url.Parse(line)
	if err != nil {
		return nil, false
	}
	path := strings.Trim(parsed.Path, "/")
	path = strings.TrimSuffix(path, ".git")
	owner, name, ok := strings.Cut(path, "/")
	if !ok || owner == "" || name == "" {
		return nil, false
	}
	slug := owner + "/" + name
	return &Source{
		Name:         name,
		Owner:        owner,
		URL:          "https://github.com/" + slug,
		ImagesDir:    filepath.Join(resourcesDir, owner+"-"+name+"-images"),
		ImagesZipURL: ImagesZipURL(owner, name, ImagesReleaseTag),
	}, true
}

// ImagesZipURL is the download URL of the images asset attached to tag.
func ImagesZipURL(owner, name, tag string) string {
	return "https://github.com/" + owner + "/" + name + "/releases/download/" + tag + "/images.zip"
}

// UseReleaseTag points the source's images asset at another release.
func (s *Source) UseReleaseTag(tag string) {
	if tag == "" {
		return
	}
	s.ImagesZipURL = ImagesZipURL(s.Owner, s.Name, tag)
}

// FindSource matches by name or owner/name, case-insensitively.
func FindSource(sources []*Source, key string) *Source {
	key = strings.TrimSpace(key)
	for _, src := range sources {
		if strings.EqualFold(src.Name, key) || strings.EqualFold(src.Slug(), key) {
			return src
		}
	}
	return nil
}
