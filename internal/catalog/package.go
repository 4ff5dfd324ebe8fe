package catalog

// Package is a catalog entry representing one installable archive.
type Package struct {
	Name        string
	Title       string
	Description string
	DownloadURL string
	// SizeBytes is server-reported until a transfer completes, then the
	// staged file size.
	SizeBytes *int64
	// Fingerprint is the catalog MD5 until a transfer completes, then the MD5
	// of the staged bytes.
	Fingerprint     string
	DateUpdated     string
	ImagePath       string
	UpdateAvailable bool
}

// DisplayTitle falls back to Name when the catalog omits a title.
func (p *Package) DisplayTitle() string {
	if p == nil {
		return ""
	}
	if p.Title != "" {
		return p.Title
	}
	return p.Name
}

// ArchiveName is the staged file name for the package.
func (p *Package) ArchiveName() string {
	return p.Name + ".zip"
}

// SetSize records a known byte count.
func (p *Package) SetSize(n int64) {
	p.SizeBytes = &n
}

// Request pairs a package with the kind it is being fetched as. The zero
// value is never submitted; the download queue uses its own stop sentinel.
type Request struct {
	Package *Package
	Kind    Kind
}

// UpdateIndex answers whether a locally recorded fingerprint differs from the
// catalog's.
type UpdateIndex interface {
	UpdateAvailable(name, remoteFingerprint string) bool
}

// MarkUpdates sets UpdateAvailable on every package using idx.
func MarkUpdates(items []*Package, idx UpdateIndex) {
	if idx == nil {
		return
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		item.UpdateAvailable = idx.UpdateAvailable(item.Name, item.Fingerprint)
	}
}

// Find returns the package whose name matches exactly, or nil.
func Find(items []*Package, name string) *Package {
	for _, item := range items {
		if item != nil && item.Name == name {
			return item
		}
	}
	return nil
}
