package ledger

import "log/slog"

// Index maps case-folded package names to the locally recorded fingerprint.
// It is a snapshot taken at startup and passed to update detection; it does
// not follow later ledger writes.
type Index map[string]string

// NewIndex builds an index over both partitions. When a name appears in both,
// the bottles partition wins, matching a later load order.
func NewIndex(doc Document) Index {
	idx := make(Index, len(doc.Ports)+len(doc.Bottles))
	for _, records := range [][]Record{doc.Ports, doc.Bottles} {
		for _, rec := range records {
			idx[foldName(rec.Name)] = rec.Fingerprint
		}
	}
	return idx
}

// LoadIndex reads the ledger at path and returns its index.
func LoadIndex(path string, logger *slog.Logger) Index {
	return New(path, logger).Index()
}

// Fingerprint returns the recorded fingerprint for name.
func (idx Index) Fingerprint(name string) (string, bool) {
	fp, ok := idx[foldName(name)]
	return fp, ok
}

// UpdateAvailable reports whether both fingerprints are known and differ.
func (idx Index) UpdateAvailable(name, remoteFingerprint string) bool {
	local, _ := idx.Fingerprint(name)
	return local != "" && remoteFingerprint != "" && local != remoteFingerprint
}
