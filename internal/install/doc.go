// Package install unpacks staged package archives into the library roots.
//
// The kind of an archive is decided by the package descriptor it carries:
// an entry ending in port.json routes it to the ports root, bottle.json to
// the bottles root. Archives are extracted flat into the root, macOS
// metadata debris is removed, and a bundled gameinfo.xml is merged into the
// root's gamelist.xml. A successfully installed archive is deleted; a failed
// one is kept for inspection or moved to the staging failed directory.
package install
