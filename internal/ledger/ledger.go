package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/text/cases"

	"pharos/internal/catalog"
	"pharos/internal/fileutil"
	"pharos/internal/logging"
	"pharos/internal/services"
)

// Record is one installed package.
type Record struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"desc"`
	DownloadURL string `json:"download_url"`
	SizeBytes   *int64 `json:"size"`
	Fingerprint string `json:"md5"`
	DateUpdated string `json:"date_updated"`
	ImagePath   string `json:"image_path,omitempty"`
}

// Document is the full ledger file.
type Document struct {
	Ports   []Record `json:"ports"`
	Bottles []Record `json:"bottles"`
}

// Records returns the partition for kind.
func (d *Document) Records(kind catalog.Kind) []Record {
	if kind == catalog.KindBottle {
		return d.Bottles
	}
	return d.Ports
}

func (d *Document) setRecords(kind catalog.Kind, records []Record) {
	if kind == catalog.KindBottle {
		d.Bottles = records
		return
	}
	d.Ports = records
}

// RecordFromPackage snapshots the package fields persisted in the ledger.
func RecordFromPackage(pkg *catalog.Package) Record {
	rec := Record{
		Name:        pkg.Name,
		Title:       pkg.Title,
		Description: pkg.Description,
		DownloadURL: pkg.DownloadURL,
		Fingerprint: pkg.Fingerprint,
		DateUpdated: pkg.DateUpdated,
		ImagePath:   pkg.ImagePath,
	}
	if pkg.SizeBytes != nil {
		size := *pkg.SizeBytes
		rec.SizeBytes = &size
	}
	return rec
}

// Ledger reads and rewrites the ledger file at a fixed path.
type Ledger struct {
	path   string
	logger *slog.Logger
	// mu serializes writers inside this process. Writers in other processes
	// still race; the last rename wins.
	mu     sync.Mutex
	writer fileutil.AtomicWriter
}

// New returns a ledger bound to path.
func New(path string, logger *slog.Logger) *Ledger {
	return &Ledger{
		path:   path,
		logger: logging.NewComponentLogger(logger, "ledger"),
	}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Load reads the ledger document. A missing or unparsable file yields an
// empty document; parse failures are logged.
func (l *Ledger) Load() Document {
	doc, err := readDocument(l.path)
	if err != nil {
		logging.WarnWithContext(l.logger, "ledger unreadable; treating as empty", "ledger_load_failed",
			logging.String("path", l.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the next successful download rewrites the ledger"),
			logging.String(logging.FieldImpact, "update detection starts from an empty ledger"),
		)
		return Document{Ports: []Record{}, Bottles: []Record{}}
	}
	return doc
}

// RecordInstall replaces any record named like pkg (case-insensitively) in
// the kind's partition with a fresh record and atomically rewrites the ledger.
// The other partition is carried over untouched. On failure the previous
// ledger stays in place and the returned error wraps services.ErrLedgerWrite.
func (l *Ledger) RecordInstall(pkg *catalog.Package, kind catalog.Kind) error {
	if pkg == nil {
		return services.Wrap(services.ErrValidation, "ledger", "record install", "nil package", nil)
	}
	if !kind.Valid() {
		return services.Wrap(services.ErrValidation, "ledger", "record install", fmt.Sprintf("invalid kind %q", kind), nil)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	doc := l.Load()
	target := foldName(pkg.Name)
	kept := make([]Record, 0, len(doc.Records(kind))+1)
	for _, rec := range doc.Records(kind) {
		if foldName(rec.Name) == target {
			continue
		}
		kept = append(kept, rec)
	}
	kept = append(kept, RecordFromPackage(pkg))
	doc.setRecords(kind, kept)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrLedgerWrite, "ledger", "encode", pkg.Name, err)
	}
	if err := l.writer.Write(l.path, append(data, '\n'), 0o644); err != nil {
		logging.ErrorWithContext(l.logger, "ledger update failed; previous ledger kept", "ledger_write_failed",
			logging.String("path", l.path),
			logging.String(logging.FieldPackage, pkg.Name),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the resources directory"),
		)
		return services.Wrap(services.ErrLedgerWrite, "ledger", "write", pkg.Name, err)
	}
	l.logger.Debug("ledger updated",
		logging.String(logging.FieldPackage, pkg.Name),
		logging.String("kind", string(kind)),
		logging.String("md5", pkg.Fingerprint),
		logging.String(logging.FieldEventType, "ledger_updated"),
	)
	return nil
}

// Index loads the ledger and builds the name to fingerprint index.
func (l *Ledger) Index() Index {
	return NewIndex(l.Load())
}

func readDocument(path string) (Document, error) {
	empty := Document{Ports: []Record{}, Bottles: []Record{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return empty, nil
		}
		return empty, fmt.Errorf("read ledger: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return empty, fmt.Errorf("parse ledger: %w", err)
	}
	if doc.Ports == nil {
		doc.Ports = []Record{}
	}
	if doc.Bottles == nil {
		doc.Bottles = []Record{}
	}
	return doc, nil
}

// foldName applies Unicode case folding. Casers carry state, so each call
// builds its own.
func foldName(name string) string {
	return cases.Fold().String(name)
}
