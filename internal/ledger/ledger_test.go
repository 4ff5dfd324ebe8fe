package ledger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pharos/internal/catalog"
	"pharos/internal/logging"
	"pharos/internal/services"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "resources", "manifest.json"), logging.NewNop())
}

func pkg(name, md5 string, size int64) *catalog.Package {
	p := &catalog.Package{Name: name, Title: name + " title", Fingerprint: md5}
	p.SetSize(size)
	return p
}

func readRaw(t *testing.T, path string) Document {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("ledger is not valid JSON: %v", err)
	}
	return doc
}

func TestLoadMissingLedgerIsEmpty(t *testing.T) {
	l := newTestLedger(t)
	doc := l.Load()
	if doc.Ports == nil || doc.Bottles == nil || len(doc.Ports)+len(doc.Bottles) != 0 {
		t.Fatalf("expected empty two-partition document, got %+v", doc)
	}
}

func TestLoadCorruptLedgerIsEmpty(t *testing.T) {
	l := newTestLedger(t)
	if err := os.MkdirAll(filepath.Dir(l.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(l.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc := l.Load()
	if len(doc.Ports) != 0 || len(doc.Bottles) != 0 {
		t.Fatalf("expected empty document for corrupt ledger, got %+v", doc)
	}
	if err := l.RecordInstall(pkg("Celeste", "aaa", 10), catalog.KindPort); err != nil {
		t.Fatalf("RecordInstall over corrupt ledger: %v", err)
	}
	if got := readRaw(t, l.Path()); len(got.Ports) != 1 {
		t.Fatalf("expected corrupt ledger replaced, got %+v", got)
	}
}

func TestRecordInstallIsIdempotentPerKind(t *testing.T) {
	l := newTestLedger(t)
	if err := l.RecordInstall(pkg("Notepad", "b1", 5), catalog.KindBottle); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordInstall(pkg("Celeste", "a1", 10), catalog.KindPort); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordInstall(pkg("CELESTE", "a2", 11), catalog.KindPort); err != nil {
		t.Fatal(err)
	}

	doc := readRaw(t, l.Path())
	if len(doc.Ports) != 1 {
		t.Fatalf("expected one port record, got %+v", doc.Ports)
	}
	if doc.Ports[0].Name != "CELESTE" || doc.Ports[0].Fingerprint != "a2" || *doc.Ports[0].SizeBytes != 11 {
		t.Fatalf("expected newest record to replace older one, got %+v", doc.Ports[0])
	}
	if len(doc.Bottles) != 1 || doc.Bottles[0].Name != "Notepad" || doc.Bottles[0].Fingerprint != "b1" {
		t.Fatalf("bottles partition should be untouched, got %+v", doc.Bottles)
	}
}

func TestRecordInstallSameNameDifferentKinds(t *testing.T) {
	l := newTestLedger(t)
	if err := l.RecordInstall(pkg("Shared", "p", 1), catalog.KindPort); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordInstall(pkg("shared", "b", 1), catalog.KindBottle); err != nil {
		t.Fatal(err)
	}
	doc := readRaw(t, l.Path())
	if len(doc.Ports) != 1 || len(doc.Bottles) != 1 {
		t.Fatalf("expected one record per partition, got %+v", doc)
	}
}

func TestRecordInstallUsesUnicodeFolding(t *testing.T) {
	l := newTestLedger(t)
	if err := l.RecordInstall(pkg("Σίσυφος", "1", 1), catalog.KindPort); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordInstall(pkg("ΣΊΣΥΦΟΣ", "2", 1), catalog.KindPort); err != nil {
		t.Fatal(err)
	}
	doc := readRaw(t, l.Path())
	if len(doc.Ports) != 1 || doc.Ports[0].Fingerprint != "2" {
		t.Fatalf("expected folded names to collide, got %+v", doc.Ports)
	}
}

func TestRecordInstallRejectsInvalidInput(t *testing.T) {
	l := newTestLedger(t)
	if err := l.RecordInstall(nil, catalog.KindPort); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for nil package, got %v", err)
	}
	if err := l.RecordInstall(pkg("x", "1", 1), catalog.Kind("cask")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for bad kind, got %v", err)
	}
}

func TestInterruptedWriteLeavesPreviousLedger(t *testing.T) {
	l := newTestLedger(t)
	if err := l.RecordInstall(pkg("Celeste", "old", 10), catalog.KindPort); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatal(err)
	}

	// Simulate a crash between the flushed temp file and the rename.
	l.writer.Rename = func(string, string) error { return errors.New("power lost") }
	err = l.RecordInstall(pkg("Celeste", "new", 12), catalog.KindPort)
	if !errors.Is(err, services.ErrLedgerWrite) {
		t.Fatalf("expected ledger write failure, got %v", err)
	}

	after, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(before) {
		t.Fatalf("ledger changed after failed write:\nbefore %s\nafter %s", before, after)
	}
	if doc := readRaw(t, l.Path()); doc.Ports[0].Fingerprint != "old" {
		t.Fatalf("expected old fingerprint, got %+v", doc.Ports)
	}
	entries, err := os.ReadDir(filepath.Dir(l.Path()))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the ledger file, found %d entries", len(entries))
	}
}

func TestIndexUpdateDetection(t *testing.T) {
	l := newTestLedger(t)
	if err := l.RecordInstall(pkg("Celeste", "local", 1), catalog.KindPort); err != nil {
		t.Fatal(err)
	}
	idx := LoadIndex(l.Path(), nil)
	if fp, ok := idx.Fingerprint("celeste"); !ok || fp != "local" {
		t.Fatalf("unexpected fingerprint lookup: %q %v", fp, ok)
	}
	if !idx.UpdateAvailable("Celeste", "remote") {
		t.Fatal("expected update when fingerprints differ")
	}
	if idx.UpdateAvailable("Celeste", "local") {
		t.Fatal("no update when fingerprints match")
	}
	if idx.UpdateAvailable("Celeste", "") {
		t.Fatal("no update when remote fingerprint unknown")
	}
	if idx.UpdateAvailable("Unknown", "remote") {
		t.Fatal("no update for packages never downloaded")
	}
}
