package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pharos/internal/logging"
)

func touch(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if age > 0 {
		mod := time.Now().Add(-age)
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatal(err)
		}
	}
}

func TestListArchivesInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		archives, err := ListArchives(dir)
		if err != nil || len(archives) != 0 {
			t.Errorf("expected empty result for path %q, got %v %v", dir, archives, err)
		}
	}
}

func TestListArchivesSortedZipOnly(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.zip"), 0)
	touch(t, filepath.Join(dir, "A.ZIP"), 0)
	touch(t, filepath.Join(dir, "a.zip"), 0)
	touch(t, filepath.Join(dir, "notes.txt"), 0)
	touch(t, filepath.Join(dir, ".hidden.zip"), 0)
	touch(t, filepath.Join(dir, FailedDirName, "c.zip"), 0)

	archives, err := ListArchives(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, a := range archives {
		names = append(names, a.Name)
	}
	want := []string{"A.ZIP", "a.zip", "b.zip"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
	if archives[0].Size != 4 {
		t.Fatalf("unexpected size %d", archives[0].Size)
	}
}

func TestCleanPartialRemovesTempFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Celeste.zip"), 0)
	touch(t, filepath.Join(dir, "Celeste.zip.part"), 0)
	touch(t, filepath.Join(dir, ".manifest.json.tmp-123"), 0)

	result := CleanPartial(context.Background(), dir, logging.NewNop())
	if len(result.Removed) != 2 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, err := os.Stat(filepath.Join(dir, "Celeste.zip")); err != nil {
		t.Fatal("staged archive must survive partial cleanup")
	}
}

func TestCleanFailedHonorsAge(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(FailedDir(dir), "old.zip")
	recent := filepath.Join(FailedDir(dir), "recent.zip")
	touch(t, old, 48*time.Hour)
	touch(t, recent, 0)

	result := CleanFailed(context.Background(), dir, 24*time.Hour, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("unexpected removal: %+v", result)
	}
	if _, err := os.Stat(recent); err != nil {
		t.Fatal("recent failed archive should remain")
	}

	result = CleanFailed(context.Background(), dir, 0, nil)
	if len(result.Removed) != 1 || result.Removed[0] != recent {
		t.Fatalf("expected zero age to remove everything: %+v", result)
	}
}

func TestArchivePath(t *testing.T) {
	if got := ArchivePath("/stage", "Celeste"); got != filepath.Join("/stage", "Celeste.zip") {
		t.Fatalf("ArchivePath = %q", got)
	}
}

func TestValidateArchiveName(t *testing.T) {
	for _, name := range []string{"Celeste", "Half-Life 2", "v1.2"} {
		if err := ValidateArchiveName(name); err != nil {
			t.Fatalf("ValidateArchiveName(%q) = %v", name, err)
		}
	}
	for _, name := range []string{"", " ", ".", "..", "../victim", "a/b", `a\b`, "nul\x00"} {
		if err := ValidateArchiveName(name); err == nil {
			t.Fatalf("ValidateArchiveName(%q) should fail", name)
		}
	}
}
