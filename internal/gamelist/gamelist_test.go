package gamelist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pharos/internal/logging"
)

func writeXML(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func gamePaths(t *testing.T, indexPath string) []string {
	t.Helper()
	doc, err := ReadFile(indexPath)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	var out []string
	for _, g := range doc.Games() {
		p, _ := g.Path()
		out = append(out, p)
	}
	return out
}

func TestMergeCreatesIndex(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, IndexFile)
	source := filepath.Join(dir, "Celeste", MetadataFile)
	writeXML(t, source, `<gameList>
  <game><path>./Celeste.sh</path><name>Celeste</name><desc>Climb</desc></game>
</gameList>`)

	added, err := Merge(index, source, logging.NewNop())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
	data, err := os.ReadFile(index)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "<?xml") {
		t.Fatalf("expected XML declaration, got %q", text)
	}
	if !strings.Contains(text, "<gameList>") || !strings.Contains(text, "\n  <game>\n    <path>./Celeste.sh</path>") {
		t.Fatalf("expected indented gameList, got:\n%s", text)
	}
}

func TestMergeSkipsExistingPathWithoutWriting(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, IndexFile)
	original := `<?xml version="1.0"?>
<gameList>
  <game><path>./a.sh</path><name>A</name></game>
</gameList>
`
	writeXML(t, index, original)
	source := filepath.Join(dir, MetadataFile)
	writeXML(t, source, `<gameList><game><path>./a.sh</path><name>A again</name></game></gameList>`)

	added, err := Merge(index, source, logging.NewNop())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if added != 0 {
		t.Fatalf("added = %d, want 0", added)
	}
	data, err := os.ReadFile(index)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != original {
		t.Fatalf("index rewritten although nothing changed:\n%s", data)
	}
}

func TestMergeDisjointPathsAppendsInOrder(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, IndexFile)
	writeXML(t, index, `<gameList><game><path>./b.sh</path></game><game><path>./a.sh</path></game></gameList>`)
	source := filepath.Join(dir, MetadataFile)
	writeXML(t, source, `<gameList>
  <game><path>./d.sh</path></game>
  <game><name>no path</name></game>
  <game><path>./c.sh</path></game>
  <game><path>./d.sh</path><name>duplicate in same source</name></game>
</gameList>`)

	added, err := Merge(index, source, logging.NewNop())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if added != 2 {
		t.Fatalf("added = %d, want 2", added)
	}
	got := strings.Join(gamePaths(t, index), ",")
	if got != "./b.sh,./a.sh,./d.sh,./c.sh" {
		t.Fatalf("unexpected order: %s", got)
	}
}

func TestMergeReplacesCorruptIndex(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, IndexFile)
	writeXML(t, index, `<gameList><game><path>./old.sh</path>`)
	source := filepath.Join(dir, MetadataFile)
	writeXML(t, source, `<gameList><game><path>./new.sh</path></game></gameList>`)

	added, err := Merge(index, source, logging.NewNop())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
	if got := gamePaths(t, index); len(got) != 1 || got[0] != "./new.sh" {
		t.Fatalf("expected fresh index with new entry only, got %v", got)
	}
}

func TestMergeNormalizesRootAndPreservesUnknownContent(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, IndexFile)
	writeXML(t, index, `<games version="2"><folder><path>./x</path></folder><game id="7"><path>./a.sh</path><rating>0.8</rating></game></games>`)
	source := filepath.Join(dir, MetadataFile)
	writeXML(t, source, `<gameList><game source="pharos"><path>./b.sh</path><image>./img/b.png</image></game></gameList>`)

	if _, err := Merge(index, source, logging.NewNop()); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	data, err := os.ReadFile(index)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, fragment := range []string{
		`<gameList version="2">`,
		`<folder>`,
		`<game id="7">`,
		`<rating>0.8</rating>`,
		`<game source="pharos">`,
		`<image>./img/b.png</image>`,
	} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %q in merged index:\n%s", fragment, text)
		}
	}
}

func TestMergeRejectsUnparsableMetadata(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, MetadataFile)
	writeXML(t, source, `<gameList><game>`)
	if _, err := Merge(filepath.Join(dir, IndexFile), source, logging.NewNop()); err == nil {
		t.Fatal("expected error for unparsable metadata")
	}
	if _, err := os.Stat(filepath.Join(dir, IndexFile)); !os.IsNotExist(err) {
		t.Fatal("index must not be created when metadata is unparsable")
	}
}

func TestMergeIsIdempotentAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, IndexFile)
	source := filepath.Join(dir, MetadataFile)
	writeXML(t, source, `<gameList><game><path>./a.sh</path></game></gameList>`)

	if n, err := Merge(index, source, nil); err != nil || n != 1 {
		t.Fatalf("first merge: %d %v", n, err)
	}
	first, _ := os.ReadFile(index)
	if n, err := Merge(index, source, nil); err != nil || n != 0 {
		t.Fatalf("second merge: %d %v", n, err)
	}
	second, _ := os.ReadFile(index)
	if string(first) != string(second) {
		t.Fatal("second merge changed the index")
	}
}

func rootElement(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	start := strings.Index(text, "<gameList")
	if start < 0 {
		t.Fatalf("no root element:\n%s", text)
	}
	end := strings.Index(text[start:], ">")
	return text[start : start+end+1]
}

func TestMergeKeepsNamespaceDeclarationsAcrossRewrites(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, IndexFile)
	const root = `<gameList xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:noNamespaceSchemaLocation="gamelist.xsd">`
	writeXML(t, index, root+`<game><path>./a.sh</path><xsi:note>keep</xsi:note></game></gameList>`)

	for i, name := range []string{"b", "c", "d"} {
		source := filepath.Join(dir, name, MetadataFile)
		writeXML(t, source, `<gameList><game><path>./`+name+`.sh</path></game></gameList>`)
		if n, err := Merge(index, source, logging.NewNop()); err != nil || n != 1 {
			t.Fatalf("merge %d: %d %v", i, n, err)
		}
		if got := rootElement(t, index); got != root {
			t.Fatalf("merge %d changed root element:\n got %s\nwant %s", i, got, root)
		}
	}
	data, _ := os.ReadFile(index)
	if strings.Contains(string(data), "_xmlns") || !strings.Contains(string(data), "<xsi:note>keep</xsi:note>") {
		t.Fatalf("prefixed content not preserved:\n%s", data)
	}
	if got := strings.Join(gamePaths(t, index), ","); got != "./a.sh,./b.sh,./c.sh,./d.sh" {
		t.Fatalf("unexpected paths: %s", got)
	}
}

func TestMergePreservesComments(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, IndexFile)
	writeXML(t, index, `<?xml version="1.0"?>
<!-- managed by the frontend -->
<gameList>
  <!-- favourites -->
  <game><path>./a.sh</path><!-- rated --><rating>1</rating></game>
</gameList>`)
	source := filepath.Join(dir, MetadataFile)
	writeXML(t, source, `<gameList><game><path>./b.sh</path><desc>Fish &amp; Chips
line two</desc></game></gameList>`)

	if _, err := Merge(index, source, logging.NewNop()); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	data, err := os.ReadFile(index)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, fragment := range []string{
		"<!-- managed by the frontend -->\n<gameList>",
		"  <!-- favourites -->\n  <game>",
		"<!-- rated -->",
		"<desc>Fish &amp; Chips\nline two</desc>",
	} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %q in merged index:\n%s", fragment, text)
		}
	}
	if got := strings.Join(gamePaths(t, index), ","); got != "./a.sh,./b.sh" {
		t.Fatalf("unexpected paths: %s", got)
	}
}

func TestParseRejectsMismatchedTags(t *testing.T) {
	for _, doc := range []string{
		`<gameList><game></gameList>`,
		`<gameList><game><path>./a</path></game>`,
		``,
	} {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("expected error for %q", doc)
		}
	}
}

func TestMergeComparesTrimmedPaths(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, IndexFile)
	writeXML(t, index, `<gameList><game><path> ./a.sh
</path></game></gameList>`)
	source := filepath.Join(dir, MetadataFile)
	writeXML(t, source, `<gameList><game><path>./a.sh</path></game><game><path>./A.sh</path></game></gameList>`)

	added, err := Merge(index, source, logging.NewNop())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if added != 1 {
		t.Fatalf("added = %d, want 1 (case differs, whitespace does not)", added)
	}
	if got := strings.Join(gamePaths(t, index), ","); got != "./a.sh,./A.sh" {
		t.Fatalf("unexpected paths: %s", got)
	}
}
