// Package gamelist merges per-package gameinfo.xml documents into the shared
// gamelist.xml index of a library root.
//
// Entries are identified by their <path> child. Merging appends source
// <game> entries whose path is not yet present and never reorders or removes
// existing entries. Elements, attributes, namespace prefixes and comments
// this package does not know about are carried through unchanged.
package gamelist

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"pharos/internal/fileutil"
	"pharos/internal/logging"
	"pharos/internal/services"
)

const (
	// IndexFile is the library index file name inside each library root.
	IndexFile = "gamelist.xml"
	// MetadataFile is the per-package metadata document shipped in archives.
	MetadataFile = "gameinfo.xml"

	rootTag  = "gameList"
	entryTag = "game"
	pathTag  = "path"
)

// Element is a generic XML element. Names keep their literal prefix in
// Space, so namespace declarations are written back exactly as read. A
// non-nil Comment marks a comment node rather than an element.
type Element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr
	Text     string
	Children []Element
	Comment  *string
}

// Child returns the first direct child named local.
func (e *Element) Child(local string) (*Element, bool) {
	for i := range e.Children {
		if e.Children[i].Comment == nil && e.Children[i].XMLName.Local == local {
			return &e.Children[i], true
		}
	}
	return nil, false
}

// Path returns the trimmed <path> value of a game entry.
func (e *Element) Path() (string, bool) {
	child, ok := e.Child(pathTag)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(child.Text), true
}

// Document is a gamelist or gameinfo root with its entries in order.
// Comments outside the root element are kept in Prolog and Epilog.
type Document struct {
	XMLName xml.Name
	Attrs   []xml.Attr
	Entries []Element
	Prolog  []string
	Epilog  []string
}

// NewDocument returns an empty <gameList>.
func NewDocument() *Document {
	return &Document{XMLName: xml.Name{Local: rootTag}}
}

// Games returns the <game> entries in document order.
func (d *Document) Games() []Element {
	var games []Element
	for _, entry := range d.Entries {
		if entry.Comment == nil && entry.XMLName.Local == entryTag {
			games = append(games, entry)
		}
	}
	return games
}

// Paths returns the set of <path> values carried by <game> entries.
func (d *Document) Paths() map[string]struct{} {
	paths := make(map[string]struct{})
	for _, game := range d.Games() {
		if p, ok := game.Path(); ok {
			paths[p] = struct{}{}
		}
	}
	return paths
}

// Parse decodes an XML document. Raw tokens are used so prefixes and
// xmlns declarations are not rewritten by namespace translation.
func Parse(data []byte) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		doc   Document
		stack []*Element
		done  bool
	)
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if done {
				return nil, fmt.Errorf("unexpected element <%s> after root", qualified(t.Name))
			}
			stack = append(stack, &Element{XMLName: t.Name, Attrs: append([]xml.Attr(nil), t.Attr...)})
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unexpected </%s>", qualified(t.Name))
			}
			top := stack[len(stack)-1]
			if top.XMLName != t.Name {
				return nil, fmt.Errorf("element <%s> closed by </%s>", qualified(top.XMLName), qualified(t.Name))
			}
			stack = stack[:len(stack)-1]
			normalize(top)
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, *top)
				continue
			}
			doc.XMLName = top.XMLName
			doc.Attrs = top.Attrs
			doc.Entries = top.Children
			done = true
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		case xml.Comment:
			text := string(t)
			switch {
			case len(stack) > 0:
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, Element{Comment: &text})
			case done:
				doc.Epilog = append(doc.Epilog, text)
			default:
				doc.Prolog = append(doc.Prolog, text)
			}
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("unclosed element <%s>", qualified(stack[len(stack)-1].XMLName))
	}
	if !done {
		return nil, errors.New("no root element")
	}
	return &doc, nil
}

// ReadFile parses the document at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Encode renders the document with an XML declaration and two-space indent.
func (d *Document) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	for _, c := range d.Prolog {
		writeComment(&buf, c, 0)
		buf.WriteByte('\n')
	}
	root := Element{XMLName: d.XMLName, Attrs: d.Attrs, Children: d.Entries}
	if err := writeElement(&buf, &root, 0); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	for _, c := range d.Epilog {
		writeComment(&buf, c, 0)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#xD;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
		"\r", "&#xD;", "\n", "&#xA;", "\t", "&#x9;")
)

func writeElement(buf *bytes.Buffer, e *Element, depth int) error {
	if e.Comment != nil {
		writeComment(buf, *e.Comment, depth)
		return nil
	}
	if e.XMLName.Local == "" {
		return errors.New("element without a name")
	}
	name := qualified(e.XMLName)
	buf.WriteString(strings.Repeat("  ", depth))
	buf.WriteByte('<')
	buf.WriteString(name)
	for _, attr := range e.Attrs {
		buf.WriteByte(' ')
		buf.WriteString(qualified(attr.Name))
		buf.WriteString(`="`)
		buf.WriteString(attrEscaper.Replace(attr.Value))
		buf.WriteByte('"')
	}
	buf.WriteByte('>')
	buf.WriteString(textEscaper.Replace(e.Text))
	if len(e.Children) > 0 {
		for i := range e.Children {
			buf.WriteByte('\n')
			if err := writeElement(buf, &e.Children[i], depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte('\n')
		buf.WriteString(strings.Repeat("  ", depth))
	}
	buf.WriteString("</")
	buf.WriteString(name)
	buf.WriteByte('>')
	return nil
}

func writeComment(buf *bytes.Buffer, text string, depth int) {
	buf.WriteString(strings.Repeat("  ", depth))
	buf.WriteString("<!--")
	buf.WriteString(text)
	buf.WriteString("-->")
}

func qualified(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

// normalize drops the whitespace-only text that surrounds child elements so
// re-indentation does not accumulate blank lines.
func normalize(e *Element) {
	if len(e.Children) > 0 && strings.TrimSpace(e.Text) == "" {
		e.Text = ""
	}
}

// Merge reads the metadata document at sourcePath and merges it into the
// index at indexPath. It returns the number of entries added.
func Merge(indexPath, sourcePath string, logger *slog.Logger) (int, error) {
	source, err := ReadFile(sourcePath)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "gamelist", "parse metadata", sourcePath, err)
	}
	return MergeDocument(indexPath, source, logger)
}

// MergeDocument appends every <game> entry of source whose path is not
// already in the index, in source order. The first entry for a path wins,
// including repeats within source. Entries without a path are skipped. The
// index is rewritten only when at least one entry was added.
func MergeDocument(indexPath string, source *Document, logger *slog.Logger) (int, error) {
	logger = logging.NewComponentLogger(logger, "gamelist")
	target, err := loadIndex(indexPath, logger)
	if err != nil {
		return 0, err
	}

	seen := target.Paths()
	added := 0
	for _, game := range source.Games() {
		p, ok := game.Path()
		if !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		target.Entries = append(target.Entries, game)
		seen[p] = struct{}{}
		added++
	}

	if added == 0 {
		logger.Debug("no new gamelist entries", logging.String("index", indexPath))
		return 0, nil
	}

	data, err := target.Encode()
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "gamelist", "encode", indexPath, err)
	}
	if err := fileutil.WriteFileAtomic(indexPath, data, 0o644); err != nil {
		return 0, services.Wrap(services.ErrTransient, "gamelist", "write", indexPath, err)
	}
	logger.Info("gamelist entries added",
		logging.String("index", indexPath),
		logging.Int("added", added),
		logging.String(logging.FieldEventType, "gamelist_merged"),
	)
	return added, nil
}

// loadIndex returns the existing index, or an empty one when the file is
// missing or unparsable. A corrupt index is logged as data loss.
func loadIndex(path string, logger *slog.Logger) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("creating library index", logging.String("index", path))
			return NewDocument(), nil
		}
		return nil, fmt.Errorf("read library index: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		corrupt := services.Wrap(services.ErrIndexCorrupt, "gamelist", "parse index", path, err)
		logging.WarnWithContext(logger, "library index unparsable; starting a new one", "gamelist_index_corrupt",
			logging.String("index", path),
			logging.Error(corrupt),
			logging.String(logging.FieldErrorHint, "restore gamelist.xml from backup if the old entries matter"),
			logging.String(logging.FieldImpact, "previous library index entries are discarded"),
		)
		return NewDocument(), nil
	}
	if !strings.EqualFold(doc.XMLName.Local, rootTag) {
		doc.XMLName = xml.Name{Local: rootTag}
	}
	return doc, nil
}
