// Package docx reads body paragraphs from .docx containers and appends
// paragraphs to them.
package docx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	docxlib "github.com/nguyenthenguyen/docx"
	"github.com/spf13/afero"
)

// Extension is the file extension of Word documents handled by this package.
const Extension = ".docx"

// ErrNotContainer is returned when a file is not a zip-based document.
var ErrNotContainer = errors.New("not a word document container")

// AccessError reports a document that could not be read or written.
type AccessError struct {
	Path string
	Op   string // read, detect, open, parse, append, write
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("document %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// Document is an opened .docx file.
type Document struct {
	path       string
	raw        *docxlib.ReplaceDocx
	editable   *docxlib.Docx
	paragraphs []string
}

// Open reads and parses the document at path from afs.
func Open(afs afero.Fs, path string) (*Document, error) {
	data, err := afero.ReadFile(afs, path)
	if err != nil {
		return nil, &AccessError{Path: path, Op: "read", Err: err}
	}

	if detected, ok := isZipContainer(data); !ok {
		return nil, &AccessError{Path: path, Op: "detect", Err: fmt.Errorf("%w (detected %s)", ErrNotContainer, detected)}
	}

	raw, err := docxlib.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &AccessError{Path: path, Op: "open", Err: err}
	}

	editable := raw.Editable()
	paragraphs, err := parseParagraphs(editable.GetContent())
	if err != nil {
		raw.Close()
		return nil, &AccessError{Path: path, Op: "parse", Err: err}
	}

	return &Document{
		path:       path,
		raw:        raw,
		editable:   editable,
		paragraphs: paragraphs,
	}, nil
}

// Path returns the path the document was opened from.
func (d *Document) Path() string {
	return d.path
}

// Paragraphs returns the non-empty body paragraphs in document order.
func (d *Document) Paragraphs() []string {
	return d.paragraphs
}

// AppendParagraph adds a paragraph holding text at the end of the body,
// before the trailing section properties.
func (d *Document) AppendParagraph(text string) error {
	content, err := insertParagraph(d.editable.GetContent(), text)
	if err != nil {
		return &AccessError{Path: d.path, Op: "append", Err: err}
	}
	d.editable.SetContent(content)
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		d.paragraphs = append(d.paragraphs, trimmed)
	}
	return nil
}

// Save writes the document to path. The content goes to a temporary sibling
// first and is renamed over path, so path is never left half written.
func (d *Document) Save(afs afero.Fs, path string) error {
	slog.Debug("writing document", "path", path)

	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(afs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &AccessError{Path: path, Op: "write", Err: err}
	}
	tmpName := tmp.Name()

	if err := d.editable.Write(tmp); err != nil {
		tmp.Close()
		afs.Remove(tmpName)
		return &AccessError{Path: path, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		afs.Remove(tmpName)
		return &AccessError{Path: path, Op: "write", Err: err}
	}

	if info, err := afs.Stat(path); err == nil {
		_ = afs.Chmod(tmpName, info.Mode())
	}

	if err := afs.Rename(tmpName, path); err != nil {
		afs.Remove(tmpName)
		return &AccessError{Path: path, Op: "write", Err: err}
	}
	return nil
}

// Write writes the document container to w.
func (d *Document) Write(w io.Writer) error {
	return d.editable.Write(w)
}

// Close releases the underlying container.
func (d *Document) Close() error {
	if d.raw == nil {
		return nil
	}
	err := d.raw.Close()
	d.raw = nil
	return err
}

func isZipContainer(data []byte) (string, bool) {
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return detected.String(), true
		}
	}
	return detected.String(), false
}

// parseParagraphs extracts the text of top-level body paragraphs. Paragraphs
// inside tables, text boxes or other containers are not part of the body flow.
func parseParagraphs(content string) ([]string, error) {
	if content == "" {
		return nil, errors.New("empty document part")
	}

	dec := xml.NewDecoder(strings.NewReader(content))
	var (
		stack      []string
		paragraphs []string
		current    *strings.Builder
		pDepth     int
		inText     bool
		sawBody    bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if name == "body" {
				sawBody = true
			}
			if name == "p" && current == nil && len(stack) > 0 && stack[len(stack)-1] == "body" {
				current = &strings.Builder{}
				pDepth = len(stack)
			}
			if current != nil {
				switch name {
				case "t":
					inText = true
				case "tab":
					current.WriteString("\t")
				case "br", "cr":
					current.WriteString("\n")
				}
			}
			stack = append(stack, name)

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			name := t.Name.Local
			if name == "t" {
				inText = false
			}
			if name == "p" && current != nil && len(stack) == pDepth {
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				current = nil
			}

		case xml.CharData:
			if current != nil && inText {
				current.Write(t)
			}
		}
	}

	if !sawBody {
		return nil, errors.New("document body not found")
	}
	return paragraphs, nil
}

// insertParagraph places a new paragraph after the last block-level element
// of the body, keeping a trailing w:sectPr last.
func insertParagraph(content, text string) (string, error) {
	bodyEnd := strings.LastIndex(content, "</w:body>")
	if bodyEnd < 0 {
		return "", errors.New("document body not found")
	}

	head := content[:bodyEnd]
	insertAt := bodyEnd
	if sect := strings.LastIndex(head, "<w:sectPr"); sect >= 0 && sect > lastBlockEnd(head) {
		insertAt = sect
	}

	return content[:insertAt] + paragraphXML(text) + content[insertAt:], nil
}

func lastBlockEnd(s string) int {
	end := -1
	for _, marker := range []string{"</w:p>", "<w:p/>", "</w:tbl>"} {
		if i := strings.LastIndex(s, marker); i > end {
			end = i
		}
	}
	return end
}

func paragraphXML(text string) string {
	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(text))
	return `<w:p><w:r><w:t xml:space="preserve">` + escaped.String() + `</w:t></w:r></w:p>`
}
