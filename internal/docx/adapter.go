package docx

import (
	"github.com/spf13/afero"
)

// Adapter gives the scanner and fixer file-level access to documents.
type Adapter struct {
	fs afero.Fs
}

// NewAdapter creates an Adapter over afs.
func NewAdapter(afs afero.Fs) *Adapter {
	return &Adapter{fs: afs}
}

// Fs returns the filesystem the adapter reads from.
func (a *Adapter) Fs() afero.Fs {
	return a.fs
}

// Open opens the document at path.
func (a *Adapter) Open(path string) (*Document, error) {
	return Open(a.fs, path)
}

// ReadTailParagraphs returns the last n non-empty body paragraphs of the
// document at path, or all of them when it has fewer than n.
func (a *Adapter) ReadTailParagraphs(path string, n int) ([]string, error) {
	doc, err := a.Open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return Tail(doc.Paragraphs(), n), nil
}

// AppendParagraph appends text as a new paragraph and saves the document in place.
func (a *Adapter) AppendParagraph(path, text string) error {
	doc, err := a.Open(path)
	if err != nil {
		return err
	}
	defer doc.Close()

	if err := doc.AppendParagraph(text); err != nil {
		return err
	}
	return doc.Save(a.fs, path)
}

// Tail returns the last n elements of paragraphs. n below 1 is treated as 1.
func Tail(paragraphs []string, n int) []string {
	if n < 1 {
		n = 1
	}
	if len(paragraphs) <= n {
		return paragraphs
	}
	return paragraphs[len(paragraphs)-n:]
}
