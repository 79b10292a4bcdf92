// Package document pulls plain text out of uploaded résumé files.
package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"go.uber.org/zap"
)

type Kind string

const (
	KindPDF     Kind = "pdf"
	KindDOCX    Kind = "docx"
	KindText    Kind = "text"
	KindUnknown Kind = ""
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText = "text/plain"
)

// Extractor keeps no state between calls.
type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// DetectKind picks the document kind. A known file extension wins, content
// sniffing is used otherwise.
func DetectKind(filename string, data []byte) Kind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF
	case ".docx":
		return KindDOCX
	case ".txt":
		return KindText
	}

	mime := mimetype.Detect(data)
	switch {
	case mime.Is(mimePDF):
		return KindPDF
	case mime.Is(mimeDOCX):
		return KindDOCX
	case mime.Is(mimeText):
		return KindText
	}
	return KindUnknown
}

// ExtractFile reads a document from disk.
func (e *Extractor) ExtractFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", path, err)
	}
	return e.Extract(filepath.Base(path), data)
}

// Extract returns the text of a PDF, DOCX or plain text document.
func (e *Extractor) Extract(filename string, data []byte) (string, error) {
	kind := DetectKind(filename, data)

	e.logger.Debug("extracting document",
		zap.String("file", filename),
		zap.String("kind", string(kind)),
		zap.Int("bytes", len(data)),
	)

	switch kind {
	case KindPDF:
		return e.ExtractPDF(data)
	case KindDOCX:
		return e.ExtractDOCX(data)
	case KindText:
		return string(bytes.ToValidUTF8(data, []byte(" "))), nil
	default:
		return "", &ExtractionError{
			Message:     fmt.Sprintf("unsupported document type %q", mimetype.Detect(data).String()),
			Unsupported: true,
		}
	}
}

// ExtractPDF concatenates the text of every page, one page per line. A PDF
// without any text layer yields an empty string, not an error.
func (e *Extractor) ExtractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractionError{Message: "malformed pdf", Cause: fmt.Errorf("%v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ExtractionError{Message: "not a readable pdf", Cause: err}
	}

	pages := reader.NumPage()
	parts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() || page.V.Key("Contents").IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", &ExtractionError{Message: fmt.Sprintf("reading page %d", i), Cause: err}
		}
		parts = append(parts, content)
	}

	text = strings.TrimSpace(strings.Join(parts, "\n"))
	e.logger.Debug("pdf extracted", zap.Int("pages", pages), zap.Int("chars", len(text)))

	return text, nil
}

// ExtractDOCX returns the paragraphs of a Word document, one per line.
func (e *Extractor) ExtractDOCX(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ExtractionError{Message: "not a readable docx", Cause: err}
	}
	defer doc.Close()

	text, err := paragraphs(doc.Editable().GetContent())
	if err != nil {
		return "", &ExtractionError{Message: "malformed docx body", Cause: err}
	}

	e.logger.Debug("docx extracted", zap.Int("chars", len(text)))
	return text, nil
}

// paragraphs collects the text runs of WordprocessingML, breaking lines at
// paragraph ends.
func paragraphs(body string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(body))

	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}

	return strings.TrimSpace(b.String()), nil
}
