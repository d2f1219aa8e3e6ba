package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/calque-ai/docqa/pkg/rag"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TXT reads a UTF-8 text file and normalizes it.
func (e *Extractor) TXT(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", rag.Extraction("txt", "cannot read file", wrap(err, "txt"))
	}
	return decodeTXT(data)
}

func decodeTXT(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", rag.Extraction("txt", "file is not valid UTF-8", nil)
	}
	return CleanText(string(data)), nil
}

// PDF extracts the text layer of a PDF file.
func (e *Extractor) PDF(path string) (string, error) {
	f, r, err := openPDF(path)
	if err != nil {
		return "", rag.Extraction("pdf", "cannot parse PDF", err)
	}
	defer func() { _ = f.Close() }()

	return pdfText(r)
}

// PDFReader extracts the text layer of an in-memory PDF.
func (e *Extractor) PDFReader(ra io.ReaderAt, size int64) (string, error) {
	r, err := newPDFReader(ra, size)
	if err != nil {
		return "", rag.Extraction("pdf", "cannot parse PDF", err)
	}
	return pdfText(r)
}

// The PDF parser panics on some malformed inputs; every entry point recovers.

func openPDF(path string) (f *os.File, r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("pdf parser panic: %v", p)
		}
	}()
	return pdf.Open(path)
}

func newPDFReader(ra io.ReaderAt, size int64) (r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("pdf parser panic: %v", p)
		}
	}()
	return pdf.NewReader(ra, size)
}

func pdfText(r *pdf.Reader) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", rag.Extraction("pdf", "cannot read text layer", fmt.Errorf("pdf parser panic: %v", p))
		}
	}()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", rag.Extraction("pdf", "cannot read text layer", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", rag.Extraction("pdf", "cannot read text layer", err)
	}

	text = CleanText(buf.String())
	if text == "" {
		return "", rag.Extraction("pdf", "document has no text layer", nil)
	}
	return text, nil
}
