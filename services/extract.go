package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ExtractionError reports why a file could not be turned into text.
type ExtractionError struct {
	Format string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %s", e.Format, e.Reason)
}

// SupportedExtension reports whether uploads with this extension are
// accepted at all. Legacy .doc is accepted here so that the pipeline
// can produce its dedicated error message instead of a generic 400.
func SupportedExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".txt", ".doc":
		return true
	}
	return false
}

// ExtractText converts an uploaded file into plain text based on its
// declared extension. Empty or undecodable input is an error, never an
// empty string.
func ExtractText(data []byte, ext string) (string, error) {
	var (
		text string
		err  error
	)

	switch strings.ToLower(ext) {
	case ".pdf":
		text, err = extractPDF(data)
	case ".docx":
		text, err = extractDOCX(data)
	case ".txt":
		text, err = extractTXT(data)
	case ".doc":
		return "", &ExtractionError{
			Format: "doc",
			Reason: "legacy .doc files are not supported, re-save the document as .docx and upload it again",
		}
	default:
		return "", &ExtractionError{Format: strings.TrimPrefix(ext, "."), Reason: "unsupported file type"}
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", &ExtractionError{
			Format: strings.TrimPrefix(strings.ToLower(ext), "."),
			Reason: "no text found, the file may be empty, encrypted or a scan without OCR",
		}
	}
	return text, nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ExtractionError{Format: "pdf", Reason: err.Error()}
	}

	var textBuilder bytes.Buffer
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		textBuilder.WriteString(content)
	}
	return textBuilder.String(), nil
}

// extractDOCX opens the docx as a zip archive and concatenates the
// text runs (<w:t>) of word/document.xml.
func extractDOCX(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ExtractionError{Format: "docx", Reason: "not a valid docx archive"}
	}

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", &ExtractionError{Format: "docx", Reason: "word/document.xml missing"}
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", &ExtractionError{Format: "docx", Reason: err.Error()}
	}
	defer rc.Close()

	var buf bytes.Buffer
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &ExtractionError{Format: "docx", Reason: err.Error()}
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "t": // <w:t>
				var text string
				if err := decoder.DecodeElement(&text, &se); err == nil {
					buf.WriteString(text + " ")
				}
			case "p": // paragraph boundary
				if buf.Len() > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(buf.String()), nil
}

func extractTXT(data []byte) (string, error) {
	// Strip an optional UTF-8 BOM before validating.
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if !utf8.Valid(data) {
		return "", &ExtractionError{Format: "txt", Reason: "file is not valid UTF-8 text"}
	}
	return string(data), nil
}
