package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxTextProbePages bounds how many pages are scanned for a text layer.
const maxTextProbePages = 5

// PDFInfo is metadata read from an uploaded PDF. It only decorates the document;
// the model always receives the original bytes.
type PDFInfo struct {
	Pages   int  `json:"pages"`
	HasText bool `json:"has_text"`
}

func InspectPDF(data []byte) (info *PDFInfo, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			info, err = nil, fmt.Errorf("failed to parse PDF: %v", r)
		}
	}()

	reader := bytes.NewReader(data)

	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	info = &PDFInfo{Pages: pdfReader.NumPage()}

	for i := 1; i <= info.Pages && i <= maxTextProbePages; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		if strings.TrimSpace(text) != "" {
			info.HasText = true
			break
		}
	}

	return info, nil
}
