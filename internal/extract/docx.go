package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

// docxMainContentType is the content type for the main document in DOCX files.
const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// docxToken matches, in document order, a text run, an explicit page break, or a paragraph end.
var docxToken = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>|<w:br\s[^>]*w:type="page"[^>]*>|</w:p>`)

// partNameRe extracts PartName from Override elements in [Content_Types].xml.
var partNameRe = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)

// partNameRe2 handles the case where ContentType appears before PartName.
var partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

// findDocxMainDocumentPath finds the main document path from [Content_Types].xml.
// Returns the path without leading slash, or empty string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	data, err := readZipFile(zr, contentTypesPath)
	if err != nil || data == nil {
		return ""
	}
	content := string(data)
	if matches := partNameRe.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimPrefix(matches[1], "/")
	}
	if matches := partNameRe2.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimPrefix(matches[1], "/")
	}
	return ""
}

// extractDOCX returns the document split at explicit page breaks. Within a page,
// paragraphs are separated by a blank line so the chunker can split on them.
// The XML is scanned with regexes rather than lu4p/cat because cat only matches
// <w:p> elements without attributes, which real-world documents rarely have.
func extractDOCX(content []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	docXML, err := readZipFile(zr, docPath)
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: %w", err)
	}
	if docXML == nil {
		return nil, fmt.Errorf("extract DOCX: %s not found", docPath)
	}

	var (
		pages      []string
		paragraphs []string
		para       strings.Builder
	)
	flushParagraph := func() {
		if p := strings.TrimSpace(para.String()); p != "" {
			paragraphs = append(paragraphs, p)
		}
		para.Reset()
	}
	flushPage := func() {
		pages = append(pages, strings.Join(paragraphs, "\n\n"))
		paragraphs = nil
	}
	for _, m := range docxToken.FindAllStringSubmatch(string(docXML), -1) {
		switch {
		case strings.HasPrefix(m[0], "<w:t"):
			para.WriteString(xmlText(m[1]))
		case strings.HasPrefix(m[0], "<w:br"):
			flushParagraph()
			flushPage()
		default:
			flushParagraph()
		}
	}
	flushParagraph()
	flushPage()
	return pages, nil
}
