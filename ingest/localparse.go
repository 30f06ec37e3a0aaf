package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fumiama/go-docx"
	pdflib "github.com/ledongthuc/pdf"
)

// fileKind is the structural type the local parsers understand.
type fileKind int

const (
	kindUnknown fileKind = iota
	kindPDF
	kindDOCX
	kindMarkdown
	kindText
)

// detectKind resolves a file's structural type from its mime hint, falling
// back to the extension when the hint is absent or generic.
func detectKind(filePath, mimeHint string) fileKind {
	switch strings.ToLower(strings.TrimSpace(mimeHint)) {
	case "application/pdf":
		return kindPDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return kindDOCX
	case "text/markdown":
		return kindMarkdown
	case "text/plain":
		return kindText
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return kindPDF
	case ".docx":
		return kindDOCX
	case ".md", ".markdown":
		return kindMarkdown
	case ".txt":
		return kindText
	}
	return kindUnknown
}

// hasStructuralParser reports whether the alternate-parser strategy applies.
// Plain text has no structural parser distinct from the raw-text fallback,
// so it goes straight from the primary service to the plain-text strategy.
func hasStructuralParser(kind fileKind) bool {
	switch kind {
	case kindPDF, kindDOCX, kindMarkdown:
		return true
	}
	return false
}

// parseLocal runs the non-networked structural parser for the file type.
func parseLocal(filePath string, kind fileKind) ([]Node, error) {
	switch kind {
	case kindPDF:
		return parsePDF(filePath)
	case kindDOCX:
		return parseDOCX(filePath)
	case kindMarkdown:
		return parseMarkdownFile(filePath)
	}
	return nil, fmt.Errorf("no structural parser for file type")
}

// parsePDF extracts one node per page.
func parsePDF(filePath string) ([]Node, error) {
	f, r, err := pdflib.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var nodes []Node
	totalPages := r.NumPage()
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		nodes = append(nodes, Node{
			Title: fmt.Sprintf("Page %d", pageNum),
			Text:  text,
			Page:  pageNum,
		})
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("pdf contained no extractable text")
	}
	return nodes, nil
}

// parseDOCX walks paragraphs, starting a new node at each heading style.
func parseDOCX(filePath string) ([]Node, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat docx: %w", err)
	}

	doc, err := docx.Parse(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var nodes []Node
	current := Node{}
	var buf strings.Builder

	flush := func() {
		text := strings.TrimSpace(buf.String())
		if text != "" || current.Title != "" {
			if text == "" {
				text = current.Title
			}
			current.Text = text
			nodes = append(nodes, current)
		}
		current = Node{}
		buf.Reset()
	}

	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := paragraphText(para)
		if text == "" {
			continue
		}
		if isHeadingParagraph(para) {
			flush()
			current.Title = text
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(text)
	}
	flush()

	if len(nodes) == 0 {
		return nil, fmt.Errorf("docx contained no extractable text")
	}
	return nodes, nil
}

func isHeadingParagraph(para *docx.Paragraph) bool {
	if para.Properties == nil || para.Properties.Style == nil {
		return false
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	return strings.HasPrefix(style, "heading")
}

func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

// parseMarkdownFile structures a markdown file by its headings.
func parseMarkdownFile(filePath string) ([]Node, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}
	nodes := markdownNodes(string(data))
	if len(nodes) == 0 {
		return nil, fmt.Errorf("markdown contained no extractable text")
	}
	return nodes, nil
}
