package ingest

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"
)

// readPlainText is the final fallback: the raw file bytes as one
// unstructured node. It fails only when the content is not valid UTF-8.
func readPlainText(filePath string) ([]Node, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("file is not valid UTF-8 text")
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("file contained no text")
	}
	return []Node{{Text: text}}, nil
}

// splitOversized breaks nodes beyond the rune budget into sentence-bounded
// parts. Text is never dropped; a node that cannot be segmented is kept
// whole.
func splitOversized(nodes []Node, maxRunes int, logger *zap.Logger) []Node {
	if maxRunes <= 0 {
		return nodes
	}

	out := make([]Node, 0, len(nodes))
	for _, node := range nodes {
		if utf8.RuneCountInString(node.Text) <= maxRunes {
			out = append(out, node)
			continue
		}

		parts := sentenceParts(node.Text, maxRunes)
		if len(parts) <= 1 {
			if logger != nil {
				logger.Warn("Could not segment oversized node, keeping whole",
					zap.Int("runes", utf8.RuneCountInString(node.Text)))
			}
			out = append(out, node)
			continue
		}
		for i, part := range parts {
			title := node.Title
			if title != "" && i > 0 {
				title = fmt.Sprintf("%s (cont. %d)", node.Title, i+1)
			}
			out = append(out, Node{Title: title, Text: part, Page: node.Page})
		}
	}
	return out
}

// sentenceParts accumulates whole sentences into chunks of at most maxRunes.
func sentenceParts(text string, maxRunes int) []string {
	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		return []string{text}
	}
	sentences := doc.Sentences()
	if len(sentences) < 2 {
		return []string{text}
	}

	var parts []string
	var current strings.Builder
	currentRunes := 0
	for _, sent := range sentences {
		runes := utf8.RuneCountInString(sent.Text)
		if currentRunes > 0 && currentRunes+runes > maxRunes {
			parts = append(parts, current.String())
			current.Reset()
			currentRunes = 0
		}
		if currentRunes > 0 {
			current.WriteString(" ")
			currentRunes++
		}
		current.WriteString(sent.Text)
		currentRunes += runes
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
