package ingest

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestMarkdownNodes(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		wantCount  int
		wantTitles []string
	}{
		{
			name:       "two_sections",
			src:        "# Overview\n\nIntro paragraph.\n\n# Pricing\n\nPrices vary.",
			wantCount:  2,
			wantTitles: []string{"Overview", "Pricing"},
		},
		{
			name:       "leading_text_without_heading",
			src:        "Preamble text.\n\n# Section\n\nBody.",
			wantCount:  2,
			wantTitles: []string{"", "Section"},
		},
		{
			name:       "no_headings",
			src:        "Just a paragraph.\n\nAnd another.",
			wantCount:  1,
			wantTitles: []string{""},
		},
		{
			name:      "empty",
			src:       "   \n\n  ",
			wantCount: 0,
		},
		{
			name:       "heading_with_empty_section",
			src:        "# Lonely Heading",
			wantCount:  1,
			wantTitles: []string{"Lonely Heading"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := markdownNodes(tt.src)
			if len(nodes) != tt.wantCount {
				t.Fatalf("len(nodes) = %d, want %d (%+v)", len(nodes), tt.wantCount, nodes)
			}
			for i, title := range tt.wantTitles {
				if nodes[i].Title != title {
					t.Errorf("nodes[%d].Title = %q, want %q", i, nodes[i].Title, title)
				}
				if nodes[i].Text == "" {
					t.Errorf("nodes[%d].Text is empty", i)
				}
			}
		})
	}
}

func TestSplitOversizedKeepsAllText(t *testing.T) {
	// Three sentences of ~40 runes each with a 90-rune budget should
	// split into two parts without losing content.
	text := "The first sentence has a bit of length to it. The second sentence also carries some weight. The third one closes the paragraph neatly."
	nodes := splitOversized([]Node{{Title: "Body", Text: text}}, 90, zap.NewNop())

	if len(nodes) < 2 {
		t.Fatalf("len(nodes) = %d, want >= 2", len(nodes))
	}
	var joined []string
	for _, n := range nodes {
		joined = append(joined, n.Text)
	}
	combined := strings.Join(joined, " ")
	for _, fragment := range []string{"first sentence", "second sentence", "third one"} {
		if !strings.Contains(combined, fragment) {
			t.Errorf("fragment %q lost during split", fragment)
		}
	}
	if nodes[0].Title != "Body" {
		t.Errorf("nodes[0].Title = %q, want %q", nodes[0].Title, "Body")
	}
	if !strings.HasPrefix(nodes[1].Title, "Body (cont.") {
		t.Errorf("nodes[1].Title = %q, want continuation title", nodes[1].Title)
	}
}

func TestSplitOversizedLeavesSmallNodesAlone(t *testing.T) {
	nodes := []Node{{Text: "short"}, {Text: "also short"}}
	got := splitOversized(nodes, 100, zap.NewNop())
	if len(got) != 2 || got[0].Text != "short" || got[1].Text != "also short" {
		t.Errorf("splitOversized altered small nodes: %+v", got)
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		mimeHint string
		want     fileKind
	}{
		{"pdf_by_extension", "report.pdf", "", kindPDF},
		{"pdf_by_mime", "upload.tmp", "application/pdf", kindPDF},
		{"docx_by_extension", "contract.docx", "", kindDOCX},
		{"docx_by_mime", "blob", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", kindDOCX},
		{"markdown", "notes.md", "", kindMarkdown},
		{"txt", "readme.txt", "", kindText},
		{"txt_by_mime", "data", "text/plain", kindText},
		{"unknown", "image.png", "", kindUnknown},
		{"mime_wins_over_extension", "file.bin", "application/pdf", kindPDF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectKind(tt.path, tt.mimeHint); got != tt.want {
				t.Errorf("detectKind(%q, %q) = %v, want %v", tt.path, tt.mimeHint, got, tt.want)
			}
		})
	}
}
