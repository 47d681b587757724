package render

import "strings"

// BlockKind distinguishes headings from body paragraphs.
type BlockKind int

const (
	// Paragraph is a line of body text. An empty Paragraph is a blank line.
	Paragraph BlockKind = iota
	// Heading is a section heading with Level 1 to 3.
	Heading
)

// Block is one line of a rendered document.
type Block struct {
	Kind  BlockKind
	Level int
	Text  string
}

// Parse maps Markdown to blocks line by line: "# ", "## " and "### " start
// headings, blank lines become empty paragraphs, and every other line is a
// paragraph with its text kept verbatim.
func Parse(markdown string) []Block {
	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")
	if markdown == "" {
		return nil
	}

	lines := strings.Split(strings.TrimSuffix(markdown, "\n"), "\n")
	blocks := make([]Block, 0, len(lines))
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "### "):
			blocks = append(blocks, Block{Kind: Heading, Level: 3, Text: line[4:]})
		case strings.HasPrefix(line, "## "):
			blocks = append(blocks, Block{Kind: Heading, Level: 2, Text: line[3:]})
		case strings.HasPrefix(line, "# "):
			blocks = append(blocks, Block{Kind: Heading, Level: 1, Text: line[2:]})
		case strings.TrimSpace(line) == "":
			blocks = append(blocks, Block{Kind: Paragraph})
		default:
			blocks = append(blocks, Block{Kind: Paragraph, Text: line})
		}
	}
	return blocks
}
