package extract

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Section is one named section of a document template.
type Section struct {
	Name           string   `json:"name" validate:"required"`
	RequiredFields []string `json:"required_fields"`
}

// tocLine matches a table-of-contents entry such as "Out of Scope ....... 12".
var tocLine = regexp.MustCompile(`\.{5,}\s*\d+$`)

// tocPages is how many leading PDF pages are searched for a table of contents.
const tocPages = 2

// DefaultSections is used when a template yields no recognizable structure.
func DefaultSections() []Section {
	names := []string{
		"Technology Platform and Tools",
		"Initiating a Workflow",
		"User Roles/Responsibilities",
		"Workflow 1: SensoryUX Workflow",
		"Workflow 2: Analytical Workflow",
		"Out of Scope",
		"Appendix and Supporting Documents",
	}
	out := make([]Section, len(names))
	for i, n := range names {
		out[i] = Section{Name: n, RequiredFields: []string{"content"}}
	}
	return out
}

// TemplateSections extracts the ordered sections of a template.
//
// PDF templates are read from the table of contents on their first pages.
// Markdown templates use their headings: second-level headings when present,
// otherwise first-level. Other text formats are scanned for table-of-contents
// lines. When nothing is found, DefaultSections is returned. An empty path
// also yields DefaultSections; an unreadable file is an error.
func TemplateSections(path string) ([]Section, error) {
	if path == "" {
		return DefaultSections(), nil
	}

	var (
		sections []Section
		err      error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		var toc string
		toc, err = pdfText(path, tocPages)
		sections = tocSections(toc)
	case ".md":
		var data []byte
		data, err = os.ReadFile(path)
		sections = markdownSections(data)
	default:
		var body string
		body, err = Text(path)
		sections = tocSections(body)
	}
	if err != nil {
		return nil, err
	}

	if len(sections) == 0 {
		return DefaultSections(), nil
	}
	return sections, nil
}

// tocSections collects titles from table-of-contents lines.
func tocSections(toc string) []Section {
	var out []Section
	for _, line := range strings.Split(toc, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !tocLine.MatchString(line) {
			continue
		}
		title := strings.TrimSpace(tocLine.ReplaceAllString(line, ""))
		if title != "" {
			out = append(out, Section{Name: title, RequiredFields: []string{"content"}})
		}
	}
	return dedupe(out)
}

// markdownSections walks the heading nodes of a Markdown document.
func markdownSections(src []byte) []Section {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	byLevel := map[int][]Section{}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !entering || !ok {
			return ast.WalkContinue, nil
		}
		if h.Level <= 2 {
			title := strings.TrimSpace(headingText(h, src))
			if title != "" {
				byLevel[h.Level] = append(byLevel[h.Level], Section{Name: title, RequiredFields: []string{"content"}})
			}
		}
		return ast.WalkSkipChildren, nil
	})

	if len(byLevel[2]) > 0 {
		return dedupe(byLevel[2])
	}
	return dedupe(byLevel[1])
}

// headingText concatenates the text segments under a heading.
func headingText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
			continue
		}
		b.WriteString(headingText(c, src))
	}
	return b.String()
}

func dedupe(in []Section) []Section {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s.Name] {
			seen[s.Name] = true
			out = append(out, s)
		}
	}
	return out
}
