package extract

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(sections []Section) []string {
	out := make([]string, len(sections))
	for i, s := range sections {
		out[i] = s.Name
	}
	return out
}

func TestDefaultSections(t *testing.T) {
	got := DefaultSections()
	require.Len(t, got, 7)
	assert.Equal(t, "Technology Platform and Tools", got[0].Name)
	assert.Equal(t, "Appendix and Supporting Documents", got[6].Name)
	for _, s := range got {
		assert.Equal(t, []string{"content"}, s.RequiredFields)
	}
}

func TestTemplateSections_PDFTableOfContents(t *testing.T) {
	p := writePDF(t, filepath.Join(t.TempDir(), "template.pdf"),
		"Scope .......... 3",
		"Risks and Mitigations ....... 7",
		"Appendix .......... 9",
	)

	got, err := TemplateSections(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"Scope", "Risks and Mitigations"}, names(got), "only the first two pages are read")
	assert.Equal(t, []string{"content"}, got[0].RequiredFields)
}

func TestTemplateSections_PDFWithoutTOC(t *testing.T) {
	p := writePDF(t, filepath.Join(t.TempDir(), "template.pdf"), "Just prose")

	got, err := TemplateSections(p)
	require.NoError(t, err)
	assert.Equal(t, DefaultSections(), got)
}

func TestTemplateSections_Markdown(t *testing.T) {
	dir := t.TempDir()

	t.Run("second level headings", func(t *testing.T) {
		p := writeFile(t, dir, "t1.md", "# BRD Template\n\n## Scope\n\ntext\n\n## *Data* Sources\n\n### Detail\n\n## Scope\n")
		got, err := TemplateSections(p)
		require.NoError(t, err)
		assert.Equal(t, []string{"Scope", "Data Sources"}, names(got))
	})

	t.Run("first level only", func(t *testing.T) {
		p := writeFile(t, dir, "t2.md", "# Goals\n\n# Risks\n")
		got, err := TemplateSections(p)
		require.NoError(t, err)
		assert.Equal(t, []string{"Goals", "Risks"}, names(got))
	})

	t.Run("no headings", func(t *testing.T) {
		p := writeFile(t, dir, "t3.md", "plain text only\n")
		got, err := TemplateSections(p)
		require.NoError(t, err)
		assert.Equal(t, DefaultSections(), got)
	})
}

func TestTemplateSections_TextTOC(t *testing.T) {
	p := writeFile(t, t.TempDir(), "toc.txt", "Contents\nOverview ....... 1\nno dots here 2\nOut of Scope ........ 4\n")

	got, err := TemplateSections(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"Overview", "Out of Scope"}, names(got))
}

func TestTemplateSections_EmptyPathAndErrors(t *testing.T) {
	got, err := TemplateSections("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSections(), got)

	_, err = TemplateSections(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}
