// Package extract turns source documents into labeled text and reads the
// section structure of document templates.
//
// Built-in extractors cover .txt, .md, .pdf, .docx and .pptx, and Register
// adds more by extension. Sources walks input locations, skips what it
// cannot read, and splits long files into chunks that each begin with a
// "[SOURCE: name]" line so generated facts can cite them.
package extract
