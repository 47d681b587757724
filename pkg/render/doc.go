// Package render writes generated Markdown to its destination format.
//
// Rendering is deliberately line-based: heading markers become headings and
// everything else is a paragraph. Supported destinations are .docx and
// Markdown/plain text.
package render
