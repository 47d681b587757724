// Package brd generates business requirements documents.
//
// A run threads one State through a fixed graph of stages: sources are
// loaded, summarized and mined for evidenced facts, checked for gaps
// against the template, outlined, drafted section by section, assembled,
// reviewed by a person and finally written to disk. Two loops are gated by
// a person: the gap loop returns to fact extraction with more inputs, and
// the review loop returns to outlining with feedback. Both are bounded.
//
// Delegated generation goes through llm.Policy, so an empty response is
// retried once and then replaced by a stage fallback, while malformed
// output fails the run.
package brd
