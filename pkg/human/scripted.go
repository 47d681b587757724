package human

import (
	"context"
	"sync"
)

// Shown records one Show call.
type Shown struct {
	Title    string
	Markdown string
}

// Scripted answers from fixed lists and records what it was asked.
// An exhausted list yields ErrNoInput.
type Scripted struct {
	mu        sync.Mutex
	confirms  []bool
	answers   []string
	questions []string
	shown     []Shown
}

// NewScripted creates a prompter that answers Confirm calls from confirms
// in order.
func NewScripted(confirms ...bool) *Scripted {
	return &Scripted{confirms: confirms}
}

// WithAnswers queues answers for Ask.
func (s *Scripted) WithAnswers(answers ...string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, answers...)
	return s
}

// Confirm pops the next scripted decision.
func (s *Scripted) Confirm(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = append(s.questions, question)
	if len(s.confirms) == 0 {
		return false, ErrNoInput
	}
	ok := s.confirms[0]
	s.confirms = s.confirms[1:]
	return ok, nil
}

// Ask pops the next scripted answer.
func (s *Scripted) Ask(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = append(s.questions, question)
	if len(s.answers) == 0 {
		return "", ErrNoInput
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

// Show records the document.
func (s *Scripted) Show(ctx context.Context, title, markdown string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, Shown{Title: title, Markdown: markdown})
	return nil
}

// Questions returns every question asked so far.
func (s *Scripted) Questions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.questions...)
}

// Shown returns every document shown so far.
func (s *Scripted) Shown() []Shown {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Shown(nil), s.shown...)
}

// Remaining reports unused confirms and answers.
func (s *Scripted) Remaining() (confirms, answers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.confirms), len(s.answers)
}
