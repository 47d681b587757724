// Package human collects decisions from a person during a run.
//
// Stages depend on the Prompter interface. Interactive chooses huh forms
// on a terminal and line prompts otherwise; Scripted drives tests.
package human
