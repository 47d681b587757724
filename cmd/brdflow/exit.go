package main

import (
	fgerrors "github.com/randalmurphal/brdflow/pkg/flowgraph/errors"
)

// Exit statuses by error category.
const (
	exitOK            = 0
	exitFailure       = 1
	exitHumanRequired = 4
	exitMalformed     = 65
	exitTransient     = 75
	exitCancelled     = 130
)

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	switch fgerrors.Categorize(err) {
	case fgerrors.CategoryTransient:
		return exitTransient
	case fgerrors.CategoryMalformed:
		return exitMalformed
	case fgerrors.CategoryHumanRequired:
		return exitHumanRequired
	case fgerrors.CategoryCancelled:
		return exitCancelled
	}
	return exitFailure
}
