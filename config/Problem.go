package config

import (
	"errors"
	"fmt"
)

// ErrUnsupportedProblem is returned for a problem that no environment,
// dataset and models exist for
var ErrUnsupportedProblem = errors.New("unsupported configuration")

// Problem identifies the task that a configuration sets up. Problem is
// a closed enumeration: every switch over a Problem must handle every
// constant below and reject anything else.
type Problem string

// Available problems
const (
	PhotoEnhancement Problem = "photo_enhancement"
)

// Problems lists every supported Problem
var Problems = []Problem{PhotoEnhancement}

// Validate returns an error if p is not a supported Problem
func (p Problem) Validate() error {
	switch p {
	case PhotoEnhancement:
		return nil
	default:
		return fmt.Errorf("%w: problem %q", ErrUnsupportedProblem, string(p))
	}
}

// ParseProblem converts s into a Problem, returning an error wrapping
// ErrUnsupportedProblem if s names no supported problem
func ParseProblem(s string) (Problem, error) {
	p := Problem(s)
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}
